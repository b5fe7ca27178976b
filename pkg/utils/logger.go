package utils

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

const logTimestampFormat = "2006-01-02T15:04:05.000Z07:00"

var (
	loggerMu sync.Mutex
	logger   *logrus.Logger
)

// InitLogger configures the process-wide logger. Calling it again replaces
// the previous configuration.
func InitLogger(level, format, output, file string) error {
	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	writer, err := logWriter(output, file)
	if err != nil {
		return err
	}

	l := logrus.New()
	l.SetLevel(parsed)
	l.SetFormatter(logFormatter(format))
	l.SetOutput(writer)

	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()

	return nil
}

// GetLogger returns the process-wide logger, building an info-level stdout
// logger when InitLogger has not run yet.
func GetLogger() *logrus.Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	if logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.InfoLevel)
		l.SetFormatter(logFormatter("text"))
		l.SetOutput(os.Stdout)
		logger = l
	}
	return logger
}

func logFormatter(format string) logrus.Formatter {
	if strings.EqualFold(format, "json") {
		return &logrus.JSONFormatter{TimestampFormat: logTimestampFormat}
	}
	return &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: logTimestampFormat,
	}
}

func logWriter(output, file string) (io.Writer, error) {
	switch strings.ToLower(output) {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	case "file":
		if file == "" {
			return nil, fmt.Errorf("log output %q requires a log file path", output)
		}
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", file, err)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("unsupported log output %q", output)
	}
}
