package metrics

import (
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Manager handles all application metrics
type Manager struct {
	prometheus *PrometheusMetrics
	logger     *logrus.Entry
	startTime  time.Time

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewManager creates a new metrics manager
func NewManager() *Manager {
	return &Manager{
		prometheus: NewPrometheusMetrics(),
		logger:     logrus.WithField("component", "metrics"),
		startTime:  time.Now(),
		stopChan:   make(chan struct{}),
	}
}

// GetPrometheusMetrics returns the Prometheus metrics instance
func (m *Manager) GetPrometheusMetrics() *PrometheusMetrics {
	return m.prometheus
}

// StartPeriodicUpdates refreshes system-level metrics on the given interval
// until Stop is called.
func (m *Manager) StartPeriodicUpdates(interval time.Duration) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		m.UpdateSystemMetrics()
		for {
			select {
			case <-ticker.C:
				m.UpdateSystemMetrics()
			case <-m.stopChan:
				return
			}
		}
	}()

	m.logger.WithField("interval", interval).Debug("Periodic metrics updates started")
}

// Stop terminates periodic updates
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
	})
	m.wg.Wait()
}

// UpdateSystemMetrics updates system-level metrics like memory and goroutines
func (m *Manager) UpdateSystemMetrics() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	m.prometheus.UpdateMemoryUsage(memStats.Alloc)
	m.prometheus.UpdateGoroutineCount(runtime.NumGoroutine())
	m.prometheus.UpdateApplicationUptime(m.startTime)
}

// SetComponentHealth records the health state of a named component
func (m *Manager) SetComponentHealth(component string, healthy bool) {
	m.prometheus.UpdateComponentHealth(component, healthy)
}
