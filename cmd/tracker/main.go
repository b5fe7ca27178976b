// File: cmd/tracker/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/smartdevs17/kaia-wallet-tracker/internal/bot"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/cache"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/config"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/kaiascan"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/lookup"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/metrics"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/notification"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/server"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/storage"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/telegram"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/tracker"
	"github.com/smartdevs17/kaia-wallet-tracker/pkg/utils"
)

// AppVersion contains the application version
const AppVersion = "1.0.0"

// Application represents the main application
type Application struct {
	config         *config.Config
	logger         *logrus.Logger
	metricsManager *metrics.Manager
	storage        storage.Storage
	feed           kaiascan.Client
	cache          cache.Cache
	telegramClient telegram.Client
	notifications  *notification.Manager
	trackerService *tracker.Service
	lookupService  *lookup.Service
	poller         *tracker.Poller
	bot            *bot.Bot
	server         *server.HTTPServer
	ctx            context.Context
	cancel         context.CancelFunc
}

// NewApplication creates a new application instance
func NewApplication(cfg *config.Config) (*Application, error) {
	ctx, cancel := context.WithCancel(context.Background())

	app := &Application{
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
	}

	if err := app.initializeLogger(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := app.initializeComponents(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize components: %w", err)
	}

	return app, nil
}

// initializeLogger initializes the application logger
func (app *Application) initializeLogger() error {
	logCfg := app.config.Logging

	if err := utils.InitLogger(logCfg.Level, logCfg.Format, logCfg.Output, logCfg.File); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.logger = utils.GetLogger()
	app.logger.WithFields(logrus.Fields{
		"level":  logCfg.Level,
		"format": logCfg.Format,
		"output": logCfg.Output,
	}).Info("Logger initialized")

	return nil
}

// initializeComponents initializes all application components
func (app *Application) initializeComponents() error {
	app.logger.Info("Initializing application components")

	app.initializeMetrics()

	if err := app.initializeStorage(); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	app.initializeFeed()

	if err := app.initializeCache(); err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}

	app.initializeLookup()
	app.initializeTelegram()

	if err := app.initializeNotifications(); err != nil {
		return fmt.Errorf("failed to initialize notifications: %w", err)
	}

	app.initializeTracker()
	app.initializeBot()

	if err := app.initializeServer(); err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	app.logger.Info("All components initialized successfully")
	return nil
}

// initializeMetrics initializes the metrics manager
func (app *Application) initializeMetrics() {
	if !app.config.Metrics.Enabled {
		app.logger.Info("Metrics collection disabled")
		return
	}

	app.metricsManager = metrics.NewManager()
	app.metricsManager.StartPeriodicUpdates(app.config.Metrics.UpdateInterval)
	app.logger.Info("Metrics manager initialized")
}

// initializeStorage initializes the storage layer
func (app *Application) initializeStorage() error {
	app.logger.WithField("type", app.config.Storage.Type).Info("Initializing storage layer")

	store, err := storage.NewStorage(&app.config.Storage)
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}

	if err := store.Connect(); err != nil {
		return fmt.Errorf("failed to connect to storage: %w", err)
	}

	if err := store.Migrate(); err != nil {
		return fmt.Errorf("failed to run storage migrations: %w", err)
	}

	if app.metricsManager != nil {
		app.storage = storage.NewStorageWithMetrics(store, app.metricsManager)
	} else {
		app.storage = store
	}

	app.logger.Info("Storage layer initialized successfully")
	return nil
}

// initializeFeed initializes the Kaiascan feed client. A failed probe is
// logged but does not abort startup: the feed may recover, and sweeps
// tolerate it being down.
func (app *Application) initializeFeed() {
	app.logger.WithField("base_url", app.config.Kaiascan.BaseURL).Info("Initializing feed client")

	app.feed = kaiascan.NewClient(&app.config.Kaiascan, app.metricsManager)

	probeCtx, cancel := context.WithTimeout(app.ctx, 10*time.Second)
	defer cancel()

	if err := app.feed.HealthCheck(probeCtx); err != nil {
		app.logger.WithField("error", err.Error()).Warn("Feed health check failed at startup")
	} else {
		app.logger.Info("Feed client initialized successfully")
	}
}

// initializeCache initializes the lookup cache
func (app *Application) initializeCache() error {
	app.logger.WithField("type", app.config.Cache.Type).Info("Initializing cache")

	c, err := cache.NewCache(app.ctx, &app.config.Cache)
	if err != nil {
		return fmt.Errorf("failed to create cache: %w", err)
	}

	app.cache = c
	app.logger.Info("Cache initialized successfully")
	return nil
}

// initializeLookup initializes the account lookup service
func (app *Application) initializeLookup() {
	app.lookupService = lookup.NewService(app.feed, app.cache, &app.config.Cache, app.metricsManager)
	app.logger.Info("Lookup service initialized")
}

// initializeTelegram initializes the Telegram API client
func (app *Application) initializeTelegram() {
	if !app.config.Telegram.Enabled {
		app.logger.Info("Telegram integration disabled")
		return
	}

	app.telegramClient = telegram.NewClient(&app.config.Telegram)
	app.logger.Info("Telegram client initialized")
}

// initializeNotifications initializes the notification manager and its
// delivery channels
func (app *Application) initializeNotifications() error {
	app.logger.WithField("default_channel", app.config.Notifications.DefaultChannel).
		Info("Initializing notification manager")

	app.notifications = notification.NewManager(&app.config.Notifications, app.storage, app.metricsManager)

	notifLogger := notification.NewNotificationLogger()

	if app.telegramClient != nil {
		app.notifications.AddNotifier(notification.NewTelegramSender(app.telegramClient, notifLogger))
	}
	if app.config.Notifications.EnableWebhook {
		app.notifications.AddNotifier(notification.NewWebhookSender(&app.config.Notifications, notifLogger))
	}
	if app.config.Notifications.EnableLog {
		app.notifications.AddNotifier(notification.NewLogSender())
	}

	if err := app.notifications.Start(app.ctx); err != nil {
		return fmt.Errorf("failed to start notification manager: %w", err)
	}

	app.logger.Info("Notification manager initialized successfully")
	return nil
}

// initializeTracker initializes the tracking service and the sweep poller
func (app *Application) initializeTracker() {
	app.trackerService = tracker.NewService(app.storage, app.feed)

	if !app.config.Tracking.Enabled {
		app.logger.Info("Tracking poller disabled")
		return
	}

	pollerCfg := &tracker.PollerConfig{
		PollInterval: app.config.Tracking.PollInterval,
		Concurrency:  app.config.Tracking.Concurrency,
		PageSize:     app.config.Kaiascan.PageSize,
		PanicBackoff: app.config.Tracking.PanicBackoff,
	}

	app.poller = tracker.NewPoller(app.storage, app.feed, app.notifications, pollerCfg, app.metricsManager)
	app.logger.Info("Tracking poller initialized")
}

// initializeBot initializes the Telegram command bot
func (app *Application) initializeBot() {
	if app.telegramClient == nil {
		return
	}

	app.bot = bot.NewBot(app.telegramClient, app.trackerService, app.lookupService,
		&app.config.Telegram, app.metricsManager)
	app.logger.Info("Command bot initialized")
}

// initializeServer initializes the HTTP server
func (app *Application) initializeServer() error {
	if !app.config.Server.Enabled {
		app.logger.Info("HTTP server disabled")
		return nil
	}

	var err error
	app.server, err = server.NewHTTPServer(&app.config.Server, app.storage, app.feed,
		app.trackerService, app.poller, app.notifications, app.bot, app.metricsManager)
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	app.logger.Info("HTTP server initialized successfully")
	return nil
}

// Start starts the application
func (app *Application) Start() error {
	app.logger.WithFields(logrus.Fields{
		"version":     AppVersion,
		"environment": app.config.App.Environment,
	}).Info("Starting Kaia wallet tracker")

	if app.server != nil {
		if err := app.server.Start(); err != nil {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
	}

	if app.poller != nil {
		if err := app.poller.Start(app.ctx); err != nil {
			return fmt.Errorf("failed to start tracking poller: %w", err)
		}
	}

	if app.bot != nil {
		if err := app.bot.Start(app.ctx); err != nil {
			return fmt.Errorf("failed to start command bot: %w", err)
		}
	}

	app.logger.WithFields(logrus.Fields{
		"server_address": fmt.Sprintf("%s:%d", app.config.Server.Host, app.config.Server.Port),
		"feed_url":       app.config.Kaiascan.BaseURL,
		"poll_interval":  app.config.Tracking.PollInterval,
	}).Info("Kaia wallet tracker started successfully")

	return nil
}

// Stop stops the application gracefully. The poller is drained before the
// shared context is cancelled, so an in-flight notification is not cut off
// between dispatch and checkpoint commit.
func (app *Application) Stop() error {
	app.logger.Info("Stopping Kaia wallet tracker")

	if app.poller != nil {
		if err := app.poller.Stop(); err != nil {
			app.logger.WithField("error", err.Error()).Error("Failed to stop tracking poller")
		}
	}

	app.cancel()

	if app.bot != nil {
		if err := app.bot.Stop(); err != nil {
			app.logger.WithField("error", err.Error()).Error("Failed to stop command bot")
		}
	}

	if app.server != nil {
		if err := app.server.Stop(); err != nil {
			app.logger.WithField("error", err.Error()).Error("Failed to stop HTTP server")
		}
	}

	if app.notifications != nil {
		if err := app.notifications.Stop(); err != nil {
			app.logger.WithField("error", err.Error()).Error("Failed to stop notification manager")
		}
	}

	if app.metricsManager != nil {
		app.metricsManager.Stop()
	}

	if app.cache != nil {
		if err := app.cache.Close(); err != nil {
			app.logger.WithField("error", err.Error()).Error("Failed to close cache")
		}
	}

	if app.storage != nil {
		if err := app.storage.Close(); err != nil {
			app.logger.WithField("error", err.Error()).Error("Failed to close storage")
		}
	}

	app.logger.Info("Kaia wallet tracker stopped successfully")
	return nil
}

// CLI Commands

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "kaia-wallet-tracker",
	Short:   "Kaia Wallet Tracker",
	Long:    `A wallet tracking service for the Kaia blockchain: subscribers register addresses over Telegram and receive a notification for every new transaction, with balance, token and NFT lookups on demand.`,
	Version: AppVersion,
	RunE:    runTracker,
}

// runTracker is the main command to run the tracker
func runTracker(cmd *cobra.Command, args []string) error {
	configPath := viper.GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	app, err := NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	if err := app.Start(); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}

	<-signalChan
	fmt.Println("\nReceived shutdown signal, stopping application...")

	if err := app.Stop(); err != nil {
		return fmt.Errorf("failed to stop application: %w", err)
	}

	return nil
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Kaia Wallet Tracker %s\n", AppVersion)
	},
}

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
}

// validateConfigCmd validates the configuration
var validateConfigCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := viper.GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}

		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}

		fmt.Printf("Configuration is valid!\n")
		fmt.Printf("Environment: %s\n", cfg.App.Environment)
		fmt.Printf("Feed: %s\n", cfg.Kaiascan.BaseURL)
		fmt.Printf("Database: %s\n", cfg.Storage.Type)
		fmt.Printf("Poll interval: %s\n", cfg.Tracking.PollInterval)
		fmt.Printf("Telegram enabled: %t\n", cfg.Telegram.Enabled)

		return nil
	},
}

// testCmd represents the test command
var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Test connectivity and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := viper.GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		fmt.Println("Testing Kaia wallet tracker connectivity...")

		fmt.Printf("Testing storage connection (%s)...\n", cfg.Storage.Type)
		store, err := storage.NewStorage(&cfg.Storage)
		if err != nil {
			return fmt.Errorf("failed to create storage: %w", err)
		}
		if err := store.Connect(); err != nil {
			return fmt.Errorf("failed to connect to storage: %w", err)
		}
		defer store.Close()
		fmt.Println("✓ Storage connection successful")

		fmt.Printf("Testing feed connection to %s...\n", cfg.Kaiascan.BaseURL)
		feed := kaiascan.NewClient(&cfg.Kaiascan, nil)
		if err := feed.HealthCheck(ctx); err != nil {
			return fmt.Errorf("failed to reach feed: %w", err)
		}
		fmt.Println("✓ Feed connection successful")

		if cfg.Telegram.Enabled {
			fmt.Println("Testing Telegram bot token...")
			tg := telegram.NewClient(&cfg.Telegram)
			me, err := tg.Me(ctx)
			if err != nil {
				return fmt.Errorf("failed to verify bot token: %w", err)
			}
			fmt.Printf("✓ Telegram bot token valid (@%s)\n", me.Username)
		}

		fmt.Println("\nAll connectivity tests passed! ✓")
		return nil
	},
}

// init initializes the CLI commands
func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug mode")

	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(testCmd)
	configCmd.AddCommand(validateConfigCmd)
}

// main is the entry point
func main() {
	// .env is optional; real deployments set environment variables directly
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
