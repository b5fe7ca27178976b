// File: internal/bot/bot.go
package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/config"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/lookup"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/metrics"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/telegram"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/tracker"
	"github.com/smartdevs17/kaia-wallet-tracker/pkg/utils"
)

// commandTimeout bounds one command's feed and storage work
const commandTimeout = 30 * time.Second

const welcomeText = `👋 Welcome to Kaia Wallet Tracker Bot!

Available Commands:
- /track 0x... [label] : Track an address for new transactions
- /untrack 0x... | label : Stop tracking an address
- /list : Show your tracked addresses
- /balance 0x... : Check native balance
- /tokens 0x... : List token holdings
- /nfts 0x... : List NFT holdings

Example:
/track 0x5eda3f9ab84dc831aa3c811af73f54c4ca9ec5aa my-wallet`

// Bot long-polls Telegram for commands and answers them
type Bot struct {
	// Dependencies
	client  telegram.Client
	tracker *tracker.Service
	lookups *lookup.Service
	logger  *logrus.Logger

	// Configuration
	config *config.TelegramConfig

	// State management
	mu       sync.RWMutex
	running  bool
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// Statistics
	stats          BotStats
	metricsManager *metrics.Manager
}

// BotStats provides command handling statistics
type BotStats struct {
	StartTime       time.Time  `json:"start_time"`
	IsRunning       bool       `json:"is_running"`
	CommandsHandled uint64     `json:"commands_handled"`
	LastCommandAt   *time.Time `json:"last_command_at,omitempty"`
	BotUsername     string     `json:"bot_username,omitempty"`
}

// NewBot creates a new command bot
func NewBot(
	client telegram.Client,
	trackerService *tracker.Service,
	lookupService *lookup.Service,
	cfg *config.TelegramConfig,
	metricsManager *metrics.Manager,
) *Bot {
	return &Bot{
		client:         client,
		tracker:        trackerService,
		lookups:        lookupService,
		logger:         utils.GetLogger(),
		config:         cfg,
		stopChan:       make(chan struct{}),
		metricsManager: metricsManager,
	}
}

// Start verifies the bot token and starts the update loop
func (b *Bot) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return utils.NewAppError(utils.ErrCodeInternal, "Bot already running", "")
	}

	meCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	me, err := b.client.Me(meCtx)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeConfiguration, "bot token verification failed", err.Error())
	}

	b.running = true
	b.stats.StartTime = time.Now()
	b.stats.IsRunning = true
	b.stats.BotUsername = me.Username

	b.wg.Add(1)
	go b.pollLoop(ctx)

	b.logger.WithFields(logrus.Fields{
		"username":     me.Username,
		"poll_timeout": b.config.PollTimeout,
	}).Info("Telegram bot started")

	return nil
}

// Stop stops the update loop. Shutdown latency is bounded by the long-poll
// window unless the start context is cancelled first.
func (b *Bot) Stop() error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return nil
	}
	b.running = false
	b.stats.IsRunning = false
	b.mu.Unlock()

	b.logger.Info("Stopping telegram bot")

	b.stopOnce.Do(func() {
		close(b.stopChan)
	})
	b.wg.Wait()

	b.logger.Info("Telegram bot stopped")
	return nil
}

// IsRunning returns whether the bot is running
func (b *Bot) IsRunning() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.running
}

// GetStats returns a snapshot of bot statistics
func (b *Bot) GetStats() BotStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.stats
}

// pollLoop long-polls getUpdates and dispatches commands. The offset
// acknowledges processed updates so Telegram does not redeliver them.
func (b *Bot) pollLoop(ctx context.Context) {
	defer b.wg.Done()

	var offset int64

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Bot loop stopped by context")
			return
		case <-b.stopChan:
			b.logger.Info("Bot loop stopped by stop signal")
			return
		default:
		}

		updates, err := b.client.GetUpdates(ctx, offset, b.config.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.logger.WithField("error", err.Error()).Warn("getUpdates failed, backing off")
			select {
			case <-time.After(3 * time.Second):
			case <-b.stopChan:
				return
			case <-ctx.Done():
				return
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			b.handleUpdate(ctx, update)
		}
	}
}

// handleUpdate processes one incoming update. A panic in a handler is
// contained here so one bad command cannot take down the loop.
func (b *Bot) handleUpdate(ctx context.Context, update telegram.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.WithField("panic", r).Error("Update handler panicked")
		}
	}()

	if update.Message == nil || update.Message.Text == "" {
		return
	}

	message := update.Message
	if !strings.HasPrefix(message.Text, "/") {
		return
	}

	command, args := parseCommand(message.Text)

	cmdCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	reply, status := b.route(cmdCtx, message, command, args)

	if reply != "" {
		if err := b.client.SendMessage(cmdCtx, message.Chat.ID, reply); err != nil {
			b.logger.WithFields(logrus.Fields{
				"chat_id": message.Chat.ID,
				"command": command,
				"error":   err.Error(),
			}).Warn("Failed to send reply")
			status = "reply_failed"
		}
	}

	now := time.Now()
	b.mu.Lock()
	b.stats.CommandsHandled++
	b.stats.LastCommandAt = &now
	b.mu.Unlock()

	if b.metricsManager != nil {
		b.metricsManager.GetPrometheusMetrics().RecordBotCommand(command, status)
	}
}

// route answers one command. The chat the command came from is the
// subscriber identity for everything it tracks.
func (b *Bot) route(ctx context.Context, message *telegram.Message, command string, args []string) (string, string) {
	subscriberID := strconv.FormatInt(message.Chat.ID, 10)

	switch command {
	case "start", "help":
		return welcomeText, "success"
	case "track":
		return b.handleTrack(ctx, subscriberID, args)
	case "untrack":
		return b.handleUntrack(ctx, subscriberID, args)
	case "list":
		return b.handleList(ctx, subscriberID)
	case "balance":
		return b.handleBalance(ctx, args)
	case "tokens":
		return b.handleTokens(ctx, args)
	case "nfts":
		return b.handleNFTs(ctx, args)
	default:
		return "❓ Unknown command. Send /help for usage.", "unknown"
	}
}

func (b *Bot) handleTrack(ctx context.Context, subscriberID string, args []string) (string, string) {
	if len(args) == 0 {
		return "❌ Please use the format: /track 0x... [label]", "invalid"
	}

	address := args[0]
	label := strings.Join(args[1:], " ")

	row, err := b.tracker.Track(ctx, subscriberID, address, label)
	if err != nil {
		if utils.HasCode(err, utils.ErrCodeValidation) {
			return "❌ Invalid wallet address. Please provide a valid 0x... address.", "invalid"
		}
		b.logger.WithFields(logrus.Fields{
			"subscriber": subscriberID,
			"error":      err.Error(),
		}).Error("Track command failed")
		return "❌ Error: The address could not be saved. Please try again later.", "error"
	}

	return fmt.Sprintf("✅ Now tracking %s (%s). You will be notified of new transactions.",
		row.Address, row.Label), "success"
}

func (b *Bot) handleUntrack(ctx context.Context, subscriberID string, args []string) (string, string) {
	if len(args) == 0 {
		return "❌ Please use the format: /untrack 0x... or /untrack label", "invalid"
	}

	// Labels may contain spaces; everything after the command is the identifier.
	identifier := strings.Join(args, " ")

	removed, err := b.tracker.Untrack(ctx, subscriberID, identifier)
	if err != nil {
		b.logger.WithFields(logrus.Fields{
			"subscriber": subscriberID,
			"error":      err.Error(),
		}).Error("Untrack command failed")
		return "❌ Error: The address could not be removed. Please try again later.", "error"
	}

	if !removed {
		return "🔍 Nothing tracked under that address or label.", "not_found"
	}

	return fmt.Sprintf("✅ Stopped tracking %s.", identifier), "success"
}

func (b *Bot) handleList(ctx context.Context, subscriberID string) (string, string) {
	rows, err := b.tracker.List(ctx, subscriberID)
	if err != nil {
		b.logger.WithFields(logrus.Fields{
			"subscriber": subscriberID,
			"error":      err.Error(),
		}).Error("List command failed")
		return "❌ Error: Tracked addresses could not be loaded. Please try again later.", "error"
	}

	if len(rows) == 0 {
		return "🔍 You are not tracking any addresses yet. Use /track 0x... to start.", "success"
	}

	var sb strings.Builder
	sb.WriteString("📋 [TRACKED ADDRESSES] 📋\n\n")
	for _, row := range rows {
		if row.Label != row.Address {
			fmt.Fprintf(&sb, "- %s: %s\n", row.Label, row.Address)
		} else {
			fmt.Fprintf(&sb, "- %s\n", row.Address)
		}
	}

	return sb.String(), "success"
}

func (b *Bot) handleBalance(ctx context.Context, args []string) (string, string) {
	if len(args) != 1 {
		return "❌ Please use the format: /balance 0x...", "invalid"
	}

	balance, price, err := b.lookups.AccountBalance(ctx, args[0])
	if err != nil {
		return replyForError(err, "balance")
	}

	return lookup.FormatBalance(balance, price), "success"
}

func (b *Bot) handleTokens(ctx context.Context, args []string) (string, string) {
	if len(args) != 1 {
		return "❌ Please use the format: /tokens 0x...", "invalid"
	}

	holdings, err := b.lookups.TokenHoldings(ctx, args[0])
	if err != nil {
		return replyForError(err, "token details")
	}

	return lookup.FormatTokens(utils.NormalizeAddress(args[0]), holdings), "success"
}

func (b *Bot) handleNFTs(ctx context.Context, args []string) (string, string) {
	if len(args) != 1 {
		return "❌ Please use the format: /nfts 0x...", "invalid"
	}

	kip17, kip37, err := b.lookups.NFTHoldings(ctx, args[0])
	if err != nil {
		return replyForError(err, "NFT details")
	}

	return lookup.FormatNFTs(utils.NormalizeAddress(args[0]), kip17, kip37), "success"
}

// parseCommand splits "/track 0x... my label" into the command name and its
// arguments, tolerating the "@botname" suffix Telegram adds in group chats.
func parseCommand(text string) (string, []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", nil
	}

	command := strings.TrimPrefix(fields[0], "/")
	if at := strings.Index(command, "@"); at >= 0 {
		command = command[:at]
	}

	return strings.ToLower(command), fields[1:]
}

// replyForError translates a lookup failure into a user-facing message
func replyForError(err error, what string) (string, string) {
	switch {
	case utils.HasCode(err, utils.ErrCodeValidation):
		return "❌ Invalid wallet address. Please provide a valid 0x... address.", "invalid"
	case utils.HasCode(err, utils.ErrCodeFeed):
		return fmt.Sprintf("❌ Error: Unable to fetch %s. Please try again later.", what), "error"
	default:
		return "❌ Unexpected error. Please try again later.", "error"
	}
}
