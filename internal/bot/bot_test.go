package bot

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartdevs17/kaia-wallet-tracker/internal/cache"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/config"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/kaiascan"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/lookup"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/models"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/storage"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/telegram"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/tracker"
	"github.com/smartdevs17/kaia-wallet-tracker/pkg/utils"
)

const (
	botTestAddress      = "0x5EDA3F9AB84DC831AA3C811AF73F54C4CA9EC5AA"
	botTestAddressLower = "0x5eda3f9ab84dc831aa3c811af73f54c4ca9ec5aa"
)

type sentMessage struct {
	chatID int64
	text   string
}

// fakeTelegram is an in-memory telegram.Client. Queued update batches are
// handed out one per GetUpdates call; afterwards the poll returns empty.
type fakeTelegram struct {
	mu      sync.Mutex
	sent    []sentMessage
	batches [][]telegram.Update
	sendErr error
	meErr   error
}

var _ telegram.Client = (*fakeTelegram)(nil)

func newFakeTelegram() *fakeTelegram {
	return &fakeTelegram{}
}

func (f *fakeTelegram) SendMessage(ctx context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text})
	return nil
}

func (f *fakeTelegram) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Update, error) {
	f.mu.Lock()
	if len(f.batches) > 0 {
		batch := f.batches[0]
		f.batches = f.batches[1:]
		f.mu.Unlock()
		return batch, nil
	}
	f.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(10 * time.Millisecond):
		return nil, nil
	}
}

func (f *fakeTelegram) Me(ctx context.Context) (*telegram.User, error) {
	if f.meErr != nil {
		return nil, f.meErr
	}
	return &telegram.User{ID: 7, IsBot: true, FirstName: "Kaia Tracker", Username: "kaia_tracker_bot"}, nil
}

func (f *fakeTelegram) queueUpdates(updates ...telegram.Update) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, updates)
}

func (f *fakeTelegram) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeTelegram) lastReply(t *testing.T) sentMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent, "expected the bot to reply")
	return f.sent[len(f.sent)-1]
}

// botFeed serves canned feed data for the commands under test
type botFeed struct {
	mu      sync.Mutex
	pages   map[string][]models.Transaction
	balance models.AccountBalance
	price   models.KaiaPrice
	tokens  []models.TokenHolding
	nft     map[string][]models.NFTHolding
}

var _ kaiascan.Client = (*botFeed)(nil)

func newBotFeed() *botFeed {
	return &botFeed{
		pages: make(map[string][]models.Transaction),
		nft:   make(map[string][]models.NFTHolding),
	}
}

func (f *botFeed) LatestTransaction(ctx context.Context, address string) (*models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	page := f.pages[address]
	if len(page) == 0 {
		return nil, nil
	}
	tx := page[0]
	return &tx, nil
}

func (f *botFeed) TransactionHistory(ctx context.Context, address string, page, size int) ([]models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pages[address], nil
}

func (f *botFeed) AccountBalance(ctx context.Context, address string) (*models.AccountBalance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	balance := f.balance
	return &balance, nil
}

func (f *botFeed) KaiaPrice(ctx context.Context) (*models.KaiaPrice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	price := f.price
	return &price, nil
}

func (f *botFeed) TokenBalances(ctx context.Context, address string) ([]models.TokenHolding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokens, nil
}

func (f *botFeed) NFTBalances(ctx context.Context, address, kind string) ([]models.NFTHolding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nft[kind], nil
}

func (f *botFeed) NFTContract(ctx context.Context, contractAddress string) (*models.NFTContract, error) {
	return &models.NFTContract{Name: "Kaia Punks", Symbol: "KPUNK"}, nil
}

func (f *botFeed) HealthCheck(ctx context.Context) error { return nil }

func (f *botFeed) Stats() kaiascan.ClientStats { return kaiascan.ClientStats{} }

type botEnv struct {
	bot   *Bot
	chat  *fakeTelegram
	feed  *botFeed
	store storage.Storage
}

func newBotEnv(t *testing.T) *botEnv {
	t.Helper()

	storeCfg := &config.StorageConfig{
		Type:             "sqlite",
		ConnectionString: filepath.Join(t.TempDir(), "bot_test.db"),
		MaxConnections:   5,
		MaxIdleTime:      time.Minute,
	}
	store, err := storage.NewStorage(storeCfg)
	require.NoError(t, err)
	require.NoError(t, store.Connect())
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { store.Close() })

	feed := newBotFeed()
	chat := newFakeTelegram()

	cacheCfg := &config.CacheConfig{Type: "memory", PriceTTL: time.Minute, MetadataTTL: time.Minute}
	trackerService := tracker.NewService(store, feed)
	lookupService := lookup.NewService(feed, cache.NewMemoryCache(), cacheCfg, nil)

	botCfg := &config.TelegramConfig{
		Enabled:     true,
		BotToken:    "test-token",
		PollTimeout: time.Second,
	}

	return &botEnv{
		bot:   NewBot(chat, trackerService, lookupService, botCfg, nil),
		chat:  chat,
		feed:  feed,
		store: store,
	}
}

func commandUpdate(chatID int64, text string) telegram.Update {
	return telegram.Update{
		UpdateID: 1,
		Message: &telegram.Message{
			MessageID: 1,
			Chat:      telegram.Chat{ID: chatID, Type: "private"},
			Date:      time.Now().Unix(),
			Text:      text,
		},
	}
}

func TestStartCommandSendsWelcome(t *testing.T) {
	env := newBotEnv(t)

	env.bot.handleUpdate(context.Background(), commandUpdate(42, "/start"))

	reply := env.chat.lastReply(t)
	assert.Equal(t, int64(42), reply.chatID)
	assert.Equal(t, welcomeText, reply.text)

	env.bot.handleUpdate(context.Background(), commandUpdate(42, "/help"))
	assert.Equal(t, welcomeText, env.chat.lastReply(t).text)
}

func TestTrackCommand(t *testing.T) {
	env := newBotEnv(t)

	env.bot.handleUpdate(context.Background(), commandUpdate(42, "/track "+botTestAddress+" savings account"))

	reply := env.chat.lastReply(t)
	assert.Contains(t, reply.text, "✅ Now tracking "+botTestAddressLower)
	assert.Contains(t, reply.text, "(savings account)", "multi-word labels survive parsing")

	row, err := env.store.GetTrackedAddress(context.Background(), "42", botTestAddressLower)
	require.NoError(t, err)
	require.NotNil(t, row, "the chat id is the subscriber identity")
	assert.Equal(t, "savings account", row.Label)
}

func TestTrackCommandInvalidAddress(t *testing.T) {
	env := newBotEnv(t)

	env.bot.handleUpdate(context.Background(), commandUpdate(42, "/track nonsense"))
	assert.Contains(t, env.chat.lastReply(t).text, "❌ Invalid wallet address")

	env.bot.handleUpdate(context.Background(), commandUpdate(42, "/track"))
	assert.Equal(t, "❌ Please use the format: /track 0x... [label]", env.chat.lastReply(t).text)
}

func TestUntrackCommand(t *testing.T) {
	env := newBotEnv(t)
	ctx := context.Background()

	env.bot.handleUpdate(ctx, commandUpdate(42, "/track "+botTestAddress+" savings account"))

	env.bot.handleUpdate(ctx, commandUpdate(42, "/untrack savings account"))
	assert.Equal(t, "✅ Stopped tracking savings account.", env.chat.lastReply(t).text)

	env.bot.handleUpdate(ctx, commandUpdate(42, "/untrack savings account"))
	assert.Equal(t, "🔍 Nothing tracked under that address or label.", env.chat.lastReply(t).text)

	env.bot.handleUpdate(ctx, commandUpdate(42, "/untrack"))
	assert.Equal(t, "❌ Please use the format: /untrack 0x... or /untrack label", env.chat.lastReply(t).text)
}

func TestListCommand(t *testing.T) {
	env := newBotEnv(t)
	ctx := context.Background()

	env.bot.handleUpdate(ctx, commandUpdate(42, "/list"))
	assert.Contains(t, env.chat.lastReply(t).text, "not tracking any addresses yet")

	env.bot.handleUpdate(ctx, commandUpdate(42, "/track "+botTestAddress+" savings"))
	env.bot.handleUpdate(ctx, commandUpdate(42, "/list"))

	reply := env.chat.lastReply(t).text
	assert.Contains(t, reply, "📋 [TRACKED ADDRESSES] 📋")
	assert.Contains(t, reply, "- savings: "+botTestAddressLower)

	// Another chat sees its own, empty, list.
	env.bot.handleUpdate(ctx, commandUpdate(43, "/list"))
	assert.Contains(t, env.chat.lastReply(t).text, "not tracking any addresses yet")
}

func TestBalanceCommand(t *testing.T) {
	env := newBotEnv(t)
	env.feed.balance = models.AccountBalance{Address: botTestAddressLower, Balance: 100}
	env.feed.price = models.KaiaPrice{USDPrice: 0.15}

	env.bot.handleUpdate(context.Background(), commandUpdate(42, "/balance "+botTestAddress))

	reply := env.chat.lastReply(t).text
	assert.Contains(t, reply, "🏦 [ADDRESS BALANCE] 🏦")
	assert.Contains(t, reply, "Balance: 100 KAIA ( $15.00 USD )")

	env.bot.handleUpdate(context.Background(), commandUpdate(42, "/balance"))
	assert.Equal(t, "❌ Please use the format: /balance 0x...", env.chat.lastReply(t).text)
}

func TestTokensCommand(t *testing.T) {
	env := newBotEnv(t)
	env.feed.tokens = []models.TokenHolding{{Name: "Tether USD", Symbol: "USDT", Balance: "5"}}

	env.bot.handleUpdate(context.Background(), commandUpdate(42, "/tokens "+botTestAddress))

	reply := env.chat.lastReply(t).text
	assert.Contains(t, reply, "💰 [TOKEN HOLDINGS] 💰")
	assert.Contains(t, reply, "- Tether USD (USDT): 5")
}

func TestNFTsCommand(t *testing.T) {
	env := newBotEnv(t)
	env.feed.nft[models.NFTKindKIP17] = []models.NFTHolding{
		{ContractAddress: "0xpunks", ContractType: "KIP17", TokenCount: 2},
	}

	env.bot.handleUpdate(context.Background(), commandUpdate(42, "/nfts "+botTestAddress))

	reply := env.chat.lastReply(t).text
	assert.Contains(t, reply, "🖼️ [NFT HOLDINGS] 🖼️")
	assert.Contains(t, reply, "- Kaia Punks (KPUNK): 2")

	env.bot.handleUpdate(context.Background(), commandUpdate(42, "/nfts "+botTestAddress+" extra"))
	assert.Equal(t, "❌ Please use the format: /nfts 0x...", env.chat.lastReply(t).text)
}

func TestUnknownCommand(t *testing.T) {
	env := newBotEnv(t)

	env.bot.handleUpdate(context.Background(), commandUpdate(42, "/frobnicate"))
	assert.Equal(t, "❓ Unknown command. Send /help for usage.", env.chat.lastReply(t).text)
}

func TestNonCommandsAreIgnored(t *testing.T) {
	env := newBotEnv(t)
	ctx := context.Background()

	env.bot.handleUpdate(ctx, commandUpdate(42, "just chatting"))
	env.bot.handleUpdate(ctx, commandUpdate(42, ""))
	env.bot.handleUpdate(ctx, telegram.Update{UpdateID: 1})

	assert.Zero(t, env.chat.sentCount(), "plain chatter gets no reply")
	assert.Zero(t, env.bot.GetStats().CommandsHandled)
}

func TestCommandStatsCount(t *testing.T) {
	env := newBotEnv(t)
	ctx := context.Background()

	env.bot.handleUpdate(ctx, commandUpdate(42, "/help"))
	env.bot.handleUpdate(ctx, commandUpdate(42, "/frobnicate"))

	stats := env.bot.GetStats()
	assert.Equal(t, uint64(2), stats.CommandsHandled)
	assert.NotNil(t, stats.LastCommandAt)
}

func TestParseCommand(t *testing.T) {
	testCases := []struct {
		name    string
		text    string
		command string
		args    []string
	}{
		{"plain", "/list", "list", nil},
		{"with args", "/track 0xabc savings", "track", []string{"0xabc", "savings"}},
		{"group chat suffix", "/track@kaia_tracker_bot 0xabc", "track", []string{"0xabc"}},
		{"uppercase", "/TRACK 0xabc", "track", []string{"0xabc"}},
		{"extra whitespace", "  /list   ", "list", nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			command, args := parseCommand(tc.text)
			assert.Equal(t, tc.command, command)
			if len(tc.args) == 0 {
				assert.Empty(t, args)
			} else {
				assert.Equal(t, tc.args, args)
			}
		})
	}
}

func TestBotLifecycle(t *testing.T) {
	env := newBotEnv(t)
	env.chat.queueUpdates(commandUpdate(42, "/help"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, env.bot.Start(ctx))
	assert.True(t, env.bot.IsRunning())
	assert.Equal(t, "kaia_tracker_bot", env.bot.GetStats().BotUsername)

	err := env.bot.Start(ctx)
	require.Error(t, err, "double start must be rejected")

	require.Eventually(t, func() bool {
		return env.chat.sentCount() == 1
	}, 2*time.Second, 10*time.Millisecond, "the queued command must be answered")

	cancel()
	require.NoError(t, env.bot.Stop())
	assert.False(t, env.bot.IsRunning())
	require.NoError(t, env.bot.Stop(), "stopping twice is harmless")
}

func TestBotStartRejectsBadToken(t *testing.T) {
	env := newBotEnv(t)
	env.chat.meErr = utils.NewAppError(utils.ErrCodeExternal, "telegram api error: Unauthorized")

	err := env.bot.Start(context.Background())
	require.Error(t, err)
	assert.True(t, utils.HasCode(err, utils.ErrCodeConfiguration))
	assert.False(t, env.bot.IsRunning())
}
