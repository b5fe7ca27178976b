// File: internal/telegram/client.go
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"github.com/smartdevs17/kaia-wallet-tracker/internal/config"
	"github.com/smartdevs17/kaia-wallet-tracker/pkg/utils"
)

// Client defines the Telegram Bot API surface the tracker uses
type Client interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error)
	Me(ctx context.Context) (*User, error)
}

// BotClient implements the Client interface against the Bot API
type BotClient struct {
	token      string
	baseURL    string
	httpClient *retryablehttp.Client
	logger     *logrus.Logger
}

var _ Client = (*BotClient)(nil)

// NewClient creates a new Bot API client. The underlying HTTP timeout leaves
// headroom above the long-poll window so getUpdates can block server-side.
func NewClient(cfg *config.TelegramConfig) *BotClient {
	httpClient := retryablehttp.NewClient()
	httpClient.Logger = nil
	httpClient.HTTPClient.Timeout = cfg.PollTimeout + 10*time.Second
	httpClient.RetryMax = 2
	httpClient.RetryWaitMin = 1 * time.Second
	httpClient.RetryWaitMax = 5 * time.Second

	return &BotClient{
		token:      cfg.BotToken,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		logger:     utils.GetLogger(),
	}
}

// SendMessage delivers a plain-text message to a chat
func (c *BotClient) SendMessage(ctx context.Context, chatID int64, text string) error {
	payload := map[string]interface{}{
		"chat_id": chatID,
		"text":    text,
	}

	_, err := c.call(ctx, "sendMessage", payload)
	return err
}

// GetUpdates long-polls the Bot API for incoming updates. Only message
// updates are requested; offset acknowledges everything below it.
func (c *BotClient) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	payload := map[string]interface{}{
		"offset":          offset,
		"timeout":         int(timeout.Seconds()),
		"allowed_updates": []string{"message"},
	}

	result, err := c.call(ctx, "getUpdates", payload)
	if err != nil {
		return nil, err
	}

	var updates []Update
	if err := json.Unmarshal(result, &updates); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeExternal, "malformed getUpdates response", err.Error())
	}

	return updates, nil
}

// Me returns the bot account, verifying the token is valid
func (c *BotClient) Me(ctx context.Context) (*User, error) {
	result, err := c.call(ctx, "getMe", nil)
	if err != nil {
		return nil, err
	}

	var user User
	if err := json.Unmarshal(result, &user); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeExternal, "malformed getMe response", err.Error())
	}

	return &user, nil
}

// call posts one Bot API method and unwraps the response envelope. The bot
// token never appears in logs or error values, only in the request URL.
func (c *BotClient) call(ctx context.Context, method string, payload interface{}) (json.RawMessage, error) {
	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)

	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, utils.NewAppError(utils.ErrCodeInternal, "failed to encode telegram request", err.Error())
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeInternal, "failed to build telegram request", err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"method": method,
			"error":  err.Error(),
		}).Warn("Telegram request failed")
		return nil, utils.NewAppError(utils.ErrCodeExternal, "telegram api unreachable", err.Error())
	}
	defer resp.Body.Close()

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeExternal, "malformed telegram response", err.Error())
	}

	if !envelope.OK {
		c.logger.WithFields(logrus.Fields{
			"method":      method,
			"status":      resp.StatusCode,
			"description": envelope.Description,
		}).Warn("Telegram API rejected request")
		return nil, utils.NewAppError(utils.ErrCodeExternal,
			fmt.Sprintf("telegram api error: %s", envelope.Description), method)
	}

	return envelope.Result, nil
}
