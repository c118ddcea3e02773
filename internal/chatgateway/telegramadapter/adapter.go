// Package telegramadapter is a concrete chatgateway.PlatformAdapter backed
// by Telegram long polling, grounded on the teacher's
// internal/channels/telegram.Channel bot setup but driving a GatewayCore
// directly instead of the teacher's internal/bus.MessageBus.
package telegramadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/mymmrac/telego"

	"github.com/nextlevelbuilder/chatgate/internal/chatgateway"
	"github.com/nextlevelbuilder/chatgate/internal/store"
)

// PlatformConfig is the JSON shape stored as the gateway's opaque
// platform_config secret.
type PlatformConfig struct {
	Token string `json:"token"`
	Proxy string `json:"proxy,omitempty"`
}

// Adapter implements chatgateway.PlatformAdapter over a telego long-polling
// bot. One Adapter instance is owned by exactly one GatewayManager instance
// for the lifetime of one Start/Stop cycle.
type Adapter struct {
	cfg PlatformConfig
	bot *telego.Bot

	mu      sync.Mutex
	chatIDs map[string]int64 // platform userID -> chat ID, for SendMessage
}

// New parses platformConfig into an Adapter. The underlying bot connects
// lazily on Start, since construction must not fail merely for
// ValidateConfig to run against a not-yet-verified token.
func New(platformConfig json.RawMessage) (*Adapter, error) {
	var cfg PlatformConfig
	if err := json.Unmarshal(platformConfig, &cfg); err != nil {
		return nil, fmt.Errorf("telegramadapter: parse platform config: %w", err)
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegramadapter: token is required")
	}
	return &Adapter{cfg: cfg, chatIDs: make(map[string]int64)}, nil
}

// GatewayType implements chatgateway.PlatformAdapter.
func (a *Adapter) GatewayType() string { return "telegram" }

// ValidateConfig implements chatgateway.PlatformAdapter: confirms the bot
// token is accepted by calling getMe.
func (a *Adapter) ValidateConfig(ctx context.Context) error {
	bot, err := a.newBot()
	if err != nil {
		return err
	}
	if _, err := bot.GetMe(ctx); err != nil {
		return fmt.Errorf("telegramadapter: validate token: %w", err)
	}
	return nil
}

func (a *Adapter) newBot() (*telego.Bot, error) {
	var opts []telego.BotOption
	if a.cfg.Proxy != "" {
		proxyURL, err := url.Parse(a.cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("telegramadapter: invalid proxy URL %q: %w", a.cfg.Proxy, err)
		}
		opts = append(opts, telego.WithHTTPClient(&http.Client{
			Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
		}))
	}
	return telego.NewBot(a.cfg.Token, opts...)
}

// Start implements chatgateway.PlatformAdapter: long-polls Telegram updates
// and drives each text message into handler.HandleMessage until ctx is
// cancelled.
func (a *Adapter) Start(ctx context.Context, handler *chatgateway.GatewayCore) error {
	bot, err := a.newBot()
	if err != nil {
		return err
	}
	a.bot = bot

	updates, err := bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout:        30,
		AllowedUpdates: []string{"message"},
	})
	if err != nil {
		return fmt.Errorf("telegramadapter: start long polling: %w", err)
	}

	slog.Info("telegram gateway adapter started", "username", bot.Username())

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			a.handleUpdate(ctx, handler, update)
		}
	}
}

func (a *Adapter) handleUpdate(ctx context.Context, handler *chatgateway.GatewayCore, update telego.Update) {
	msg := update.Message
	userID := strconv.FormatInt(msg.From.ID, 10)
	displayName := msg.From.FirstName
	if msg.From.Username != "" {
		displayName = "@" + msg.From.Username
	}

	a.mu.Lock()
	a.chatIDs[userID] = msg.Chat.ID
	a.mu.Unlock()

	err := handler.HandleMessage(ctx, chatgateway.IncomingMessage{
		User: store.PlatformUser{
			Platform:    "telegram",
			UserID:      userID,
			DisplayName: displayName,
		},
		Text:              msg.Text,
		PlatformMessageID: strconv.Itoa(msg.MessageID),
	})
	if err != nil {
		slog.Error("telegram gateway: handle message failed", "error", err, "user_id", userID)
	}
}

// SendMessage implements chatgateway.PlatformAdapter.
func (a *Adapter) SendMessage(ctx context.Context, user store.PlatformUser, msg chatgateway.OutgoingMessage) error {
	a.mu.Lock()
	chatID, ok := a.chatIDs[user.UserID]
	a.mu.Unlock()
	if !ok {
		id, err := strconv.ParseInt(user.UserID, 10, 64)
		if err != nil {
			return fmt.Errorf("telegramadapter: unknown chat for user %q", user.UserID)
		}
		chatID = id
	}

	switch msg.Kind {
	case "typing":
		return a.bot.SendChatAction(ctx, &telego.SendChatActionParams{
			ChatID: telego.ChatID{ID: chatID},
			Action: telego.ChatActionTyping,
		})
	default:
		_, err := a.bot.SendMessage(ctx, &telego.SendMessageParams{
			ChatID: telego.ChatID{ID: chatID},
			Text:   msg.Body,
		})
		return err
	}
}

// Info implements chatgateway.PlatformAdapter.
func (a *Adapter) Info() map[string]string {
	return map[string]string{"type": "telegram"}
}
