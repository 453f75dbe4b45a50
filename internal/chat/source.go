package chat

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/harunalabs/aituber/internal/bus"
	"github.com/harunalabs/aituber/internal/config"
)

// Source is a live-chat feed. Start begins delivering raw comments on
// Comments; the source handles its own reconnects, the consumer only
// reads what arrives.
type Source interface {
	Start(ctx context.Context) error
	Stop() error
	Comments() <-chan bus.Comment
}

// TelegramBot interface for mocking telegram bot API
type TelegramBot interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	GetSelf() tgbotapi.User
}

// tgBotWrapper wraps tgbotapi.BotAPI to implement TelegramBot interface
type tgBotWrapper struct {
	bot *tgbotapi.BotAPI
}

func (w *tgBotWrapper) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return w.bot.GetUpdatesChan(config)
}

func (w *tgBotWrapper) StopReceivingUpdates() {
	w.bot.StopReceivingUpdates()
}

func (w *tgBotWrapper) GetSelf() tgbotapi.User {
	return w.bot.Self
}

// BotFactory creates TelegramBot instances (allows mocking)
type BotFactory func(token string) (TelegramBot, error)

var defaultBotFactory BotFactory = func(token string) (TelegramBot, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, http.DefaultClient)
	if err != nil {
		return nil, err
	}
	return &tgBotWrapper{bot: bot}, nil
}

// TelegramSource treats a Telegram chat as the live-comment feed.
type TelegramSource struct {
	cfg        config.TelegramConfig
	bot        TelegramBot
	botFactory BotFactory
	comments   chan bus.Comment
	cancel     context.CancelFunc
}

func NewTelegramSource(cfg config.TelegramConfig) (*TelegramSource, error) {
	return NewTelegramSourceWithFactory(cfg, defaultBotFactory)
}

// NewTelegramSourceWithFactory creates a TelegramSource with a custom bot
// factory (for testing)
func NewTelegramSourceWithFactory(cfg config.TelegramConfig, factory BotFactory) (*TelegramSource, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	return &TelegramSource{
		cfg:        cfg,
		botFactory: factory,
		comments:   make(chan bus.Comment, 64),
	}, nil
}

func (t *TelegramSource) Comments() <-chan bus.Comment {
	return t.comments
}

func (t *TelegramSource) Start(ctx context.Context) error {
	bot, err := t.botFactory(t.cfg.Token)
	if err != nil {
		return fmt.Errorf("create telegram bot: %w", err)
	}
	t.bot = bot
	log.Printf("[chat] authorized as @%s", bot.GetSelf().UserName)

	ctx, t.cancel = context.WithCancel(ctx)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := t.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case update := <-updates:
				if update.Message == nil || update.Message.Text == "" {
					continue
				}
				t.handleMessage(update.Message)
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Printf("[chat] polling started")
	return nil
}

func (t *TelegramSource) handleMessage(msg *tgbotapi.Message) {
	if t.cfg.ChatID != 0 && msg.Chat.ID != t.cfg.ChatID {
		return
	}

	author := msg.From.UserName
	if author == "" {
		author = msg.From.FirstName
	}

	comment := bus.Comment{
		Author: author,
		Text:   msg.Text,
		At:     time.Unix(int64(msg.Date), 0),
	}

	select {
	case t.comments <- comment:
	default:
		log.Printf("[chat] comment buffer full, dropping message from %s", author)
	}
}

func (t *TelegramSource) Stop() error {
	if t.cancel != nil {
		t.cancel()
	}
	if t.bot != nil {
		t.bot.StopReceivingUpdates()
	}
	log.Printf("[chat] stopped")
	return nil
}
