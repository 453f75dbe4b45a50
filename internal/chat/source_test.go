package chat

import (
	"context"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/harunalabs/aituber/internal/config"
)

// mockBot implements TelegramBot for tests
type mockBot struct {
	updates chan tgbotapi.Update
	stopped bool
}

func (m *mockBot) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return m.updates
}

func (m *mockBot) StopReceivingUpdates() {
	m.stopped = true
}

func (m *mockBot) GetSelf() tgbotapi.User {
	return tgbotapi.User{UserName: "testbot"}
}

func textUpdate(chatID int64, user, text string) tgbotapi.Update {
	return tgbotapi.Update{
		Message: &tgbotapi.Message{
			Text: text,
			From: &tgbotapi.User{UserName: user},
			Chat: &tgbotapi.Chat{ID: chatID},
			Date: int(time.Now().Unix()),
		},
	}
}

func newMockSource(t *testing.T, cfg config.TelegramConfig) (*TelegramSource, *mockBot) {
	t.Helper()
	bot := &mockBot{updates: make(chan tgbotapi.Update, 16)}
	src, err := NewTelegramSourceWithFactory(cfg, func(token string) (TelegramBot, error) {
		return bot, nil
	})
	if err != nil {
		t.Fatalf("NewTelegramSourceWithFactory: %v", err)
	}
	return src, bot
}

func TestTelegramSource_RequiresToken(t *testing.T) {
	if _, err := NewTelegramSource(config.TelegramConfig{}); err == nil {
		t.Fatal("expected error without token")
	}
}

func TestTelegramSource_DeliversComments(t *testing.T) {
	src, bot := newMockSource(t, config.TelegramConfig{Token: "tok"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer src.Stop()

	bot.updates <- textUpdate(1, "alice", "hello stream")

	select {
	case c := <-src.Comments():
		if c.Author != "alice" || c.Text != "hello stream" {
			t.Errorf("comment = %+v", c)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("comment never delivered")
	}
}

func TestTelegramSource_FiltersByChatID(t *testing.T) {
	src, bot := newMockSource(t, config.TelegramConfig{Token: "tok", ChatID: 42})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer src.Stop()

	bot.updates <- textUpdate(7, "stranger", "wrong room")
	bot.updates <- textUpdate(42, "bob", "right room")

	select {
	case c := <-src.Comments():
		if c.Author != "bob" {
			t.Errorf("got comment from %q, want bob", c.Author)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("comment never delivered")
	}

	select {
	case c := <-src.Comments():
		t.Errorf("unexpected extra comment %+v", c)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTelegramSource_StopStopsBot(t *testing.T) {
	src, bot := newMockSource(t, config.TelegramConfig{Token: "tok"})

	ctx := context.Background()
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := src.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !bot.stopped {
		t.Error("Stop should stop receiving updates")
	}
}
