package ratelimiter

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	sentAt   []time.Time
	requests int
	err      error
}

func (a *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.sent = append(a.sent, c)
	a.sentAt = append(a.sentAt, time.Now())
	return tgbotapi.Message{MessageID: len(a.sent)}, a.err
}

func (a *fakeAPI) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.requests++
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPaceFor(t *testing.T) {
	tests := []struct {
		name   string
		chatID int64
		want   time.Duration
	}{
		{"Private chat", 123456789, privateChatRate},
		{"Group chat", -123456789, groupChatRate},
		{"Unknown chat", 0, privateChatRate},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := paceFor(test.chatID); got != test.want {
				t.Errorf("Expected %v pace, got %v", test.want, got)
			}
		})
	}
}

func TestChatIDOf(t *testing.T) {
	tests := []struct {
		name    string
		message tgbotapi.Chattable
		want    int64
	}{
		{
			"MessageConfig",
			tgbotapi.NewMessage(12345, "test"),
			12345,
		},
		{
			"ChatActionConfig",
			tgbotapi.NewChatAction(-67890, tgbotapi.ChatTyping),
			-67890,
		},
		{
			"CallbackConfig",
			tgbotapi.NewCallback("id", "text"),
			0,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := chatIDOf(test.message); got != test.want {
				t.Errorf("Expected %v chatID, got %v", test.want, got)
			}
		})
	}
}

func TestSendPacesMessagesPerChat(t *testing.T) {
	api := &fakeAPI{}
	rl := New(api, discardLogger())
	defer rl.Stop()

	ctx := context.Background()
	for i := range 2 {
		if _, err := rl.Send(ctx, tgbotapi.NewMessage(42, "hello")); err != nil {
			t.Fatalf("Send #%d error = %v", i, err)
		}
	}

	api.mu.Lock()
	defer api.mu.Unlock()

	if len(api.sentAt) != 2 {
		t.Fatalf("Expected 2 sent messages, got %d", len(api.sentAt))
	}
	if gap := api.sentAt[1].Sub(api.sentAt[0]); gap < privateChatRate-50*time.Millisecond {
		t.Errorf("Expected at least %v between messages, got %v", privateChatRate, gap)
	}
}

func TestSendReturnsAPIError(t *testing.T) {
	boom := errors.New("boom")
	rl := New(&fakeAPI{err: boom}, discardLogger())
	defer rl.Stop()

	if _, err := rl.Send(context.Background(), tgbotapi.NewMessage(1, "x")); !errors.Is(err, boom) {
		t.Fatalf("Expected %v, got %v", boom, err)
	}
}

func TestSendAfterStop(t *testing.T) {
	rl := New(&fakeAPI{}, discardLogger())
	rl.Stop()

	if _, err := rl.Send(context.Background(), tgbotapi.NewMessage(1, "x")); err == nil {
		t.Fatal("Expected error after Stop, got nil")
	}
}

func TestSendCanceledContext(t *testing.T) {
	rl := New(&fakeAPI{}, discardLogger())
	defer rl.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The first message to a chat goes out without delay, so pre-fill the
	// chat to make the second one wait.
	rl.mu.Lock()
	rl.lastSent[7] = time.Now()
	rl.mu.Unlock()

	if _, err := rl.Send(ctx, tgbotapi.NewMessage(7, "x")); !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
}

func TestRequestBypassesQueue(t *testing.T) {
	api := &fakeAPI{}
	rl := New(api, discardLogger())
	defer rl.Stop()

	if _, err := rl.Request(tgbotapi.NewCallback("id", "")); err != nil {
		t.Fatalf("Request error = %v", err)
	}
	if api.requests != 1 {
		t.Errorf("Expected 1 request, got %d", api.requests)
	}
}
