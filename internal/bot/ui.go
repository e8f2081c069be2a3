package bot

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram shows a chat action for about five seconds.
const sendSpinnerInterval = 4 * time.Second

func (b *Bot) sendTyping(ctx context.Context, chatID int64) {
	config := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	if _, err := b.sender.Request(config); err != nil {
		b.log.WarnContext(ctx, "Failed to send chat action",
			"error", err,
			"chatID", chatID)
	}
}

// withSpinner keeps the "typing" indicator visible while fn runs.
func (b *Bot) withSpinner(ctx context.Context, chatID int64, fn func() error) error {
	spinnerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		b.sendTyping(spinnerCtx, chatID)

		t := time.NewTicker(sendSpinnerInterval)
		defer t.Stop()

		for {
			select {
			case <-spinnerCtx.Done():
				return
			case <-t.C:
				b.sendTyping(spinnerCtx, chatID)
			}
		}
	}()

	return fn()
}
