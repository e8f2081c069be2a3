package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"textdigest/internal/domain"
	"textdigest/internal/metrics"
	"textdigest/internal/workflow"
)

const telegramMessageMaxLength = 4096

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID

	return b.withSpinner(ctx, chatID, func() error {
		text := strings.TrimSpace(message.Text)

		switch {
		case strings.HasPrefix(text, "/start"), strings.HasPrefix(text, "/help"):
			metrics.TelegramMessagesTotal.WithLabelValues("command").Inc()
			return b.handleStartCommand(ctx, chatID)
		case strings.HasPrefix(text, "/menu"):
			metrics.TelegramMessagesTotal.WithLabelValues("command").Inc()
			return b.handleMenuCommand(ctx, chatID)
		case strings.HasPrefix(text, "/settings"):
			metrics.TelegramMessagesTotal.WithLabelValues("command").Inc()
			return b.handleSettingsCommand(ctx, chatID)
		case strings.HasPrefix(text, "/reset"):
			metrics.TelegramMessagesTotal.WithLabelValues("command").Inc()
			return b.handleResetCommand(ctx, chatID)
		default:
			return b.handleInput(ctx, message)
		}
	})
}

// handleInput runs the workflow on the message text or on the attached
// document, sending every stage result as soon as it is ready.
func (b *Bot) handleInput(ctx context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID

	typed := message.Text
	kind := "text"
	if message.Document != nil {
		typed = message.Caption
		kind = "document"
	}
	metrics.TelegramMessagesTotal.WithLabelValues(kind).Inc()

	typed = domain.TruncateRunes(typed, domain.MaxTypedTextLength)

	opts := domain.DefaultOutputOptions()
	chatOptions, err := b.store.GetChatOptionsWithDefault(ctx, chatID)
	if err != nil {
		b.log.WarnContext(ctx, "Failed to get chat options, using defaults",
			"error", err,
			"chatID", chatID)
	} else {
		opts = chatOptions.Options
	}

	var uploaded string
	if message.Document != nil && typed == "" {
		uploaded, err = b.readDocument(ctx, message.Document)
		if err != nil {
			return b.replyFailure(ctx, chatID, documentErrorText(err), fmt.Errorf("read document: %w", err))
		}
	}

	reporter := workflow.ReporterFunc(func(ctx context.Context, result workflow.StageResult) {
		if err := b.sendStageResult(ctx, chatID, result); err != nil {
			b.log.ErrorContext(ctx, "Failed to send stage result",
				"error", err,
				"chatID", chatID,
				"stage", result.Stage)
		}
	})

	_, err = b.runner.Run(ctx, workflow.Request{
		TypedText:    typed,
		UploadedText: uploaded,
		Options:      opts,
		Source:       "telegram",
	}, reporter)
	if err != nil {
		if errors.Is(err, workflow.ErrValidation) {
			return b.sendMessageWithKeyboard(ctx, chatID, "✖️ "+escapeMarkdownV2(err.Error()), b.returnKeyboard)
		}
		return b.replyFailure(ctx, chatID, "❌ Failed\\.", fmt.Errorf("run workflow: %w", err))
	}

	if err = b.sendMessageWithKeyboard(
		ctx,
		chatID,
		escapeMarkdownV2(workflow.SuccessMessage),
		b.returnKeyboard,
	); err != nil {
		return fmt.Errorf("send message with keyboard: %w", err)
	}

	return nil
}

func (b *Bot) sendStageResult(ctx context.Context, chatID int64, result workflow.StageResult) error {
	icon := "✅"
	if !result.OK() {
		icon = "❌"
	}

	header := fmt.Sprintf("*%s %s*\n\n", icon, escapeMarkdownV2(result.Stage.Heading()))
	body := domain.TruncateRunes(result.Text(), telegramMessageMaxLength/2)

	return b.sendMessageWithKeyboard(ctx, chatID, header+escapeMarkdownV2(body), nil)
}

func (b *Bot) replyFailure(ctx context.Context, chatID int64, text string, err error) error {
	errs := []error{err}

	if sendErr := b.sendMessageWithKeyboard(ctx, chatID, text, b.returnKeyboard); sendErr != nil {
		errs = append(errs, fmt.Errorf("send message with keyboard: %w", sendErr))
	}

	return errors.Join(errs...)
}
