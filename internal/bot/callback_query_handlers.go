package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"textdigest/internal/domain"
	"textdigest/internal/metrics"
)

func (b *Bot) handleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	metrics.TelegramMessagesTotal.WithLabelValues("callback").Inc()

	chatID := callback.Message.Chat.ID

	return b.withSpinner(ctx, chatID, func() error {
		data := strings.TrimSpace(callback.Data)

		switch data {
		case "menu":
			return b.withEmptyCallbackAnswer(callback, func() error {
				return b.handleMenuCommand(ctx, chatID)
			})
		case "menu_settings":
			return b.withEmptyCallbackAnswer(callback, func() error {
				return b.handleSettingsCommand(ctx, chatID)
			})
		case "menu_help":
			return b.withEmptyCallbackAnswer(callback, func() error {
				return b.handleStartCommand(ctx, chatID)
			})
		case settingsToggleKeywordsCallback:
			return b.updateChatOptions(ctx, callback, func(opts *domain.OutputOptions) {
				opts.KeywordsEnabled = !opts.KeywordsEnabled
			})
		case settingsToggleTitleCallback:
			return b.updateChatOptions(ctx, callback, func(opts *domain.OutputOptions) {
				opts.TitleEnabled = !opts.TitleEnabled
			})
		}

		if lengthStr, ok := strings.CutPrefix(data, settingsLengthKeyboardCallbackPrefix); ok {
			length, err := strconv.Atoi(strings.TrimSpace(lengthStr))
			if err != nil {
				return b.errorCallbackAnswer(callback, fmt.Errorf("parse summary length: %w", err))
			}

			return b.updateChatOptions(ctx, callback, func(opts *domain.OutputOptions) {
				opts.SummaryLength = length
			})
		}

		return nil
	})
}

func (b *Bot) updateChatOptions(
	ctx context.Context,
	callback *tgbotapi.CallbackQuery,
	update func(opts *domain.OutputOptions),
) error {
	chatID := callback.Message.Chat.ID

	chatOptions, err := b.store.GetChatOptionsWithDefault(ctx, chatID)
	if err != nil {
		return b.errorCallbackAnswer(callback, fmt.Errorf("get chat options with default: %w", err))
	}

	update(&chatOptions.Options)
	chatOptions.Options = chatOptions.Options.Normalize()

	if err = b.store.UpsertChatOptions(ctx, chatOptions); err != nil {
		return b.errorCallbackAnswer(callback, fmt.Errorf("upsert chat options: %w", err))
	}

	if _, err = b.sender.Request(tgbotapi.NewCallback(callback.ID, "✅ Settings are updated.")); err != nil {
		return fmt.Errorf("send request: %w", err)
	}

	return b.handleSettingsCommand(ctx, chatID)
}

func (b *Bot) withEmptyCallbackAnswer(
	callback *tgbotapi.CallbackQuery,
	fn func() error,
) error {
	var errs []error

	if _, err := b.sender.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		errs = append(errs, b.errorCallbackAnswer(callback, fmt.Errorf("send request: %w", err)))
	}

	if err := fn(); err != nil {
		errs = append(errs, fmt.Errorf("call fn: %w", err))
	}

	return errors.Join(errs...)
}

func (b *Bot) errorCallbackAnswer(
	callback *tgbotapi.CallbackQuery,
	err error,
) error {
	if _, sendErr := b.sender.Request(tgbotapi.NewCallback(callback.ID, "❌ Failed.")); sendErr != nil {
		return errors.Join(err, fmt.Errorf("send request: %w", sendErr))
	}
	return err
}
