package bot

import (
	"context"
	"errors"
	"fmt"
)

const welcomeText = `🤖 *Welcome\!*

Send me text or a document and I will reply with:

– a summary
– up to five keywords
– a title

Documents can be PDF, DOCX or plain text\. A caption on a document is used
instead of the document\.

Choose which outputs you want and how long the summary may be with /settings\.
Go back to the defaults with /reset\.`

const settingsText = `*⚙️ Settings*

Keywords: %s
Title: %s
Summary length: %d words

You can change them below:`

func (b *Bot) handleStartCommand(ctx context.Context, chatID int64) error {
	return b.sendMessageWithKeyboard(ctx, chatID, welcomeText, b.menuKeyboard)
}

func (b *Bot) handleMenuCommand(ctx context.Context, chatID int64) error {
	return b.sendMessageWithKeyboard(ctx, chatID, "❔ *Choose an option:*", b.menuKeyboard)
}

func (b *Bot) handleSettingsCommand(ctx context.Context, chatID int64) error {
	chatOptions, err := b.store.GetChatOptionsWithDefault(ctx, chatID)
	if err != nil {
		errs := []error{fmt.Errorf("get chat options with default: %w", err)}

		sendErr := b.sendMessageWithKeyboard(ctx, chatID, "❌ Failed\\.", b.returnKeyboard)
		if sendErr != nil {
			errs = append(errs, fmt.Errorf("send message with keyboard: %w", sendErr))
		}

		return errors.Join(errs...)
	}

	opts := chatOptions.Options
	if err = b.sendMessageWithKeyboard(
		ctx,
		chatID,
		fmt.Sprintf(settingsText, onOff(opts.KeywordsEnabled), onOff(opts.TitleEnabled), opts.SummaryLength),
		getSettingsKeyboard(opts),
	); err != nil {
		return fmt.Errorf("send message with keyboard: %w", err)
	}

	return nil
}

func (b *Bot) handleResetCommand(ctx context.Context, chatID int64) error {
	if err := b.store.DeleteChatOptions(ctx, chatID); err != nil {
		return b.replyFailure(ctx, chatID, "❌ Failed\\.", fmt.Errorf("delete chat options: %w", err))
	}

	if err := b.sendMessageWithKeyboard(
		ctx,
		chatID,
		"✅ Settings are reset to defaults\\.",
		b.returnKeyboard,
	); err != nil {
		return fmt.Errorf("send message with keyboard: %w", err)
	}

	return nil
}

func onOff(enabled bool) string {
	if enabled {
		return "on"
	}
	return "off"
}
