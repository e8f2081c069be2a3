package bot

import (
	"context"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"textdigest/internal/domain"
)

const (
	settingsLengthKeyboardRowSize        = 5
	settingsLengthKeyboardCallbackPrefix = "settings_length_"
	settingsToggleKeywordsCallback       = "settings_toggle_keywords"
	settingsToggleTitleCallback          = "settings_toggle_title"
)

func (b *Bot) sendMessageWithKeyboard(
	ctx context.Context,
	chatID int64,
	text string,
	keyboard [][]tgbotapi.InlineKeyboardButton,
) error {
	normalizedText := strings.ToValidUTF8(text, "?")
	if normalizedText != text {
		b.log.WarnContext(ctx, "Message text had invalid UTF-8 and was normalized",
			"chatID", chatID,
			"originalLen", len(text),
			"normalizedLen", len(normalizedText))
	}

	message := tgbotapi.NewMessage(chatID, normalizedText)

	// See https://core.telegram.org/bots/api#markdownv2-style.
	message.ParseMode = tgbotapi.ModeMarkdownV2

	message.DisableWebPagePreview = true
	if len(keyboard) > 0 {
		message.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(keyboard...)
	}

	_, err := b.sender.Send(ctx, message)
	return err
}

func getReturnKeyboard() [][]tgbotapi.InlineKeyboardButton {
	return [][]tgbotapi.InlineKeyboardButton{
		{tgbotapi.NewInlineKeyboardButtonData("⬅️ Return to menu", "menu")},
	}
}

func getMenuKeyboard() [][]tgbotapi.InlineKeyboardButton {
	return [][]tgbotapi.InlineKeyboardButton{
		{
			tgbotapi.NewInlineKeyboardButtonData("⚙️ Settings", "menu_settings"),
			tgbotapi.NewInlineKeyboardButtonData("❔ Help", "menu_help"),
		},
	}
}

// getSettingsKeyboard renders the toggles and the summary lengths, marking
// the current choices.
func getSettingsKeyboard(opts domain.OutputOptions) [][]tgbotapi.InlineKeyboardButton {
	keyboard := [][]tgbotapi.InlineKeyboardButton{
		{
			tgbotapi.NewInlineKeyboardButtonData(toggleLabel("Keywords", opts.KeywordsEnabled), settingsToggleKeywordsCallback),
			tgbotapi.NewInlineKeyboardButtonData(toggleLabel("Title", opts.TitleEnabled), settingsToggleTitleCallback),
		},
	}

	lengths := domain.SummaryLengths()
	for i := 0; i < len(lengths); i += settingsLengthKeyboardRowSize {
		var row []tgbotapi.InlineKeyboardButton

		for _, length := range lengths[i:min(i+settingsLengthKeyboardRowSize, len(lengths))] {
			label := strconv.Itoa(length)
			if length == opts.SummaryLength {
				label = "• " + label + " •"
			}
			row = append(
				row,
				tgbotapi.NewInlineKeyboardButtonData(label, settingsLengthKeyboardCallbackPrefix+strconv.Itoa(length)),
			)
		}

		keyboard = append(keyboard, row)
	}

	return append(keyboard, getReturnKeyboard()...)
}

func toggleLabel(name string, enabled bool) string {
	if enabled {
		return "✅ " + name
	}
	return "⬜ " + name
}
