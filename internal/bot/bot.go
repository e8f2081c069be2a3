package bot

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"textdigest/internal/domain"
	"textdigest/internal/ratelimiter"
	"textdigest/internal/workflow"
)

const (
	maxBackoffSeconds         = 60
	initialBackoffSeconds     = 3
	backoffGrowthFactor       = 2
	resetOffsetBackoffSeconds = 30
	updateProcessingTimeout   = 10 * time.Minute

	BotUpdateTimeout = 60
)

// Runner runs one workflow interaction.
type Runner interface {
	Run(ctx context.Context, req workflow.Request, reporter workflow.Reporter) (workflow.Report, error)
}

// OptionsStore persists the output options of each chat.
type OptionsStore interface {
	GetChatOptionsWithDefault(ctx context.Context, chatID int64) (*domain.ChatOptions, error)
	UpsertChatOptions(ctx context.Context, chatOptions *domain.ChatOptions) error
	DeleteChatOptions(ctx context.Context, chatID int64) error
}

type botAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetFileDirectURL(fileID string) (string, error)
}

type sender interface {
	Send(ctx context.Context, message tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Bot struct {
	api            botAPI
	sender         sender
	stopSender     func()
	store          OptionsStore
	runner         Runner
	httpClient     *http.Client
	maxUploadBytes int64
	returnKeyboard [][]tgbotapi.InlineKeyboardButton
	menuKeyboard   [][]tgbotapi.InlineKeyboardButton
	log            *slog.Logger
}

func New(
	token string,
	store OptionsStore,
	runner Runner,
	maxUploadBytes int64,
	log *slog.Logger,
) (*Bot, error) {
	token = strings.TrimSpace(token)

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	rateLimiter := ratelimiter.New(api, log)

	b := newBot(api, rateLimiter, store, runner, maxUploadBytes, log)
	b.stopSender = rateLimiter.Stop

	return b, nil
}

func newBot(
	api botAPI,
	sender sender,
	store OptionsStore,
	runner Runner,
	maxUploadBytes int64,
	log *slog.Logger,
) *Bot {
	return &Bot{
		api:            api,
		sender:         sender,
		store:          store,
		runner:         runner,
		httpClient:     http.DefaultClient,
		maxUploadBytes: maxUploadBytes,
		returnKeyboard: getReturnKeyboard(),
		menuKeyboard:   getMenuKeyboard(),
		log:            log,
	}
}

func (b *Bot) Start(ctx context.Context) {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = BotUpdateTimeout

	backoffSeconds := initialBackoffSeconds

	for {
		select {
		case <-ctx.Done():
			b.log.InfoContext(ctx, "Bot context is done",
				"error", ctx.Err())
			return
		default:
		}

		updates := b.api.GetUpdatesChan(updateConfig)
		updatesClosed := false

		for !updatesClosed {
			select {
			case <-ctx.Done():
				b.log.InfoContext(ctx, "Bot context is done",
					"error", ctx.Err())
				return

			case update, ok := <-updates:
				if !ok {
					updatesClosed = true
					continue
				}
				updateConfig.Offset = update.UpdateID + 1

				b.handleUpdate(ctx, &update)
			}
		}

		if ctx.Err() != nil {
			return
		}

		b.log.WarnContext(ctx, "Update channel is closed, reconnecting...",
			"offset", updateConfig.Offset,
			"backoffSeconds", backoffSeconds)

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(backoffSeconds) * time.Second):
		}

		backoffSeconds = updateBackoffSeconds(backoffSeconds)

		if backoffSeconds >= resetOffsetBackoffSeconds {
			updateConfig.Offset = 0
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update *tgbotapi.Update) {
	updateCtx, cancel := context.WithTimeout(ctx, updateProcessingTimeout)
	defer cancel()

	switch {
	case update.Message != nil:
		chatID, chatType := chatContext(update.Message.Chat)
		if update.Message.Chat == nil {
			return
		}

		if err := b.handleMessage(updateCtx, update.Message); err != nil {
			b.log.ErrorContext(updateCtx, "Failed to handle message",
				"error", err,
				"chatID", chatID,
				"chatType", chatType,
				"messageID", update.Message.MessageID)
		}

	case update.CallbackQuery != nil:
		chatID := callbackChatID(update.CallbackQuery)
		if chatID == 0 {
			return
		}

		if err := b.handleCallbackQuery(updateCtx, update.CallbackQuery); err != nil {
			b.log.ErrorContext(updateCtx, "Failed to handle callback query",
				"error", err,
				"chatID", chatID,
				"data", update.CallbackQuery.Data,
				"messageID", callbackMessageID(update.CallbackQuery))
		}
	}
}

func chatContext(chat *tgbotapi.Chat) (int64, string) {
	if chat == nil {
		return 0, ""
	}

	return chat.ID, chat.Type
}

func callbackChatID(cb *tgbotapi.CallbackQuery) int64 {
	if cb != nil && cb.Message != nil && cb.Message.Chat != nil {
		return cb.Message.Chat.ID
	}

	return 0
}

func callbackMessageID(cb *tgbotapi.CallbackQuery) int {
	if cb != nil && cb.Message != nil {
		return cb.Message.MessageID
	}

	return 0
}

func (b *Bot) Stop() {
	if b.stopSender != nil {
		b.stopSender()
	}
}

func updateBackoffSeconds(backoffSeconds int) int {
	if backoffSeconds < maxBackoffSeconds {
		backoffSeconds *= backoffGrowthFactor
		if backoffSeconds > maxBackoffSeconds {
			backoffSeconds = maxBackoffSeconds
		}
	}
	return backoffSeconds
}
