package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textdigest/internal/domain"
	"textdigest/internal/workflow"
)

type fakeSender struct {
	mu        sync.Mutex
	messages  []tgbotapi.MessageConfig
	callbacks []tgbotapi.CallbackConfig
}

func (s *fakeSender) Send(_ context.Context, c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := c.(tgbotapi.MessageConfig); ok {
		s.messages = append(s.messages, m)
	}
	return tgbotapi.Message{}, nil
}

func (s *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cb, ok := c.(tgbotapi.CallbackConfig); ok {
		s.callbacks = append(s.callbacks, cb)
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (s *fakeSender) texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	texts := make([]string, 0, len(s.messages))
	for _, m := range s.messages {
		texts = append(texts, m.Text)
	}
	return texts
}

type fakeAPI struct {
	fileURL   string
	fileCalls int
}

func (a *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (a *fakeAPI) GetFileDirectURL(string) (string, error) {
	a.fileCalls++
	if a.fileURL == "" {
		return "", errors.New("no file")
	}
	return a.fileURL, nil
}

type fakeStore struct {
	options   map[int64]domain.OutputOptions
	deleteErr error
}

func (s *fakeStore) GetChatOptionsWithDefault(_ context.Context, chatID int64) (*domain.ChatOptions, error) {
	opts, ok := s.options[chatID]
	if !ok {
		opts = domain.DefaultOutputOptions()
	}
	return &domain.ChatOptions{ChatID: chatID, Options: opts}, nil
}

func (s *fakeStore) UpsertChatOptions(_ context.Context, chatOptions *domain.ChatOptions) error {
	s.options[chatOptions.ChatID] = chatOptions.Options
	return nil
}

func (s *fakeStore) DeleteChatOptions(_ context.Context, chatID int64) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.options, chatID)
	return nil
}

type fakeFacade struct {
	inputs []string
}

func (f *fakeFacade) Summarize(_ context.Context, text string, _ int) (string, error) {
	f.inputs = append(f.inputs, text)
	return "A summary.", nil
}

func (f *fakeFacade) ExtractKeywords(context.Context, string) ([]string, error) {
	return []string{"alpha", "beta"}, nil
}

func (f *fakeFacade) GenerateTitle(context.Context, string) (string, error) {
	return "", errors.New("model is down")
}

type testBot struct {
	*Bot
	sender *fakeSender
	api    *fakeAPI
	store  *fakeStore
	facade *fakeFacade
}

func newTestBot(t *testing.T) *testBot {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	tb := &testBot{
		sender: &fakeSender{},
		api:    &fakeAPI{},
		store:  &fakeStore{options: map[int64]domain.OutputOptions{}},
		facade: &fakeFacade{},
	}
	tb.Bot = newBot(tb.api, tb.sender, tb.store, workflow.NewController(tb.facade, log), 1<<20, log)

	return tb
}

func textMessage(chatID int64, text string) *tgbotapi.Update {
	return &tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		Chat:      &tgbotapi.Chat{ID: chatID, Type: "private"},
		Text:      text,
	}}
}

func callbackUpdate(chatID int64, data string) *tgbotapi.Update {
	return &tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		Data:    data,
		Message: &tgbotapi.Message{MessageID: 2, Chat: &tgbotapi.Chat{ID: chatID}},
	}}
}

func TestHandleTextMessage(t *testing.T) {
	tb := newTestBot(t)

	tb.handleUpdate(context.Background(), textMessage(10, "Some text."))

	texts := tb.sender.texts()
	require.Len(t, texts, 4)
	assert.Equal(t, "*✅ Summary*\n\nA summary\\.", texts[0])
	assert.Equal(t, "*✅ Keywords*\n\nalpha, beta", texts[1])
	assert.Equal(t, "*❌ Title*\n\nTitle Generation Error: model is down", texts[2])
	assert.Equal(t, escapeMarkdownV2(workflow.SuccessMessage), texts[3])
	assert.Equal(t, []string{"Some text."}, tb.facade.inputs)
}

func TestHandleTextMessageUsesChatOptions(t *testing.T) {
	tb := newTestBot(t)
	tb.store.options[10] = domain.OutputOptions{SummaryLength: 30}

	tb.handleUpdate(context.Background(), textMessage(10, "Some text."))

	texts := tb.sender.texts()
	require.Len(t, texts, 2)
	assert.Contains(t, texts[0], "Summary")
	assert.Equal(t, escapeMarkdownV2(workflow.SuccessMessage), texts[1])
}

func TestHandleTextMessageCapsLength(t *testing.T) {
	tb := newTestBot(t)

	tb.handleUpdate(context.Background(), textMessage(10, strings.Repeat("x", 3000)))

	require.Len(t, tb.facade.inputs, 1)
	assert.Len(t, tb.facade.inputs[0], domain.MaxTypedTextLength)
}

func TestHandleDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("Text inside the document."))
	}))
	t.Cleanup(server.Close)

	tb := newTestBot(t)
	tb.api.fileURL = server.URL + "/file"

	update := textMessage(10, "")
	update.Message.Document = &tgbotapi.Document{FileID: "f1", FileName: "notes.txt", MimeType: "text/plain", FileSize: 25}

	tb.handleUpdate(context.Background(), update)

	assert.Equal(t, []string{"Text inside the document."}, tb.facade.inputs)
	texts := tb.sender.texts()
	require.NotEmpty(t, texts)
	assert.Equal(t, escapeMarkdownV2(workflow.SuccessMessage), texts[len(texts)-1])
}

func TestHandleDocumentCaptionWins(t *testing.T) {
	tb := newTestBot(t)

	update := textMessage(10, "")
	update.Message.Caption = "Caption text."
	update.Message.Document = &tgbotapi.Document{FileID: "f1", MimeType: "text/plain", FileSize: 10}

	tb.handleUpdate(context.Background(), update)

	assert.Equal(t, []string{"Caption text."}, tb.facade.inputs)
	assert.Zero(t, tb.api.fileCalls)
}

func TestHandleDocumentTooLarge(t *testing.T) {
	tb := newTestBot(t)

	update := textMessage(10, "")
	update.Message.Document = &tgbotapi.Document{FileID: "f1", MimeType: "application/pdf", FileSize: 2 << 20}

	tb.handleUpdate(context.Background(), update)

	assert.Equal(t, []string{"❌ The file is too large\\."}, tb.sender.texts())
	assert.Empty(t, tb.facade.inputs)
	assert.Zero(t, tb.api.fileCalls)
}

func TestHandleDocumentExtractionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte{0xff, 0xfe, 0xfd})
	}))
	t.Cleanup(server.Close)

	tb := newTestBot(t)
	tb.api.fileURL = server.URL + "/file"

	update := textMessage(10, "")
	update.Message.Document = &tgbotapi.Document{FileID: "f1", MimeType: "text/plain", FileSize: 3}

	tb.handleUpdate(context.Background(), update)

	texts := tb.sender.texts()
	require.Len(t, texts, 1)
	assert.True(t, strings.HasPrefix(texts[0], "Extraction Error: "), texts[0])
	assert.Empty(t, tb.facade.inputs)
}

func TestHandleDocumentDownloadFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	tb := newTestBot(t)
	tb.api.fileURL = server.URL + "/file"

	update := textMessage(10, "")
	update.Message.Document = &tgbotapi.Document{FileID: "f1", MimeType: "text/plain", FileSize: 3}

	tb.handleUpdate(context.Background(), update)

	assert.Equal(t, []string{"❌ Failed to download the file\\."}, tb.sender.texts())
}

func TestHandleUnsupportedDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("\x89PNG\r\n\x1a\n"))
	}))
	t.Cleanup(server.Close)

	tb := newTestBot(t)
	tb.api.fileURL = server.URL + "/file"

	update := textMessage(10, "")
	update.Message.Document = &tgbotapi.Document{FileID: "f1", MimeType: "image/png", FileSize: 8}

	tb.handleUpdate(context.Background(), update)

	assert.Equal(t, []string{"✖️ Please provide input text or upload a file\\."}, tb.sender.texts())
}

func TestHandleStartCommand(t *testing.T) {
	tb := newTestBot(t)

	tb.handleUpdate(context.Background(), textMessage(10, "/start"))

	require.Len(t, tb.sender.messages, 1)
	assert.Equal(t, welcomeText, tb.sender.messages[0].Text)
	assert.Equal(t, tgbotapi.ModeMarkdownV2, tb.sender.messages[0].ParseMode)
	assert.Empty(t, tb.facade.inputs)
}

func TestHandleSettingsCommand(t *testing.T) {
	tb := newTestBot(t)

	tb.handleUpdate(context.Background(), textMessage(10, "/settings"))

	texts := tb.sender.texts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "Keywords: on")
	assert.Contains(t, texts[0], "Title: on")
	assert.Contains(t, texts[0], "Summary length: 50 words")
}

func TestHandleResetCommand(t *testing.T) {
	tb := newTestBot(t)
	tb.store.options[10] = domain.OutputOptions{SummaryLength: 120}
	tb.store.options[11] = domain.OutputOptions{SummaryLength: 30}

	tb.handleUpdate(context.Background(), textMessage(10, "/reset"))

	assert.NotContains(t, tb.store.options, int64(10))
	assert.Contains(t, tb.store.options, int64(11))
	assert.Equal(t, []string{"✅ Settings are reset to defaults\\."}, tb.sender.texts())
	assert.Empty(t, tb.facade.inputs)

	tb.handleUpdate(context.Background(), textMessage(10, "/settings"))

	texts := tb.sender.texts()
	require.Len(t, texts, 2)
	assert.Contains(t, texts[1], "Keywords: on")
	assert.Contains(t, texts[1], "Summary length: 50 words")
}

func TestHandleResetCommandStoreFailure(t *testing.T) {
	tb := newTestBot(t)
	tb.store.deleteErr = errors.New("disk is full")

	tb.handleUpdate(context.Background(), textMessage(10, "/reset"))

	assert.Equal(t, []string{"❌ Failed\\."}, tb.sender.texts())
}

func TestSettingsCallbacks(t *testing.T) {
	tests := []struct {
		name string
		data string
		want domain.OutputOptions
	}{
		{
			name: "toggle keywords",
			data: settingsToggleKeywordsCallback,
			want: domain.OutputOptions{KeywordsEnabled: false, TitleEnabled: true, SummaryLength: 50},
		},
		{
			name: "toggle title",
			data: settingsToggleTitleCallback,
			want: domain.OutputOptions{KeywordsEnabled: true, TitleEnabled: false, SummaryLength: 50},
		},
		{
			name: "length",
			data: settingsLengthKeyboardCallbackPrefix + "120",
			want: domain.OutputOptions{KeywordsEnabled: true, TitleEnabled: true, SummaryLength: 120},
		},
		{
			name: "length out of range",
			data: settingsLengthKeyboardCallbackPrefix + "500",
			want: domain.OutputOptions{KeywordsEnabled: true, TitleEnabled: true, SummaryLength: 150},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := newTestBot(t)

			tb.handleUpdate(context.Background(), callbackUpdate(10, tt.data))

			assert.Equal(t, tt.want, tb.store.options[10])
			require.Len(t, tb.sender.callbacks, 1)
			assert.Equal(t, "✅ Settings are updated.", tb.sender.callbacks[0].Text)
			require.Len(t, tb.sender.messages, 1)
			assert.Contains(t, tb.sender.messages[0].Text, "Settings")
		})
	}
}

func TestInvalidLengthCallback(t *testing.T) {
	tb := newTestBot(t)

	tb.handleUpdate(context.Background(), callbackUpdate(10, settingsLengthKeyboardCallbackPrefix+"abc"))

	require.Len(t, tb.sender.callbacks, 1)
	assert.Equal(t, "❌ Failed.", tb.sender.callbacks[0].Text)
	assert.Empty(t, tb.store.options)
}

func TestMenuCallback(t *testing.T) {
	tb := newTestBot(t)

	tb.handleUpdate(context.Background(), callbackUpdate(10, "menu"))

	require.Len(t, tb.sender.callbacks, 1)
	assert.Empty(t, tb.sender.callbacks[0].Text)
	assert.Equal(t, []string{"❔ *Choose an option:*"}, tb.sender.texts())
}

func TestGetSettingsKeyboard(t *testing.T) {
	keyboard := getSettingsKeyboard(domain.OutputOptions{KeywordsEnabled: true, SummaryLength: 70})

	// Toggles, three rows of lengths, return.
	require.Len(t, keyboard, 5)
	assert.Equal(t, "✅ Keywords", keyboard[0][0].Text)
	assert.Equal(t, "⬜ Title", keyboard[0][1].Text)

	var lengths []string
	for _, row := range keyboard[1:4] {
		require.Len(t, row, settingsLengthKeyboardRowSize)
		for _, button := range row {
			lengths = append(lengths, button.Text)
		}
	}
	assert.Len(t, lengths, 15)
	assert.Equal(t, "10", lengths[0])
	assert.Equal(t, "• 70 •", lengths[6])
	assert.Equal(t, "150", lengths[14])

	require.NotNil(t, keyboard[2][1].CallbackData)
	assert.Equal(t, settingsLengthKeyboardCallbackPrefix+"70", *keyboard[2][1].CallbackData)
}

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"A summary.", "A summary\\."},
		{"a_b*c", "a\\_b\\*c"},
		{`back\slash`, `back\\slash`},
		{"(1+1=2)!", "\\(1\\+1\\=2\\)\\!"},
	}

	for _, tt := range tests {
		if got := escapeMarkdownV2(tt.in); got != tt.want {
			t.Errorf("escapeMarkdownV2(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestUpdateBackoffSeconds(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{3, 6},
		{40, 60},
		{60, 60},
	}

	for _, tt := range tests {
		if got := updateBackoffSeconds(tt.in); got != tt.want {
			t.Errorf("updateBackoffSeconds(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
