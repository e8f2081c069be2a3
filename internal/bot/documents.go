package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"textdigest/internal/docreader"
)

const sniffBytes = 3072

var (
	errFileTooLarge    = errors.New("file is too large")
	errDownloadFailed  = errors.New("download failed")
	errUnexpectedReply = errors.New("unexpected status")
)

// readDocument downloads a document from Telegram and extracts its text.
// Unsupported media types yield "".
func (b *Bot) readDocument(ctx context.Context, doc *tgbotapi.Document) (string, error) {
	if int64(doc.FileSize) > b.maxUploadBytes {
		return "", errFileTooLarge
	}

	data, err := b.downloadFile(ctx, doc.FileID)
	if err != nil {
		return "", err
	}

	mediaType := docreader.DetectMediaType(doc.MimeType, data[:min(len(data), sniffBytes)])
	if !docreader.Supported(mediaType) {
		b.log.WarnContext(ctx, "Unsupported media type is ignored",
			"mediaType", mediaType,
			"fileName", doc.FileName)
		return "", nil
	}

	return docreader.Read(ctx, bytes.NewReader(data), mediaType)
}

func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	fileURL, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("%w: get file URL: %w", errDownloadFailed, stripURL(err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", errDownloadFailed, stripURL(err))
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: do request: %w", errDownloadFailed, stripURL(err))
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			b.log.WarnContext(ctx, "Failed to close response body",
				"error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %w %d", errDownloadFailed, errUnexpectedReply, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, b.maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", errDownloadFailed, err)
	}
	if int64(len(data)) > b.maxUploadBytes {
		return nil, errFileTooLarge
	}

	return data, nil
}

// stripURL drops the file URL, which carries the bot token, from err.
func stripURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}

// documentErrorText is the chat reply for a document that yielded no text.
func documentErrorText(err error) string {
	switch {
	case errors.Is(err, errFileTooLarge):
		return "❌ The file is too large\\."
	case errors.Is(err, docreader.ErrExtraction):
		return escapeMarkdownV2("Extraction Error: " + err.Error())
	default:
		return "❌ Failed to download the file\\."
	}
}
