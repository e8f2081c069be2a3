// Package docreader extracts plain text from uploaded documents.
package docreader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
)

const (
	MediaTypePDF  = "application/pdf"
	MediaTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MediaTypeText = "text/plain"
)

// ErrExtraction marks every failure to turn a document into text.
var ErrExtraction = errors.New("extraction failed")

// ExtractionError reports which media type could not be read.
type ExtractionError struct {
	MediaType string
	Err       error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("read %s: %v", e.MediaType, e.Err)
}

func (e *ExtractionError) Unwrap() []error {
	return []error{ErrExtraction, e.Err}
}

// Supported reports whether the media type has an extractor.
func Supported(mediaType string) bool {
	switch baseMediaType(mediaType) {
	case MediaTypePDF, MediaTypeDOCX, MediaTypeText:
		return true
	default:
		return false
	}
}

// Read extracts the text of r according to mediaType.
//
// Unsupported media types yield an empty string and no error, so callers
// must treat "" as "nothing extracted".
func Read(ctx context.Context, r io.Reader, mediaType string) (string, error) {
	mediaType = baseMediaType(mediaType)

	if !Supported(mediaType) {
		return "", nil
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", &ExtractionError{MediaType: mediaType, Err: fmt.Errorf("read input: %w", err)}
	}

	var text string
	switch mediaType {
	case MediaTypePDF:
		text, err = readPDF(ctx, data)
	case MediaTypeDOCX:
		text, err = readDOCX(data)
	case MediaTypeText:
		text, err = readText(data)
	}
	if err != nil {
		return "", &ExtractionError{MediaType: mediaType, Err: err}
	}

	return text, nil
}

func baseMediaType(mediaType string) string {
	mediaType = strings.TrimSpace(mediaType)
	if mediaType == "" {
		return ""
	}

	parsed, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		if i := strings.IndexByte(mediaType, ';'); i >= 0 {
			mediaType = mediaType[:i]
		}
		return strings.ToLower(strings.TrimSpace(mediaType))
	}

	return parsed
}
