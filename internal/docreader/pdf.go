package docreader

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// readPDF concatenates the text of every page in page order. A page without
// extractable text contributes nothing and never fails the document.
func readPDF(ctx context.Context, data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("parse PDF: %v", r)
		}
	}()

	pdfReader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("create PDF reader: %w", err)
	}

	var b strings.Builder
	totalPages := pdfReader.NumPage()

	for pageIndex := 1; pageIndex <= totalPages; pageIndex++ {
		if err = ctx.Err(); err != nil {
			return "", err
		}

		b.WriteString(pageText(pdfReader, pageIndex))
	}

	return b.String(), nil
}

func pageText(pdfReader *pdf.Reader, pageIndex int) (text string) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
		}
	}()

	page := pdfReader.Page(pageIndex)
	if page.V.IsNull() {
		return ""
	}

	text, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}

	return text
}
