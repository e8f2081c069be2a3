package docreader

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/gonfva/docxlib"
)

// readDOCX emits every paragraph's text followed by a newline, in document
// order. Paragraph text is the concatenation of its direct runs.
func readDOCX(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("parse DOCX: %v", r)
		}
	}()

	doc, err := docxlib.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse DOCX: %w", err)
	}

	var b strings.Builder
	for _, paragraph := range doc.Paragraphs() {
		for _, child := range paragraph.Children() {
			if child.Run == nil || child.Run.Text == nil {
				continue
			}
			b.WriteString(child.Run.Text.Text)
		}
		b.WriteString("\n")
	}

	return b.String(), nil
}
