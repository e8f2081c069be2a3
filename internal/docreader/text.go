package docreader

import (
	"errors"
	"unicode/utf8"
)

var errInvalidUTF8 = errors.New("input is not valid UTF-8")

func readText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", errInvalidUTF8
	}

	return string(data), nil
}
