package docreader

import (
	"github.com/gabriel-vasile/mimetype"
)

const mediaTypeOctetStream = "application/octet-stream"

// DetectMediaType trusts a declared media type and sniffs head otherwise.
// Browsers and Telegram clients send application/octet-stream when they do
// not know the type.
func DetectMediaType(declared string, head []byte) string {
	declared = baseMediaType(declared)
	if declared != "" && declared != mediaTypeOctetStream {
		return declared
	}

	if len(head) == 0 {
		return declared
	}

	return baseMediaType(mimetype.Detect(head).String())
}
