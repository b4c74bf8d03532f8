package storage

import (
	"github.com/gabriel-vasile/mimetype"
)

const (
	// ContentTypeJSON is used for manifest documents.
	ContentTypeJSON = "application/json"
	// contentTypeBinary is the fallback when sniffing fails.
	contentTypeBinary = "application/octet-stream"
)

// DetectContentType sniffs the MIME type of a local file.
func DetectContentType(path string) string {
	mt, err := mimetype.DetectFile(path)
	if err != nil || mt == nil {
		return contentTypeBinary
	}

	return mt.String()
}
