package document

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Root is the key prefix every document lives under in the blob container.
const Root = "Files/"

var ErrInvalidName = errors.New("invalid document name")

// BlobPath derives the blob key for a document name. It is recomputed on
// every access and never stored.
func BlobPath(name string) string {
	return Root + strings.TrimLeft(strings.TrimSpace(name), "/")
}

// NameFromBlobPath is the inverse of BlobPath.
func NameFromBlobPath(key string) string {
	return strings.TrimPrefix(key, Root)
}

// ValidateName rejects names that are empty or would escape the document root.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
	}
	return nil
}

// CompleteName turns a user-typed candidate into a full document name by
// appending DefaultExtension unless it already ends in a recognized one.
func CompleteName(candidate string) string {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return ""
	}
	if _, err := FormatOfName(candidate); err == nil {
		return candidate
	}
	return candidate + DefaultExtension
}

// Payload is the JSON shape handed to the editor when a document is opened.
// Content carries the stored bytes untouched.
type Payload struct {
	Name       string    `json:"name"`
	Format     Format    `json:"format"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modifiedAt,omitempty"`
	Content    []byte    `json:"content"`
}
