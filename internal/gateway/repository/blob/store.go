package blob

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Store defines operations against a container of named blobs.
// Keys are slash separated; prefixes behave like directories.
type Store interface {
	Put(ctx context.Context, key string, content []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Stat(ctx context.Context, key string) (Info, error)
	List(ctx context.Context, prefix string) ([]Info, error)
	Delete(ctx context.Context, key string) error
}

// Info describes a stored blob without its content.
type Info struct {
	Key         string    `json:"key"`
	Size        int64     `json:"size"`
	ModifiedAt  time.Time `json:"modifiedAt"`
	ContentType string    `json:"contentType,omitempty"`
}

var ErrNotFound = errors.New("blob not found")

// Exists reports whether key is present. Errors other than ErrNotFound are
// returned so callers can pick their own policy.
func Exists(ctx context.Context, s Store, key string) (bool, error) {
	_, err := s.Stat(ctx, key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}

func normalizeKey(key string) (string, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return "", fmt.Errorf("key is required")
	}
	if strings.HasSuffix(key, "/") {
		return "", fmt.Errorf("key must not end with a slash: %s", key)
	}
	return key, nil
}

func normalizePrefix(prefix string) string {
	return strings.TrimLeft(strings.TrimSpace(prefix), "/")
}
