package documents

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/rs/zerolog"

	"docbridge/internal/document"
	blobrepo "docbridge/internal/gateway/repository/blob"
	"docbridge/internal/gateway/service/events"
)

var (
	ErrNotFound          = blobrepo.ErrNotFound
	ErrUnsupportedFormat = document.ErrUnsupportedFormat
	ErrInvalidName       = document.ErrInvalidName
)

// Publisher receives change notifications after successful writes.
type Publisher interface {
	Publish(kind events.Kind, name string, size int64) events.Event
}

// Service maps document names onto blob keys under document.Root.
type Service struct {
	store     blobrepo.Store
	publisher Publisher
	log       zerolog.Logger
}

func New(store blobrepo.Store, publisher Publisher, log zerolog.Logger) *Service {
	return &Service{store: store, publisher: publisher, log: log}
}

// Download is a stored document ready to stream back to a browser.
type Download struct {
	Name        string
	ContentType string
	Content     []byte
}

func (s *Service) Exists(ctx context.Context, name string) (bool, error) {
	if err := document.ValidateName(name); err != nil {
		return false, err
	}
	return blobrepo.Exists(ctx, s.store, document.BlobPath(name))
}

func (s *Service) Fetch(ctx context.Context, name string) (*document.Payload, error) {
	if err := document.ValidateName(name); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	format, err := document.FormatOfName(name)
	if err != nil {
		return nil, err
	}
	key := document.BlobPath(name)
	info, err := s.store.Stat(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", key, err)
	}
	content, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return &document.Payload{
		Name:       name,
		Format:     format,
		Size:       int64(len(content)),
		ModifiedAt: info.ModifiedAt,
		Content:    content,
	}, nil
}

// Persist overwrites whatever is stored under name.
func (s *Service) Persist(ctx context.Context, name string, content []byte) error {
	if err := document.ValidateName(name); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	key := document.BlobPath(name)
	if err := s.store.Put(ctx, key, content); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	s.log.Debug().Str("document", name).Int("bytes", len(content)).Msg("document persisted")
	if s.publisher != nil {
		s.publisher.Publish(events.KindPersisted, name, int64(len(content)))
	}
	return nil
}

func (s *Service) Download(ctx context.Context, name string) (*Download, error) {
	if err := document.ValidateName(name); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	key := document.BlobPath(name)
	content, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	contentType := "application/octet-stream"
	if f, err := document.FormatOfName(name); err == nil {
		contentType = document.ContentType(f)
	}
	return &Download{
		Name:        path.Base(name),
		ContentType: contentType,
		Content:     content,
	}, nil
}

// Import wraps pasted content of the given type into a payload the editor
// can open. Nothing is stored.
func (s *Service) Import(_ context.Context, content []byte, ext string) (*document.Payload, error) {
	format, err := document.FormatOf(ext)
	if err != nil {
		return nil, err
	}
	if len(content) == 0 {
		return &document.Payload{Format: format, Content: []byte{}}, nil
	}
	return &document.Payload{
		Format:  format,
		Size:    int64(len(content)),
		Content: content,
	}, nil
}

// IsNotFound reports whether err means the document does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
