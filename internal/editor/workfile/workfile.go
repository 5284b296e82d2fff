// Package workfile binds an editor controller to a file on local disk: the
// open document is written to the file and edits to the file flow back to
// the controller.
package workfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Updater receives the file's content after each change.
type Updater interface {
	Update(content []byte) error
}

type Binding struct {
	path     string
	updater  Updater
	log      zerolog.Logger
	debounce time.Duration

	mu sync.Mutex
}

func New(path string, updater Updater, log zerolog.Logger) (*Binding, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve working file: %w", err)
	}
	return &Binding{
		path:     abs,
		updater:  updater,
		log:      log,
		debounce: 50 * time.Millisecond,
	}, nil
}

func (b *Binding) Path() string { return b.path }

// Load replaces the working file with content. Writes go through a temp
// file and rename so watchers never read a partial document.
func (b *Binding) Load(content []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".docbridge-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, b.path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// Watch feeds changes of the working file to the updater until ctx is done.
// The parent directory is watched so editors that save by rename are seen.
func (b *Binding) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(b.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(b.path), err)
	}

	timer := time.NewTimer(b.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != b.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(b.debounce)
		case <-timer.C:
			b.sync()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			b.log.Error().Err(err).Msg("fsnotify error")
		}
	}
}

func (b *Binding) sync() {
	b.mu.Lock()
	content, err := os.ReadFile(b.path)
	b.mu.Unlock()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			b.log.Warn().Err(err).Str("path", b.path).Msg("read working file")
		}
		return
	}
	if err := b.updater.Update(content); err != nil {
		b.log.Warn().Err(err).Msg("apply working file change")
	}
}
