package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"docbridge/internal/editor"
	"docbridge/internal/editor/workfile"
	"docbridge/internal/logging"
	"docbridge/internal/storageclient"
)

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

type editSession struct {
	client *storageclient.Client
	ctrl   *editor.Controller
}

func newEditSession(client *storageclient.Client) *editSession {
	return &editSession{
		client: client,
		ctrl: editor.NewController(client,
			editor.WithLogger(logging.Component(logger, "autosave")),
			editor.WithInterval(interval),
		),
	}
}

// edit mirrors the open document into the working directory and autosaves
// edits until ctx is done.
func (s *editSession) edit(ctx context.Context) error {
	sess, ok := s.ctrl.Session()
	if !ok {
		return editor.ErrNoDocument
	}
	binding, err := workfile.New(filepath.Join(workdir, filepath.Base(sess.Name)), s.ctrl, logging.Component(logger, "workfile"))
	if err != nil {
		return err
	}
	if err := binding.Load(sess.Content); err != nil {
		return err
	}
	logger.Info().Str("document", sess.Name).Str("file", binding.Path()).Dur("interval", interval).Msg("editing; press Ctrl+C to stop")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return binding.Watch(gctx) })
	g.Go(func() error { return s.ctrl.Run(gctx) })
	err = g.Wait()
	_ = s.flush(5 * time.Second)
	s.ctrl.Close()
	if errors.Is(err, editor.ErrClosed) {
		return nil
	}
	return err
}

// flush waits for an in-flight persist and saves remaining changes once.
func (s *editSession) flush(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	err := s.ctrl.Flush(ctx)
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn().Msg("gave up waiting for the last autosave")
	default:
		logger.Warn().Err(err).Msg("exiting with unsaved changes")
	}
	return err
}
