// Package editor coordinates the open document with the storage proxy:
// dirty tracking, the autosave loop, the New-Document workflow and loading
// files picked in the file browser.
package editor

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrClosed     = errors.New("editor controller is closed")
	ErrNoDocument = errors.New("no document is open")
	ErrEmptyName  = errors.New("document name is required")
	ErrUnsaved    = errors.New("document has unsaved changes")
)

// Persister uploads document content under a name, overwriting any blob
// already stored there.
type Persister interface {
	Persist(ctx context.Context, name string, content []byte) error
}

// Session is the document currently open in the editor.
type Session struct {
	Name    string
	Dirty   bool
	Content []byte
}

type TickResult int

const (
	// TickIdle: nothing to save.
	TickIdle TickResult = iota
	// TickSkipped: a previous persist is still in flight; the tick is dropped.
	TickSkipped
	// TickStarted: a persist of the current content was issued.
	TickStarted
)

func (r TickResult) String() string {
	switch r {
	case TickSkipped:
		return "skipped"
	case TickStarted:
		return "started"
	default:
		return "idle"
	}
}

type Snapshot struct {
	Name      string
	Open      bool
	Dirty     bool
	Uploading bool
	Visible   bool
	Size      int
}

type state struct {
	session   *Session
	uploading bool
	visible   bool
	// generation counts content mutations so a persist only clears dirty
	// when nothing changed while it was in flight.
	generation uint64
	// waiters are told the outcome of the persist in flight.
	waiters []chan error
}

// Controller owns the document session. Every read and write of the session
// runs on a single loop goroutine; storage calls run elsewhere and post
// their completion back to it.
type Controller struct {
	store          Persister
	log            zerolog.Logger
	interval       time.Duration
	persistTimeout time.Duration
	onPersisted    func(name string, err error)

	ops       chan func(*state)
	closing   chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
	st        state
}

type Option func(*Controller)

func WithLogger(log zerolog.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// WithInterval sets the autosave cadence used by Run.
func WithInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

func WithPersistTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.persistTimeout = d
		}
	}
}

// WithPersistHook registers fn to run after every persist attempt, once the
// session has been updated with its outcome.
func WithPersistHook(fn func(name string, err error)) Option {
	return func(c *Controller) { c.onPersisted = fn }
}

func NewController(store Persister, opts ...Option) *Controller {
	c := &Controller{
		store:          store,
		log:            zerolog.Nop(),
		interval:       time.Second,
		persistTimeout: 30 * time.Second,
		ops:            make(chan func(*state)),
		closing:        make(chan struct{}),
		stopped:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.loop()
	return c
}

func (c *Controller) loop() {
	defer close(c.stopped)
	for {
		select {
		case fn := <-c.ops:
			fn(&c.st)
		case <-c.closing:
			return
		}
	}
}

// Close stops the loop. Persists already in flight complete but their
// results are discarded.
func (c *Controller) Close() {
	c.closeOnce.Do(func() { close(c.closing) })
	<-c.stopped
}

// do runs fn on the loop and waits for it.
func (c *Controller) do(fn func(*state)) error {
	done := make(chan struct{})
	select {
	case c.ops <- func(s *state) { fn(s); close(done) }:
	case <-c.closing:
		return ErrClosed
	}
	<-done
	return nil
}

// post hands fn to the loop without waiting for it to run.
func (c *Controller) post(fn func(*state)) bool {
	select {
	case c.ops <- fn:
		return true
	case <-c.closing:
		return false
	}
}

// MarkDirty records a content change signalled by the editor.
func (c *Controller) MarkDirty() {
	_ = c.do(func(s *state) {
		if s.session == nil {
			return
		}
		s.session.Dirty = true
		s.generation++
	})
}

// Update replaces the session content. Identical content is not a change.
func (c *Controller) Update(content []byte) error {
	var err error
	if cerr := c.do(func(s *state) {
		if s.session == nil {
			err = ErrNoDocument
			return
		}
		if bytes.Equal(s.session.Content, content) {
			return
		}
		s.session.Content = bytes.Clone(content)
		if s.session.Content == nil {
			s.session.Content = []byte{}
		}
		s.session.Dirty = true
		s.generation++
	}); cerr != nil {
		return cerr
	}
	return err
}

// Create opens a new empty document. It is marked dirty so the next tick
// creates the blob; nothing is written here.
func (c *Controller) Create(name string) error {
	if name == "" {
		return ErrEmptyName
	}
	return c.do(func(s *state) {
		s.session = &Session{Name: name, Dirty: true, Content: []byte{}}
		s.visible = true
		s.generation++
	})
}

// Replace swaps in a loaded document, discarding unsaved changes of the
// previous one, and shows the editor.
func (c *Controller) Replace(name string, content []byte) error {
	if name == "" {
		return ErrEmptyName
	}
	content = bytes.Clone(content)
	if content == nil {
		content = []byte{}
	}
	return c.do(func(s *state) {
		s.session = &Session{Name: name, Content: content}
		s.visible = true
		s.generation++
	})
}

// Session returns a copy of the open document.
func (c *Controller) Session() (Session, bool) {
	var (
		out Session
		ok  bool
	)
	_ = c.do(func(s *state) {
		if s.session == nil {
			return
		}
		out = Session{Name: s.session.Name, Dirty: s.session.Dirty, Content: bytes.Clone(s.session.Content)}
		ok = true
	})
	return out, ok
}

func (c *Controller) Snapshot() Snapshot {
	var snap Snapshot
	_ = c.do(func(s *state) {
		snap.Uploading = s.uploading
		snap.Visible = s.visible
		if s.session != nil {
			snap.Open = true
			snap.Name = s.session.Name
			snap.Dirty = s.session.Dirty
			snap.Size = len(s.session.Content)
		}
	})
	return snap
}

// Tick persists the session if it is dirty and no persist is in flight.
func (c *Controller) Tick() TickResult {
	result := TickIdle
	_ = c.do(func(s *state) {
		switch {
		case s.session == nil || !s.session.Dirty:
			result = TickIdle
		case s.uploading:
			result = TickSkipped
		default:
			result = TickStarted
			c.startPersist(s)
		}
	})
	return result
}

func (c *Controller) startPersist(s *state) {
	s.uploading = true
	go c.persist(s.session, s.session.Name, bytes.Clone(s.session.Content), s.generation)
}

// Flush waits for the persist in flight, then saves any remaining changes
// and waits for that save too. It returns ErrUnsaved (or the persist error)
// if changes are left, and ctx's error if ctx ends first.
func (c *Controller) Flush(ctx context.Context) error {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		var wait chan error
		if err := c.do(func(s *state) {
			if s.session == nil {
				return
			}
			if !s.uploading {
				if !s.session.Dirty {
					return
				}
				c.startPersist(s)
			}
			wait = make(chan error, 1)
			s.waiters = append(s.waiters, wait)
		}); err != nil {
			return err
		}
		if wait == nil {
			return nil
		}
		select {
		case lastErr = <-wait:
		case <-ctx.Done():
			return ctx.Err()
		case <-c.closing:
			return ErrClosed
		}
	}
	if c.Snapshot().Dirty {
		if lastErr != nil {
			return lastErr
		}
		return ErrUnsaved
	}
	return nil
}

func (c *Controller) persist(sess *Session, name string, content []byte, generation uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), c.persistTimeout)
	err := c.store.Persist(ctx, name, content)
	cancel()

	done := make(chan struct{})
	posted := c.post(func(s *state) {
		defer close(done)
		s.uploading = false
		for _, w := range s.waiters {
			w <- err
		}
		s.waiters = nil
		if err != nil {
			c.log.Warn().Err(err).Str("document", name).Msg("autosave failed; will retry")
			return
		}
		if s.session == sess && s.generation == generation {
			s.session.Dirty = false
		}
		c.log.Debug().Str("document", name).Int("bytes", len(content)).Msg("autosaved")
	})
	if !posted {
		c.log.Debug().Str("document", name).Msg("autosave finished after editor closed")
		return
	}
	<-done
	if c.onPersisted != nil {
		c.onPersisted(name, err)
	}
}

// Run ticks at the configured interval until ctx is done or the controller
// is closed. Cancelling ctx stops the timer only.
func (c *Controller) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.closing:
			return ErrClosed
		case <-ticker.C:
			if r := c.Tick(); r == TickSkipped {
				c.log.Debug().Msg("autosave tick skipped; persist in flight")
			}
		}
	}
}
