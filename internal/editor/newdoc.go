package editor

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"docbridge/internal/document"
)

// FlowState is a step of the New-Document workflow.
type FlowState int

const (
	Idle FlowState = iota
	PromptOpen
	Checking
	Rejected
	Committed
)

func (s FlowState) String() string {
	switch s {
	case PromptOpen:
		return "prompt-open"
	case Checking:
		return "checking"
	case Rejected:
		return "rejected"
	case Committed:
		return "committed"
	default:
		return "idle"
	}
}

const (
	MsgDuplicateName = "Document already exists. Please choose a different name"
	MsgEmptyName     = "Please enter a document name"
	MsgStorageError  = "Could not reach document storage. Please try again"
)

// DefaultNames is the pool a new document's suggested name is drawn from.
var DefaultNames = []string{"Untitled", "New Document", "Draft", "Notes", "Report"}

var (
	ErrBusy        = errors.New("new-document prompt is not accepting input")
	ErrNotPrompted = errors.New("new-document prompt is not open")
)

// ExistenceChecker reports whether a document name is already taken.
type ExistenceChecker interface {
	CheckExists(ctx context.Context, name string) (bool, error)
}

// Prompt is what the name dialog shows.
type Prompt struct {
	State     FlowState
	Candidate string
	Message   string
}

type NewDocumentFlow struct {
	mu         sync.Mutex
	state      FlowState
	candidate  string
	message    string
	checker    ExistenceChecker
	ctrl       *Controller
	pick       func(pool []string) string
	failClosed bool
	log        zerolog.Logger
}

type FlowOption func(*NewDocumentFlow)

// WithFailClosed keeps the prompt open when the existence check errors
// instead of treating the name as free.
func WithFailClosed() FlowOption {
	return func(f *NewDocumentFlow) { f.failClosed = true }
}

// WithNamePicker replaces the random choice from DefaultNames.
func WithNamePicker(pick func(pool []string) string) FlowOption {
	return func(f *NewDocumentFlow) { f.pick = pick }
}

func WithFlowLogger(log zerolog.Logger) FlowOption {
	return func(f *NewDocumentFlow) { f.log = log }
}

func NewNewDocumentFlow(checker ExistenceChecker, ctrl *Controller, opts ...FlowOption) *NewDocumentFlow {
	f := &NewDocumentFlow{
		checker: checker,
		ctrl:    ctrl,
		pick: func(pool []string) string {
			return pool[rand.IntN(len(pool))]
		},
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *NewDocumentFlow) Prompt() Prompt {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.promptLocked()
}

func (f *NewDocumentFlow) promptLocked() Prompt {
	return Prompt{State: f.state, Candidate: f.candidate, Message: f.message}
}

// Request opens the prompt with a suggested name. Requests while a check
// is running are refused.
func (f *NewDocumentFlow) Request() (Prompt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == Checking {
		return f.promptLocked(), ErrBusy
	}
	f.state = PromptOpen
	f.candidate = f.pick(DefaultNames)
	f.message = ""
	return f.promptLocked(), nil
}

// Cancel closes the prompt and discards the candidate.
func (f *NewDocumentFlow) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == Checking {
		return
	}
	f.state = Idle
	f.candidate = ""
	f.message = ""
}

// Confirm completes candidate to a full document name and commits it if no
// document of that name exists. A duplicate leaves the prompt open with
// MsgDuplicateName; the user may retry any number of times.
func (f *NewDocumentFlow) Confirm(ctx context.Context, candidate string) (Prompt, error) {
	f.mu.Lock()
	if f.state != PromptOpen && f.state != Rejected {
		p := f.promptLocked()
		f.mu.Unlock()
		if p.State == Checking {
			return p, ErrBusy
		}
		return p, ErrNotPrompted
	}
	name := document.CompleteName(candidate)
	f.candidate = strings.TrimSpace(candidate)
	if name == "" {
		f.state = PromptOpen
		f.message = MsgEmptyName
		p := f.promptLocked()
		f.mu.Unlock()
		return p, nil
	}
	f.state = Checking
	f.message = ""
	f.mu.Unlock()

	exists, err := f.checker.CheckExists(ctx, name)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		if f.failClosed {
			f.log.Error().Err(err).Str("document", name).Msg("existence check failed; keeping prompt open")
			f.state = PromptOpen
			f.message = MsgStorageError
			return f.promptLocked(), nil
		}
		f.log.Warn().Err(err).Str("document", name).Msg("existence check failed; treating name as free")
		exists = false
	}
	if exists {
		f.state = Rejected
		f.message = MsgDuplicateName
		return f.promptLocked(), nil
	}
	if err := f.ctrl.Create(name); err != nil {
		f.state = PromptOpen
		return f.promptLocked(), err
	}
	f.state = Committed
	f.candidate = name
	f.message = ""
	return f.promptLocked(), nil
}
