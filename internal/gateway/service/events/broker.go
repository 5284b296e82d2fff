package events

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

type Kind string

const (
	KindPersisted Kind = "persisted"
	KindDeleted   Kind = "deleted"
	KindCopied    Kind = "copied"
)

// Event announces a change to a document in the blob container.
type Event struct {
	ID   string    `json:"id"`
	Kind Kind      `json:"kind"`
	Name string    `json:"name"`
	Size int64     `json:"size,omitempty"`
	At   time.Time `json:"at"`
}

// Broker fans events out to subscribers. Slow subscribers lose events
// rather than blocking publishers.
type Broker struct {
	mu      sync.Mutex
	subs    map[chan Event]struct{}
	buffer  int
	now     func() time.Time
	entropy *ulid.MonotonicEntropy
}

func NewBroker() *Broker {
	return &Broker{
		subs:    make(map[chan Event]struct{}),
		buffer:  32,
		now:     time.Now,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Subscribe returns a channel that receives events until ctx is done.
func (b *Broker) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, ch)
		close(ch)
		b.mu.Unlock()
	}()
	return ch
}

func (b *Broker) Publish(kind Kind, name string, size int64) Event {
	if b == nil {
		return Event{}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now().UTC()
	evt := Event{
		ID:   ulid.MustNew(ulid.Timestamp(now), b.entropy).String(),
		Kind: kind,
		Name: name,
		Size: size,
		At:   now,
	}
	for ch := range b.subs {
		select {
		case ch <- evt:
		default:
		}
	}
	return evt
}

func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
