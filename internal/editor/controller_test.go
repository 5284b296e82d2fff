package editor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type persistCall struct {
	name    string
	content string
}

type fakeStorage struct {
	mu          sync.Mutex
	calls       []persistCall
	inFlight    int
	maxInFlight int
	gate        chan struct{}
	err         error
	existing    map[string]bool
	existsErr   error
	checked     []string
}

func (f *fakeStorage) Persist(_ context.Context, name string, content []byte) error {
	f.mu.Lock()
	f.calls = append(f.calls, persistCall{name: name, content: string(content)})
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	gate, err := f.gate, f.err
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
	return err
}

func (f *fakeStorage) CheckExists(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checked = append(f.checked, name)
	if f.existsErr != nil {
		return false, f.existsErr
	}
	return f.existing[name], nil
}

func (f *fakeStorage) persistCalls() []persistCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]persistCall(nil), f.calls...)
}

func newTestController(t *testing.T, store *fakeStorage, opts ...Option) (*Controller, chan error) {
	t.Helper()
	done := make(chan error, 16)
	opts = append(opts, WithPersistHook(func(_ string, err error) { done <- err }))
	c := NewController(store, opts...)
	t.Cleanup(c.Close)
	return c, done
}

func waitPersist(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatalf("persist did not complete")
		return nil
	}
}

func TestTickIdleWithoutChanges(t *testing.T) {
	store := &fakeStorage{}
	c, _ := newTestController(t, store)

	assert.Equal(t, TickIdle, c.Tick(), "no document open")
	require.NoError(t, c.Replace("Report.docx", []byte("loaded")))
	assert.Equal(t, TickIdle, c.Tick(), "freshly loaded document is clean")
	assert.Empty(t, store.persistCalls())
}

func TestDirtyTickPersistsOnceAndClears(t *testing.T) {
	store := &fakeStorage{}
	c, done := newTestController(t, store)

	require.NoError(t, c.Replace("Report.docx", []byte("v1")))
	require.NoError(t, c.Update([]byte("v2")))
	require.True(t, c.Snapshot().Dirty)

	assert.Equal(t, TickStarted, c.Tick())
	require.NoError(t, waitPersist(t, done))

	assert.False(t, c.Snapshot().Dirty)
	assert.False(t, c.Snapshot().Uploading)
	assert.Equal(t, []persistCall{{name: "Report.docx", content: "v2"}}, store.persistCalls())

	assert.Equal(t, TickIdle, c.Tick())
	assert.Len(t, store.persistCalls(), 1)
}

func TestFailedPersistKeepsDirty(t *testing.T) {
	store := &fakeStorage{err: errors.New("503 service unavailable")}
	c, done := newTestController(t, store)

	require.NoError(t, c.Replace("Report.docx", nil))
	c.MarkDirty()
	assert.Equal(t, TickStarted, c.Tick())
	assert.Error(t, waitPersist(t, done))
	assert.True(t, c.Snapshot().Dirty)

	store.mu.Lock()
	store.err = nil
	store.mu.Unlock()
	assert.Equal(t, TickStarted, c.Tick(), "next tick retries")
	require.NoError(t, waitPersist(t, done))
	assert.False(t, c.Snapshot().Dirty)
}

func TestTickSkippedWhilePersistInFlight(t *testing.T) {
	store := &fakeStorage{gate: make(chan struct{})}
	c, done := newTestController(t, store)

	require.NoError(t, c.Replace("Report.docx", nil))
	require.NoError(t, c.Update([]byte("v1")))
	require.Equal(t, TickStarted, c.Tick())
	require.True(t, c.Snapshot().Uploading)

	for i := 0; i < 3; i++ {
		require.NoError(t, c.Update([]byte{byte('a' + i)}))
		assert.Equal(t, TickSkipped, c.Tick())
	}
	close(store.gate)
	require.NoError(t, waitPersist(t, done))

	assert.Len(t, store.persistCalls(), 1, "skipped ticks are dropped, not queued")
	assert.True(t, c.Snapshot().Dirty, "content changed while the persist was in flight")

	assert.Equal(t, TickStarted, c.Tick())
	require.NoError(t, waitPersist(t, done))
	calls := store.persistCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "c", calls[1].content)
	assert.False(t, c.Snapshot().Dirty)

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, 1, store.maxInFlight)
}

func TestUpdateWithSameContentIsNotAChange(t *testing.T) {
	c, _ := newTestController(t, &fakeStorage{})
	assert.ErrorIs(t, c.Update([]byte("x")), ErrNoDocument)

	require.NoError(t, c.Replace("a.txt", []byte("same")))
	require.NoError(t, c.Update([]byte("same")))
	assert.False(t, c.Snapshot().Dirty)
}

func TestMarkDirtyIsIdempotent(t *testing.T) {
	store := &fakeStorage{}
	c, done := newTestController(t, store)
	require.NoError(t, c.Replace("a.txt", []byte("x")))
	c.MarkDirty()
	c.MarkDirty()
	assert.Equal(t, TickStarted, c.Tick())
	require.NoError(t, waitPersist(t, done))
	assert.Len(t, store.persistCalls(), 1)
}

func TestCreateIsPersistedByNextTick(t *testing.T) {
	store := &fakeStorage{}
	c, done := newTestController(t, store)

	assert.ErrorIs(t, c.Create(""), ErrEmptyName)
	require.NoError(t, c.Create("Report2.docx"))
	assert.Empty(t, store.persistCalls(), "creation does not write")

	snap := c.Snapshot()
	assert.True(t, snap.Open)
	assert.True(t, snap.Dirty)
	assert.True(t, snap.Visible)
	assert.Equal(t, "Report2.docx", snap.Name)

	assert.Equal(t, TickStarted, c.Tick())
	require.NoError(t, waitPersist(t, done))
	assert.Equal(t, []persistCall{{name: "Report2.docx", content: ""}}, store.persistCalls())
}

func TestReplaceDiscardsUnsavedChanges(t *testing.T) {
	c, _ := newTestController(t, &fakeStorage{})
	require.NoError(t, c.Create("draft.docx"))
	require.NoError(t, c.Replace("Plan.docx", []byte("plan")))

	s, ok := c.Session()
	require.True(t, ok)
	assert.Equal(t, Session{Name: "Plan.docx", Content: []byte("plan")}, s)
}

func TestRunTicksUntilCancelled(t *testing.T) {
	store := &fakeStorage{}
	c, done := newTestController(t, store, WithInterval(10*time.Millisecond))
	require.NoError(t, c.Replace("a.txt", nil))
	require.NoError(t, c.Update([]byte("typed")))

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- c.Run(ctx) }()

	require.NoError(t, waitPersist(t, done))
	cancel()
	select {
	case err := <-runErr:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after cancel")
	}
	assert.Len(t, store.persistCalls(), 1)
}

func TestCloseDropsLatePersistResult(t *testing.T) {
	store := &fakeStorage{gate: make(chan struct{})}
	c := NewController(store)

	require.NoError(t, c.Replace("a.txt", nil))
	require.NoError(t, c.Update([]byte("x")))
	require.Equal(t, TickStarted, c.Tick())
	c.Close()
	close(store.gate)

	assert.Equal(t, TickIdle, c.Tick())
	assert.ErrorIs(t, c.Update([]byte("y")), ErrClosed)
	assert.ErrorIs(t, c.Run(context.Background()), ErrClosed)
	assert.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.inFlight == 0
	}, time.Second, 5*time.Millisecond, "in-flight persist still completes")
}

func TestFlushWaitsForInFlightThenSavesLatest(t *testing.T) {
	store := &fakeStorage{gate: make(chan struct{})}
	c, _ := newTestController(t, store)

	require.NoError(t, c.Replace("a.txt", nil))
	require.NoError(t, c.Update([]byte("v1")))
	require.Equal(t, TickStarted, c.Tick())
	require.NoError(t, c.Update([]byte("final")))

	flushed := make(chan error, 1)
	go func() { flushed <- c.Flush(context.Background()) }()
	close(store.gate)

	select {
	case err := <-flushed:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatalf("Flush did not return")
	}
	calls := store.persistCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "final", calls[1].content)
	assert.False(t, c.Snapshot().Dirty)
}

func TestFlushIgnoresEarlierAutosaves(t *testing.T) {
	store := &fakeStorage{}
	c, done := newTestController(t, store)
	require.NoError(t, c.Replace("a.txt", nil))
	for _, v := range []string{"a", "b", "c"} {
		require.NoError(t, c.Update([]byte(v)))
		require.Equal(t, TickStarted, c.Tick())
		require.NoError(t, waitPersist(t, done))
	}

	require.NoError(t, c.Update([]byte("final")))
	require.NoError(t, c.Flush(context.Background()))
	calls := store.persistCalls()
	require.Len(t, calls, 4)
	assert.Equal(t, "final", calls[3].content)
}

func TestFlushReportsFailure(t *testing.T) {
	store := &fakeStorage{err: errors.New("503 service unavailable")}
	c, _ := newTestController(t, store)
	require.NoError(t, c.Replace("a.txt", nil))
	require.NoError(t, c.Update([]byte("x")))

	err := c.Flush(context.Background())
	assert.EqualError(t, err, "503 service unavailable")
	assert.True(t, c.Snapshot().Dirty)
}

func TestFlushCleanSessionIsNoop(t *testing.T) {
	store := &fakeStorage{}
	c, _ := newTestController(t, store)
	require.NoError(t, c.Flush(context.Background()))
	require.NoError(t, c.Replace("a.txt", []byte("x")))
	require.NoError(t, c.Flush(context.Background()))
	assert.Empty(t, store.persistCalls())
}
