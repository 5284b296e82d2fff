package editor

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docbridge/internal/document"
)

type fakeFetcher struct {
	docs    map[string][]byte
	err     error
	fetched []string
}

func (f *fakeFetcher) Fetch(_ context.Context, name string) (*document.Payload, error) {
	f.fetched = append(f.fetched, name)
	if f.err != nil {
		return nil, f.err
	}
	content, ok := f.docs[name]
	if !ok {
		return nil, errors.New("document not found")
	}
	return &document.Payload{Name: name, Content: content, Size: int64(len(content))}, nil
}

type recordingNotifier struct{ messages []string }

func (n *recordingNotifier) Notify(msg string) { n.messages = append(n.messages, msg) }

func TestSelectUnsupportedType(t *testing.T) {
	c, _ := newTestController(t, &fakeStorage{})
	require.NoError(t, c.Replace("Current.docx", []byte("mine")))
	c.MarkDirty()

	fetcher := &fakeFetcher{}
	notifier := &recordingNotifier{}
	b := NewBridge(fetcher, c, notifier, zerolog.Nop())

	err := b.Select(context.Background(), "/scan.pdf", ".pdf", "scan.pdf")
	assert.ErrorIs(t, err, document.ErrUnsupportedFormat)
	assert.Equal(t, []string{MsgUnsupportedFile}, notifier.messages)
	assert.Empty(t, fetcher.fetched)

	snap := c.Snapshot()
	assert.Equal(t, "Current.docx", snap.Name)
	assert.True(t, snap.Dirty)
}

func TestSelectSupportedReplacesSession(t *testing.T) {
	c, _ := newTestController(t, &fakeStorage{})
	require.NoError(t, c.Create("Draft.docx"))

	fetcher := &fakeFetcher{docs: map[string][]byte{"team/Plan.docx": []byte("plan")}}
	b := NewBridge(fetcher, c, &recordingNotifier{}, zerolog.Nop())
	var loaded string
	b.OnLoad(func(name string, _ []byte) { loaded = name })

	require.NoError(t, b.Select(context.Background(), "/team/Plan.docx", ".DOCX", "Plan.docx"))

	s, ok := c.Session()
	require.True(t, ok)
	assert.Equal(t, "team/Plan.docx", s.Name)
	assert.Equal(t, "plan", string(s.Content))
	assert.False(t, s.Dirty, "unsaved changes of the previous document are discarded")
	assert.True(t, c.Snapshot().Visible)
	assert.Equal(t, "team/Plan.docx", loaded)
}

func TestSelectFetchFailureLeavesSession(t *testing.T) {
	c, _ := newTestController(t, &fakeStorage{})
	require.NoError(t, c.Replace("Current.docx", []byte("mine")))

	b := NewBridge(&fakeFetcher{err: errors.New("500")}, c, &recordingNotifier{}, zerolog.Nop())
	assert.Error(t, b.Select(context.Background(), "", ".txt", "notes.txt"))

	s, _ := c.Session()
	assert.Equal(t, "Current.docx", s.Name)
	assert.Equal(t, "mine", string(s.Content))
}

func TestPickedName(t *testing.T) {
	assert.Equal(t, "notes.txt", pickedName("", "notes.txt"))
	assert.Equal(t, "notes.txt", pickedName("/notes.txt", "notes.txt"))
	assert.Equal(t, "team/Plan.docx", pickedName("/team/Plan.docx", "Plan.docx"))
	assert.Equal(t, "team/Plan.docx", pickedName("Files/team/Plan.docx", "Plan.docx"))
}
