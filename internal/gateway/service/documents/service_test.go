package documents

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docbridge/internal/document"
	blobrepo "docbridge/internal/gateway/repository/blob"
	"docbridge/internal/gateway/service/events"
)

type recordingPublisher struct {
	events []events.Event
}

func (p *recordingPublisher) Publish(kind events.Kind, name string, size int64) events.Event {
	evt := events.Event{Kind: kind, Name: name, Size: size}
	p.events = append(p.events, evt)
	return evt
}

func newTestService() (*Service, *blobrepo.MemoryStore, *recordingPublisher) {
	store := blobrepo.NewMemoryStore()
	pub := &recordingPublisher{}
	return New(store, pub, zerolog.Nop()), store, pub
}

func TestPersistThenExistsAndFetch(t *testing.T) {
	ctx := context.Background()
	svc, store, pub := newTestService()

	ok, err := svc.Exists(ctx, "Report.docx")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, svc.Persist(ctx, "Report.docx", []byte("PK\x03\x04body")))
	raw, err := store.Get(ctx, "Files/Report.docx")
	require.NoError(t, err)
	assert.Equal(t, "PK\x03\x04body", string(raw), "document must be stored under Files/")

	ok, err = svc.Exists(ctx, "Report.docx")
	require.NoError(t, err)
	assert.True(t, ok)

	p, err := svc.Fetch(ctx, "Report.docx")
	require.NoError(t, err)
	assert.Equal(t, "Report.docx", p.Name)
	assert.Equal(t, document.FormatDocx, p.Format)
	assert.EqualValues(t, 8, p.Size)
	assert.False(t, p.ModifiedAt.IsZero())

	require.Len(t, pub.events, 1)
	assert.Equal(t, events.KindPersisted, pub.events[0].Kind)
	assert.Equal(t, "Report.docx", pub.events[0].Name)
}

func TestFetchErrors(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService()

	_, err := svc.Fetch(ctx, "missing.docx")
	assert.True(t, IsNotFound(err), "got %v", err)

	require.NoError(t, store.Put(ctx, "Files/scan.pdf", []byte("%PDF")))
	_, err = svc.Fetch(ctx, "scan.pdf")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = svc.Fetch(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidName)
	_, err = svc.Fetch(ctx, "../etc/passwd.txt")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestPersistOverwrites(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()
	require.NoError(t, svc.Persist(ctx, "a.txt", []byte("one")))
	require.NoError(t, svc.Persist(ctx, "a.txt", []byte("two")))
	p, err := svc.Fetch(ctx, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "two", string(p.Content))
}

func TestDownload(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()
	require.NoError(t, svc.Persist(ctx, "team/Notes.rtf", []byte(`{\rtf1}`)))

	d, err := svc.Download(ctx, "team/Notes.rtf")
	require.NoError(t, err)
	assert.Equal(t, "Notes.rtf", d.Name)
	assert.Equal(t, "application/rtf", d.ContentType)
	assert.Equal(t, `{\rtf1}`, string(d.Content))

	_, err = svc.Download(ctx, "nope.docx")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestImport(t *testing.T) {
	svc, _, _ := newTestService()
	p, err := svc.Import(context.Background(), []byte("hello"), ".TXT")
	require.NoError(t, err)
	assert.Equal(t, document.FormatTxt, p.Format)
	assert.Equal(t, "hello", string(p.Content))

	p, err = svc.Import(context.Background(), nil, ".docx")
	require.NoError(t, err)
	assert.Empty(t, p.Content)

	_, err = svc.Import(context.Background(), []byte("x"), ".pdf")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

type brokenStore struct{ blobrepo.Store }

func (brokenStore) Stat(context.Context, string) (blobrepo.Info, error) {
	return blobrepo.Info{}, errors.New("connection refused")
}

func TestExistsSurfacesStoreErrors(t *testing.T) {
	svc := New(brokenStore{}, nil, zerolog.Nop())
	ok, err := svc.Exists(context.Background(), "Report.docx")
	assert.False(t, ok)
	assert.Error(t, err)
	assert.False(t, IsNotFound(err))
}
