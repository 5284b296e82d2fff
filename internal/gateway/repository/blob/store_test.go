package blob

import (
	"context"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore checks the behaviour every backend must share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	ok, err := Exists(ctx, s, "Files/Report.docx")
	require.NoError(t, err)
	assert.False(t, ok, "empty store reports existence")

	_, err = s.Get(ctx, "Files/Report.docx")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Stat(ctx, "Files/Report.docx")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "Files/Report.docx", []byte("v1")))
	require.NoError(t, s.Put(ctx, "Files/team/Plan.rtf", []byte("plan")))
	require.NoError(t, s.Put(ctx, "Other/ignored.txt", []byte("x")))

	ok, err = Exists(ctx, s, "Files/Report.docx")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Put(ctx, "Files/Report.docx", []byte("version two")))
	got, err := s.Get(ctx, "Files/Report.docx")
	require.NoError(t, err)
	assert.Equal(t, "version two", string(got))

	info, err := s.Stat(ctx, "/Files/Report.docx")
	require.NoError(t, err)
	assert.Equal(t, "Files/Report.docx", info.Key)
	assert.EqualValues(t, len("version two"), info.Size)

	list, err := s.List(ctx, "Files/")
	require.NoError(t, err)
	keys := make([]string, 0, len(list))
	for _, it := range list {
		keys = append(keys, it.Key)
	}
	assert.Equal(t, []string{"Files/Report.docx", "Files/team/Plan.rtf"}, keys)

	require.NoError(t, s.Delete(ctx, "Files/Report.docx"))
	ok, err = Exists(ctx, s, "Files/Report.docx")
	require.NoError(t, err)
	assert.False(t, ok, "deleted blob still exists")
	assert.ErrorIs(t, s.Delete(ctx, "Files/Report.docx"), ErrNotFound)

	require.NoError(t, s.Put(ctx, "Files/empty.txt", nil))
	got, err = s.Get(ctx, "Files/empty.txt")
	require.NoError(t, err)
	assert.Empty(t, got)

	assert.Error(t, s.Put(ctx, "  ", []byte("x")))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestDiskStore(t *testing.T) {
	exerciseStore(t, NewDiskStore(t.TempDir()))
}

func TestDiskStoreRejectsTraversal(t *testing.T) {
	s := NewDiskStore(t.TempDir())
	err := s.Put(context.Background(), "Files/../../etc/passwd", []byte("x"))
	assert.Error(t, err)
}

func TestS3StoreAgainstFakeS3(t *testing.T) {
	faker := gofakes3.New(s3mem.New())
	ts := httptest.NewServer(faker.Server())
	defer ts.Close()

	s, err := NewS3Store(S3Config{
		Endpoint:  strings.TrimPrefix(ts.URL, "http://"),
		AccessKey: "docbridge",
		SecretKey: "docbridge-secret",
		Bucket:    "documents",
	})
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestS3StoreRecoversFromFailedBucketCheck(t *testing.T) {
	faker := gofakes3.New(s3mem.New())
	ts := httptest.NewServer(faker.Server())
	defer ts.Close()

	s, err := NewS3Store(S3Config{
		Endpoint:  strings.TrimPrefix(ts.URL, "http://"),
		AccessKey: "docbridge",
		SecretKey: "docbridge-secret",
		Bucket:    "documents",
	})
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Stat(cancelled, "Files/Report.docx")
	require.Error(t, err)

	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "Files/Report.docx", []byte("v1")))
	got, err := s.Get(ctx, "Files/Report.docx")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(got))
}

func TestNewS3StoreValidatesConfig(t *testing.T) {
	_, err := NewS3Store(S3Config{})
	assert.Error(t, err)
	_, err = NewS3Store(S3Config{Endpoint: "localhost:9000"})
	assert.Error(t, err)
	_, err = NewS3Store(S3Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"})
	assert.Error(t, err)
}

func TestPostgresStore(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("DOCS_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("DOCS_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	s, err := OpenPostgresStore(ctx, dsn)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.ensureSchema(ctx))
	_, err = s.db.ExecContext(ctx, `DELETE FROM document_blobs`)
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `Files/a\_b\%`, escapeLike(`Files/a_b%`))
}
