package main

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docbridge/internal/editor"
	"docbridge/internal/gateway/app"
	"docbridge/internal/gateway/config"
	blobrepo "docbridge/internal/gateway/repository/blob"
	"docbridge/internal/storageclient"
)

func TestFlushSavesLastEditAfterAutosaves(t *testing.T) {
	logger = zerolog.Nop()
	store := blobrepo.NewMemoryStore()
	srv := httptest.NewServer(app.NewHandler(store, config.DocumentsConfig{}, zerolog.Nop()))
	defer srv.Close()
	client, err := storageclient.New(srv.URL)
	require.NoError(t, err)

	s := newEditSession(client)
	defer s.ctrl.Close()
	require.NoError(t, s.ctrl.Replace("notes.txt", nil))

	for i := 0; i < 10; i++ {
		require.NoError(t, s.ctrl.Update([]byte(fmt.Sprintf("edit %d", i))))
		require.Equal(t, editor.TickStarted, s.ctrl.Tick())
		require.Eventually(t, func() bool { return !s.ctrl.Snapshot().Uploading }, 2*time.Second, 5*time.Millisecond)
	}

	require.NoError(t, s.ctrl.Update([]byte("final")))
	require.NoError(t, s.flush(5*time.Second))

	got, err := client.Fetch(context.Background(), "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "final", string(got.Content))
	assert.False(t, s.ctrl.Snapshot().Dirty)
}
