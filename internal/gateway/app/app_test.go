package app

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"docbridge/internal/gateway/config"
	"docbridge/internal/gateway/handler"
	blobrepo "docbridge/internal/gateway/repository/blob"
)

func TestChangeFeedReceivesPersist(t *testing.T) {
	srv := httptest.NewServer(NewHandler(blobrepo.NewMemoryStore(), config.DocumentsConfig{}, zerolog.Nop()))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/documents/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial events: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var frame handler.Frame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read subscribed frame: %v", err)
	}
	if frame.Type != "subscribed" {
		t.Fatalf("first frame = %q, want subscribed", frame.Type)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("documentName", "Report.docx")
	fw, _ := mw.CreateFormFile("data", "blob")
	_, _ = fw.Write([]byte("content"))
	_ = mw.Close()
	resp, err := http.Post(srv.URL+"/documents/persist", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("persist: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("persist status = %d", resp.StatusCode)
	}

	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read event frame: %v", err)
	}
	if frame.Type != "event" || frame.Event == nil {
		t.Fatalf("frame = %+v, want event", frame)
	}
	if frame.Event.Name != "Report.docx" || frame.Event.Kind != "persisted" || frame.Event.Size != 7 {
		t.Fatalf("event = %+v", frame.Event)
	}
}

func TestHealthAndCORS(t *testing.T) {
	srv := httptest.NewServer(NewHandler(blobrepo.NewMemoryStore(), config.DocumentsConfig{}, zerolog.Nop()))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("allow-origin = %q", got)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatalf("missing request id header")
	}
}

func TestOpenStoreWrapsCache(t *testing.T) {
	cfg := &config.Config{
		Storage: config.StorageConfig{Backend: config.BackendMemory},
		Cache:   config.CacheConfig{Enabled: true, TTL: time.Minute, MaxEntries: 8},
	}
	store, closer, err := openStore(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	defer closer.Close()
	if _, ok := store.(*blobrepo.MemoryStore); ok {
		t.Fatalf("expected cached store, got bare memory store")
	}

	cfg.Cache.Enabled = false
	store, _, err = openStore(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	if _, ok := store.(*blobrepo.MemoryStore); !ok {
		t.Fatalf("store = %T, want *blob.MemoryStore", store)
	}

	cfg.Storage.Backend = "ftp"
	if _, _, err := openStore(context.Background(), cfg, zerolog.Nop()); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}
