// Package storageclient talks to the storage proxy's HTTP API.
package storageclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"docbridge/internal/document"
	"docbridge/internal/gateway/service/events"
)

var (
	ErrNotFound          = errors.New("document not found")
	ErrUnsupportedFormat = document.ErrUnsupportedFormat
)

// StatusError is returned for non-2xx responses without a dedicated sentinel.
type StatusError struct {
	Op      string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Message)
}

type Client struct {
	baseURL *url.URL
	http    *http.Client
	dialer  *websocket.Dialer
	log     zerolog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	raw := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if raw == "" {
		return nil, fmt.Errorf("storage proxy url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse storage proxy url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("storage proxy url must be http or https: %s", raw)
	}
	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: 30 * time.Second},
		dialer:  websocket.DefaultDialer,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) endpoint(p string) string {
	return c.baseURL.String() + p
}

// CheckExists reports whether a document is stored under name. Unlike
// Exists it surfaces transport and storage errors.
func (c *Client) CheckExists(ctx context.Context, name string) (bool, error) {
	var out struct {
		Exists bool `json:"exists"`
	}
	if err := c.postJSON(ctx, "exists", "/documents/exists", map[string]string{"fileName": name}, &out); err != nil {
		return false, err
	}
	return out.Exists, nil
}

// Exists never fails: errors are logged and reported as "does not exist".
func (c *Client) Exists(ctx context.Context, name string) bool {
	ok, err := c.CheckExists(ctx, name)
	if err != nil {
		c.log.Warn().Err(err).Str("document", name).Msg("existence check failed")
		return false
	}
	return ok
}

func (c *Client) Fetch(ctx context.Context, name string) (*document.Payload, error) {
	var p document.Payload
	if err := c.postJSON(ctx, "fetch", "/documents/fetch", map[string]string{"documentName": name}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Persist uploads content as a multipart form, overwriting the stored blob.
func (c *Client) Persist(ctx context.Context, name string, content []byte) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("documentName", name); err != nil {
		return err
	}
	fw, err := mw.CreateFormFile("data", "blob")
	if err != nil {
		return err
	}
	if _, err := fw.Write(content); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/documents/persist"), &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("persist %s: %w", name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotModified {
		return nil
	}
	if err := checkStatus("persist", resp); err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Download is the raw stored document as served for a client-side save.
type Download struct {
	Name        string
	ContentType string
	Content     []byte
}

func (c *Client) Download(ctx context.Context, name string) (*Download, error) {
	q := url.Values{"documentName": {name}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/documents/download?"+q.Encode()), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", name, err)
	}
	defer resp.Body.Close()
	if err := checkStatus("download", resp); err != nil {
		return nil, err
	}
	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", name, err)
	}
	d := &Download{
		Name:        name,
		ContentType: resp.Header.Get("Content-Type"),
		Content:     content,
	}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		d.Name = params["filename"]
	}
	return d, nil
}

// Import turns pasted content of the given extension into an editor payload.
func (c *Client) Import(ctx context.Context, content []byte, ext string) (*document.Payload, error) {
	in := struct {
		Content []byte `json:"content"`
		Type    string `json:"type"`
	}{Content: content, Type: ext}
	var p document.Payload
	if err := c.postJSON(ctx, "import", "/documents/import", in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Watch subscribes to the proxy's change feed. The channel closes when ctx
// is done or the connection drops.
func (c *Client) Watch(ctx context.Context) (<-chan events.Event, error) {
	wsURL := *c.baseURL
	switch wsURL.Scheme {
	case "https":
		wsURL.Scheme = "wss"
	default:
		wsURL.Scheme = "ws"
	}
	wsURL.Path = strings.TrimRight(wsURL.Path, "/") + "/documents/events"

	conn, resp, err := c.dialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, &StatusError{Op: "watch", Status: resp.StatusCode}
		}
		return nil, fmt.Errorf("watch: %w", err)
	}

	out := make(chan events.Event, 16)
	readerDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		case <-readerDone:
		}
		_ = conn.Close()
	}()
	go func() {
		defer close(out)
		defer close(readerDone)
		for {
			var frame struct {
				Type  string        `json:"type"`
				Event *events.Event `json:"event"`
			}
			if err := conn.ReadJSON(&frame); err != nil {
				if ctx.Err() == nil {
					c.log.Warn().Err(err).Msg("change feed closed")
				}
				return
			}
			if frame.Type != "event" || frame.Event == nil {
				continue
			}
			select {
			case out <- *frame.Event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (c *Client) postJSON(ctx context.Context, op, path string, in, out any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	if err := checkStatus(op, resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func checkStatus(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	var body struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(raw))
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case http.StatusUnsupportedMediaType:
		return fmt.Errorf("%s: %w", op, ErrUnsupportedFormat)
	}
	return &StatusError{Op: op, Status: resp.StatusCode, Message: body.Error}
}
