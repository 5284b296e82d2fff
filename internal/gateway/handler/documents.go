package handler

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"docbridge/internal/document"
	"docbridge/internal/gateway/service/documents"
)

// DocumentsHandler serves the editor-facing document endpoints.
type DocumentsHandler struct {
	svc        *documents.Service
	failClosed bool
	log        zerolog.Logger
}

func NewDocumentsHandler(svc *documents.Service, failClosed bool, log zerolog.Logger) *DocumentsHandler {
	return &DocumentsHandler{svc: svc, failClosed: failClosed, log: log}
}

type existsRequest struct {
	FileName string `json:"fileName"`
}

type existsResponse struct {
	Exists bool `json:"exists"`
}

type fetchRequest struct {
	DocumentName string `json:"documentName"`
}

type importRequest struct {
	Content []byte `json:"content"`
	Type    string `json:"type"`
}

func (h *DocumentsHandler) HandleExists(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var in existsRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
		return
	}
	name := strings.TrimSpace(in.FileName)
	if name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "fileName is required"})
		return
	}
	exists, err := h.svc.Exists(r.Context(), name)
	if err != nil {
		if errors.Is(err, document.ErrInvalidName) {
			writeError(w, h.log, err)
			return
		}
		if h.failClosed {
			h.log.Error().Err(err).Str("document", name).Msg("existence check failed")
			writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "storage unavailable"})
			return
		}
		h.log.Warn().Err(err).Str("document", name).Msg("existence check failed; reporting name as free")
		exists = false
	}
	writeJSON(w, http.StatusOK, existsResponse{Exists: exists})
}

func (h *DocumentsHandler) HandleFetch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var in fetchRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
		return
	}
	payload, err := h.svc.Fetch(r.Context(), in.DocumentName)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (h *DocumentsHandler) HandlePersist(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid multipart body"})
		return
	}
	name := strings.TrimSpace(r.FormValue("documentName"))
	if name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "documentName is required"})
		return
	}
	file, _, err := r.FormFile("data")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "data file is required"})
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "read upload: " + err.Error()})
		return
	}
	if err := h.svc.Persist(r.Context(), name, content); err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *DocumentsHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	d, err := h.svc.Download(r.Context(), r.URL.Query().Get("documentName"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeAttachment(w, d.Name, d.ContentType, d.Content)
}

func (h *DocumentsHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var in importRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
		return
	}
	payload, err := h.svc.Import(r.Context(), in.Content, in.Type)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func writeAttachment(w http.ResponseWriter, name, contentType string, content []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(content)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}
