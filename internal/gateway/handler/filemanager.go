package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	blobrepo "docbridge/internal/gateway/repository/blob"
	"docbridge/internal/gateway/service/filemanager"
)

type FileManagerHandler struct {
	svc *filemanager.Service
	log zerolog.Logger
}

func NewFileManagerHandler(svc *filemanager.Service, log zerolog.Logger) *FileManagerHandler {
	return &FileManagerHandler{svc: svc, log: log}
}

func (h *FileManagerHandler) HandleOperations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req filemanager.Request
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, filemanager.Response{
			Error: &filemanager.ErrorDetails{Code: "400", Message: "invalid json body"},
		})
		return
	}
	resp, err := h.svc.Handle(r.Context(), req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, filemanager.Response{
			Error: &filemanager.ErrorDetails{Code: "400", Message: err.Error()},
		})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleDownload reads the widget's form post, whose downloadInput field
// carries the selection as JSON.
func (h *FileManagerHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	raw := r.FormValue("downloadInput")
	if raw == "" {
		http.Error(w, "downloadInput is required", http.StatusBadRequest)
		return
	}
	var req filemanager.DownloadRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		http.Error(w, "invalid downloadInput", http.StatusBadRequest)
		return
	}
	archive, err := h.svc.Download(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, blobrepo.ErrNotFound):
			http.Error(w, "not found", http.StatusNotFound)
		case errors.Is(err, filemanager.ErrInvalidRequest):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			h.log.Error().Err(err).Msg("file download failed")
			http.Error(w, "storage unavailable", http.StatusInternalServerError)
		}
		return
	}
	writeAttachment(w, archive.Name, archive.ContentType, archive.Content)
}
