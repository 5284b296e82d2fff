package server

import (
	"net/http"

	"github.com/rs/zerolog"

	"docbridge/internal/gateway/handler"
	"docbridge/internal/gateway/middleware"
)

func NewMux(
	documentsHandler *handler.DocumentsHandler,
	fileManagerHandler *handler.FileManagerHandler,
	eventsHandler *handler.EventsHandler,
	log zerolog.Logger,
) http.Handler {
	mux := http.NewServeMux()

	// Editor
	mux.HandleFunc("/documents/exists", documentsHandler.HandleExists)
	mux.HandleFunc("/documents/fetch", documentsHandler.HandleFetch)
	mux.HandleFunc("/documents/persist", documentsHandler.HandlePersist)
	mux.HandleFunc("/documents/download", documentsHandler.HandleDownload)
	mux.HandleFunc("/documents/import", documentsHandler.HandleImport)
	mux.HandleFunc("/documents/events", eventsHandler.HandleEvents)

	// File browser
	mux.HandleFunc("/filemanager/operations", fileManagerHandler.HandleOperations)
	mux.HandleFunc("/filemanager/download", fileManagerHandler.HandleDownload)

	mux.HandleFunc("/healthz", handler.HandleHealth)

	return middleware.RequestLog(log)(middleware.CORS(mux))
}
