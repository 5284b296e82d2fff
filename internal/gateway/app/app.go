package app

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"

	"github.com/rs/zerolog"

	"docbridge/internal/gateway/config"
	"docbridge/internal/gateway/handler"
	blobrepo "docbridge/internal/gateway/repository/blob"
	"docbridge/internal/gateway/server"
	"docbridge/internal/gateway/service/documents"
	"docbridge/internal/gateway/service/events"
	"docbridge/internal/gateway/service/filemanager"
	"docbridge/internal/logging"
)

type App struct {
	server *server.Server
	closer io.Closer
	log    zerolog.Logger
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	log := logging.New(os.Stderr, cfg.LogLevel, logging.Format(cfg.LogFormat))

	store, closer, err := openStore(ctx, cfg, logging.Component(log, "store"))
	if err != nil {
		return nil, err
	}
	return &App{
		server: server.New(cfg.Port, NewHandler(store, cfg.Documents, log), log),
		closer: closer,
		log:    log,
	}, nil
}

// NewHandler wires services and handlers over store into the gateway's
// HTTP handler.
func NewHandler(store blobrepo.Store, docs config.DocumentsConfig, log zerolog.Logger) http.Handler {
	broker := events.NewBroker()
	documentsSvc := documents.New(store, broker, logging.Component(log, "documents"))
	fileManagerSvc := filemanager.New(store, broker, logging.Component(log, "filemanager"))

	documentsHandler := handler.NewDocumentsHandler(documentsSvc, docs.ExistsFailClosed, logging.Component(log, "documents"))
	fileManagerHandler := handler.NewFileManagerHandler(fileManagerSvc, logging.Component(log, "filemanager"))
	eventsHandler := handler.NewEventsHandler(broker, logging.Component(log, "events"))

	return server.NewMux(documentsHandler, fileManagerHandler, eventsHandler, logging.Component(log, "http"))
}

func (a *App) Start() error {
	return a.server.Start()
}

func (a *App) Serve(ln net.Listener) error {
	return a.server.Serve(ln)
}

func (a *App) Log() zerolog.Logger {
	return a.log
}

func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	if a.closer != nil {
		if cerr := a.closer.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
