// Package app ties the long-running components of the webhook service
// together and owns their lifecycle.
package app

import (
	"log/slog"

	"github.com/diffscope/diffscope/internal/config"
	"github.com/diffscope/diffscope/internal/core"
	"github.com/diffscope/diffscope/internal/db"
	"github.com/diffscope/diffscope/internal/server"
)

// App holds the running components of the webhook service.
type App struct {
	cfg        *config.Config
	server     *server.Server
	dispatcher core.JobDispatcher
	dbConn     *db.DB
	logger     *slog.Logger
}

// NewApp assembles the application from its wired components.
func NewApp(cfg *config.Config, srv *server.Server, dispatcher core.JobDispatcher, dbConn *db.DB, logger *slog.Logger) *App {
	return &App{
		cfg:        cfg,
		server:     srv,
		dispatcher: dispatcher,
		dbConn:     dbConn,
		logger:     logger,
	}
}

// Start runs the HTTP server and blocks until it stops.
func (a *App) Start() error {
	a.logger.Info("starting diffscope",
		"server_port", a.cfg.Server.Port,
		"max_workers", a.cfg.Review.MaxWorkers,
		"provider", a.cfg.AI.Provider,
	)
	return a.server.Start()
}

// Stop shuts the components down in dependency order: the server first so no
// new jobs arrive, then the dispatcher so running reviews finish.
func (a *App) Stop() error {
	a.logger.Info("shutting down diffscope")

	serverErr := a.server.Stop()
	if serverErr != nil {
		a.logger.Error("error during HTTP server shutdown", "error", serverErr)
	}

	a.dispatcher.Stop()

	if err := a.dbConn.Close(); err != nil {
		a.logger.Error("error closing database", "error", err)
	}

	if serverErr != nil {
		return serverErr
	}
	a.logger.Info("diffscope stopped")
	return nil
}
