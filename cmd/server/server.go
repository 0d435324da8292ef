package server

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/paularlott/cli"

	"github.com/martinsuchenak/labeld/internal/api"
	"github.com/martinsuchenak/labeld/internal/config"
	"github.com/martinsuchenak/labeld/internal/export"
	"github.com/martinsuchenak/labeld/internal/log"
	"github.com/martinsuchenak/labeld/internal/matching"
	"github.com/martinsuchenak/labeld/internal/mcp"
	"github.com/martinsuchenak/labeld/internal/qr"
	"github.com/martinsuchenak/labeld/internal/storage"
	"github.com/martinsuchenak/labeld/internal/worker"
)

const shutdownTimeout = 10 * time.Second

// ServerConfig holds everything RunServer needs.
type ServerConfig struct {
	Config     *config.Config
	Store      storage.Storage
	Matcher    *matching.CachedMatcher
	Scheduler  *worker.Scheduler
	MCPServer  *mcp.Server
	APIHandler *api.Handler
}

// Build opens the store and wires the engines, the API and the MCP server.
// The caller owns the returned store.
func Build(cfg *config.Config) (*ServerConfig, error) {
	store, err := storage.NewSQLiteStorage(cfg.Server.DataDir)
	if err != nil {
		return nil, err
	}
	log.Info("Storage initialized", "backend", "SQLite", "path", store.Path())

	generator, err := qr.NewGenerator(cfg.Export.QRSize, cfg.Export.QRLevel)
	if err != nil {
		store.Close()
		return nil, err
	}

	engine := matching.NewEngine(store)
	cached := matching.NewCachedMatcher(engine, cfg.Match.CacheTTL)
	exports := export.NewService(store, engine, generator, cfg.Export.Parallelism)

	scheduler := worker.NewScheduler()
	err = scheduler.Register("match-cache-sweep", cfg.Match.SweepSchedule, func(ctx context.Context) error {
		if n := cached.Sweep(); n > 0 {
			log.Debug("Swept match cache", "expired", n, "remaining", cached.Len())
		}
		return nil
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	page, margins := cfg.Export.Page(), cfg.Export.Margins()
	return &ServerConfig{
		Config:     cfg,
		Store:      store,
		Matcher:    cached,
		Scheduler:  scheduler,
		MCPServer:  mcp.NewServer(store, engine, exports, mcp.Defaults{Page: page, Margins: margins}, cfg.Server.MCPAuthToken),
		APIHandler: api.NewHandler(store, engine, cached, exports, api.Options{Page: page, Margins: margins}),
	}, nil
}

// Handler returns the routed and wrapped HTTP handler.
func (sc *ServerConfig) Handler() http.Handler {
	mux := http.NewServeMux()

	sc.APIHandler.RegisterRoutes(mux)
	mux.HandleFunc("/mcp", sc.MCPServer.GetHTTPHandler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	var handler http.Handler = mux
	if sc.Config.Server.IsAPIAuthEnabled() {
		handler = api.AuthMiddleware(sc.Config.Server.APIAuthToken, "/api/", handler)
	}
	handler = api.LoggingMiddleware(handler)
	return api.SecurityHeadersMiddleware(handler)
}

// RunServer serves until ctx is cancelled or SIGINT/SIGTERM arrives.
func RunServer(ctx context.Context, sc *ServerConfig) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:              sc.Config.Server.ListenAddr,
		Handler:           sc.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sc.Scheduler.Start()
	defer sc.Scheduler.Stop()

	go func() {
		<-ctx.Done()
		log.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("Graceful shutdown failed", "error", err)
			server.Close()
		}
	}()

	addr := sc.Config.Server.ListenAddr
	log.Info("Starting labeld server", "addr", addr)
	log.Info("API available", "url", "http://localhost"+addr+"/api/")
	log.Info("MCP available", "url", "http://localhost"+addr+"/mcp")
	if sc.Config.Server.IsAPIAuthEnabled() {
		log.Info("API authentication enabled")
	}
	sc.MCPServer.LogStartup()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Error("Server error")
		return err
	}

	log.Info("Server stopped")
	return nil
}

func Command() *cli.Command {
	return &cli.Command{
		Name:        "server",
		Usage:       "Start the labeld server",
		Description: "Start the HTTP server with the label API and MCP endpoints",
		Flags:       config.GetFlags(),
		Run: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.FromCommand(cmd)
			if err != nil {
				return err
			}
			log.Info("Configuration loaded", "data_dir", cfg.Server.DataDir, "listen_addr", cfg.Server.ListenAddr,
				"page", cfg.Export.PageSize, "match_cache_ttl", cfg.Match.CacheTTL)

			sc, err := Build(cfg)
			if err != nil {
				log.Error("Failed to initialize server", "error", err)
				return err
			}
			defer sc.Store.Close()

			return RunServer(ctx, sc)
		},
	}
}
