package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joeybe1/secsplit"
	"github.com/joeybe1/secsplit/blend"
	"github.com/joeybe1/secsplit/llm"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (YAML)")
	addr := flag.String("addr", ":8080", "Listen address")
	flag.Parse()

	// Structured JSON logging.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cfg, err := secsplit.LoadConfig(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	// Override from environment variables.
	if v := os.Getenv("SECSPLIT_DB_PATH"); v != "" {
		cfg.StorePath = v
	}

	var embedCfg llm.Config
	embedCfg.Provider = os.Getenv("SECSPLIT_EMBED_PROVIDER")
	embedCfg.Model = os.Getenv("SECSPLIT_EMBED_MODEL")
	embedCfg.BaseURL = os.Getenv("SECSPLIT_EMBED_BASE_URL")
	embedCfg.APIKey = os.Getenv("SECSPLIT_EMBED_API_KEY")
	if embedCfg.APIKey == "" && embedCfg.Provider == "openai" {
		embedCfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	apiKey := os.Getenv("SECSPLIT_API_KEY")
	corsOrigins := os.Getenv("SECSPLIT_CORS_ORIGINS")

	var embedder blend.Embedder
	if cfg.EnableEmbeddings {
		provider, err := llm.NewProvider(embedCfg)
		if err != nil {
			slog.Error("configuring embedding provider", "error", err)
			os.Exit(1)
		}
		embedder = llm.AsEmbedder(provider)
	}

	// Passing a nil VectorIndex makes New wire the embedded store's own
	// vec0 table as the Blender's semantic leg (see secsplit.New).
	engine, err := secsplit.New(cfg, embedder, nil)
	if err != nil {
		slog.Error("creating engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	h := newHandler(engine)
	mux := http.NewServeMux()

	mux.HandleFunc("POST /files", h.handleIngest)
	mux.HandleFunc("GET /files/{path...}/tree", h.handleTree)
	mux.HandleFunc("GET /files/{path...}/recompose", h.handleRecompose)
	mux.HandleFunc("GET /files/{path...}/validate", h.handleValidate)
	mux.HandleFunc("DELETE /files/{path...}", h.handleDelete)
	mux.HandleFunc("GET /sections/{id}", h.handleGetSection)
	mux.HandleFunc("GET /sections/{id}/first-child", h.handleFirstChild)
	mux.HandleFunc("GET /sections/{id}/next-sibling", h.handleNextSibling)
	mux.HandleFunc("GET /search", h.handleSearch)
	mux.HandleFunc("GET /search/blended", h.handleSearchBlended)
	mux.HandleFunc("POST /compose", h.handleCompose)
	mux.HandleFunc("POST /integrity", h.handleIntegrity)
	mux.HandleFunc("GET /health", h.handleHealth)

	// Middleware chain: recovery -> cors -> auth -> logging -> mux
	var handler http.Handler = mux
	handler = logMiddleware(handler)
	handler = authMiddleware(apiKey, handler)
	handler = corsMiddleware(corsOrigins, handler)
	handler = recoveryMiddleware(handler)

	srv := &http.Server{
		Addr:         *addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // streaming responses (ingest can be long)
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}
