package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sahaay-health/sahaay/backend/internal/config"
	"github.com/sahaay-health/sahaay/backend/internal/handler"
	"github.com/sahaay-health/sahaay/backend/internal/model/knowledge"
	"github.com/sahaay-health/sahaay/backend/internal/service/ai"
	"github.com/sahaay-health/sahaay/backend/internal/service/chat"
	"github.com/sahaay-health/sahaay/backend/internal/service/dispatch"
	"github.com/sahaay-health/sahaay/backend/internal/service/upload"
	"github.com/sahaay-health/sahaay/backend/internal/service/vision"
	"github.com/sahaay-health/sahaay/backend/pkg/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load configuration", err)
	}

	if err := log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputDir); err != nil {
		log.Fatal("failed to initialise logger", err)
	}
	defer log.Sync()

	if envErr != nil {
		log.Warnw("no .env file loaded, using system environment only", "error", envErr)
	}

	topics, err := knowledge.Build(cfg.Knowledge.File)
	if err != nil {
		log.Fatal("failed to load knowledge table", err)
	}
	log.Infow("knowledge table loaded", "topics", len(topics.List()))

	// Generation failures surface per message, so a missing model does not stop startup.
	var generator dispatch.Generator
	aiService, err := ai.NewService(ctx, cfg.AI)
	if err != nil {
		log.Warnw("generative responder unavailable, only knowledge replies will succeed",
			"provider", cfg.AI.Provider, "error", err)
	} else {
		generator = aiService
		log.Infow("generative responder ready", "provider", cfg.AI.Provider, "model", cfg.AI.Model)
	}

	uploads, err := upload.NewStore(ctx, cfg.Upload)
	if err != nil {
		log.Fatal("failed to initialise upload storage", err)
	}

	classifier := vision.NewClient(cfg.Classifier)
	chatService := chat.NewService(dispatch.New(topics, generator), classifier, uploads)

	router := handler.NewRouter(topics, chatService)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Infow("Sahaay backend listening", "addr", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatal("server error", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
