package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/chatbot/internal/ai"
	"github.com/suPer8Hu/chatbot/internal/chat"
	"github.com/suPer8Hu/chatbot/internal/config"
	"github.com/suPer8Hu/chatbot/internal/history"
	"github.com/suPer8Hu/chatbot/internal/httpapi"
	"github.com/suPer8Hu/chatbot/internal/httpapi/handlers"
	"github.com/suPer8Hu/chatbot/internal/store/rabbitmq"
)

func main() {
	cfg := config.Load()

	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer func() { _ = cleanup() }()
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func newRegistry(cfg config.Config) *ai.Registry {
	reg := ai.NewRegistry()

	reg.Register("bedrock", func(ctx context.Context, model string) (ai.Provider, error) {
		awsCfg, err := cfg.LoadAWS(ctx)
		if err != nil {
			return nil, err
		}
		return ai.NewBedrockProvider(awsCfg, model), nil
	})
	retry := ai.DefaultRetry
	retry.MaxAttempts = cfg.AIMaxAttempts

	reg.Register("ollama", func(ctx context.Context, model string) (ai.Provider, error) {
		_ = ctx
		p := ai.NewOllamaProvider(cfg.OllamaBaseURL, model)
		p.Retry = retry
		return p, nil
	})
	reg.Register("openrouter", func(ctx context.Context, model string) (ai.Provider, error) {
		_ = ctx
		p := ai.NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, model, cfg.OpenRouterSiteURL, cfg.OpenRouterAppName)
		p.Retry = retry
		return p, nil
	})
	return reg
}

func modelFor(cfg config.Config) string {
	switch strings.ToLower(cfg.AIProvider) {
	case "ollama":
		return cfg.OllamaModel
	case "openrouter":
		return cfg.OpenRouterModel
	default:
		return cfg.BedrockModelID
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	store, err := history.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()

	inference, err := newRegistry(cfg).Client(ctx, cfg.AIProvider, modelFor(cfg), logger)
	if err != nil {
		return fmt.Errorf("ai provider: %w", err)
	}

	var pub handlers.TurnPublisher
	if cfg.RabbitURL != "" {
		p, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			return fmt.Errorf("rabbit publisher: %w", err)
		}
		defer p.Close()
		pub = p
	}

	svc := chat.NewService(store, inference, logger)
	h := handlers.NewHandler(svc, store, pub, cfg.SystemPrompt, logger)

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     httpapi.NewRouter(h, logger),
		ReadTimeout: 5 * time.Second,
		// model calls retry with backoff and can take a while
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started", "addr", cfg.HTTPAddr, "provider", cfg.AIProvider, "history", cfg.HistoryDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return err
	case <-sigCtx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
