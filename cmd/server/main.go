package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"

	"afiya-triage/internal/embedding"
	"afiya-triage/internal/generative"
	"afiya-triage/internal/knowledge"
	"afiya-triage/internal/offline"
	"afiya-triage/internal/platform/config"
	"afiya-triage/internal/platform/database"
	"afiya-triage/internal/platform/logging"
	"afiya-triage/internal/platform/metrics"
	"afiya-triage/internal/platform/telegram"
	"afiya-triage/internal/report"
	"afiya-triage/internal/retrieval"
	"afiya-triage/internal/safety"
	"afiya-triage/internal/triage"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Configure(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// 2. Infrastructure
	db, err := database.Open(ctx, cfg.DatabaseURL, database.Options{
		MaxOpenConns: cfg.DBMaxOpenConns,
		Retries:      uint64(cfg.StartupRetries),
		Backoff:      time.Second,
	})
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied", "dialect", db.Dialect)

	// 3. Embedding model
	var backend embedding.Backend
	switch cfg.EmbeddingBackend {
	case "hash":
		backend = embedding.NewHash(cfg.EmbeddingModel, embedding.Dimension)
	default:
		backend = embedding.NewOpenAI(cfg.EmbeddingURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModel, embedding.Dimension)
	}
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		backend = embedding.NewCached(backend, rdb, cfg.EmbeddingCacheTTL)
		slog.Info("embedding cache enabled", "ttl", cfg.EmbeddingCacheTTL)
	}

	encoder := embedding.NewEncoder(backend, embedding.Options{
		BatchSize: cfg.EmbeddingBatchSize,
		Timeout:   cfg.EmbeddingTimeout,
	})
	if err := startupRetry(ctx, cfg.StartupRetries, "embedding model", encoder.Start); err != nil {
		return err
	}

	// 4. Vector store
	var store retrieval.Store
	if cfg.VectorStore == "memory" {
		store = retrieval.NewMemoryStore(cfg.QdrantCollection)
	} else {
		store = retrieval.NewQdrant(cfg.QdrantURL, cfg.QdrantAPIKey, cfg.QdrantCollection, cfg.RetrievalTimeout)
	}
	retriever := retrieval.NewRetriever(store)
	if err := startupRetry(ctx, cfg.StartupRetries, "vector store", retriever.Open); err != nil {
		return err
	}
	defer retriever.Close()

	// 5. Generative model. A failed cascade leaves the service running without analysis.
	models := generative.Models{
		Quantized:     cfg.QuantizedModel,
		FullPrecision: cfg.Model,
		Offloaded:     cfg.OffloadModel,
	}
	var rt generative.Runtime
	switch cfg.GenerativeRuntime {
	case "ollama":
		rt = generative.NewOllama(cfg.GenerativeURL, models)
	case "openai":
		rt = generative.NewOpenAI(cfg.GenerativeURL, cfg.GenerativeAPIKey, models)
	default:
		rt = generative.Disabled{}
	}
	loader := generative.NewLoader(rt, generative.Options{
		MaxInputTokens: cfg.MaxInputTokens,
		MaxNewTokens:   cfg.MaxNewTokens,
		Temperature:    cfg.Temperature,
		TopP:           cfg.TopP,
		Parallelism:    int64(cfg.GenerationParallel),
		Timeout:        cfg.GenerationTimeout,
	})
	if err := loader.Load(ctx); err != nil {
		slog.Warn("generative model unavailable, continuing without analysis", "error", err)
	}
	defer loader.Close()
	m.SetModelState(string(loader.LoadState()), generative.LoadStateNames()...)

	// 6. Services
	var alerter triage.Alerter
	if cfg.AlertsEnabled() {
		tg := telegram.NewClient(cfg.TelegramBotToken)
		alerter = report.NewService(tg, cfg.AlertChatID)
		slog.Info("emergency alerts enabled", "chat_id", cfg.AlertChatID)
	} else {
		slog.Warn("TELEGRAM_BOT_TOKEN or ALERT_TELEGRAM_CHAT_ID not set, emergency alerts disabled")
	}

	triageSvc := triage.NewService(triage.Deps{
		Encoder:   encoder,
		Retriever: retriever,
		Generator: loader,
		Safety:    safety.NewDetector(),
		Repo:      triage.NewRepository(db.DB),
		Alerter:   alerter,
		Metrics:   m,
	}, triage.Options{
		TopK:             cfg.RetrievalTopK,
		RetrievalTimeout: cfg.RetrievalTimeout,
	})
	knowledgeSvc := knowledge.NewService(knowledge.NewRepository(db.DB), encoder, retriever, m)
	offlineSvc := offline.NewService(triageSvc, knowledgeSvc, offline.NewRepository(db.DB))

	// 7. Router
	router := newRouter(cfg.APIVersion, handlers{
		triage:    triage.NewHandler(triageSvc, encoder, loader),
		knowledge: knowledge.NewHandler(knowledgeSvc),
		offline:   offline.NewHandler(offlineSvc),
	}, components{
		db:      db,
		encoder: encoder,
		vectors: retriever,
		model:   loader,
	}, m)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Port, "api_version", cfg.APIVersion)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// startupRetry retries fn on a Fibonacci schedule while a dependency comes up.
func startupRetry(ctx context.Context, retries int, what string, fn func(context.Context) error) error {
	b := retry.WithMaxRetries(uint64(retries), retry.NewFibonacci(time.Second))
	attempt := 0
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		if err := fn(ctx); err != nil {
			slog.Warn("waiting for dependency", "dependency", what, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	slog.Info("dependency ready", "dependency", what)
	return nil
}
