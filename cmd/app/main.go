package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"delta-backend/internal/config"
	"delta-backend/internal/domain/ports/adapter"
	aiAdapters "delta-backend/internal/infra/adapters/ai"
	"delta-backend/internal/infra/adapters/media"
	pg "delta-backend/internal/infra/db/postgres"
	"delta-backend/internal/infra/logging"
	"delta-backend/internal/infra/metrics"
	"delta-backend/internal/infra/modeling"
	red "delta-backend/internal/infra/redis"
	"delta-backend/internal/infra/web"
	"delta-backend/internal/infra/worker"
	"delta-backend/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (relaxed validation, console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		if !cfg.Runtime.Dev {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		logger.Warn().Err(err).Msg("postgres unavailable, running stateless")
		pool = nil
	}
	if pool != nil {
		defer pool.Close()
	}

	// ---- Redis (optional) ----
	var summaryCache usecase.SummaryCache
	var rateLimiter *red.RateLimiter
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, caching and rate limiting disabled")
		} else {
			defer redisClient.Close()
			summaryCache = red.NewSummaryCache(redisClient, cfg.Redis.TTL)
			rateLimiter = red.NewRateLimiter(redisClient)
		}
	}

	// ---- AI provider (Gemini -> OpenAI-compatible) ----
	var provider adapter.LLMProvider
	switch {
	case cfg.AI.GeminiKey != "" || cfg.AI.Project != "":
		provider, err = aiAdapters.NewGeminiProvider(ctx, aiAdapters.GeminiConfig{
			APIKey:   cfg.AI.GeminiKey,
			Model:    cfg.AI.Model,
			Project:  cfg.AI.Project,
			Location: cfg.AI.Location,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("gemini provider init failed")
		}
		logger.Info().Str("model", cfg.AI.Model).Msg("ai provider: gemini")
	case cfg.AI.OpenAIKey != "":
		provider, err = aiAdapters.NewOpenAICompatProvider(cfg.AI.OpenAIKey, cfg.AI.Model, cfg.AI.OpenAIBaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("openai provider init failed")
		}
		logger.Info().Str("model", cfg.AI.Model).Msg("ai provider: openai compatible")
	default:
		logger.Fatal().Msg("no AI provider configured: set ai.gemini_key, ai.project or ai.openai_key")
	}
	provider = aiAdapters.NewLimitedLLM(provider, cfg.AI.ConcurrentLimit)

	llmSvc := usecase.NewLLMService(provider, logger)

	// ---- Background jobs ----
	wpool := worker.NewPool(cfg.Modeling.Workers, logger)
	wpool.Start(ctx)
	defer wpool.Stop()

	runner := modeling.NewExternalRunner(cfg.Modeling.DataDir, cfg.Modeling.TemplatePath, cfg.Modeling.ToolBinary, logger)

	var jobUC usecase.JobUseCase
	var chatUC usecase.ChatUseCase
	var userUC usecase.UserUseCase
	if pool != nil {
		jobRepo := pg.NewPostgresJobRepo(pool)
		jobUC = usecase.NewJobUseCase(jobRepo, wpool, runner, logger)
		if n, err := jobUC.CleanupStalledJobs(ctx); err != nil {
			logger.Error().Err(err).Msg("stalled job sweep failed")
		} else if n > 0 {
			logger.Warn().Int("count", n).Msg("marked stalled jobs from previous run")
		}

		userRepo := pg.NewPostgresUserRepo(pool)
		convRepo := pg.NewPostgresConversationRepo(pool)
		msgRepo := pg.NewPostgresMessageRepo(pool)
		txMgr := pg.NewTxManager(pool)

		userUC = usecase.NewUserUseCase(userRepo, logger)
		tools := usecase.NewToolRunner(jobUC, logger)
		chatUC = usecase.NewChatUseCase(llmSvc, tools, convRepo, msgRepo, txMgr, summaryCache, cfg.AI.HistoryWindow, logger)
	} else {
		// Stateless dev mode: chat works without persistence, jobs are off.
		tools := usecase.NewToolRunner(nil, logger)
		chatUC = usecase.NewChatUseCase(llmSvc, tools, nil, nil, nil, nil, cfg.AI.HistoryWindow, logger)
		jobUC = usecase.NewJobUseCase(nil, nil, nil, logger)
		userUC = nil
	}

	// ---- Media ----
	var tts web.TTSSynthesizer
	var image web.ImageGenerator
	if key := mediaKey(cfg.Media.TTSAPIKey, cfg.AI.GeminiKey); key != "" {
		tts = media.NewTTSClient(key)
	}
	if key := mediaKey(cfg.Media.ImageAPIKey, cfg.AI.GeminiKey); key != "" {
		image = media.NewImageClient(key)
	}

	// ---- HTTP ----
	auth := web.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	srv := web.NewServer(userUC, chatUC, jobUC, auth, tts, image, rateLimiter, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server stopped")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sig:
		logger.Info().Str("signal", s.String()).Msg("shutting down")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown failed")
	}
}

func mediaKey(specific, fallback string) string {
	if specific != "" {
		return specific
	}
	return fallback
}
