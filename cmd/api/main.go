package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	appsonify "github.com/bryanwahyu/sonifier/internal/application/sonify"
	"github.com/bryanwahyu/sonifier/internal/bootstrap"
	"github.com/bryanwahyu/sonifier/internal/config"
	"github.com/bryanwahyu/sonifier/internal/infra/httpserver"
	"github.com/bryanwahyu/sonifier/internal/logging"
	"github.com/bryanwahyu/sonifier/internal/middleware"
)

func main() {
	// .env opsional
	_ = godotenv.Load()

	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Init(os.Stdout, cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()

	// connect database
	repos, err := bootstrap.OpenRepositories(ctx, cfg, logger)
	if err != nil {
		logger.Error("database init error", "err", err)
		os.Exit(1)
	}
	defer repos.Close()

	// init storage (minio / local)
	store, err := bootstrap.ArtifactStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("storage init error", "err", err)
		os.Exit(1)
	}

	// init pipeline
	synth := bootstrap.Synthesizer(cfg, logger)
	pipeline := bootstrap.Orchestrator(cfg, synth, logger)

	// init service
	svc := appsonify.NewService(pipeline, repos.Sonifications, repos.Failures, store, cfg.Pipeline.MaxConcurrent)
	svc.Logger = logger
	svc.DefaultDuration = cfg.Audio.DefaultDuration
	svc.TempDir = filepath.Join(os.TempDir(), "sonifier")

	// health checks; synthesizer is optional so the API stays up while the model loads
	checkers := map[string]middleware.HealthChecker{}
	if repos.DB != nil {
		checkers["database"] = &middleware.DatabaseHealthChecker{DB: repos.DB}
	}
	if c, ok := store.(middleware.HealthChecker); ok {
		checkers["storage"] = c
	}
	if c, ok := synth.(middleware.HealthChecker); ok {
		checkers["synthesizer"] = c
	}

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimit.Capacity, cfg.Server.RateLimit.RefillRate)
	bgCtx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()
	go limiter.Run(bgCtx, time.Minute, 10*time.Minute)

	// init router
	handler := httpserver.NewRouter(svc, httpserver.Options{
		Logger:          logger,
		APIKeys:         cfg.Server.APIKeys,
		CORSOrigins:     cfg.Server.CORSOrigins,
		RateLimiter:     limiter,
		Checkers:        checkers,
		OptionalChecks:  []string{"synthesizer"},
		MaxUploadBytes:  int64(cfg.Server.MaxUploadMB) << 20,
		DefaultDuration: cfg.Audio.DefaultDuration,
		Composer:        pipeline.Composer,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout(),
		WriteTimeout: cfg.WriteTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		logger.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		logger.Error("shutdown error", "err", err)
	}
	// tunggu background sonification selesai
	svc.Wait()
	logger.Info("server stopped")
}
