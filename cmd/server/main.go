// Command server starts the résumé/job fitness scoring coordinator.
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

	httpserver "github.com/basalt-labs/resume-fit-coordinator/internal/adapter/httpserver"
	"github.com/basalt-labs/resume-fit-coordinator/internal/adapter/observability"
	"github.com/basalt-labs/resume-fit-coordinator/internal/adapter/repo/postgres"
	"github.com/basalt-labs/resume-fit-coordinator/internal/app"
	"github.com/basalt-labs/resume-fit-coordinator/internal/config"
	"github.com/basalt-labs/resume-fit-coordinator/internal/coordinator"
	"github.com/basalt-labs/resume-fit-coordinator/internal/fork"
	"github.com/basalt-labs/resume-fit-coordinator/internal/service/ratelimiter"
	"github.com/basalt-labs/resume-fit-coordinator/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	store := postgres.NewStore(pool, cfg.DBURL)
	resumeJobs := postgres.NewResumeJobReader(pool)

	var backstop *fork.RedisBackstop
	var limiter *ratelimiter.RedisLuaLimiter
	if cfg.RedisURL != "" {
		opts, rerr := redis.ParseURL(cfg.RedisURL)
		if rerr != nil {
			slog.Error("redis url invalid, continuing without cross-process fork backstop", slog.Any("error", rerr))
		} else {
			rdb := redis.NewClient(opts)
			backstop = fork.NewRedisBackstop(rdb, int64(cfg.ForkActiveCap), cfg.SweepInterval)
			limiter = ratelimiter.NewRedisLuaLimiter(rdb, pool, map[string]ratelimiter.BucketConfig{
				"score": ratelimiter.NewBucketConfigFromPerMinute(cfg.RateLimitPerMin),
			})
		}
	}

	forkMgr := fork.NewManager(store, store, cfg.ForkActiveCap, cfg.GetRetryConfig(), backstop)
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go forkMgr.RunPeriodic(sweepCtx, cfg.SweepInterval, cfg.RetentionDuration())

	skillCatalog, err := worker.LoadCatalog(cfg.SkillCatalogPath)
	if err != nil {
		slog.Warn("skill catalog load failed, using defaults", slog.Any("error", err))
		skillCatalog = worker.DefaultCatalog()
	}
	registry := worker.NewRegistry(skillCatalog)

	coord := coordinator.NewCoordinator(resumeJobs, forkMgr, store, registry, store, cfg.WorkerTimeout)

	dbCheck, forkCheck := app.BuildReadinessChecks(pool, forkMgr)

	srv := httpserver.NewServer(cfg, coord, dbCheck, forkCheck)
	srv.Limiter = limiter
	handler := app.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
