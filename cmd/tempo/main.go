package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"tempo/internal/cache"
	"tempo/internal/cli"
	apphttp "tempo/internal/http"
	tlog "tempo/internal/log"
	"tempo/internal/services"
)

const statsCacheSize = 512

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(tlog.ComponentApp, os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("Invalid timezone", "error", err, "timezone", cfg.Timezone)
		os.Exit(1)
	}

	ctx, stop := cli.GracefulShutdown(logger)
	defer stop()

	res := cli.OpenBackend(ctx, logger, cfg)
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	}()

	opts := []services.Option{
		services.WithLocation(loc),
		services.WithPublisher(res.Publisher),
	}
	var stats *cache.StatsCache
	if cfg.StatsCacheTTL > 0 {
		stats = cache.NewStatsCache(statsCacheSize, cfg.StatsCacheTTL)
		opts = append(opts, services.WithStatsCache(stats))
	}
	svc := services.NewTimeService(res.Backend, opts...)

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		Logger:             logger.WithComponent(tlog.ComponentHTTP),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		StatsCache:         stats,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting tempo server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"timezone", loc.String(),
			"change_events", res.Publisher != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := cli.ShutdownContext(30 * time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
