package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"campusbudget/internal/cache"
	"campusbudget/internal/cli"
	"campusbudget/internal/engine"
	apphttp "campusbudget/internal/http"
	applog "campusbudget/internal/log"
	"campusbudget/internal/services"
)

func main() {
	tokenFor := flag.Int64("token", 0, "print a bearer token for this user id and exit")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of the token printed by -token")
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	if *tokenFor > 0 {
		tok, err := apphttp.NewAuthenticator([]byte(cfg.JWTSecret)).IssueToken(*tokenFor, *tokenTTL)
		if err != nil {
			logger.Error("Failed to issue token", "error", err)
			os.Exit(1)
		}
		fmt.Println(tok)
		return
	}

	res := cli.InitBackend(context.Background(), logger, cfg)

	defaults := engine.DashboardOptions{
		DefaultMonthlyLimit: cfg.MonthlyBudgetLimit(),
		DefaultGoal:         cfg.DefaultGoal(),
	}
	if start, end, ok := cfg.Semester(time.Local); ok {
		defaults.Semester = engine.Window{Range: engine.Semester, Start: start, End: end}
	}

	var publisher services.EventPublisher
	if res.Publisher != nil {
		publisher = res.Publisher
	}
	recordSvc := services.NewRecordService(res.Store, publisher)

	snapshots := cache.NewLRUCache[int64, engine.Snapshot](1000, time.Minute)
	caches := cache.NewManager()
	caches.Register(snapshots)
	caches.StartCleanup(5 * time.Minute)

	reportSvc := services.NewReportService(res.Store, defaults).WithSnapshotCache(snapshots)
	recordSvc.OnChange(reportSvc.Invalidate)

	srv := apphttp.NewServer(":"+cfg.Port, recordSvc, reportSvc, apphttp.Options{
		JWTSecret:          []byte(cfg.JWTSecret),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		RequestTimeout:     cfg.RequestTimeout,
		Logger:             logger,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		caches.Stop()
		if err := res.Close(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Starting campusbudget API", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
