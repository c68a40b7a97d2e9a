package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"glowbooks/backend/internal/cache"
	"glowbooks/backend/internal/config"
	"glowbooks/backend/internal/httpapi"
	"glowbooks/backend/internal/pricing"
	"glowbooks/backend/internal/service"
	"glowbooks/backend/internal/store"
	"glowbooks/backend/internal/store/memory"
	pgstore "glowbooks/backend/internal/store/postgres"
	"glowbooks/backend/pkg/logging"
)

func main() {
	logging.Setup()

	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		slog.Error("invalid security configuration", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback", "err", err)
			os.Exit(1)
		}
		if err := pg.Migrate(ctx); err != nil {
			slog.Error("schema migration failed", "err", err)
			os.Exit(1)
		}
		repo = pg
		closers = append(closers, pg.Close)
		slog.Info("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		slog.Info("repository: in-memory")
	}

	summaryCache := cache.CashSummaryCache(cache.NoopCashSummaryCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisCashSummaryCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			slog.Warn("redis unavailable, using noop cache", "err", err)
		} else {
			summaryCache = redisCache
			closers = append(closers, redisCache.Close)
			slog.Info("cache: redis")
		}
	} else {
		slog.Info("cache: noop")
	}

	svc := service.New(repo, summaryCache, service.Options{
		CashSummaryTTL:   time.Duration(cfg.CashSummaryTTLSeconds) * time.Second,
		ItemEntryFactors: pricing.Factors{Min: cfg.ItemEntryMarkupMin, Max: cfg.ItemEntryMarkupMax},
		RecalcFactors:    pricing.Factors{Min: cfg.RecalcMarkupMin, Max: cfg.RecalcMarkupMax},
	})
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, svc)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("bookkeeping backend listening", "addr", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("shutdown error", "err", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			slog.Warn("close error", "err", err)
		}
	}

	slog.Info("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	return nil
}
