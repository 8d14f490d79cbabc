package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"prodboard_backend/internal/config"
	"prodboard_backend/internal/events"
	"prodboard_backend/internal/httpserver"
	"prodboard_backend/internal/identity"
	"prodboard_backend/internal/logger"
	"prodboard_backend/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zlog, err := logger.New(cfg.Debug)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zlog.Sync() //nolint:errcheck

	db, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		zlog.Fatalw("open database", "error", err)
	}
	defer db.Close()

	if err := postgres.Migrate(db); err != nil {
		zlog.Fatalw("migrate database", "error", err)
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		zlog.Infow("event backplane enabled", "redis", cfg.RedisAddr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	broker := events.NewBroker(rdb, zlog)
	go broker.Run(ctx)

	tokens := identity.NewTokenService(cfg.JWTSecret, time.Duration(cfg.AccessTokenMinutes)*time.Minute)

	stores := httpserver.Stores{
		Conversations: postgres.NewConversationRepo(db),
		Participants:  postgres.NewParticipantRepo(db),
		Messages:      postgres.NewMessageRepo(db),
		Notifications: postgres.NewNotificationRepo(db),
		Profiles:      postgres.NewProfileRepo(db),
	}

	router := httpserver.NewRouter(cfg, stores, broker, tokens, zlog)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		zlog.Infow("server listening", "app", cfg.AppName, "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	zlog.Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Errorw("graceful shutdown failed", "error", err)
	}
}
