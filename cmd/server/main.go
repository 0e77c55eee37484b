package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/jw6ventures/studycal/internal/api"
	"github.com/jw6ventures/studycal/internal/auth"
	"github.com/jw6ventures/studycal/internal/config"
	"github.com/jw6ventures/studycal/internal/drag"
	httpserver "github.com/jw6ventures/studycal/internal/http"
	"github.com/jw6ventures/studycal/internal/layout"
	"github.com/jw6ventures/studycal/internal/logging"
	"github.com/jw6ventures/studycal/internal/prefs"
	"github.com/jw6ventures/studycal/internal/session"
	"github.com/jw6ventures/studycal/internal/store"
	"github.com/jw6ventures/studycal/internal/view"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}
	log := logging.New(cfg.LogLevel)
	for _, w := range cfg.Warnings {
		log.Warn(w)
	}
	log.Info("starting studycal server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DB.DSN)
	if err != nil {
		log.WithError(err).Fatal("failed to create db pool")
	}
	defer pool.Close()

	if err := store.ApplyMigrations(ctx, pool, log); err != nil {
		log.WithError(err).Fatal("failed to apply migrations")
	}
	stor := store.New(pool, cfg.Calendar.Location)

	kv, closeKV, err := settingsBackend(cfg, stor, log)
	if err != nil {
		log.WithError(err).Fatal("failed to open settings backend")
	}
	defer closeKV()

	sessions := session.NewManager(session.Config{
		View: view.Config{
			WeekStart:         cfg.Calendar.WeekStart,
			AgendaHorizonDays: cfg.Calendar.AgendaHorizonDays,
			Layout:            layout.Options{PixelsPerMinute: cfg.Calendar.PixelsPerMinute},
			Location:          cfg.Calendar.Location,
		},
		Snap:        drag.Grid{SnapMinutes: cfg.Calendar.SnapMinutes},
		IdleTimeout: cfg.Session.IdleTimeout,
		SweepSpec:   cfg.Session.SweepSpec,
	}, stor, kv, log)
	if err := sessions.StartSweeper(); err != nil {
		log.WithError(err).Fatal("failed to start session sweeper")
	}

	authService := auth.NewService(
		auth.NewSessionManager(cfg.Session.Secret, cfg.BaseURL),
		auth.NewTokens(cfg.Session.Secret),
		stor.Users,
		log,
	)
	router := httpserver.NewRouter(cfg, stor, authService, api.NewHandler(sessions, stor.Shares, log), log)
	defer router.Close()

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.ListenAddr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("server error")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("graceful shutdown failed")
	}
	sessions.Stop(shutdownCtx)
}

// settingsBackend opens the configured preferences store.
func settingsBackend(cfg *config.Config, stor *store.Store, log logrus.FieldLogger) (prefs.KV, func(), error) {
	switch cfg.Prefs.Backend {
	case config.PrefsRedis:
		client := prefs.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		log.WithField("addr", cfg.Redis.Addr).Info("storing preferences in redis")
		return prefs.NewRedisKV(client, "studycal:"), func() { _ = client.Close() }, nil
	case config.PrefsFile:
		kv, err := prefs.NewFileKV(cfg.Prefs.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("settings file %s: %w", cfg.Prefs.Path, err)
		}
		return kv, func() {}, nil
	case config.PrefsMemory:
		log.Warn("preferences are kept in memory and lost on restart")
		return prefs.NewMemoryKV(), func() {}, nil
	default:
		return stor.SettingsKV(), func() {}, nil
	}
}
