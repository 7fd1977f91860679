package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/velvetbrow/studio/internal/api"
	"github.com/velvetbrow/studio/internal/auth"
	"github.com/velvetbrow/studio/internal/config"
	"github.com/velvetbrow/studio/internal/crmsync"
	httpserver "github.com/velvetbrow/studio/internal/http"
	"github.com/velvetbrow/studio/internal/ical"
	"github.com/velvetbrow/studio/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("[INFO] no .env file loaded: %v", err)
	}

	log.Println("Starting studio server...")
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatalf("failed to create db pool: %v", err)
	}
	defer pool.Close()

	if cfg.AutoMigrate {
		if err := store.ApplyMigrations(ctx, pool); err != nil {
			log.Fatalf("failed to apply migrations: %v", err)
		}
	}

	stor := store.New(pool)
	authService, err := auth.NewServiceFromConfig(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize auth service: %v", err)
	}

	syncService := crmsync.NewService(cfg, stor)
	handler := api.NewHandler(syncService, stor, cfg.Location(), ical.EventOptions{
		Location:  cfg.Studio.Address,
		Organizer: cfg.Studio.Email,
		Reminders: []int{24 * 60, 60},
	})

	r := httpserver.NewRouter(cfg, stor, authService.RequireAdmin, handler)

	// Sync runs are paced against the CRM and can take minutes.
	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("server listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
