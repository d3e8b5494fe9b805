package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/speechvault/speechvault/internal/backup"
	"github.com/speechvault/speechvault/internal/blob"
	"github.com/speechvault/speechvault/internal/database"
	"github.com/speechvault/speechvault/internal/logging"
	"github.com/speechvault/speechvault/internal/pricing"
	"github.com/speechvault/speechvault/internal/server"
	"github.com/speechvault/speechvault/internal/stripeclient"
)

func main() {
	logger := logging.Setup(os.Getenv("SPEECHVAULT_LOG_LEVEL"))

	port := os.Getenv("SPEECHVAULT_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("SPEECHVAULT_DB_PATH")
	if dbPath == "" {
		dbPath = "speechvault.db"
	}

	baseURL := os.Getenv("SPEECHVAULT_BASE_URL")
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://localhost:%s", port)
	}

	masterSecret := os.Getenv("SPEECHVAULT_MASTER_SECRET")
	if masterSecret == "" {
		slog.Error("SPEECHVAULT_MASTER_SECRET is required")
		os.Exit(1)
	}

	db, err := database.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	cfg := server.Config{
		Pricing: pricing.Config{
			BaseRate:        envInt64("SPEECHVAULT_BASE_RATE", 1_000_000),
			DiscountPercent: envInt64("SPEECHVAULT_DISCOUNT_PERCENT", 20),
		},
		Durations:    envInt64List("SPEECHVAULT_DURATIONS"),
		MasterSecret: []byte(masterSecret),
		Blob: blob.Config{
			Endpoint:  os.Getenv("SPEECHVAULT_S3_ENDPOINT"),
			Bucket:    os.Getenv("SPEECHVAULT_S3_BUCKET"),
			Region:    os.Getenv("SPEECHVAULT_S3_REGION"),
			AccessKey: os.Getenv("SPEECHVAULT_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("SPEECHVAULT_S3_SECRET_KEY"),
		},
		Stripe: stripeclient.Config{
			SecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
			SuccessURL:    baseURL + "/api/account?session_id={CHECKOUT_SESSION_ID}",
			CancelURL:     baseURL + "/api/account",
		},
	}

	srv, err := server.New(db, cfg, logger)
	if err != nil {
		slog.Error("failed to initialize server", "error", err)
		os.Exit(1)
	}

	backups := backup.NewManager(backup.Config{
		S3: backup.S3Config{
			Endpoint:  os.Getenv("SPEECHVAULT_S3_ENDPOINT"),
			Bucket:    os.Getenv("SPEECHVAULT_BACKUP_BUCKET"),
			Region:    os.Getenv("SPEECHVAULT_S3_REGION"),
			AccessKey: os.Getenv("SPEECHVAULT_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("SPEECHVAULT_S3_SECRET_KEY"),
		},
		DBPath:     dbPath,
		Passphrase: os.Getenv("SPEECHVAULT_BACKUP_PASSPHRASE"),
		Interval:   time.Duration(envInt64("SPEECHVAULT_BACKUP_INTERVAL_HOURS", 24)) * time.Hour,
	}, db, logger.With("component", "backup"))
	backups.Start(context.Background())
	defer backups.Stop()

	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Background cleanup goroutine
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := srv.SessionStore().DeleteExpired(); err != nil {
					slog.Error("cleanup expired sessions", "error", err)
				} else if n > 0 {
					slog.Info("cleaned up expired sessions", "count", n)
				}
				srv.RateLimiter().Cleanup()
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	go func() {
		slog.Info("speechvault starting", "addr", ":"+port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	cleanupCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

func envInt64(key string, fallback int64) int64 {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		slog.Warn("invalid value, using default", "var", key, "value", s)
		return fallback
	}
	return n
}

// envInt64List parses a comma-separated list like "30,60,120,300".
// Returns nil when unset, which selects the built-in defaults.
func envInt64List(key string) []int64 {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	var out []int64
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			slog.Warn("invalid value, using defaults", "var", key, "value", s)
			return nil
		}
		out = append(out, n)
	}
	return out
}
