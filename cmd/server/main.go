// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// mailwatch — client email tracking service
//
// Entry point for the mailwatch service. It:
//  1. Loads configuration from config.yaml
//  2. Connects to PostgreSQL and Redis
//  3. Starts the scheduler (mailbox ingestion + unreplied scanner)
//  4. Serves the REST API for clients, project managers, recipients,
//     mail records, and digest triggers
//  5. Handles graceful shutdown on SIGTERM/SIGINT
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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/codeautomation/mailwatch/internal/api"
	"github.com/codeautomation/mailwatch/internal/config"
	"github.com/codeautomation/mailwatch/internal/dedup"
	"github.com/codeautomation/mailwatch/internal/ingest"
	"github.com/codeautomation/mailwatch/internal/mailbox"
	"github.com/codeautomation/mailwatch/internal/notify"
	"github.com/codeautomation/mailwatch/internal/scan"
	"github.com/codeautomation/mailwatch/internal/scheduler"
	"github.com/codeautomation/mailwatch/internal/secrets"
	"github.com/codeautomation/mailwatch/internal/store"
)

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("starting mailwatch service")

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"imap_host", cfg.IMAP.Host,
		"smtp_host", cfg.SMTP.Host,
		"tick_interval", cfg.TickInterval,
		"reminder_threshold", cfg.ReminderThreshold,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Secrets Keeper ---
	keeper, err := secrets.NewKeeper(cfg.MasterKey)
	if err != nil {
		slog.Error("invalid master key", "error", err)
		os.Exit(1)
	}

	// --- Connect to PostgreSQL ---
	pgPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create Postgres pool", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()

	if err := pgPool.Ping(ctx); err != nil {
		slog.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to PostgreSQL")

	// --- Connect to Redis ---
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid REDIS_URL", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(opt)

	filter := dedup.NewFilter(rdb)
	if err := filter.Ping(ctx); err != nil {
		slog.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to Redis")

	cooldown := dedup.NewCooldown(rdb, cfg.ReminderCooldown)

	// --- Store (Postgres) ---
	db, err := store.NewStore(ctx, pgPool)
	if err != nil {
		slog.Error("failed to initialise store", "error", err)
		os.Exit(1)
	}

	// --- Ingestion Pipeline ---
	pipeline := ingest.NewPipeline(ingest.PipelineConfig{
		Dialer:   mailbox.NewClient(cfg.IMAP),
		Resolver: ingest.NewResolver(db),
		Mails:    db,
		Filter:   filter,
		Keeper:   keeper,
	})

	// --- Notifications ---
	mailer := notify.NewMailer(cfg.SMTP, keeper)
	digests := notify.NewDigestService(db, mailer)

	// --- Unreplied Scanner ---
	scanner := scan.NewScanner(scan.ScannerConfig{
		Mails:     db,
		Gate:      cooldown,
		Notifier:  mailer,
		Threshold: cfg.ReminderThreshold,
	})

	// --- Scheduler ---
	sched := scheduler.New(scheduler.Config{
		Managers:    db,
		Ingestor:    pipeline,
		Scanner:     scanner,
		Interval:    cfg.TickInterval,
		TickTimeout: cfg.TickTimeout,
	})
	sched.Start(ctx)

	// --- REST API ---
	handler := api.NewHandler(db, digests, keeper, func(ctx context.Context) error {
		if err := filter.Ping(ctx); err != nil {
			return fmt.Errorf("redis unhealthy: %w", err)
		}
		if err := pgPool.Ping(ctx); err != nil {
			return fmt.Errorf("postgres unhealthy: %w", err)
		}
		return nil
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// --- Graceful Shutdown ---
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		sig := <-sigCh

		slog.Info("received shutdown signal", "signal", sig)
		cancel() // Stop background goroutines

		sched.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}

		rdb.Close()
		pgPool.Close()
	}()

	slog.Info("mailwatch service listening", "addr", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("mailwatch service stopped")
}
