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

// mailwatch — Digest Command
//
// Standalone CLI tool that runs one digest check for a client/project
// manager pair: unread mail and read-but-unreplied mail are each
// summarised in a single email to the project manager, CC'ing the
// client's linked recipients. Useful for ad-hoc checks without going
// through the API.
//
// Usage:
//
//	go run ./cmd/digest/ --client client@example.com --pm pm@example.com
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codeautomation/mailwatch/internal/config"
	"github.com/codeautomation/mailwatch/internal/notify"
	"github.com/codeautomation/mailwatch/internal/secrets"
	"github.com/codeautomation/mailwatch/internal/store"
)

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// --- CLI Flags ---
	clientFlag := flag.String("client", "", "Client email address (required)")
	pmFlag := flag.String("pm", "", "Project manager email address (required)")
	flag.Parse()

	if *clientFlag == "" || *pmFlag == "" {
		fmt.Fprintf(os.Stderr, "Error: --client and --pm are required\n\n")
		flag.Usage()
		os.Exit(1)
	}

	slog.Info("starting digest check", "client", *clientFlag, "pm", *pmFlag)

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	keeper, err := secrets.NewKeeper(cfg.MasterKey)
	if err != nil {
		slog.Error("invalid master key", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	db, err := store.NewStore(ctx, pgPool)
	if err != nil {
		slog.Error("failed to initialise store", "error", err)
		os.Exit(1)
	}

	// --- Run Digest Check ---
	mailer := notify.NewMailer(cfg.SMTP, keeper)
	digests := notify.NewDigestService(db, mailer)

	report, err := digests.CheckMailStatus(ctx, *clientFlag, *pmFlag)
	if err != nil {
		slog.Error("digest check failed", "error", err)
		os.Exit(1)
	}

	// --- Summary ---
	slog.Info("digest check complete",
		"unread", report.UnreadCount,
		"unread_sent", report.UnreadSent,
		"read_unreplied", report.ReadUnrepliedCount,
		"read_unreplied_sent", report.ReadUnrepliedSent,
	)
}
