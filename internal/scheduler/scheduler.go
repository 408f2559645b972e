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

// Package scheduler runs the periodic mail workflow: one ingestion pass
// over every project manager, then one unreplied-scanner pass. Ticks are
// serialized — if a tick is still running when the next fires, the new
// tick is skipped. Each tick runs under a hard deadline so a hung
// session cannot block the loop indefinitely.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/codeautomation/mailwatch/internal/ingest"
	"github.com/codeautomation/mailwatch/internal/models"
	"github.com/codeautomation/mailwatch/internal/scan"
)

// ManagerSource lists the project managers to poll. Implemented by
// store.Store.
type ManagerSource interface {
	ListProjectManagers(ctx context.Context) ([]models.ProjectManager, error)
}

// Ingestor runs one ingestion pass. Implemented by ingest.Pipeline.
type Ingestor interface {
	RunAll(ctx context.Context, pms []models.ProjectManager) ingest.RunResult
}

// ScanRunner runs one unreplied-scanner pass. Implemented by
// scan.Scanner.
type ScanRunner interface {
	Run(ctx context.Context) scan.Result
}

// Scheduler drives the recurring mail workflow.
type Scheduler struct {
	managers    ManagerSource
	ingestor    Ingestor
	scanner     ScanRunner
	interval    time.Duration
	tickTimeout time.Duration

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Config holds the dependencies for the scheduler.
type Config struct {
	Managers    ManagerSource
	Ingestor    Ingestor
	Scanner     ScanRunner
	Interval    time.Duration
	TickTimeout time.Duration
}

// New creates a scheduler. It does not start ticking until Start.
func New(cfg Config) *Scheduler {
	return &Scheduler{
		managers:    cfg.Managers,
		ingestor:    cfg.Ingestor,
		scanner:     cfg.Scanner,
		interval:    cfg.Interval,
		tickTimeout: cfg.TickTimeout,
	}
}

// Start launches the ticking loop in the background. An initial tick
// runs immediately.
func (s *Scheduler) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go s.loop(loopCtx)

	slog.Info("scheduler started",
		"interval", s.interval,
		"tick_timeout", s.tickTimeout,
	)
}

// Stop shuts down the loop and waits for an in-flight tick to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	slog.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	// Initial tick immediately
	s.Tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one full workflow pass: ingestion for every project manager,
// then one scanner pass. Returns false when a previous tick is still
// running and this one was skipped. No failure inside a tick propagates
// out of it.
func (s *Scheduler) Tick(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		slog.Warn("previous tick still running, skipping")
		return false
	}
	defer s.running.Store(false)

	tickCtx := ctx
	if s.tickTimeout > 0 {
		var cancel context.CancelFunc
		tickCtx, cancel = context.WithTimeout(ctx, s.tickTimeout)
		defer cancel()
	}

	tickID := uuid.New().String()
	start := time.Now()

	// The scanner does not need the manager list, so a listing failure
	// only costs the ingestion phase.
	pms, err := s.managers.ListProjectManagers(tickCtx)
	if err != nil {
		slog.Error("failed to list project managers", "tick_id", tickID, "error", err)
		pms = nil
	}

	ingested := s.ingestor.RunAll(tickCtx, pms)
	scanned := s.scanner.Run(tickCtx)

	slog.Info("tick complete",
		"tick_id", tickID,
		"managers", len(pms),
		"failed_accounts", ingested.FailedAccounts,
		"stored", ingested.TotalStored,
		"notified", scanned.Notified,
		"suppressed", scanned.Suppressed,
		"elapsed", time.Since(start),
	)

	return true
}
