// Package jobs runs the periodic maintenance work of the server.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "examcal/internal/log"
	"examcal/internal/sheet"
	"examcal/internal/store"
)

// Config selects which jobs are scheduled.
type Config struct {
	// SweepSpec runs Store.Sweep. Empty disables the sweep.
	SweepSpec string
	// RefreshSpec and SourceURL enable pulling the spreadsheet from a
	// remote source. Both are required.
	RefreshSpec string
	SourceURL   string
}

// Scheduler wraps a cron engine bound to the store and repository.
type Scheduler struct {
	cron    *cron.Cron
	store   store.Store
	repo    *sheet.Repository
	fetcher *sheet.Fetcher
	url     string
}

// New validates the schedules and registers the jobs without starting them.
func New(cfg Config, st store.Store, repo *sheet.Repository, fetcher *sheet.Fetcher) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(),
		store:   st,
		repo:    repo,
		fetcher: fetcher,
		url:     cfg.SourceURL,
	}

	if cfg.SweepSpec != "" && st != nil {
		if _, err := s.cron.AddFunc(cfg.SweepSpec, s.Sweep); err != nil {
			return nil, fmt.Errorf("invalid sweep schedule %q: %w", cfg.SweepSpec, err)
		}
	}
	if cfg.SourceURL != "" && cfg.RefreshSpec != "" && fetcher != nil {
		if _, err := s.cron.AddFunc(cfg.RefreshSpec, s.Refresh); err != nil {
			return nil, fmt.Errorf("invalid refresh schedule %q: %w", cfg.RefreshSpec, err)
		}
	}
	return s, nil
}

// Jobs reports how many entries are scheduled.
func (s *Scheduler) Jobs() int { return len(s.cron.Entries()) }

func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the scheduler and waits for running jobs, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		appLog.Warn("scheduler stop timed out")
	}
}

// Sweep removes expired downloads.
func (s *Scheduler) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := s.store.Sweep(ctx)
	if err != nil {
		appLog.Error("download sweep failed", err)
		return
	}
	if n > 0 {
		appLog.Info("download sweep", "removed", n)
	}
}

// Refresh pulls the remote spreadsheet into the repository.
func (s *Scheduler) Refresh() {
	if s.url == "" || s.fetcher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := s.fetcher.Refresh(ctx, s.url, s.repo); err != nil {
		appLog.Error("spreadsheet refresh failed", err)
	}
}
