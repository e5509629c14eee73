package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"examcal/internal/jobs"
	appLog "examcal/internal/log"
	"examcal/internal/sheet"
	"examcal/internal/store"
	"examcal/internal/web"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveListen != "" {
			cfg.Listen = serveListen
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		appLog.Info("effective config",
			"listen", cfg.Listen,
			"spreadsheet", cfg.Spreadsheet.Path,
			"header_row", cfg.Spreadsheet.HeaderRow,
			"strict", cfg.Spreadsheet.Strict,
			"semester_start", cfg.Spreadsheet.SemesterStart,
			"remote_source", cfg.Spreadsheet.SourceURL != "",
			"store", cfg.Store.Backend,
			"store_ttl", cfg.Store.TTL.String(),
		)

		ex, err := newExtractor(cfg)
		if err != nil {
			return err
		}
		repo := newRepository(cfg)

		st, err := store.Open(cfg.Store.Backend, cfg.Store.Path, cfg.Store.TTL)
		if err != nil {
			return err
		}
		defer st.Close()

		fetcher := sheet.NewFetcher(cfg.Spreadsheet.CacheDir)
		sched, err := jobs.New(jobs.Config{
			SweepSpec:   cfg.Store.Sweep,
			RefreshSpec: cfg.Spreadsheet.Refresh,
			SourceURL:   cfg.Spreadsheet.SourceURL,
		}, st, repo, fetcher)
		if err != nil {
			return err
		}
		if cfg.Spreadsheet.SourceURL != "" {
			sched.Refresh()
		}
		if !repo.Exists() {
			appLog.Warn("no exam spreadsheet installed yet; upload one via /upload-excel", "path", repo.Path())
		}
		sched.Start()

		srv := web.NewServer(cfg, repo, ex, st)
		serveErr := srv.ListenAndServe(ctx)

		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		sched.Stop(stopCtx)

		appLog.Info("examcal exiting")
		return serveErr
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "HTTP listen address (overrides config if set)")
}
