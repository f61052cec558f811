package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/alvmarrod/sitegraph/internal/config"
	"github.com/alvmarrod/sitegraph/internal/crawler"
	"github.com/alvmarrod/sitegraph/internal/memory"
	"github.com/alvmarrod/sitegraph/internal/metrics"
	"github.com/alvmarrod/sitegraph/internal/persistence"
	"github.com/alvmarrod/sitegraph/internal/storage"
	"github.com/alvmarrod/sitegraph/internal/version"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// progressInterval is how often running totals are logged
var progressInterval = 10 * time.Second

type crawlOptions struct {
	root  *rootOptions
	reset bool
}

func runCrawl(ctx context.Context, cmd *cobra.Command, opts *crawlOptions) error {
	cfg, err := config.LoadConfig(opts.root.configPath, cmd.Flags())
	if err != nil {
		return err
	}
	if err := configureLogging(cfg.LogLevel, opts.root.verbose); err != nil {
		return err
	}

	runID := uuid.NewString()
	log := logrus.WithField("run_id", runID)
	log.Infof("sitegraph v%s starting: root=%s, scope=%s://%s", version.Version, cfg.RootURL, cfg.AllowedScheme, cfg.AllowedHost)

	scope, err := crawler.NewScope(cfg)
	if err != nil {
		return err
	}

	store := persistence.NewStore(cfg, scope.Root)
	if cfg.DBPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o750); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
		db, err := storage.NewStorage(cfg.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()
		store.SetMirror(db)
		log.Infof("Graph mirror enabled: %s", cfg.DBPath)
	}

	exists, err := store.Exists()
	if err != nil {
		return err
	}
	if opts.reset || !exists {
		if err := store.Reset(); err != nil {
			return err
		}
	}

	tracker := metrics.NewTracker(runID)
	c := crawler.NewCrawler(cfg, crawler.NewCollyFetcher(cfg, scope), tracker.Callback)

	stopProgress := startProgressLog(log, tracker)
	var result crawler.Result
	err = store.Run(func(sess *persistence.Session) error {
		c.SetCheckpointer(func() error { return store.Checkpoint(sess) })
		var runErr error
		result, runErr = c.Run(ctx, sess.Graph, sess.Frontier)
		return runErr
	})
	stopProgress()

	if errors.Is(err, memory.ErrIntegrity) {
		log.Errorf("Saved crawl state is unusable, run with --reset to start over: %v", err)
		return err
	}

	reason := string(result.Reason)
	if err != nil {
		reason = "error"
		log.Errorf("Crawl failed: %v", err)
	}

	log.Info("Final stats: " + tracker.LogProgress())
	if snap := tracker.GetSnapshot(); snap.PagesFailed > 0 && snap.PagesFetched == 0 {
		log.Warnf("All %d fetches failed, check root_url and connectivity", snap.PagesFailed)
	}
	writeMetrics(log, cfg, tracker, reason)

	switch result.Reason {
	case crawler.StopCancelled:
		log.Warnf("Crawl interrupted with %d vertices left in the frontier", result.Remaining)
	case crawler.StopMaxVisits:
		log.Infof("Visit limit reached with %d vertices left in the frontier", result.Remaining)
	case crawler.StopFrontierEmpty:
		log.Info("Frontier exhausted, crawl complete")
	}

	return err
}

func startProgressLog(log *logrus.Entry, tracker *metrics.Tracker) func() {
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(progressInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				log.Info(tracker.LogProgress())
			case <-done:
				return
			}
		}
	}()
	return func() {
		close(done)
		<-stopped
	}
}

func writeMetrics(log *logrus.Entry, cfg *config.Config, tracker *metrics.Tracker, reason string) {
	if cfg.MetricsPath != "" {
		if err := tracker.WriteToFile(cfg.MetricsPath, reason); err != nil {
			log.Errorf("Failed to write metrics: %v", err)
		} else {
			log.Infof("Metrics written to %s", cfg.MetricsPath)
		}
	}
	if cfg.PromTextfile != "" {
		if err := tracker.WriteTextfile(cfg.PromTextfile); err != nil {
			log.Errorf("Failed to write metrics: %v", err)
		} else {
			log.Infof("Prometheus textfile written to %s", cfg.PromTextfile)
		}
	}
}
