package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alvmarrod/sitegraph/internal/version"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	verbose    bool
}

// NewRootCmd creates the root command. Running it without a subcommand crawls.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	crawlOpts := &crawlOptions{root: opts}

	cmd := &cobra.Command{
		Use:   "sitegraph",
		Short: "Breadth-first link graph crawler for a single website",
		Long: `sitegraph walks one website breadth-first from a root URL and records every
page as a vertex and every in-site hyperlink as a directed edge.

State lives in three text files (vertex log, edge log, frontier snapshot).
An interrupted crawl resumes from the saved frontier on the next run;
use --reset to start over from the root.`,
		Version:       version.Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd.Context(), cmd, crawlOpts)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file (default: ./config.{json,yaml} if present)")
	cmd.PersistentFlags().String("root", "", "Root URL; overrides root_url")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	cmd.Flags().BoolVarP(&crawlOpts.reset, "reset", "r", false, "Discard saved state and start from the root URL")

	cmd.AddCommand(NewExportCmd(opts))

	return cmd
}

// Execute runs the root command.
func Execute() {
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ctx, stop := notifyContext(context.Background(), sigChan, os.Exit)
	defer stop()

	err := NewRootCmd().ExecuteContext(ctx)
	signal.Stop(sigChan)
	if err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// notifyContext cancels the returned context on the first signal received
// from sigChan. A second signal calls exit(1) without flushing.
func notifyContext(parent context.Context, sigChan <-chan os.Signal, exit func(int)) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		select {
		case sig := <-sigChan:
			logrus.Warnf("Received %v, stopping after the current page (send again to force quit)", sig)
			cancel()
		case <-ctx.Done():
			return
		}
		sig := <-sigChan
		logrus.Errorf("Received second signal (%v), exiting without saving", sig)
		exit(1)
	}()

	return ctx, cancel
}

// configureLogging sets up logrus from the configured level
func configureLogging(level string, verbose bool) error {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	if verbose {
		lvl = logrus.DebugLevel
	}
	logrus.SetLevel(lvl)
	return nil
}
