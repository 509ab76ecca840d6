// CLAUDE:SUMMARY Entry point for the rfpwatch CLI: cobra root with config, log level and since flags.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/rfpwatch/config"
	"github.com/hazyhaar/rfpwatch/store"
)

const version = "0.4.0"

// app carries what every subcommand shares once flags are parsed.
type app struct {
	configPath string
	logLevel   string
	since      string

	cfg    *config.Config
	logger *slog.Logger
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "rfpwatch:", err)
		cancel()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "rfpwatch",
		Short:         "rfpwatch watches a procurement portal and scores new opportunities.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "rfpwatch.yaml", "path to the YAML configuration file")
	pf.StringVar(&a.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	pf.StringVar(&a.since, "since", "", "ignore opportunities posted before this date (YYYY-MM-DD); run and scrape default to the day of the last successful run")

	root.AddCommand(
		newRunCmd(a),
		newScrapeCmd(a),
		newReportCmd(a),
		newCleanupCmd(a),
		newServeCmd(a),
		newMCPCmd(a),
	)
	return root
}

func (a *app) init() error {
	lvl, err := parseLevel(a.logLevel)
	if err != nil {
		return err
	}
	a.logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(a.logger)

	path := a.configPath
	if _, err := os.Stat(path); err != nil && path == "rfpwatch.yaml" {
		// The default file is optional; an explicit one is not.
		path = ""
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	cfg.SetLogger(a.logger)
	a.cfg = cfg
	return nil
}

// sinceTime parses --since. Empty means no cutoff.
func (a *app) sinceTime() (time.Time, error) {
	return parseSince(a.since)
}

// cutoff returns since when set, else the day of the last successful run
// in mode. Nothing recorded yet means no cutoff.
func (a *app) cutoff(ctx context.Context, st *store.Store, mode string, since time.Time) (time.Time, error) {
	if !since.IsZero() {
		return since, nil
	}
	last, ok, err := st.LastRunAt(ctx, mode)
	if err != nil {
		return time.Time{}, fmt.Errorf("last run: %w", err)
	}
	if !ok {
		return time.Time{}, nil
	}
	y, m, d := last.UTC().Date()
	since = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	a.logger.Info("rfpwatch: since last run", "mode", mode, "since", since.Format(time.DateOnly))
	return since, nil
}

func parseSince(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("--since must be YYYY-MM-DD, got %q", s)
	}
	return t, nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}
