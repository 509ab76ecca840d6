package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/hazyhaar/rfpwatch/api"
	"github.com/hazyhaar/rfpwatch/pipeline"
	"github.com/hazyhaar/rfpwatch/store"
)

func newServeCmd(a *app) *cobra.Command {
	var addr, schedule string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored results over HTTP, optionally running on a cron schedule.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("schedule") {
				a.cfg.Server.Schedule = schedule
			}
			since, err := a.sinceTime()
			if err != nil {
				return err
			}
			return a.serve(cmd.Context(), since)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "HTTP listen address")
	cmd.Flags().StringVar(&schedule, "schedule", "", `cron expression for recurring runs, e.g. "0 7 * * 1-5"`)
	return cmd
}

func (a *app) serve(ctx context.Context, since time.Time) error {
	if err := a.cfg.Scoring.Thresholds.Validate(); err != nil {
		return err
	}
	st, err := store.Open(a.cfg.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	if spec := a.cfg.Server.Schedule; spec != "" {
		if err := a.cfg.Validate(); err != nil {
			return err
		}
		c, err := a.schedule(ctx, spec, since)
		if err != nil {
			return err
		}
		c.Start()
		defer func() { <-c.Stop().Done() }()
	}

	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           api.New(st, a.cfg.Scoring.Thresholds, a.logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("rfpwatch: listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("rfpwatch: shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// schedule registers one pipeline run per tick. Overlapping ticks are
// skipped while a run is still going.
func (a *app) schedule(ctx context.Context, spec string, since time.Time) (*cron.Cron, error) {
	log := cronLogger{a.logger}
	c := cron.New(
		cron.WithLogger(log),
		cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
	)
	_, err := c.AddFunc(spec, func() { a.scheduledRun(ctx, since) })
	if err != nil {
		return nil, fmt.Errorf("serve: schedule %q: %w", spec, err)
	}
	a.logger.Info("rfpwatch: schedule registered", "schedule", spec)
	return c, nil
}

func (a *app) scheduledRun(ctx context.Context, since time.Time) {
	if ctx.Err() != nil {
		return
	}
	s, err := a.live(ctx)
	if err != nil {
		a.logger.Error("rfpwatch: scheduled run setup", "error", err)
		return
	}
	defer s.Close()
	since, err = a.cutoff(ctx, s.store, pipeline.ModeRun, since)
	if err != nil {
		a.logger.Error("rfpwatch: scheduled run cutoff", "error", err)
		return
	}

	rep, err := s.coord.Run(ctx, pipeline.Options{Since: since})
	if err != nil {
		a.logger.Error("rfpwatch: scheduled run", "error", err)
	}
	if rep != nil {
		a.logger.Info("rfpwatch: scheduled run done",
			"run_id", rep.RunID, "new", rep.New, "scored", rep.Succeeded(), "failed", rep.Failed())
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
