package main

import (
	"github.com/spf13/cobra"

	"github.com/hazyhaar/rfpwatch/pipeline"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		opts   pipeline.Options
		format string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Log in, discover, download, extract and score new opportunities.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			since, err := a.sinceTime()
			if err != nil {
				return err
			}

			s, err := a.live(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			if opts.Since, err = a.cutoff(cmd.Context(), s.store, pipeline.ModeRun, since); err != nil {
				return err
			}

			rep, runErr := s.coord.Run(cmd.Context(), opts)
			if rep != nil {
				if err := renderRun(cmd.OutOrStdout(), rep, format); err != nil {
					return err
				}
			}
			return runErr
		},
	}
	cmd.Flags().BoolVar(&opts.Force, "force", false, "re-process opportunities that already have a result")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "process at most this many opportunities (0 = all)")
	cmd.Flags().StringVar(&format, "format", "table", "output format: table or json")
	return cmd
}

func newScrapeCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Discover and store listings without downloading anything.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			since, err := a.sinceTime()
			if err != nil {
				return err
			}

			var s *stack
			if a.cfg.Pipeline.Discovery == pipeline.DiscoverRSS {
				if err := a.cfg.Pipeline.Validate(); err != nil {
					return err
				}
				s, err = a.offline()
			} else {
				s, err = a.live(cmd.Context())
			}
			if err != nil {
				return err
			}
			defer s.Close()
			if since, err = a.cutoff(cmd.Context(), s.store, pipeline.ModeScrape, since); err != nil {
				return err
			}

			rep, runErr := s.coord.Scrape(cmd.Context(), pipeline.Options{Since: since})
			if rep != nil {
				if err := renderScrape(cmd.OutOrStdout(), rep, format); err != nil {
					return err
				}
			}
			return runErr
		},
	}
	cmd.Flags().StringVar(&format, "format", "table", "output format: table or json")
	return cmd
}
