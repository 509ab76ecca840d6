package main

import (
	"github.com/spf13/cobra"
)

func newReportCmd(a *app) *cobra.Command {
	var (
		format  string
		rescore bool
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print stored results, best fit first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			since, err := a.sinceTime()
			if err != nil {
				return err
			}
			if err := checkFormat(format); err != nil {
				return err
			}
			if err := a.cfg.Scoring.Thresholds.Validate(); err != nil {
				return err
			}

			s, err := a.offline()
			if err != nil {
				return err
			}
			defer s.Close()

			if rescore {
				if _, err := s.coord.Rescore(cmd.Context(), since); err != nil {
					return err
				}
			}
			recs, err := s.store.ListResults(cmd.Context(), since, a.cfg.Scoring.Thresholds)
			if err != nil {
				return err
			}
			return renderRecords(cmd.OutOrStdout(), recs, format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "table", "output format: table or json")
	cmd.Flags().BoolVar(&rescore, "rescore", false, "recompute results from stored text with the current rubric first")
	return cmd
}
