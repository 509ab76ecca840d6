package main

import (
	"github.com/spf13/cobra"
)

func newCleanupCmd(a *app) *cobra.Command {
	var (
		maxAge string
		below  int
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove old or low-scoring opportunities and their downloaded files.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := a.cfg.Cleanup
			if cmd.Flags().Changed("max-age") {
				d, err := parseAge(maxAge)
				if err != nil {
					return err
				}
				p.MaxAge = d
			}
			if cmd.Flags().Changed("below") {
				p.BelowPercentage = below
			}
			p.DryRun = dryRun

			s, err := a.offline()
			if err != nil {
				return err
			}
			defer s.Close()

			rep, err := s.coord.Cleanup(cmd.Context(), p)
			if err != nil {
				return err
			}
			return writeIndented(cmd.OutOrStdout(), rep)
		},
	}
	cmd.Flags().StringVar(&maxAge, "max-age", "", "remove opportunities first seen longer ago than this (e.g. 720h or 30d)")
	cmd.Flags().IntVar(&below, "below", 0, "remove opportunities scored below this percentage")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list candidates without removing them")
	return cmd
}
