package main

import (
	"fmt"

	"github.com/aluiziolira/kdp-parser/models"
	"github.com/spf13/cobra"
)

// NewStatusCmd creates the status command.
func NewStatusCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a batch is running and how the catalog stands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			running, err := s.BatchFlag().InProgress(ctx)
			if err != nil {
				return err
			}
			books, err := s.ListBooks(ctx)
			if err != nil {
				return err
			}

			counts := make(map[models.ParseStatus]int)
			for _, b := range books {
				counts[b.ParseStatus]++
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "batch in progress: %t\n", running)
			fmt.Fprintf(out, "records:           %d\n", len(books))
			for _, status := range []models.ParseStatus{
				models.StatusNotParsed, models.StatusInProgress, models.StatusCompleted, models.StatusError,
			} {
				fmt.Fprintf(out, "  %-16s %d\n", status+":", counts[status])
			}
			return nil
		},
	}
}
