package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/aluiziolira/kdp-parser/config"
	"github.com/aluiziolira/kdp-parser/models"
	"github.com/aluiziolira/kdp-parser/pipeline"
	"github.com/aluiziolira/kdp-parser/scraper"
	"github.com/spf13/cobra"
)

// NewParseCmd creates the parse command.
func NewParseCmd(opts *globalOptions) *cobra.Command {
	var id int64
	cmd := &cobra.Command{
		Use:   "parse [url]",
		Short: "Parse a single product page",
		Long: `Parse fetches one product page and prints the extracted fields as JSON.

With --id the URL is taken from the catalog record, and the record's status
and parsed fields are updated.

Examples:
  kdpparser parse "https://www.amazon.com/dp/B0EXAMPLE1?language=en_GB"
  kdpparser parse --id 3`,
		Args: func(cmd *cobra.Command, args []string) error {
			if id > 0 {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadFetchConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if id > 0 {
				return parseRecord(ctx, cmd.OutOrStdout(), cfg, id)
			}
			return parseURL(ctx, cmd.OutOrStdout(), cfg, args[0])
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "Parse the catalog record with this id")
	return cmd
}

// newOrchestrator builds the fetch and parse stack from cfg.
func newOrchestrator(cfg *config.Config) (*pipeline.Orchestrator, *scraper.Metrics, error) {
	metrics := scraper.NewMetrics()
	fetcher, err := scraper.NewFetcher(cfg, scraper.WithMetrics(metrics))
	if err != nil {
		return nil, nil, err
	}
	snapshots, err := pipeline.NewSnapshotStore(cfg.SnapshotDir)
	if err != nil {
		return nil, nil, err
	}
	detector := scraper.NewChallengeDetector(cfg.TitlePrefixLen)
	return pipeline.NewOrchestrator(fetcher, detector, snapshots, metrics), metrics, nil
}

func parseURL(ctx context.Context, out io.Writer, cfg *config.Config, url string) error {
	orchestrator, _, err := newOrchestrator(cfg)
	if err != nil {
		return err
	}
	result, err := orchestrator.Parse(ctx, url)
	if err != nil {
		return describeFetchFailure(err)
	}
	return writeJSON(out, result)
}

func parseRecord(ctx context.Context, out io.Writer, cfg *config.Config, id int64) error {
	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	book, err := s.GetBook(ctx, id)
	if err != nil {
		return err
	}
	orchestrator, _, err := newOrchestrator(cfg)
	if err != nil {
		return err
	}

	outcome := pipeline.ParseBook(ctx, s, orchestrator, book)
	if err := writeJSON(out, outcome); err != nil {
		return err
	}
	if outcome.Status != models.StatusCompleted {
		return fmt.Errorf("record %d: %s", id, outcome.Error)
	}
	return nil
}

// describeFetchFailure adds a hint for the failure kinds an operator can act on.
func describeFetchFailure(err error) error {
	var rejected scraper.ErrRejected
	var exhausted scraper.ErrFetchExhausted
	switch {
	case errors.As(err, &rejected):
		return fmt.Errorf("%w (the page was refused; check the URL)", err)
	case errors.Is(err, scraper.ErrChallenge), errors.As(err, &exhausted):
		return fmt.Errorf("%w (consider fresh proxies or a later retry)", err)
	default:
		return err
	}
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
