package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aluiziolira/kdp-parser/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

// NewParseAllCmd creates the parse-all command.
func NewParseAllCmd(opts *globalOptions) *cobra.Command {
	var (
		reportPath string
		format     string
	)
	cmd := &cobra.Command{
		Use:   "parse-all",
		Short: "Parse every catalog record in one batch",
		Long: `Parse-all visits every catalog record in order and stores each outcome.

Only one batch runs at a time across all processes sharing the catalog
database; a second request is refused while the first is in progress. An
interrupt stops the batch before the next record.

Examples:
  kdpparser parse-all
  kdpparser parse-all --report out/report.csv --format both`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadFetchConfig()
			if err != nil {
				return err
			}
			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			orchestrator, metrics, err := newOrchestrator(cfg)
			if err != nil {
				return err
			}

			runner := &pipeline.BatchRunner{
				Catalog: s,
				Flag:    s.BatchFlag(),
				Parser:  orchestrator,
				Metrics: metrics,
			}
			if reportPath != "" {
				writer, err := pipeline.NewReportWriter(reportPath, format)
				if err != nil {
					return err
				}
				defer func() {
					if err := writer.Close(); err != nil {
						slog.Error("close report", slog.Any("error", err))
					}
				}()
				runner.Writer = writer
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if cfg.MetricsAddr != "" {
				shutdown := serveMetrics(cfg.MetricsAddr, metrics.Registry)
				defer shutdown()
			}

			start := time.Now()
			task, err := runner.Start(ctx)
			if errors.Is(err, pipeline.ErrBatchInProgress) {
				return fmt.Errorf("%w; see 'kdpparser status'", err)
			}
			if err != nil {
				return err
			}
			summary, err := task.Wait()
			printSummary(cmd, summary, time.Since(start))
			return err
		},
	}
	cmd.Flags().StringVarP(&reportPath, "report", "r", "", "Write every outcome to this file")
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "Report format: csv, json or both")
	return cmd
}

func serveMetrics(addr string, registry *prometheus.Registry) func() {
	server := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
	}
}

func printSummary(cmd *cobra.Command, summary pipeline.BatchSummary, duration time.Duration) {
	out := cmd.OutOrStdout()
	separator := "--------------------------------------------------"
	fmt.Fprintln(out, separator)
	fmt.Fprintln(out, "Batch complete")
	fmt.Fprintf(out, "  Records:    %d\n", summary.Total)
	fmt.Fprintf(out, "  Completed:  %d\n", summary.Completed)
	fmt.Fprintf(out, "  Failed:     %d\n", summary.Failed)
	fmt.Fprintf(out, "  Duration:   %v\n", duration.Round(time.Millisecond))
	fmt.Fprintln(out, separator)
}
