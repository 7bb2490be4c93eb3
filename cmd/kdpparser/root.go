package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aluiziolira/kdp-parser/config"
	"github.com/aluiziolira/kdp-parser/store"
	"github.com/spf13/cobra"
)

const defaultConfigFile = "kdpparser.yaml"

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath  string
	dbPath      string
	snapshotDir string
	metricsAddr string
	verbose     bool
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}
	cmd := &cobra.Command{
		Use:   "kdpparser",
		Short: "Parse ratings, ranks and reviews from book product pages",
		Long: `kdpparser fetches book product pages through a pool of rotating proxies,
detects bot challenges, and extracts the rating, review count, best sellers
ranks and popular reviews of each book in a local catalog.

Settings are read from kdpparser.yaml (or --config), then .env and KDP_*
environment variables, then command line flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logger, _ := newLogger(opts.verbose)
			slog.SetDefault(logger)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML configuration file")
	flags.StringVar(&opts.dbPath, "db", "", "Catalog database path (overrides config)")
	flags.StringVar(&opts.snapshotDir, "snapshots", "", "Directory for raw HTML snapshots (overrides config)")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "Prometheus metrics listen address, e.g. :9090")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(NewParseCmd(opts))
	cmd.AddCommand(NewParseAllCmd(opts))
	cmd.AddCommand(NewAddCmd(opts))
	cmd.AddCommand(NewStatusCmd(opts))

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig layers the config file, .env, the environment and flags.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	config.LoadEnv()

	path := o.configPath
	if path == "" {
		path = defaultConfigFile
	}
	cfg, err := config.LoadFile(path)
	switch {
	case errors.Is(err, config.ErrConfigNotFound) && o.configPath == "":
		cfg = config.DefaultConfig()
	case err != nil:
		return nil, fmt.Errorf("load %s: %w", path, err)
	default:
		slog.Debug("loaded config file", slog.String("path", path))
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if o.dbPath != "" {
		cfg.DatabasePath = o.dbPath
	}
	if o.snapshotDir != "" {
		cfg.SnapshotDir = o.snapshotDir
	}
	if o.metricsAddr != "" {
		cfg.MetricsAddr = o.metricsAddr
	}
	if o.verbose {
		cfg.Verbose = true
	}
	return cfg, nil
}

// loadFetchConfig is loadConfig plus validation of the fetch settings.
func (o *globalOptions) loadFetchConfig() (*config.Config, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func openStore(cfg *config.Config) (*store.Store, error) {
	s, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", cfg.DatabasePath, err)
	}
	return s, nil
}
