package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"trafficlens/pkg/accesslog"
	"trafficlens/pkg/metrics"
	"trafficlens/pkg/structlog"
	"trafficlens/shared/config"
)

const serviceName = "trafficlens"

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           serviceName,
		Short:         "Access-log analytics: normalization, anomalous addresses and behavioral segments.",
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Help(); err != nil {
				return fmt.Errorf("failed to show help: %w", err)
			}
			return nil
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	pf := rootCmd.PersistentFlags()
	pf.StringP("config", "c", "", "YAML configuration file")
	pf.BoolP("verbose", "v", false, "set debug logging level")
	pf.String("log-format", "", "log encoding (console, json)")
	pf.Bool("strict", false, "reject records missing a required key")
	pf.String("geoip-db", "", "MaxMind country database used instead of the prefix table")

	rootCmd.AddCommand(
		newAnalyzeCmd(),
		newNormalizeCmd(),
	)
	return rootCmd
}

// env bundles what every subcommand needs after flag parsing.
type env struct {
	cfg        *config.Config
	log        *structlog.Logger
	normalizer *accesslog.Normalizer
	close      func()
}

func setup(cmd *cobra.Command, m *metrics.Pipeline) (*env, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := applyIngestFlags(cmd, cfg); err != nil {
		return nil, err
	}

	level := structlog.ParseLevel(cfg.Logging.Level)
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = structlog.LevelDebug
	}
	format := structlog.Format(cfg.Logging.Format)
	if f, _ := cmd.Flags().GetString("log-format"); f != "" {
		format = structlog.Format(f)
	}
	log := structlog.NewLoggerWithFormat(serviceName, level, format, cmd.ErrOrStderr())
	structlog.SetDefaultLogger(log)

	opts := []accesslog.Option{
		accesslog.WithStrictSchema(cfg.Ingest.StrictSchema),
		accesslog.WithLogger(log),
		accesslog.WithMetrics(m),
	}
	closeFn := func() { _ = log.Sync() }
	if cfg.Ingest.GeoIPDatabase != "" {
		geo, err := accesslog.OpenGeoIPClassifier(cfg.Ingest.GeoIPDatabase, nil)
		if err != nil {
			return nil, err
		}
		opts = append(opts, accesslog.WithCountryClassifier(geo))
		closeFn = func() {
			_ = geo.Close()
			_ = log.Sync()
		}
		log.Info("country buckets from geoip database", structlog.Fields{"path": cfg.Ingest.GeoIPDatabase})
	}

	return &env{
		cfg:        cfg,
		log:        log,
		normalizer: accesslog.NewNormalizer(opts...),
		close:      closeFn,
	}, nil
}

func applyIngestFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("strict") {
		v, err := flags.GetBool("strict")
		if err != nil {
			return fmt.Errorf("failed to get strict flag: %w", err)
		}
		cfg.Ingest.StrictSchema = v
	}
	if flags.Changed("geoip-db") {
		v, err := flags.GetString("geoip-db")
		if err != nil {
			return fmt.Errorf("failed to get geoip-db flag: %w", err)
		}
		cfg.Ingest.GeoIPDatabase = v
	}
	return nil
}

// loadRecords decodes and normalizes the JSON upload at path.
func loadRecords(e *env, path string) ([]accesslog.NormalizedRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	raw, err := accesslog.DecodeRaw(f)
	if err != nil {
		return nil, err
	}
	records, err := e.normalizer.Normalize(raw)
	if err != nil {
		return nil, err
	}
	e.log.Info("records normalized", structlog.Fields{"input": path, "records": len(records)})
	return records, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
