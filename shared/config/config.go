package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "TRAFFICLENS_"

// Outlier model names accepted in Analysis.OutlierModel.
const (
	ModelIsolationForest = "iforest"
	ModelLOF             = "lof"
)

// Analysis is the configuration surface of the analysis pipeline.
type Analysis struct {
	// AnomalyFraction is the expected share of anomalous addresses, in (0, 0.5].
	AnomalyFraction float64 `yaml:"anomaly_fraction"`
	// ClusterCount is the number of behavioral segments, >= 2.
	ClusterCount int   `yaml:"cluster_count"`
	Seed         int64 `yaml:"seed"`

	OutlierModel string `yaml:"outlier_model"`
	Trees        int    `yaml:"trees"`
	MaxSamples   int    `yaml:"max_samples"`
	LOFNeighbors int    `yaml:"lof_neighbors"`
	KMeansInit   int    `yaml:"kmeans_init"`
	KMeansIter   int    `yaml:"kmeans_max_iter"`
}

// Ingest controls record normalization.
type Ingest struct {
	// StrictSchema rejects records that lack one of the required keys.
	StrictSchema  bool   `yaml:"strict_schema"`
	GeoIPDatabase string `yaml:"geoip_database"`
}

type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Config struct {
	Analysis Analysis `yaml:"analysis"`
	Ingest   Ingest   `yaml:"ingest"`
	Logging  Logging  `yaml:"logging"`
}

// Error reports an invalid configuration value.
type Error struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid config %s=%v: %s", e.Field, e.Value, e.Reason)
}

// ErrInvalid is matched by every *Error via errors.Is.
var ErrInvalid = errors.New("invalid configuration")

func (e *Error) Is(target error) bool { return target == ErrInvalid }

// DefaultAnalysis mirrors the dashboard defaults: 5% contamination, 3 segments, seed 42.
func DefaultAnalysis() Analysis {
	return Analysis{
		AnomalyFraction: 0.05,
		ClusterCount:    3,
		Seed:            42,
		OutlierModel:    ModelIsolationForest,
		Trees:           100,
		MaxSamples:      256,
		LOFNeighbors:    20,
		KMeansInit:      10,
		KMeansIter:      300,
	}
}

func Default() *Config {
	return &Config{
		Analysis: DefaultAnalysis(),
		Logging:  Logging{Level: "info", Format: "console"},
	}
}

// Validate rejects values outside the documented ranges before any computation runs.
func (a Analysis) Validate() error {
	if !(a.AnomalyFraction > 0 && a.AnomalyFraction <= 0.5) {
		return &Error{Field: "anomaly_fraction", Value: a.AnomalyFraction, Reason: "must be in (0, 0.5]"}
	}
	if a.ClusterCount < 2 {
		return &Error{Field: "cluster_count", Value: a.ClusterCount, Reason: "must be >= 2"}
	}
	switch a.OutlierModel {
	case ModelIsolationForest, ModelLOF:
	default:
		return &Error{Field: "outlier_model", Value: a.OutlierModel, Reason: "must be iforest or lof"}
	}
	if a.Trees < 1 {
		return &Error{Field: "trees", Value: a.Trees, Reason: "must be >= 1"}
	}
	if a.MaxSamples < 2 {
		return &Error{Field: "max_samples", Value: a.MaxSamples, Reason: "must be >= 2"}
	}
	if a.LOFNeighbors < 1 {
		return &Error{Field: "lof_neighbors", Value: a.LOFNeighbors, Reason: "must be >= 1"}
	}
	if a.KMeansInit < 1 {
		return &Error{Field: "kmeans_init", Value: a.KMeansInit, Reason: "must be >= 1"}
	}
	if a.KMeansIter < 1 {
		return &Error{Field: "kmeans_max_iter", Value: a.KMeansIter, Reason: "must be >= 1"}
	}
	return nil
}

func (c *Config) Validate() error {
	return c.Analysis.Validate()
}

// Load builds a Config from defaults, an optional YAML file, an optional .env file
// and TRAFFICLENS_* environment variables, in that order of precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// .env is optional; a missing file is not an error.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	a := &cfg.Analysis
	if v := Get(envPrefix+"ANOMALY_FRACTION", ""); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return &Error{Field: "anomaly_fraction", Value: v, Reason: "not a number"}
		}
		a.AnomalyFraction = f
	}
	ints := []struct {
		key string
		dst *int
	}{
		{"CLUSTER_COUNT", &a.ClusterCount},
		{"TREES", &a.Trees},
		{"MAX_SAMPLES", &a.MaxSamples},
		{"LOF_NEIGHBORS", &a.LOFNeighbors},
		{"KMEANS_INIT", &a.KMeansInit},
		{"KMEANS_MAX_ITER", &a.KMeansIter},
	}
	for _, it := range ints {
		v := Get(envPrefix+it.key, "")
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return &Error{Field: strings.ToLower(it.key), Value: v, Reason: "not an integer"}
		}
		*it.dst = n
	}
	if v := Get(envPrefix+"SEED", ""); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return &Error{Field: "seed", Value: v, Reason: "not an integer"}
		}
		a.Seed = n
	}
	a.OutlierModel = Get(envPrefix+"OUTLIER_MODEL", a.OutlierModel)

	if v := Get(envPrefix+"STRICT_SCHEMA", ""); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return &Error{Field: "strict_schema", Value: v, Reason: "not a boolean"}
		}
		cfg.Ingest.StrictSchema = b
	}
	cfg.Ingest.GeoIPDatabase = Get(envPrefix+"GEOIP_DATABASE", cfg.Ingest.GeoIPDatabase)
	cfg.Logging.Level = Get(envPrefix+"LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = Get(envPrefix+"LOG_FORMAT", cfg.Logging.Format)
	return nil
}

// Get returns an environment variable or default value.
func Get(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
