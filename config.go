package sqlflow

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"

	"github.com/sqlflow/sqlflow/internal/variable"
)

// ErrConfigValidation is returned when a profile fails validation.
var ErrConfigValidation = errors.New("configuration validation failed")

// Config is the parsed contents of a SQLFlow profile file
// (<profile>.yml, §6.4 source tier 3).
type Config struct {
	Dialect     string              `yaml:"dialect"`
	Databases   map[string]Database `yaml:"databases"`
	Variables   map[string]string   `yaml:"variables"`
	Query       QueryConfig         `yaml:"query"`
	Performance PerformanceConfig   `yaml:"performance"`
}

// Database is one named connection entry under databases:.
type Database struct {
	Driver     string `yaml:"driver"`
	Connection string `yaml:"connection"`
}

// QueryConfig holds execution defaults.
type QueryConfig struct {
	Timeout     int  `yaml:"timeout"`
	Parallelism int  `yaml:"parallelism"` // not read by cmd/sqlflow, which sizes its pool from --parallel
	ContinueOnError bool `yaml:"continue_on_error"`
}

// PerformanceConfig holds the observability thresholds from §4.5.
type PerformanceConfig struct {
	SlowStepThreshold    time.Duration `yaml:"slow_step_threshold"`
	FailureRateCritical  float64       `yaml:"failure_rate_critical"`
}

// LoadConfig loads a profile file, applying .env overlay and defaults. A
// missing file is not an error: it yields the default configuration, per
// §6.4's "default" tier always being available.
func LoadConfig(path string) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("failed to load .env overlay: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return defaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile %s: %w", path, err)
	}

	cfg := defaultConfig()
	if err := yaml.UnmarshalWithOptions(data, cfg, yaml.Strict()); err != nil {
		return nil, fmt.Errorf("failed to parse profile %s: %w", path, err)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("%w", err)
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Dialect:   "postgres",
		Databases: make(map[string]Database),
		Variables: make(map[string]string),
		Query: QueryConfig{
			Timeout:     0,
			Parallelism: 0,
		},
		Performance: PerformanceConfig{
			SlowStepThreshold:   3 * time.Second,
			FailureRateCritical: 0.5,
		},
	}
}

func validateConfig(cfg *Config) error {
	switch Dialect(cfg.Dialect) {
	case DialectPostgres, DialectMySQL, DialectSQLite, "":
	default:
		return fmt.Errorf("%w: unknown dialect %q", ErrConfigValidation, cfg.Dialect)
	}

	if cfg.Query.Timeout < 0 {
		return fmt.Errorf("%w: query.timeout must be non-negative", ErrConfigValidation)
	}

	if cfg.Query.Parallelism < 0 {
		return fmt.Errorf("%w: query.parallelism must be non-negative", ErrConfigValidation)
	}

	if cfg.Performance.FailureRateCritical < 0 || cfg.Performance.FailureRateCritical > 1 {
		return fmt.Errorf("%w: performance.failure_rate_critical must be in [0,1]", ErrConfigValidation)
	}

	return nil
}

// PopulateStore layers this profile's variables and the process environment
// into store at their §6.4 tiers (profile above environment, both below the
// SET and CLI tiers a caller layers in separately). Existing values at those
// tiers are overwritten; other tiers are untouched.
func (c *Config) PopulateStore(store *variable.Store) {
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}

		store.Set(variable.TierEnvironment, name, variable.String(value))
	}

	for name, value := range c.Variables {
		store.Set(variable.TierProfile, name, variable.String(value))
	}
}

func loadEnvFile() error {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	return nil
}
