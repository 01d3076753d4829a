package config

import (
	"fmt"
	"time"

	"github.com/copperline-io/ferry/store"
)

// Config represents a ferry.yaml configuration file.
// All values are optional and act as defaults for ferry command flags.
// CLI flags always override config values. Credentials never live here;
// they are read from SALESFORCE_* environment variables.
type Config struct {
	API        APIConfig        `yaml:"api"`
	CSV        CSVConfig        `yaml:"csv"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Storage    StorageConfig    `yaml:"storage"`
	Adapter    AdapterConfig    `yaml:"adapter"`
}

// APIConfig holds remote API defaults from the config file.
type APIConfig struct {
	Version   string   `yaml:"version"`
	BatchSize int      `yaml:"batch_size"`
	Timeout   Duration `yaml:"timeout"`
	LoginURL  string   `yaml:"login_url"`
}

// CSVConfig holds flat-file defaults from the config file.
type CSVConfig struct {
	Encoding       string `yaml:"encoding"`
	Delimiter      string `yaml:"delimiter"`
	ErrorDirectory string `yaml:"error_directory"`
	// ResultsDirectory receives the per-run success results file.
	// Empty falls back to the error directory.
	ResultsDirectory string `yaml:"results_directory"`
}

// DelimiterRune returns the configured delimiter as a rune.
// Empty means comma.
func (c CSVConfig) DelimiterRune() (rune, error) {
	switch c.Delimiter {
	case "":
		return ',', nil
	case "\\t", "tab":
		return '\t', nil
	}
	runes := []rune(c.Delimiter)
	if len(runes) != 1 {
		return 0, fmt.Errorf("invalid delimiter %q: must be a single character", c.Delimiter)
	}
	return runes[0], nil
}

// EnrichmentConfig holds per-object enrichment field allow-lists.
// The map key is the object name (e.g. Account); omitted objects fall
// back to built-in defaults.
type EnrichmentConfig struct {
	Fields map[string][]string `yaml:"fields"`
}

// StorageConfig holds error-file archive defaults from the config file.
type StorageConfig struct {
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// AdapterConfig holds completion-event adapter defaults from the config file.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Default returns a Config carrying the built-in defaults used when no
// config file is present.
func Default() *Config {
	return &Config{
		API: APIConfig{
			Version:   store.DefaultAPIVersion,
			BatchSize: store.MaxBatchSize,
			Timeout:   Duration{30 * time.Second},
		},
		CSV: CSVConfig{
			Encoding:       "utf-8",
			ErrorDirectory: ".",
		},
		Storage: StorageConfig{Backend: "none"},
	}
}

// Validate checks cross-field constraints. It does not check flags that
// the commands validate themselves (file paths, object names).
func (c *Config) Validate() error {
	if c.API.BatchSize < 0 || c.API.BatchSize > store.MaxBatchSize {
		return fmt.Errorf("api.batch_size must be between 1 and %d, got %d", store.MaxBatchSize, c.API.BatchSize)
	}
	if _, err := c.CSV.DelimiterRune(); err != nil {
		return err
	}
	switch c.Storage.Backend {
	case "", "none", "fs", "s3":
	default:
		return fmt.Errorf("storage.backend must be one of none, fs, s3; got %q", c.Storage.Backend)
	}
	switch c.Adapter.Type {
	case "", "webhook", "redis":
	default:
		return fmt.Errorf("adapter.type must be webhook or redis, got %q", c.Adapter.Type)
	}
	return nil
}

// applyDefaults fills zero values with the built-in defaults.
func (c *Config) applyDefaults() {
	def := Default()
	if c.API.Version == "" {
		c.API.Version = def.API.Version
	}
	if c.API.BatchSize == 0 {
		c.API.BatchSize = def.API.BatchSize
	}
	if c.API.Timeout.Duration == 0 {
		c.API.Timeout = def.API.Timeout
	}
	if c.CSV.Encoding == "" {
		c.CSV.Encoding = def.CSV.Encoding
	}
	if c.CSV.ErrorDirectory == "" {
		c.CSV.ErrorDirectory = def.CSV.ErrorDirectory
	}
	if c.CSV.ResultsDirectory == "" {
		c.CSV.ResultsDirectory = c.CSV.ErrorDirectory
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = def.Storage.Backend
	}
}
