// Package config loads and validates analysis configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/lsst-sqre/lsst-io-analysis/internal/urlnorm"
)

// EnvPrefix prefixes environment overrides, e.g. LSSTIO_INGEST_CONCURRENCY.
const EnvPrefix = "LSSTIO"

// Config captures all analysis knobs loaded via Viper.
type Config struct {
	LTD     LTDConfig     `mapstructure:"ltd"`
	Ingest  IngestConfig  `mapstructure:"ingest"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Algolia AlgoliaConfig `mapstructure:"algolia"`
	Output  OutputConfig  `mapstructure:"output"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LTDConfig locates the LTD Keeper API.
type LTDConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// IngestConfig governs the ingest pipeline.
type IngestConfig struct {
	Concurrency int  `mapstructure:"concurrency"`
	FailFast    bool `mapstructure:"fail_fast"`
}

// HTTPConfig configures the LTD HTTP client.
type HTTPConfig struct {
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	UserAgent         string  `mapstructure:"user_agent"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// AlgoliaConfig identifies the search index used for metadata enrichment.
type AlgoliaConfig struct {
	ID    string `mapstructure:"id"`
	Key   string `mapstructure:"key"`
	Index string `mapstructure:"index"`
}

// OutputConfig sets where the CSV report is written. Empty disables it.
type OutputConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// MetricsConfig controls the end-of-run Pushgateway push.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"ltd-base-url":  "ltd.base_url",
	"concurrency":   "ingest.concurrency",
	"fail-fast":     "ingest.fail_fast",
	"algolia-id":    "algolia.id",
	"algolia-key":   "algolia.key",
	"algolia-index": "algolia.index",
	"output":        "output.path",
}

// envAliases are the unprefixed variables honoured for the search index.
var envAliases = map[string]string{
	"algolia.id":    "ALGOLIA_ID",
	"algolia.key":   "ALGOLIA_KEY",
	"algolia.index": "ALGOLIA_INDEX",
}

// Load builds a Config from defaults, an optional config file, the
// environment and flags, in increasing order of precedence. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	for key, name := range envAliases {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, name, prefixed); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", name, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ltd.base_url", "https://keeper.lsst.codes")
	v.SetDefault("ingest.concurrency", 10)
	v.SetDefault("ingest.fail_fast", false)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.user_agent", "lsst-io-analysis/0.1")
	v.SetDefault("http.requests_per_second", 0)
	v.SetDefault("http.burst", 1)
	v.SetDefault("algolia.id", "")
	v.SetDefault("algolia.key", "")
	v.SetDefault("algolia.index", "document_dev")
	v.SetDefault("output.path", "")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "lsst_io_analysis")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if _, err := urlnorm.Root(c.LTD.BaseURL); err != nil {
		return fmt.Errorf("ltd.base_url: %w", err)
	}
	if c.Ingest.Concurrency <= 0 {
		return fmt.Errorf("ingest.concurrency must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.RequestsPerSecond < 0 {
		return fmt.Errorf("http.requests_per_second must be >= 0")
	}
	if c.HTTP.Burst < 0 {
		return fmt.Errorf("http.burst must be >= 0")
	}
	if (c.Algolia.ID == "") != (c.Algolia.Key == "") {
		return fmt.Errorf("algolia.id and algolia.key must be set together")
	}
	if c.SearchEnabled() && c.Algolia.Index == "" {
		return fmt.Errorf("algolia.index must be set when search is enabled")
	}
	return nil
}

// SearchEnabled reports whether search index credentials are configured.
func (c Config) SearchEnabled() bool {
	return c.Algolia.ID != "" && c.Algolia.Key != ""
}

// RequestTimeout converts http.timeout_seconds into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}
