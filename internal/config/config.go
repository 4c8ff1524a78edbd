// =================================
// File: internal/config/config.go
// =================================
// Package config loads the orchestrator's runtime settings: the DEX
// aggregator endpoint, the RPC fallback list used for balance snapshots,
// the HTTP timeout and quote staleness window, and worker/retry defaults.
// The worker and retry defaults are loaded and validated here only; the
// scheduler and runner take their values from the SwapRequest.
package config

import (
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Config is the process-wide configuration for a swaprun invocation.
type Config struct {
	AggregatorBaseURL string   `mapstructure:"aggregator_base_url"`
	RPCList           []string `mapstructure:"rpc_list"`

	DefaultWorkers        int `mapstructure:"default_workers"`
	DefaultMaxRetries     int `mapstructure:"default_max_retries"`
	DefaultRetryBackoffMS int `mapstructure:"default_retry_backoff_ms"`

	QuoteStaleWindowMS int `mapstructure:"quote_stale_window_ms"`
	HTTPTimeoutMS      int `mapstructure:"http_timeout_ms"`

	DebugLogging bool `mapstructure:"debug_logging"`
}

const (
	DefaultWorkers            = 5
	DefaultMaxRetries         = 3
	DefaultRetryBackoffMS     = 500
	DefaultQuoteStaleWindowMS = 10000
	DefaultHTTPTimeoutMS      = 8000
)

// QuoteStaleWindow returns the configured quote staleness window as a
// time.Duration, ready to hand to swap.Quote.Stale.
func (c *Config) QuoteStaleWindow() time.Duration {
	return time.Duration(c.QuoteStaleWindowMS) * time.Millisecond
}

// HTTPTimeout returns the configured per-call DexClient timeout.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutMS) * time.Millisecond
}

// Load reads path through viper, applies defaults, overlays the
// SWAPRUN_AGGREGATOR_BASE_URL and SWAPRUN_RPC_LIST environment variables
// and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"default_workers":          DefaultWorkers,
		"default_max_retries":      DefaultMaxRetries,
		"default_retry_backoff_ms": DefaultRetryBackoffMS,
		"quote_stale_window_ms":    DefaultQuoteStaleWindowMS,
		"http_timeout_ms":          DefaultHTTPTimeoutMS,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	loadEnvironmentVariables(v, &cfg)

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if cfg.AggregatorBaseURL == "" {
		return errors.New("missing aggregator_base_url in configuration")
	}
	if err := validateURLWithCache(cfg.AggregatorBaseURL, "http"); err != nil {
		return errors.New("invalid aggregator_base_url protocol")
	}
	if len(cfg.RPCList) == 0 {
		return errors.New("rpc_list is empty")
	}
	for _, rpcURL := range cfg.RPCList {
		if err := validateURLWithCache(rpcURL, "http"); err != nil {
			return errors.New("invalid RPC URL protocol")
		}
	}
	return validateNumericParams(cfg)
}

func validateNumericParams(cfg *Config) error {
	if cfg.DefaultWorkers < 1 {
		return errors.New("invalid default_workers")
	}
	if cfg.DefaultMaxRetries < 0 {
		return errors.New("invalid default_max_retries")
	}
	if cfg.DefaultRetryBackoffMS <= 0 {
		return errors.New("invalid default_retry_backoff_ms")
	}
	if cfg.QuoteStaleWindowMS <= 0 {
		return errors.New("invalid quote_stale_window_ms")
	}
	if cfg.HTTPTimeoutMS <= 0 {
		return errors.New("invalid http_timeout_ms")
	}
	return nil
}

var urlCache sync.Map

func validateURLWithCache(rawURL string, protocol string) error {
	if _, ok := urlCache.Load(rawURL); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	urlCache.Store(rawURL, parsed)
	return nil
}

func loadEnvironmentVariables(v *viper.Viper, cfg *Config) {
	v.AutomaticEnv()
	v.SetEnvPrefix("SWAPRUN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if envAggregator := v.GetString("AGGREGATOR_BASE_URL"); envAggregator != "" {
		cfg.AggregatorBaseURL = envAggregator
	}

	if envRPCList := v.GetString("RPC_LIST"); envRPCList != "" {
		rpcs := strings.Split(envRPCList, ",")
		var cleanRPCs []string
		for _, rpc := range rpcs {
			clean := strings.TrimSpace(rpc)
			if clean != "" {
				cleanRPCs = append(cleanRPCs, clean)
			}
		}
		if len(cleanRPCs) > 0 {
			cfg.RPCList = cleanRPCs
		}
	}
}
