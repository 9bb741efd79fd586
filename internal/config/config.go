package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete engine configuration.
type Config struct {
	Tickers  []TickerConfig `yaml:"tickers"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Sources  SourcesConfig  `yaml:"sources"`
	Store    StoreConfig    `yaml:"store"`
	HTTP     HTTPConfig     `yaml:"http"`
	Seeds    SeedsConfig    `yaml:"seeds"`
}

// TickerConfig describes one tracked underlying.
type TickerConfig struct {
	Symbol   string  `yaml:"symbol"`
	CFDRatio float64 `yaml:"cfd_ratio"` // divide index-level prices by this, 0 means off
	Enabled  bool    `yaml:"enabled"`
}

// ScheduleConfig controls when derivation cycles run.
type ScheduleConfig struct {
	Hours        []int `yaml:"hours"`         // UTC hours to fire on
	WeekdaysOnly bool  `yaml:"weekdays_only"` // skip Saturday and Sunday
}

// SourcesConfig tunes the data source fallback chains.
type SourcesConfig struct {
	ChainURL       string  `yaml:"chain_url"`        // option chain feed base URL
	QuoteURL       string  `yaml:"quote_url"`        // secondary chain source base URL
	DarkPoolURL    string  `yaml:"darkpool_url"`     // dark pool scan feed base URL
	ShortVolumeURL string  `yaml:"short_volume_url"` // daily short volume file base URL
	LevelsTTLSecs  int     `yaml:"levels_ttl_secs"`  // cache TTL for chain and level data
	PrintsTTLSecs  int     `yaml:"prints_ttl_secs"`  // cache TTL for print data
	RPS            float64 `yaml:"rps"`              // request rate toward upstream feeds
	TimeoutSecs    int     `yaml:"timeout_secs"`     // per-request HTTP timeout
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Backend  string `yaml:"backend"` // file, postgres or redis
	Dir      string `yaml:"dir"`     // file backend state directory
	DSN      string `yaml:"dsn"`     // postgres connection string, env LEVELCAST_PG_DSN overrides
	Redis    string `yaml:"redis"`   // redis address, env LEVELCAST_REDIS_ADDR overrides
	RedisDB  int    `yaml:"redis_db"`
	Password string `yaml:"password"` // redis password, env LEVELCAST_REDIS_PASSWORD overrides
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// SeedsConfig configures CSV seed publishing to a GitHub repository.
type SeedsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Owner   string `yaml:"owner"`
	Repo    string `yaml:"repo"`
	Branch  string `yaml:"branch"`
	Path    string `yaml:"path"`  // directory inside the repo for seed files
	Token   string `yaml:"token"` // env LEVELCAST_GITHUB_TOKEN overrides
	MaxRows int    `yaml:"max_rows"`
}

// Default returns the built-in configuration used when no file is given.
func Default() *Config {
	return &Config{
		Tickers: []TickerConfig{
			{Symbol: "SPY", Enabled: true},
			{Symbol: "QQQ", Enabled: true},
			{Symbol: "IWM", Enabled: true},
			{Symbol: "NASDAQ", CFDRatio: 41.33, Enabled: true},
			{Symbol: "GOLD", CFDRatio: 10.97, Enabled: true},
			{Symbol: "SILVER", Enabled: true},
		},
		Schedule: ScheduleConfig{
			Hours:        []int{14, 17, 20},
			WeekdaysOnly: true,
		},
		Sources: SourcesConfig{
			ChainURL:       "https://cdn.cboe.com/api/global/delayed_quotes/options",
			QuoteURL:       "https://www.barchart.com/proxies/core-api/v1",
			DarkPoolURL:    "https://api.chartexchange.com",
			ShortVolumeURL: "https://cdn.finra.org/equity/regsho/daily",
			LevelsTTLSecs:  300,
			PrintsTTLSecs:  600,
			RPS:            2,
			TimeoutSecs:    30,
		},
		Store: StoreConfig{
			Backend: "file",
			Dir:     "state",
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Seeds: SeedsConfig{
			Branch:  "main",
			Path:    "seeds",
			MaxRows: 30,
		},
	}
}

// Load reads a YAML config file, applies environment overrides and
// validates the result. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyEnv lets secrets come from the environment instead of the file.
func (c *Config) applyEnv() {
	if v := os.Getenv("LEVELCAST_PG_DSN"); v != "" {
		c.Store.DSN = v
	}
	if v := os.Getenv("LEVELCAST_REDIS_ADDR"); v != "" {
		c.Store.Redis = v
	}
	if v := os.Getenv("LEVELCAST_REDIS_PASSWORD"); v != "" {
		c.Store.Password = v
	}
	if v := os.Getenv("LEVELCAST_GITHUB_TOKEN"); v != "" {
		c.Seeds.Token = v
	}
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if len(c.Tickers) == 0 {
		return fmt.Errorf("no tickers configured")
	}
	seen := make(map[string]bool, len(c.Tickers))
	for _, t := range c.Tickers {
		if t.Symbol == "" {
			return fmt.Errorf("ticker with empty symbol")
		}
		if seen[t.Symbol] {
			return fmt.Errorf("duplicate ticker %s", t.Symbol)
		}
		seen[t.Symbol] = true
		if t.CFDRatio < 0 {
			return fmt.Errorf("ticker %s: negative cfd_ratio", t.Symbol)
		}
	}

	if len(c.Schedule.Hours) == 0 {
		return fmt.Errorf("schedule has no hours")
	}
	for _, h := range c.Schedule.Hours {
		if h < 0 || h > 23 {
			return fmt.Errorf("schedule hour %d out of range", h)
		}
	}

	switch c.Store.Backend {
	case "file":
		if c.Store.Dir == "" {
			return fmt.Errorf("file store requires dir")
		}
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("postgres store requires dsn")
		}
	case "redis":
		if c.Store.Redis == "" {
			return fmt.Errorf("redis store requires an address")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	if c.Sources.RPS <= 0 {
		return fmt.Errorf("sources rps must be positive")
	}
	if c.Seeds.Enabled {
		if c.Seeds.Owner == "" || c.Seeds.Repo == "" {
			return fmt.Errorf("seed publishing requires owner and repo")
		}
		if c.Seeds.Token == "" {
			return fmt.Errorf("seed publishing requires a token")
		}
	}
	return nil
}

// EnabledTickers returns the tickers with Enabled set.
func (c *Config) EnabledTickers() []TickerConfig {
	out := make([]TickerConfig, 0, len(c.Tickers))
	for _, t := range c.Tickers {
		if t.Enabled {
			out = append(out, t)
		}
	}
	return out
}

// LevelsTTL returns the level cache TTL as a duration.
func (c *SourcesConfig) LevelsTTL() time.Duration {
	return time.Duration(c.LevelsTTLSecs) * time.Second
}

// PrintsTTL returns the print cache TTL as a duration.
func (c *SourcesConfig) PrintsTTL() time.Duration {
	return time.Duration(c.PrintsTTLSecs) * time.Second
}

// Timeout returns the HTTP timeout as a duration.
func (c *SourcesConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}
