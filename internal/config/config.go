package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"BreakoutScanner/internal/collector"
	"BreakoutScanner/internal/features"
	"BreakoutScanner/internal/scorer"
	"BreakoutScanner/internal/strategy"
)

// EnvPrefix is the prefix of environment overrides, e.g. BREAKOUT_TELEGRAM_BOT_TOKEN.
const EnvPrefix = "BREAKOUT"

// Config holds all application configuration.
type Config struct {
	LogLevel string `yaml:"log_level"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	DataSource struct {
		Provider string `yaml:"provider"` // yahoo, polygon or mock
		BaseURL  string `yaml:"base_url"`
		APIKey   string `yaml:"api_key"`
	} `yaml:"data_source"`
	Collector collector.Config `yaml:"collector"`
	Features  features.Config  `yaml:"features"`
	Model     struct {
		DefaultHorizon string               `yaml:"default_horizon"`
		Horizons       []scorer.HorizonSpec `yaml:"horizons"`
	} `yaml:"model"`
	Decision strategy.Config `yaml:"decision"`
	Scan     struct {
		Concurrency int      `yaml:"concurrency"`
		Tickers     []string `yaml:"tickers"`
		Watchlist   string   `yaml:"watchlist"`
	} `yaml:"scan"`
	Schedule struct {
		ScanCron string `yaml:"scan_cron"`
		Horizon  string `yaml:"horizon"`
	} `yaml:"schedule"`
	Database struct {
		Driver string `yaml:"driver"` // sqlite, postgres or empty to disable
		DSN    string `yaml:"dsn"`
	} `yaml:"database"`
	Server struct {
		Addr        string        `yaml:"addr"`
		CORSOrigins []string      `yaml:"cors_origins"`
		KeepScans   int           `yaml:"keep_scans"`
		ScanTimeout time.Duration `yaml:"scan_timeout"`
	} `yaml:"server"`
	Proxy string `yaml:"proxy"`
}

// envOverrides lists the settings that may come from the environment.
type envOverrides struct {
	LogLevel         string        `envconfig:"LOG_LEVEL"`
	TelegramBotToken string        `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string        `envconfig:"TELEGRAM_CHAT_ID"`
	Provider         string        `envconfig:"PROVIDER"`
	ProviderBaseURL  string        `envconfig:"PROVIDER_BASE_URL"`
	ProviderAPIKey   string        `envconfig:"PROVIDER_API_KEY"`
	Concurrency      int           `envconfig:"CONCURRENCY"`
	FetchTimeout     time.Duration `envconfig:"FETCH_TIMEOUT"`
	ScanCron         string        `envconfig:"SCAN_CRON"`
	DBDriver         string        `envconfig:"DB_DRIVER"`
	DBDSN            string        `envconfig:"DB_DSN"`
	ServerAddr       string        `envconfig:"SERVER_ADDR"`
	Proxy            string        `envconfig:"PROXY"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{LogLevel: "info"}
	cfg.DataSource.Provider = "yahoo"
	cfg.Collector = collector.DefaultConfig()
	cfg.Features = features.DefaultConfig()
	cfg.Model.DefaultHorizon = "1m"
	cfg.Model.Horizons = []scorer.HorizonSpec{
		{Name: "1w", ScalerPath: "models/scaler_1w.json", ModelPath: "models/classifier_1w.json", Threshold: 0.5},
		{Name: "1m", ScalerPath: "models/scaler_1m.json", ModelPath: "models/classifier_1m.json", Threshold: 0.5},
		{Name: "3m", ScalerPath: "models/scaler_3m.json", ModelPath: "models/classifier_3m.json", Threshold: 0.5},
	}
	cfg.Decision = strategy.DefaultConfig()
	cfg.Scan.Concurrency = 8
	cfg.Schedule.ScanCron = "0 30 16 * * 1-5"
	cfg.Server.Addr = ":8080"
	cfg.Server.KeepScans = 50
	cfg.Server.ScanTimeout = 5 * time.Minute
	return cfg
}

// Load reads config from a YAML file over the defaults, then applies environment
// variable overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.LogLevel, env.LogLevel)
	set(&c.Telegram.BotToken, env.TelegramBotToken)
	set(&c.Telegram.ChatID, env.TelegramChatID)
	set(&c.DataSource.Provider, env.Provider)
	set(&c.DataSource.BaseURL, env.ProviderBaseURL)
	set(&c.DataSource.APIKey, env.ProviderAPIKey)
	set(&c.Schedule.ScanCron, env.ScanCron)
	set(&c.Database.Driver, env.DBDriver)
	set(&c.Database.DSN, env.DBDSN)
	set(&c.Server.Addr, env.ServerAddr)
	set(&c.Proxy, env.Proxy)
	if env.Concurrency > 0 {
		c.Scan.Concurrency = env.Concurrency
	}
	if env.FetchTimeout > 0 {
		c.Collector.FetchTimeout = env.FetchTimeout
	}
	if c.Proxy == "" {
		c.Proxy = os.Getenv("HTTPS_PROXY")
	}
	return nil
}

// TelegramEnabled reports whether both Telegram credentials are set.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

// Validate checks the settings that constructors do not validate themselves.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level %q is not debug, info, warn or error", c.LogLevel)
	}
	switch c.DataSource.Provider {
	case "yahoo", "mock":
	case "polygon":
		if c.DataSource.APIKey == "" {
			return fmt.Errorf("data_source.api_key is required for polygon")
		}
	default:
		return fmt.Errorf("data_source.provider %q is not yahoo, polygon or mock", c.DataSource.Provider)
	}
	if c.Collector.LookbackBars <= 0 {
		return fmt.Errorf("collector.lookback_bars must be positive")
	}
	if c.Collector.MinBars <= 0 {
		return fmt.Errorf("collector.min_bars must be positive")
	}
	if len(c.Model.Horizons) == 0 {
		return fmt.Errorf("model.horizons must not be empty")
	}
	seen := make(map[string]bool)
	for _, h := range c.Model.Horizons {
		if h.Name == "" {
			return fmt.Errorf("model.horizons: name is required")
		}
		if seen[h.Name] {
			return fmt.Errorf("model.horizons: duplicate %s", h.Name)
		}
		seen[h.Name] = true
		if h.Threshold < 0 || h.Threshold > 1 {
			return fmt.Errorf("model.horizons.%s: threshold must be in [0,1]", h.Name)
		}
	}
	if c.Model.DefaultHorizon != "" && !seen[c.Model.DefaultHorizon] {
		return fmt.Errorf("model.default_horizon %s is not configured", c.Model.DefaultHorizon)
	}
	if c.Scan.Concurrency <= 0 {
		return fmt.Errorf("scan.concurrency must be positive")
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	switch c.Database.Driver {
	case "":
	case "sqlite", "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for %s", c.Database.Driver)
		}
	default:
		return fmt.Errorf("database.driver %q is not sqlite or postgres", c.Database.Driver)
	}
	return nil
}
