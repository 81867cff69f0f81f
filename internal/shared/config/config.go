package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/samber/lo"
	"github.com/samber/oops"

	"github.com/threatwatch-io/threatwatch/internal/shared/errors"
)

type Config struct {
	DatabasePath string `koanf:"database_path"`
	HTTPPort     string `koanf:"http_port"`
	AppEnv       AppEnv `koanf:"app_env"`

	Scheduler SchedulerConfig `koanf:"scheduler"`
	Retention RetentionConfig `koanf:"retention"`
	Search    SearchConfig    `koanf:"search"`
	Analyzer  AnalyzerConfig  `koanf:"analyzer"`

	TelegramBotToken string `koanf:"telegram_bot_token"`
	TelegramAPIURL   string `koanf:"telegram_api_url"`
}

type SchedulerConfig struct {
	PollIntervalSecs   int `koanf:"poll_interval_secs"`
	MaxConcurrentScans int `koanf:"max_concurrent_scans"`
	RetryAttempts      int `koanf:"retry_attempts"`
	RetryDelaySecs     int `koanf:"retry_delay_secs"`
	ScanTimeoutSecs    int `koanf:"scan_timeout_secs"`
}

type RetentionConfig struct {
	Days int `koanf:"days"`
}

type SearchConfig struct {
	APIKey   string `koanf:"api_key"`
	EngineID string `koanf:"engine_id"`
	BaseURL  string `koanf:"base_url"`
}

type AnalyzerConfig struct {
	APIKey  string `koanf:"api_key"`
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
}

func (s SchedulerConfig) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalSecs) * time.Second
}
func (s SchedulerConfig) RetryDelay() time.Duration {
	return time.Duration(s.RetryDelaySecs) * time.Second
}
func (s SchedulerConfig) ScanTimeout() time.Duration {
	return time.Duration(s.ScanTimeoutSecs) * time.Second
}

// RetentionPeriod reports how long alerts are kept; zero means forever.
func (r RetentionConfig) RetentionPeriod() time.Duration {
	if r.Days <= 0 {
		return 0
	}
	return time.Duration(r.Days) * 24 * time.Hour
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Try to load config file from various formats
	configFiles := []string{
		"config.yaml",
		"config.yml",
		"config.json",
		"config.toml",
	}

	configFile, found := lo.Find(configFiles, func(file string) bool {
		_, err := os.Stat(file)
		return err == nil
	})

	if found {
		var parser koanf.Parser
		ext := filepath.Ext(configFile)

		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		case ".toml":
			parser = toml.Parser()
		default:
			return nil, oops.Errorf("unsupported config file extension: %s", ext)
		}

		if err := k.Load(file.Provider(configFile), parser); err != nil {
			return nil, oops.With("config_file", configFile).Wrap(err)
		}
	}

	// Environment variables override config file values. Double underscores
	// map to nested keys (SCHEDULER__RETRY_ATTEMPTS -> scheduler.retry_attempts).
	if err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	}), nil); err != nil {
		return nil, oops.With("context", "loading environment variables").Wrap(err)
	}

	// Set defaults
	if !k.Exists("database_path") {
		k.Set("database_path", "./data/threatwatch.db")
	}
	if !k.Exists("http_port") {
		k.Set("http_port", "8080")
	}
	if !k.Exists("app_env") {
		k.Set("app_env", "production")
	}
	if !k.Exists("scheduler.poll_interval_secs") {
		k.Set("scheduler.poll_interval_secs", 300)
	}
	if !k.Exists("scheduler.max_concurrent_scans") {
		k.Set("scheduler.max_concurrent_scans", 5)
	}
	if !k.Exists("scheduler.retry_attempts") {
		k.Set("scheduler.retry_attempts", 3)
	}
	if !k.Exists("scheduler.retry_delay_secs") {
		k.Set("scheduler.retry_delay_secs", 300)
	}
	if !k.Exists("scheduler.scan_timeout_secs") {
		k.Set("scheduler.scan_timeout_secs", 120)
	}
	if !k.Exists("retention.days") {
		k.Set("retention.days", 30)
	}
	if !k.Exists("analyzer.model") {
		k.Set("analyzer.model", "gpt-4o")
	}
	if !k.Exists("telegram_api_url") {
		k.Set("telegram_api_url", "https://api.telegram.org")
	}

	// Unmarshal into struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.With("context", "unmarshaling config").Wrap(err)
	}

	// Parse AppEnv from string if needed
	if appEnvStr := k.String("app_env"); appEnvStr != "" {
		if env, err := ParseAppEnv(appEnvStr); err == nil {
			cfg.AppEnv = env
		} else {
			cfg.AppEnv = AppEnvProduction
		}
	} else {
		cfg.AppEnv = AppEnvProduction
	}

	// Validate required fields
	if cfg.Search.APIKey == "" || cfg.Analyzer.APIKey == "" {
		return nil, errors.ErrMissingAPIKey
	}

	return &cfg, nil
}
