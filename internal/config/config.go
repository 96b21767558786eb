package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/semmidev/alipan-runner/internal/domain"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultEndpoint = "https://api.aliyundrive.com"
	DefaultTokenURL = "https://api.aliyundrive.com/v2/account/token"
	DefaultUserURL  = "https://user.aliyundrive.com/v2/user/get"
	DefaultProxyURL = "http://127.0.0.1:9091"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Drive    DriveConfig    `mapstructure:"drive"`
	Runner   RunnerConfig   `mapstructure:"runner"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
}

type DriveConfig struct {
	RefreshToken string `mapstructure:"refresh_token"`
	FolderID     string `mapstructure:"folder_id"`
	Endpoint     string `mapstructure:"endpoint"`
	TokenURL     string `mapstructure:"token_url"`
	UserURL      string `mapstructure:"user_url"`
	Verbose      bool   `mapstructure:"verbose"`
	Proxy        bool   `mapstructure:"proxy"`
	ProxyURL     string `mapstructure:"proxy_url"`
}

type RunnerConfig struct {
	// Interval is in seconds; 0 runs a single iteration.
	Interval int  `mapstructure:"interval"`
	DryRun   bool `mapstructure:"dry_run"`
}

type TelegramConfig struct {
	BotToken    string `mapstructure:"bot_token"`
	ChatID      int64  `mapstructure:"chat_id"`
	APIEndpoint string `mapstructure:"api_endpoint"`
}

func (t TelegramConfig) Enabled() bool {
	return t.BotToken != ""
}

var envBindings = map[string]string{
	"app.log_level":         "LOGGER_LEVEL",
	"app.log_file":          "LOG_FILE",
	"drive.refresh_token":   "ALIPAN_REFRESH_TOKEN",
	"drive.folder_id":       "ALIPAN_FOLDER_ID",
	"drive.endpoint":        "ALIPAN_ENDPOINT",
	"drive.token_url":       "ALIPAN_TOKEN_URL",
	"drive.user_url":        "ALIPAN_USER_URL",
	"drive.verbose":         "VERBOSE_MODE",
	"drive.proxy":           "PROXY_MODE",
	"drive.proxy_url":       "PROXY_URL",
	"runner.interval":       "ALIPAN_RUNNER_INTERVAL",
	"runner.dry_run":        "DRY_MODE",
	"telegram.bot_token":    "TELEGRAM_BOT_TOKEN",
	"telegram.chat_id":      "TELEGRAM_CHAT_ID",
	"telegram.api_endpoint": "TELEGRAM_API_ENDPOINT",
}

var flagBindings = map[string]string{
	"runner.dry_run":  "dry-run",
	"runner.interval": "interval",
	"app.log_level":   "log-level",
}

// Load reads the optional yaml file at path, then environment variables,
// then any flags that were explicitly set on flags.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	v.SetDefault("app.name", "alipan-runner")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("drive.endpoint", DefaultEndpoint)
	v.SetDefault("drive.token_url", DefaultTokenURL)
	v.SetDefault("drive.user_url", DefaultUserURL)
	v.SetDefault("drive.proxy_url", DefaultProxyURL)
	v.SetDefault("runner.interval", 0)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if flags != nil {
		for key, name := range flagBindings {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Drive.RefreshToken == "" {
		return errors.New("missing environment variable: ALIPAN_REFRESH_TOKEN")
	}
	if c.Drive.FolderID == "" {
		return errors.New("missing environment variable: ALIPAN_FOLDER_ID")
	}
	if c.Runner.Interval < 0 {
		return fmt.Errorf("runner.interval must not be negative, got %d", c.Runner.Interval)
	}

	for _, raw := range []string{c.Drive.Endpoint, c.Drive.TokenURL, c.Drive.UserURL} {
		if err := ValidateEndpoint(raw); err != nil {
			return err
		}
	}
	if c.Drive.Proxy {
		if err := ValidateEndpoint(c.Drive.ProxyURL); err != nil {
			return err
		}
	}

	if c.Telegram.Enabled() && c.Telegram.ChatID == 0 {
		return errors.New("telegram.chat_id is required when telegram.bot_token is set")
	}

	return nil
}

func (c *Config) IntervalDuration() time.Duration {
	return time.Duration(c.Runner.Interval) * time.Second
}

func (c *Config) RunMode() string {
	if c.Runner.Interval == 0 {
		return "oneshot"
	}
	return "interval"
}

// ValidateEndpoint accepts absolute http(s) URLs with a host.
func ValidateEndpoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return &domain.EndpointError{URL: raw, Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &domain.EndpointError{URL: raw, Err: fmt.Errorf("unsupported scheme %q", u.Scheme)}
	}
	if u.Host == "" {
		return &domain.EndpointError{URL: raw, Err: errors.New("missing host")}
	}
	return nil
}
