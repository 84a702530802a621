// Package config loads server and CLI settings.
//
// Precedence, lowest first: built-in defaults, an optional YAML file, then
// environment variables. Keys are the lower-case form of the environment
// variable names, so DB_PATH and "db_path: ..." in the file set the same
// value.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// devSecret is only accepted outside production.
	devSecret = "nowastemate-development-secret-change-me"
)

// Config is the full application configuration.
type Config struct {
	AppEnv   string `mapstructure:"app_env"`
	Port     int    `mapstructure:"port"`
	DBPath   string `mapstructure:"db_path"`
	LogLevel string `mapstructure:"log_level"`
	BaseURL  string `mapstructure:"base_url"`

	JWTSecret  string        `mapstructure:"jwt_secret"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`

	// TemplateDir and StaticDir override the embedded web assets when set.
	TemplateDir string `mapstructure:"template_dir"`
	StaticDir   string `mapstructure:"static_dir"`

	SMTPHost      string `mapstructure:"smtp_host"`
	SMTPPort      int    `mapstructure:"smtp_port"`
	SMTPUsername  string `mapstructure:"smtp_username"`
	SMTPPassword  string `mapstructure:"smtp_password"`
	MailFrom      string `mapstructure:"mail_from"`
	MailWorkers   int    `mapstructure:"mail_workers"`
	MailQueueSize int    `mapstructure:"mail_queue_size"`

	// RateLimitPerMinute caps login, register and contact POSTs per client IP.
	// Zero disables the limiter.
	RateLimitPerMinute int `mapstructure:"rate_limit_per_minute"`

	GitHubClientID     string `mapstructure:"github_client_id"`
	GitHubClientSecret string `mapstructure:"github_client_secret"`
	GitHubCallbackURL  string `mapstructure:"github_callback_url"`
}

var defaults = map[string]any{
	"app_env":               EnvDevelopment,
	"port":                  8080,
	"db_path":               "data/nowastemate.db",
	"log_level":             "info",
	"base_url":              "",
	"jwt_secret":            "",
	"session_ttl":           "12h",
	"template_dir":          "",
	"static_dir":            "",
	"smtp_host":             "",
	"smtp_port":             587,
	"smtp_username":         "",
	"smtp_password":         "",
	"mail_from":             "NoWasteMate <no-reply@nowastemate.local>",
	"mail_workers":          2,
	"mail_queue_size":       256,
	"rate_limit_per_minute": 20,
	"github_client_id":      "",
	"github_client_secret":  "",
	"github_callback_url":   "",
}

// Load reads configuration. path may be empty, in which case only defaults
// and the environment are used.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}

	cfg.AppEnv = strings.ToLower(strings.TrimSpace(cfg.AppEnv))
	if cfg.BaseURL == "" {
		cfg.BaseURL = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.GitHubCallbackURL == "" {
		cfg.GitHubCallbackURL = cfg.BaseURL + "/auth/github/callback"
	}
	if cfg.JWTSecret == "" && !cfg.IsProduction() {
		cfg.JWTSecret = devSecret
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.AppEnv != EnvDevelopment && c.AppEnv != EnvProduction {
		errs = append(errs, fmt.Errorf("app_env must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.AppEnv))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path must be set"))
	}
	if c.IsProduction() && (c.JWTSecret == "" || c.JWTSecret == devSecret) {
		errs = append(errs, errors.New("jwt_secret must be set in production"))
	}
	if len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("jwt_secret must be at least 32 bytes"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("session_ttl must be positive"))
	}
	if c.MailWorkers < 1 {
		errs = append(errs, errors.New("mail_workers must be at least 1"))
	}
	if c.MailQueueSize < 1 {
		errs = append(errs, errors.New("mail_queue_size must be at least 1"))
	}
	if c.RateLimitPerMinute < 0 {
		errs = append(errs, errors.New("rate_limit_per_minute must not be negative"))
	}
	if c.SMTPHost != "" && (c.SMTPPort < 1 || c.SMTPPort > 65535) {
		errs = append(errs, fmt.Errorf("smtp_port %d out of range", c.SMTPPort))
	}
	if c.SMTPHost != "" {
		if _, err := mail.ParseAddress(c.MailFrom); err != nil {
			errs = append(errs, fmt.Errorf("mail_from %q is not an email address: %w", c.MailFrom, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

// GitHubEnabled reports whether GitHub sign-in is configured.
func (c *Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

// SMTPEnabled reports whether email goes to a real relay. Without it mail is
// only logged.
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != ""
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
