// Package config loads the command-line tool's settings from a YAML file and
// the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	collector "github.com/jamesprial/go-reddit-collector"
	"github.com/jamesprial/go-reddit-collector/internal/export"
	pkgerrs "github.com/jamesprial/go-reddit-collector/pkg/errors"
)

// EnvPrefix prefixes the environment overrides of every key that has no
// dedicated variable, e.g. REDDITCOLLECT_COLLECTOR_STEALTH.
const EnvPrefix = "REDDITCOLLECT"

// FormatTable prints results to the terminal instead of exporting them.
const FormatTable = "table"

// Config holds the tool configuration.
type Config struct {
	Backend   string          `mapstructure:"backend"`
	Reddit    RedditConfig    `mapstructure:"reddit"`
	Collector CollectorConfig `mapstructure:"collector"`
	Export    ExportConfig    `mapstructure:"export"`
	Log       LogConfig       `mapstructure:"log"`
}

// RedditConfig holds the OAuth credentials used by the official backend.
type RedditConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	UserAgent    string `mapstructure:"user_agent"`
}

// CollectorConfig holds pacing and normalization settings.
type CollectorConfig struct {
	Stealth             bool          `mapstructure:"stealth"`
	MaxRetries          int           `mapstructure:"max_retries"`
	BaseDelay           time.Duration `mapstructure:"base_delay"`
	RequestDelay        time.Duration `mapstructure:"request_delay"`
	KeepRemovedComments bool          `mapstructure:"keep_removed_comments"`
	CloudflareBypass    bool          `mapstructure:"cloudflare_bypass"`
	UserAgents          []string      `mapstructure:"user_agents"`
	BaseURL             string        `mapstructure:"base_url"`
}

// ExportConfig selects the default output.
type ExportConfig struct {
	Format string `mapstructure:"format"`
	Dir    string `mapstructure:"dir"`
}

// LogConfig controls diagnostics.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// credentialEnv maps keys onto the conventional Reddit script-app variables.
var credentialEnv = map[string]string{
	"reddit.client_id":     "REDDIT_CLIENT_ID",
	"reddit.client_secret": "REDDIT_CLIENT_SECRET",
	"reddit.username":      "REDDIT_USERNAME",
	"reddit.password":      "REDDIT_PASSWORD",
	"reddit.user_agent":    "REDDIT_USER_AGENT",
}

// New returns a viper instance with defaults and environment bindings. An
// empty path searches for redditcollect.yaml in the working directory and
// ./config; a missing file is then not an error.
func New(path string) *viper.Viper {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("redditcollect")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetDefault("backend", string(collector.BackendPublic))
	// Every key needs a default so AutomaticEnv overrides reach Unmarshal.
	v.SetDefault("collector.stealth", false)
	v.SetDefault("collector.keep_removed_comments", false)
	v.SetDefault("collector.cloudflare_bypass", false)
	v.SetDefault("collector.user_agents", []string{})
	v.SetDefault("collector.base_url", "")
	v.SetDefault("collector.max_retries", 3)
	v.SetDefault("collector.base_delay", time.Second)
	v.SetDefault("collector.request_delay", 100*time.Millisecond)
	v.SetDefault("export.format", string(export.JSON))
	v.SetDefault("export.dir", ".")
	v.SetDefault("log.level", "info")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range credentialEnv {
		_ = v.BindEnv(key, env)
	}
	return v
}

// Load reads the configuration file (if any) and the environment into a
// Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, &pkgerrs.ConfigError{Field: "config", Message: err.Error()}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &pkgerrs.ConfigError{Field: "config", Message: err.Error()}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerated values. Credentials are checked when the
// collector is built.
func (c *Config) Validate() error {
	switch collector.BackendKind(c.Backend) {
	case collector.BackendPublic, collector.BackendOfficial:
	default:
		return &pkgerrs.ConfigError{Field: "backend", Message: fmt.Sprintf("unknown backend %q", c.Backend)}
	}
	if c.Export.Format != FormatTable {
		if _, err := export.ParseFormat(c.Export.Format); err != nil {
			return err
		}
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Collector.MaxRetries < 0 {
		return &pkgerrs.ConfigError{Field: "collector.max_retries", Message: "must not be negative"}
	}
	return nil
}

// ParseLevel maps a level name onto slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, &pkgerrs.ConfigError{Field: "log.level", Message: fmt.Sprintf("unknown log level %q", s)}
	}
	return l, nil
}

// maxRetries maps an explicit zero in the file onto a single attempt. The
// file default is already filled in by viper.
func maxRetries(n int) int {
	if n == 0 {
		return collector.NoRetries
	}
	return n
}

// CollectorConfig builds the library configuration.
func (c *Config) CollectorConfig(logger *slog.Logger) *collector.Config {
	return &collector.Config{
		Backend:             collector.BackendKind(c.Backend),
		ClientID:            c.Reddit.ClientID,
		ClientSecret:        c.Reddit.ClientSecret,
		Username:            c.Reddit.Username,
		Password:            c.Reddit.Password,
		UserAgent:           c.Reddit.UserAgent,
		UserAgents:          c.Collector.UserAgents,
		Stealth:             c.Collector.Stealth,
		MaxRetries:          maxRetries(c.Collector.MaxRetries),
		BaseDelay:           c.Collector.BaseDelay,
		RequestDelay:        c.Collector.RequestDelay,
		KeepRemovedComments: c.Collector.KeepRemovedComments,
		CloudflareBypass:    c.Collector.CloudflareBypass,
		PublicBaseURL:       c.Collector.BaseURL,
		Logger:              logger,
	}
}
