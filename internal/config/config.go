// Package config loads tovis settings from an optional config file,
// TOVIS_* environment variables and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/valpere/tovis/internal/diffinfo"
	"github.com/valpere/tovis/internal/logging"
	"github.com/valpere/tovis/internal/translator"
)

const EnvPrefix = "TOVIS"

type Config struct {
	DB         string                              `mapstructure:"db"`
	Plugins    PluginsConfig                       `mapstructure:"plugins"`
	Diff       DiffConfig                          `mapstructure:"diff"`
	Log        LogConfig                           `mapstructure:"log"`
	Candidates CandidatesConfig                    `mapstructure:"candidates"`
	Services   map[string]translator.ServiceConfig `mapstructure:"services"`
}

// PluginsConfig lists transforms registered at startup: Names first, then
// the entries of the run-command file RC.
type PluginsConfig struct {
	RC    string   `mapstructure:"rc"`
	Names []string `mapstructure:"names"`
}

type DiffConfig struct {
	Threshold  float64 `mapstructure:"threshold"`
	MaxMatches int     `mapstructure:"max_matches"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type CandidatesConfig struct {
	Timeout  time.Duration `mapstructure:"timeout"`
	Validate bool          `mapstructure:"validate"`
	Cache    bool          `mapstructure:"cache"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db", "./data/tovis.db")
	v.SetDefault("plugins.rc", "")
	v.SetDefault("plugins.names", []string{})
	v.SetDefault("diff.threshold", diffinfo.DefaultThreshold)
	v.SetDefault("diff.max_matches", diffinfo.DefaultMaxMatches)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", logging.FormatText)
	v.SetDefault("candidates.timeout", 30*time.Second)
	v.SetDefault("candidates.validate", false)
	v.SetDefault("candidates.cache", true)

	v.SetDefault("services.google.enabled", false)
	v.SetDefault("services.google.credentials", "")
	v.SetDefault("services.mymemory.enabled", true)
	v.SetDefault("services.mymemory.email", "")
	v.SetDefault("services.ollama.enabled", false)
	v.SetDefault("services.ollama.base_url", "http://localhost:11434")
	v.SetDefault("services.ollama.models", []string{})
	v.SetDefault("services.openrouter.enabled", false)
	v.SetDefault("services.openrouter.api_key", "")
	v.SetDefault("services.openrouter.models", []string{})
	v.SetDefault("services.systran.enabled", false)
	v.SetDefault("services.systran.api_key", "")
}

// Load reads the configuration into v. With an empty path a tovis.toml,
// tovis.yaml or tovis.json in the working directory is used when present.
func Load(v *viper.Viper, path string) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("tovis")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.DB == "" {
		return fmt.Errorf("db path is empty")
	}
	if c.Diff.Threshold < 0 || c.Diff.Threshold > 100 {
		return fmt.Errorf("diff.threshold must be within [0,100], got %v", c.Diff.Threshold)
	}
	if c.Diff.MaxMatches < 0 {
		return fmt.Errorf("diff.max_matches must not be negative, got %d", c.Diff.MaxMatches)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case logging.FormatText, logging.FormatJSON:
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}
