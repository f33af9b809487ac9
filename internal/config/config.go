// Package config provides Viper-based hierarchical configuration management
// for the classification run: data sources, rule/view/capture files, and
// ambient settings.
package config

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/tallyhq/tally/internal/logging"
	"github.com/tallyhq/tally/internal/rules"
)

// DataSource declares one input: a file (or folder/glob) and the format
// template its lines follow.
type DataSource struct {
	Name      string `mapstructure:"name" yaml:"name"`
	File      string `mapstructure:"file" yaml:"file"`
	Format    string `mapstructure:"format" yaml:"format"`
	HasHeader bool   `mapstructure:"has_header" yaml:"has_header"`
}

// Config is the complete run configuration.
type Config struct {
	Log struct {
		Level  string `mapstructure:"level" yaml:"level"`
		Format string `mapstructure:"format" yaml:"format"`
	} `mapstructure:"log" yaml:"log"`

	// DateLayout is the default layout for {date} captures and date
	// literals in expressions; strftime and Go reference forms both work.
	DateLayout string `mapstructure:"date_layout" yaml:"date_layout"`

	Sources []DataSource `mapstructure:"data_sources" yaml:"data_sources"`

	RulesFile    string `mapstructure:"rules_file" yaml:"rules_file"`
	ViewsFile    string `mapstructure:"views_file" yaml:"views_file"`
	CapturesFile string `mapstructure:"captures_file" yaml:"captures_file"`

	Rules struct {
		// Mode is first_match (default), all_tags or most_specific; see
		// the matcher docs.
		Mode string `mapstructure:"mode" yaml:"mode"`
	} `mapstructure:"rules" yaml:"rules"`

	// Workers bounds the classification pool; 0 selects NumCPU.
	Workers int `mapstructure:"workers" yaml:"workers"`

	Output struct {
		File string `mapstructure:"file" yaml:"file"`
	} `mapstructure:"output" yaml:"output"`
}

// InitializeConfig loads settings.yaml with defaults and TALLY_* environment
// overrides.
func InitializeConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("settings")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("config")
	}

	v.SetEnvPrefix("TALLY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// No config file is fine; defaults and env vars still apply.
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("date_layout", "2006-01-02")
	v.SetDefault("rules.mode", string(rules.ModeFirstMatch))
	v.SetDefault("workers", 0)
	v.SetDefault("output.file", "classified.csv")
}

func validateConfig(config *Config) error {
	if _, err := logrus.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", config.Log.Level)
	}
	if config.Log.Format != "text" && config.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'text' or 'json')", config.Log.Format)
	}

	switch rules.Mode(config.Rules.Mode) {
	case rules.ModeFirstMatch, rules.ModeAllTags, rules.ModeMostSpecific:
	default:
		return fmt.Errorf("invalid rules.mode: %s (must be 'first_match', 'all_tags' or 'most_specific')", config.Rules.Mode)
	}

	if config.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got: %d", config.Workers)
	}

	for i, src := range config.Sources {
		if src.Name == "" {
			return fmt.Errorf("data_sources[%d]: missing name", i)
		}
		if src.File == "" {
			return fmt.Errorf("data source %q: missing file", src.Name)
		}
		if src.Format == "" {
			return fmt.Errorf("data source %q: missing format string", src.Name)
		}
	}
	return nil
}

// NewLogger builds the application logger from the config.
func (c *Config) NewLogger() logging.Logger {
	return logging.NewLogrusAdapter(c.Log.Level, c.Log.Format)
}
