// Package config loads reform's own settings from .reform.yaml, REFORM_*
// environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/agentic-research/reform/internal/analysis"
	"github.com/agentic-research/reform/internal/logging"
)

// Sentinel validation errors.
var (
	ErrInvalidSeverity  = errors.New("invalid severity")
	ErrInvalidVerbosity = errors.New("invalid verbosity")
	ErrInvalidJobs      = errors.New("jobs must not be negative")
)

// FileName is the base name of the config file looked up in the
// workspace directory.
const FileName = ".reform"

const (
	defaultSeverity  = "warning"
	defaultVerbosity = "normal"
)

// Config holds the settings of one invocation.
type Config struct {
	Include          []string `mapstructure:"include"`
	Exclude          []string `mapstructure:"exclude"`
	IncludeGenerated bool     `mapstructure:"include_generated"`
	Severity         string   `mapstructure:"severity"`
	Verbosity        string   `mapstructure:"verbosity"`
	Jobs             int      `mapstructure:"jobs"`
	Report           string   `mapstructure:"report"`
	// GoVersion is handed to gofumpt, e.g. "go1.22".
	GoVersion string `mapstructure:"go_version"`
	// DisabledRules are rule IDs left out of the registry.
	DisabledRules []string `mapstructure:"disabled_rules"`
}

// flagKeys maps config keys to the flags that override them.
var flagKeys = map[string]string{
	"include":           "include",
	"exclude":           "exclude",
	"include_generated": "include-generated",
	"severity":          "severity",
	"verbosity":         "verbosity",
	"jobs":              "jobs",
	"report":            "report",
}

// Load reads the config file at configPath, or .reform.yaml in dir when
// configPath is empty, then applies the environment and any flags set in
// flags. A missing default config file is not an error.
func Load(configPath, dir string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
	}

	v.SetEnvPrefix("REFORM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for key, name := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("include", []string{})
	v.SetDefault("exclude", []string{})
	v.SetDefault("include_generated", false)
	v.SetDefault("severity", defaultSeverity)
	v.SetDefault("verbosity", defaultVerbosity)
	v.SetDefault("jobs", 0)
	v.SetDefault("report", "")
	v.SetDefault("go_version", "")
	v.SetDefault("disabled_rules", []string{})
}

// Validate checks the enumerated settings.
func (c *Config) Validate() error {
	if _, err := analysis.ParseSeverity(c.Severity); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidSeverity, c.Severity)
	}
	if _, err := logging.ParseVerbosity(c.Verbosity); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidVerbosity, c.Verbosity)
	}
	if c.Jobs < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidJobs, c.Jobs)
	}
	return nil
}
