// Package config loads fieldwatch configuration.
//
// Sources, highest precedence first:
//  1. CLI flags
//  2. Environment variables (FIELDWATCH_ prefix)
//  3. Config file (.fieldwatch.yaml)
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aretw0/fieldwatch/pkg/adapters/fs"
	"github.com/aretw0/fieldwatch/pkg/dispatch"
)

// Supported log levels.
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// Supported log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// DefaultDebounce is the quiet period applied to watch events.
const DefaultDebounce = 50 * time.Millisecond

// Config is the global configuration of the fieldwatch CLI.
type Config struct {
	// Vault is the directory to watch. Empty means the nearest vault root
	// above the working directory, or the working directory itself.
	Vault string `mapstructure:"vault" json:"vault"`

	// Pattern selects documents relative to the vault.
	Pattern string `mapstructure:"pattern" json:"pattern"`

	// SeedMode is "overwrite" or "fill".
	SeedMode string `mapstructure:"seed-mode" json:"seedMode"`

	Debounce time.Duration `mapstructure:"debounce" json:"debounce"`

	// Versioning commits header rewrites with git.
	Versioning bool `mapstructure:"versioning" json:"versioning"`

	LogLevel  string `mapstructure:"log-level" json:"logLevel"`
	LogFormat string `mapstructure:"log-format" json:"logFormat"`

	// Verbose forces debug logging.
	Verbose bool `mapstructure:"verbose" json:"verbose"`

	// Quiet suppresses all log output below error level.
	Quiet bool `mapstructure:"quiet" json:"quiet"`

	// ConfigFile is the config file used, set by Load.
	ConfigFile string `mapstructure:"-" json:"-"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Pattern:   fs.DefaultPattern,
		SeedMode:  string(dispatch.SeedOverwrite),
		Debounce:  DefaultDebounce,
		LogLevel:  LogLevelInfo,
		LogFormat: LogFormatText,
	}
}

// Validate checks that all config values are valid.
func (c *Config) Validate() error {
	var errs []error

	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		errs = append(errs, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", c.LogLevel))
	}

	switch c.LogFormat {
	case LogFormatText, LogFormatJSON:
	default:
		errs = append(errs, fmt.Errorf("invalid log format %q: must be one of text, json", c.LogFormat))
	}

	if _, err := dispatch.ParseSeedMode(c.SeedMode); err != nil {
		errs = append(errs, err)
	}

	if !doublestar.ValidatePattern(c.Pattern) {
		errs = append(errs, fmt.Errorf("invalid pattern %q", c.Pattern))
	}

	if c.Debounce < 0 {
		errs = append(errs, fmt.Errorf("invalid debounce %s: must not be negative", c.Debounce))
	}

	return errors.Join(errs...)
}

// EffectiveLogLevel returns the log level to use. Quiet wins over Verbose,
// and Verbose wins over LogLevel.
func (c *Config) EffectiveLogLevel() string {
	switch {
	case c.Quiet:
		return LogLevelError
	case c.Verbose:
		return LogLevelDebug
	}
	return c.LogLevel
}

// SeedModeValue returns the parsed seed mode. Call after Validate.
func (c *Config) SeedModeValue() dispatch.SeedMode {
	mode, _ := dispatch.ParseSeedMode(c.SeedMode)
	return mode
}

// Load reads configuration from flags, environment variables and an
// optional config file. Each call uses a fresh viper instance.
func Load(cmd *cobra.Command, configFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)
	configureEnv(v)

	if err := configureFile(v, configFile); err != nil {
		return nil, err
	}

	if err := bindFlags(v, cmd); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.ConfigFile = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("vault", d.Vault)
	v.SetDefault("pattern", d.Pattern)
	v.SetDefault("seed-mode", d.SeedMode)
	v.SetDefault("debounce", d.Debounce)
	v.SetDefault("versioning", d.Versioning)
	v.SetDefault("log-level", d.LogLevel)
	v.SetDefault("log-format", d.LogFormat)
	v.SetDefault("verbose", false)
	v.SetDefault("quiet", false)
}

func configureEnv(v *viper.Viper) {
	v.SetEnvPrefix("FIELDWATCH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
}

func configureFile(v *viper.Viper, configFile string) error {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file %q: %w", configFile, err)
		}
		return nil
	}

	v.SetConfigName(".fieldwatch")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "fieldwatch"))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

// bindFlags binds cmd's flags and the persistent flags of every ancestor.
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	if cmd == nil {
		return nil
	}
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	for c := cmd; c != nil; c = c.Parent() {
		if err := v.BindPFlags(c.PersistentFlags()); err != nil {
			return fmt.Errorf("binding persistent flags: %w", err)
		}
	}
	return nil
}

type ctxKey struct{}

// NewContext returns a child context carrying cfg.
func NewContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, ctxKey{}, cfg)
}

// FromContext extracts a Config from ctx, falling back to Default().
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(ctxKey{}).(*Config); ok {
		return cfg
	}
	return Default()
}
