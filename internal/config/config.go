// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/gobwas/glob"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"firestige.xyz/warts/internal/log"
	"firestige.xyz/warts/internal/sink/console"
	"firestige.xyz/warts/pkg/warts"
)

const rootKey = "warts"

// GlobalConfig represents the top-level configuration.
// Maps to the `warts:` root key in YAML.
type GlobalConfig struct {
	Log     log.LoggerConfig `mapstructure:"log"`
	Decoder DecoderConfig    `mapstructure:"decoder"`
	Output  OutputConfig     `mapstructure:"output"`
	Metrics MetricsConfig    `mapstructure:"metrics"`
	Input   InputConfig      `mapstructure:"input"`
}

// ─── Decoder ───

// DecoderConfig maps onto warts.Options.
type DecoderConfig struct {
	ExtensionPolicy   warts.ExtensionPolicy `mapstructure:"extension_policy"` // strict | skip
	StrictParamLength bool                  `mapstructure:"strict_param_length"`
	MaxObjectSize     datasize.ByteSize     `mapstructure:"max_object_size"`
	SkipMalformed     bool                  `mapstructure:"skip_malformed"` // keep going after record-level errors
}

// Options builds decoder options. The logger is left to the caller.
func (c DecoderConfig) Options() warts.Options {
	return warts.Options{
		ExtensionPolicy:   c.ExtensionPolicy,
		StrictParamLength: c.StrictParamLength,
		MaxObjectSize:     int64(c.MaxObjectSize.Bytes()),
	}
}

// ─── Output ───

type OutputConfig struct {
	Format console.Format `mapstructure:"format"` // text | json | yaml | pb
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// ─── Input ───

// InputConfig selects files when a directory is given on the command line.
type InputConfig struct {
	Include string `mapstructure:"include"` // glob on the base name
	Workers int    `mapstructure:"workers"` // 0 = GOMAXPROCS
}

// ─── Loading ───

// Default returns the configuration used when no file is given: defaults plus env overrides.
func Default() (*GlobalConfig, error) {
	return load(newViper())
}

// Load loads configuration from file.
// The YAML file uses `warts:` as root key; env vars use the WARTS_ prefix (e.g., WARTS_LOG_LEVEL).
func Load(path string) (*GlobalConfig, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return load(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	// No explicit env prefix: key "warts.log.level" maps to env "WARTS_LOG_LEVEL".
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func load(v *viper.Viper) (*GlobalConfig, error) {
	// env overrides only reach keys viper knows, which setDefaults guarantees
	settings := v.AllSettings()
	raw, _ := settings[rootKey].(map[string]interface{})

	var cfg GlobalConfig
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.TextUnmarshallerHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &cfg,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets default values for configuration.
// All keys use the "warts." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("warts.log.level", "info")
	v.SetDefault("warts.log.pattern", log.DefaultPattern)
	v.SetDefault("warts.log.time", log.DefaultTime)
	v.SetDefault("warts.log.caller", false)
	v.SetDefault("warts.log.file.filename", "")
	v.SetDefault("warts.log.file.max_size", 100)
	v.SetDefault("warts.log.file.max_backups", 5)
	v.SetDefault("warts.log.file.max_age", 30)
	v.SetDefault("warts.log.file.compress", true)

	// Decoder defaults
	v.SetDefault("warts.decoder.extension_policy", "strict")
	v.SetDefault("warts.decoder.strict_param_length", false)
	v.SetDefault("warts.decoder.max_object_size", "64MB")
	v.SetDefault("warts.decoder.skip_malformed", false)

	v.SetDefault("warts.output.format", string(console.FormatText))

	// Metrics defaults
	v.SetDefault("warts.metrics.enabled", false)
	v.SetDefault("warts.metrics.listen", ":9091")
	v.SetDefault("warts.metrics.path", "/metrics")

	v.SetDefault("warts.input.include", "*.warts*")
	v.SetDefault("warts.input.workers", 0)
}

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	// ── Log validation ──
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("invalid log level: %s (must be trace/debug/info/warn/error)", cfg.Log.Level)
	}
	if cfg.Log.File != nil && cfg.Log.File.Filename == "" {
		cfg.Log.File = nil
	}

	// ── Decoder ──
	if cfg.Decoder.MaxObjectSize == 0 {
		cfg.Decoder.MaxObjectSize = datasize.ByteSize(warts.DefaultMaxObjectSize)
	}
	if cfg.Decoder.MaxObjectSize > datasize.GB {
		return fmt.Errorf("decoder.max_object_size %s exceeds 1GB", cfg.Decoder.MaxObjectSize.HR())
	}

	// ── Output ──
	format, err := console.ParseFormat(string(cfg.Output.Format))
	if err != nil {
		return fmt.Errorf("invalid output format: %w", err)
	}
	cfg.Output.Format = format

	// ── Metrics ──
	if cfg.Metrics.Enabled {
		if cfg.Metrics.Listen == "" {
			return fmt.Errorf("metrics.listen is required when metrics.enabled=true")
		}
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			return fmt.Errorf("invalid metrics.path: %q (must start with /)", cfg.Metrics.Path)
		}
	}

	// ── Input ──
	if cfg.Input.Include != "" {
		if _, err := glob.Compile(cfg.Input.Include); err != nil {
			return fmt.Errorf("invalid input.include %q: %w", cfg.Input.Include, err)
		}
	}
	if cfg.Input.Workers < 0 {
		return fmt.Errorf("input.workers must not be negative")
	}
	if cfg.Input.Workers == 0 {
		cfg.Input.Workers = runtime.GOMAXPROCS(0)
	}
	return nil
}
