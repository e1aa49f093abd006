package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/ritzau/wfc/pkg/compiler"
	"github.com/ritzau/wfc/pkg/filter"
	"github.com/ritzau/wfc/pkg/logging"
)

// EnvPrefix is the prefix of environment overrides, e.g. WFC_PORT=9090.
const EnvPrefix = "WFC_"

// FileName is the optional config file read from the working directory.
const FileName = "wfc.toml"

// Config holds all configuration for the application.
type Config struct {
	Templates        string   `koanf:"templates"`
	Port             int      `koanf:"port"`
	Watch            bool     `koanf:"watch"`
	UITypes          []string `koanf:"ui_types"`
	ZeroIndexOutputs bool     `koanf:"zero_index_outputs"`
	CacheSize        int      `koanf:"cache_size"`
	Verbosity        string   `koanf:"verbosity"`
	VerboseCnt       int      `koanf:"verbose"`
	JSONLogs         bool     `koanf:"json_logs"`
}

// Defaults returns the built-in configuration values.
func Defaults() map[string]any {
	return map[string]any{
		"templates":          "templates",
		"port":               8188,
		"watch":              false,
		"ui_types":           compiler.DefaultUITypes,
		"zero_index_outputs": false,
		"cache_size":         128,
		"verbosity":          "",
		"verbose":            0,
		"json_logs":          false,
	}
}

// Load loads configuration from defaults, config file, environment
// variables and flags. A .env file in the working directory is applied to
// the environment first.
// Priority: Flags > Env > Config File > Defaults
func Load(f *pflag.FlagSet) (*Config, error) {
	return LoadFile(f, FileName)
}

// LoadFile is Load with an explicit config file path.
func LoadFile(f *pflag.FlagSet, path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	k := koanf.New(".")

	if err := k.Load(mapProvider(Defaults()), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := k.Load(file.Provider(path), toml.Parser()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	// WFC_ZERO_INDEX_OUTPUTS maps to zero_index_outputs; keys are flat so
	// underscores are kept. Lists are comma separated.
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, any) {
		key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
		if key == "ui_types" {
			return key, splitList(value)
		}
		return key, value
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if f != nil {
		if err := k.Load(posflag.ProviderWithFlag(f, ".", k, func(flag *pflag.Flag) (string, any) {
			return strings.ReplaceAll(flag.Name, "-", "_"), posflag.FlagVal(f, flag)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("invalid cache_size %d", c.CacheSize)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// LogLevel resolves verbosity and the -v count to a level.
func (c *Config) LogLevel() (slog.Level, error) {
	return logging.ParseLevel(c.Verbosity, c.VerboseCnt)
}

// ApplyLogging configures the package logger from c.
func (c *Config) ApplyLogging() {
	level, err := c.LogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	if c.JSONLogs {
		logging.SetJSONOutput(level)
	} else {
		logging.SetLevel(level)
	}
}

// ToCompileOptions builds compiler options with the default normalizers.
func (c *Config) ToCompileOptions() compiler.Options {
	opts := compiler.DefaultOptions()
	opts.UITypes = filter.NewTypeSet(c.UITypes...)
	opts.ZeroIndexOutputs = c.ZeroIndexOutputs
	return opts
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// mapProvider serves an in-memory map as a koanf provider.
type mapProvider map[string]any

func (p mapProvider) Read() (map[string]any, error) {
	return p, nil
}

func (p mapProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("mapProvider does not support ReadBytes")
}
