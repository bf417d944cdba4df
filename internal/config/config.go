// Package config loads sigscope settings from defaults, a .sigscope.toml file,
// SIGSCOPE_* environment variables and flags bound by the CLI.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/AnatoleLucet/sigscope/internal/patterns"
	"github.com/AnatoleLucet/sigscope/internal/recording/store"
)

var ErrInvalid = errors.New("invalid config")

const (
	FileName  = ".sigscope"
	EnvPrefix = "SIGSCOPE"
)

type AnalysisConfig struct {
	DeepChainThreshold        int           `mapstructure:"deep_chain_threshold"`
	DiamondMinPaths           int           `mapstructure:"diamond_min_paths"`
	HotPathThreshold          float64       `mapstructure:"hot_path_threshold"`
	HotPathWindow             time.Duration `mapstructure:"hot_path_window"`
	HighSubscriptionThreshold int           `mapstructure:"high_subscription_threshold"`
	Debounce                  time.Duration `mapstructure:"debounce"`
	MaxAnalysisTime           time.Duration `mapstructure:"max_analysis_time"`

	// ExpectationsFile persists the ids of patterns marked as expected.
	ExpectationsFile string `mapstructure:"expectations_file"`
}

type ReplayConfig struct {
	CacheCapacity int `mapstructure:"cache_capacity"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type Config struct {
	LogLevel  string         `mapstructure:"log_level"`
	LogFormat string         `mapstructure:"log_format"`
	Analysis  AnalysisConfig `mapstructure:"analysis"`
	Replay    ReplayConfig   `mapstructure:"replay"`
	Store     StoreConfig    `mapstructure:"store"`
	Server    ServerConfig   `mapstructure:"server"`
}

// SetDefaults registers every key on v so that env variables and Unmarshal
// see them even without a config file.
func SetDefaults(v *viper.Viper) {
	def := patterns.DefaultConfig()

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("analysis.deep_chain_threshold", def.DeepChainThreshold)
	v.SetDefault("analysis.diamond_min_paths", def.DiamondMinPaths)
	v.SetDefault("analysis.hot_path_threshold", def.HotPathThreshold)
	v.SetDefault("analysis.hot_path_window", def.HotPathWindow)
	v.SetDefault("analysis.high_subscription_threshold", def.HighSubscriptionThreshold)
	v.SetDefault("analysis.debounce", def.Debounce)
	v.SetDefault("analysis.max_analysis_time", def.MaxAnalysisTime)
	v.SetDefault("analysis.expectations_file", "")
	v.SetDefault("replay.cache_capacity", 100)
	v.SetDefault("store.driver", store.DriverBadger)
	v.SetDefault("store.path", ".sigscope/recordings")
	v.SetDefault("server.addr", "127.0.0.1:7777")
}

// New returns a viper instance with defaults and environment binding. When
// file is empty, .sigscope.toml is searched in the working directory and the
// home directory.
func New(file string, searchPaths ...string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("toml")
		for _, p := range searchPaths {
			v.AddConfigPath(p)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Read reads the config file. A missing file is not an error unless it was
// named explicitly.
func Read(v *viper.Viper) error {
	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: read: %w", err)
	}
	return nil
}

// Load decodes v and validates the result.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.LogLevel) {
		return fmt.Errorf("%w: log_level %q", ErrInvalid, c.LogLevel)
	}
	if !slices.Contains([]string{"text", "json"}, c.LogFormat) {
		return fmt.Errorf("%w: log_format %q", ErrInvalid, c.LogFormat)
	}
	if err := c.Analysis.Patterns().Validate(); err != nil {
		return fmt.Errorf("%w: analysis: %w", ErrInvalid, err)
	}
	if c.Replay.CacheCapacity < 1 {
		return fmt.Errorf("%w: replay.cache_capacity %d must be at least 1", ErrInvalid, c.Replay.CacheCapacity)
	}
	if !slices.Contains([]string{store.DriverBadger, store.DriverSQLite}, c.Store.Driver) {
		return fmt.Errorf("%w: store.driver %q", ErrInvalid, c.Store.Driver)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("%w: store.path is empty", ErrInvalid)
	}
	return nil
}

// Patterns converts the analysis section to detector thresholds.
func (a AnalysisConfig) Patterns() patterns.Config {
	return patterns.Config{
		DeepChainThreshold:        a.DeepChainThreshold,
		DiamondMinPaths:           a.DiamondMinPaths,
		HotPathThreshold:          a.HotPathThreshold,
		HotPathWindow:             a.HotPathWindow,
		HighSubscriptionThreshold: a.HighSubscriptionThreshold,
		Debounce:                  a.Debounce,
		MaxAnalysisTime:           a.MaxAnalysisTime,
	}
}
