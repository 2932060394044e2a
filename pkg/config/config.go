/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: config.go
Description: Runtime configuration for the engine, CLI and server. Values come from
defaults, an optional config file, a .env file, FUZZYLOGIC_ environment variables and
bound command line flags, in increasing priority, and are validated before use.
*/

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kleascm/fuzzylogic/pkg/execution"
	"github.com/kleascm/fuzzylogic/pkg/logging"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable
const EnvPrefix = "FUZZYLOGIC"

// Config is the complete runtime configuration
type Config struct {
	Log      logging.LoggerConfig `mapstructure:"log"`
	Engine   EngineConfig         `mapstructure:"engine"`
	Server   ServerConfig         `mapstructure:"server"`
	Store    StoreConfig          `mapstructure:"store"`
	Recorder RecorderConfig       `mapstructure:"recorder"`
	Watch    WatchConfig          `mapstructure:"watch"`
	Report   ReportConfig         `mapstructure:"report"`
}

// EngineConfig tunes inference
type EngineConfig struct {
	Defuzzifier string `mapstructure:"defuzzifier" validate:"oneof=bisector centroid mom"`
	AndMethod   string `mapstructure:"and_method" validate:"oneof=min product"`
	Resolution  int    `mapstructure:"resolution" validate:"min=2,max=100000"`
	Workers     int    `mapstructure:"workers" validate:"min=0"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr         string        `mapstructure:"addr" validate:"required,hostname_port"`
	RateLimit    float64       `mapstructure:"rate_limit" validate:"gte=0"` // requests per second, 0 disables
	Burst        int           `mapstructure:"burst" validate:"min=1"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" validate:"gte=0"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"gte=0"`
	ModelsDir    string        `mapstructure:"models_dir"`
	Watch        bool          `mapstructure:"watch"`
}

// StoreConfig configures the badger model store
type StoreConfig struct {
	Path       string `mapstructure:"path" validate:"required_without=InMemory"`
	InMemory   bool   `mapstructure:"in_memory"`
	SyncWrites bool   `mapstructure:"sync_writes"`
}

// RecorderConfig configures the sqlite evaluation recorder
type RecorderConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"` // empty picks a unique name in Dir
	Dir       string `mapstructure:"dir"`
	BatchSize int    `mapstructure:"batch_size" validate:"min=1"`
}

// WatchConfig configures model file hot reload
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" validate:"gte=0"`
}

// ReportConfig configures HTML report output
type ReportConfig struct {
	OutputDir string `mapstructure:"output_dir" validate:"required"`
	Title     string `mapstructure:"title"`
	AutoOpen  bool   `mapstructure:"auto_open"`
}

// SetDefaults registers every key with its default value. Keys must be known to
// viper for environment variables to reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	log := logging.DefaultConfig()
	v.SetDefault("log.level", string(log.Level))
	v.SetDefault("log.format", string(log.Format))
	v.SetDefault("log.output_dir", log.OutputDir)
	v.SetDefault("log.max_files", log.MaxFiles)
	v.SetDefault("log.max_size", log.MaxSize)
	v.SetDefault("log.timestamp", log.Timestamp)
	v.SetDefault("log.caller", log.Caller)
	v.SetDefault("log.colors", log.Colors)
	v.SetDefault("log.compress", log.Compress)
	v.SetDefault("log.console", log.Console)

	v.SetDefault("engine.defuzzifier", string(execution.Bisector))
	v.SetDefault("engine.and_method", string(execution.AndMin))
	v.SetDefault("engine.resolution", 1000)
	v.SetDefault("engine.workers", 0)

	v.SetDefault("server.addr", "127.0.0.1:8080")
	v.SetDefault("server.rate_limit", 100.0)
	v.SetDefault("server.burst", 50)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.models_dir", "")
	v.SetDefault("server.watch", false)

	v.SetDefault("store.path", "./data/store")
	v.SetDefault("store.in_memory", false)
	v.SetDefault("store.sync_writes", true)

	v.SetDefault("recorder.enabled", false)
	v.SetDefault("recorder.path", "")
	v.SetDefault("recorder.dir", "./data")
	v.SetDefault("recorder.batch_size", 100)

	v.SetDefault("watch.debounce", 250*time.Millisecond)

	v.SetDefault("report.output_dir", "./reports")
	v.SetDefault("report.title", "Fuzzy Model Report")
	v.SetDefault("report.auto_open", false)
}

// Load reads configuration into a validated Config. configFile and envFile are
// optional; a missing env file is ignored, a missing config file is an error.
func Load(v *viper.Viper, configFile, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read env file: %w", err)
		}
	}

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
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

var validate = validator.New()

// Validate checks every section
func (c *Config) Validate() error {
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("invalid log config: %w", err)
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ExecOptions translates the engine section into executor options
func (c EngineConfig) ExecOptions() ([]execution.Option, error) {
	method, err := execution.ParseMethod(c.Defuzzifier)
	if err != nil {
		return nil, err
	}
	and, err := execution.ParseAndMethod(c.AndMethod)
	if err != nil {
		return nil, err
	}
	return []execution.Option{
		execution.WithDefuzzifier(method),
		execution.WithAndMethod(and),
		execution.WithResolution(c.Resolution),
	}, nil
}
