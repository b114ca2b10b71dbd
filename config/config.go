// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Engine    EngineConfig    `yaml:"engine" mapstructure:"engine"`
	Anomaly   AnomalyConfig   `yaml:"anomaly" mapstructure:"anomaly"`
	Scheduler SchedulerConfig `yaml:"scheduler" mapstructure:"scheduler"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"` // sqlite or memory
	Path   string `yaml:"path" mapstructure:"path"`     // sqlite file, ":memory:" for ephemeral
}

// EngineConfig configures calculation job execution.
type EngineConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// AnomalyConfig configures detection thresholds. Values map directly onto
// engine.Thresholds; zero values fall back to the engine defaults.
type AnomalyConfig struct {
	CriticalVariancePercent float64 `yaml:"critical_variance_percent" mapstructure:"critical_variance_percent"`
	HighVariancePercent     float64 `yaml:"high_variance_percent" mapstructure:"high_variance_percent"`
	MediumVariancePercent   float64 `yaml:"medium_variance_percent" mapstructure:"medium_variance_percent"`
	TerritoryStdDevs        float64 `yaml:"territory_std_devs" mapstructure:"territory_std_devs"`
	CurveMismatchRatio      float64 `yaml:"curve_mismatch_ratio" mapstructure:"curve_mismatch_ratio"`
}

// SchedulerConfig configures the background anomaly scan.
type SchedulerConfig struct {
	Enabled      bool `yaml:"enabled" mapstructure:"enabled"`
	IntervalSecs int  `yaml:"interval_secs" mapstructure:"interval_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("INCENTIVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "./data/incentive.db")
	v.SetDefault("engine.workers", 4)
	v.SetDefault("anomaly.critical_variance_percent", 50)
	v.SetDefault("anomaly.high_variance_percent", 30)
	v.SetDefault("anomaly.medium_variance_percent", 15)
	v.SetDefault("anomaly.territory_std_devs", 2)
	v.SetDefault("anomaly.curve_mismatch_ratio", 2)
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval_secs", 300)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("config: parse log level: %w", err)
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return fmt.Errorf("config: build logger: %w", err)
	}
	zap.ReplaceGlobals(logger)

	return nil
}
