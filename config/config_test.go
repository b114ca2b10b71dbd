package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/incentive-engine/config"
)

func TestLoad_Defaults(t *testing.T) {
	// GIVEN no config file and no environment overrides
	// WHEN configuration is loaded
	cfg, err := config.Load()
	require.NoError(t, err)

	// THEN every section carries its default
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "./data/incentive.db", cfg.Store.Path)
	assert.Equal(t, 4, cfg.Engine.Workers)
	assert.Equal(t, 50.0, cfg.Anomaly.CriticalVariancePercent)
	assert.Equal(t, 30.0, cfg.Anomaly.HighVariancePercent)
	assert.Equal(t, 15.0, cfg.Anomaly.MediumVariancePercent)
	assert.Equal(t, 2.0, cfg.Anomaly.TerritoryStdDevs)
	assert.Equal(t, 2.0, cfg.Anomaly.CurveMismatchRatio)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 300, cfg.Scheduler.IntervalSecs)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	// GIVEN environment overrides with the INCENTIVE prefix
	t.Setenv("INCENTIVE_SERVER_PORT", "9090")
	t.Setenv("INCENTIVE_STORE_DRIVER", "memory")
	t.Setenv("INCENTIVE_ENGINE_WORKERS", "8")
	t.Setenv("INCENTIVE_SCHEDULER_ENABLED", "false")
	t.Setenv("INCENTIVE_LOG_LEVEL", "debug")

	// WHEN configuration is loaded
	cfg, err := config.Load()
	require.NoError(t, err)

	// THEN environment values win over defaults
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 8, cfg.Engine.Workers)
	assert.False(t, cfg.Scheduler.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestInitLogger(t *testing.T) {
	// GIVEN log configurations across formats and levels
	cases := []struct {
		name    string
		cfg     config.LogConfig
		wantErr bool
	}{
		{"json info", config.LogConfig{Level: "info", Format: "json"}, false},
		{"console debug", config.LogConfig{Level: "debug", Format: "console"}, false},
		{"warn", config.LogConfig{Level: "warn", Format: "json"}, false},
		{"bad level", config.LogConfig{Level: "shouting", Format: "json"}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// WHEN the global logger is initialized
			err := config.InitLogger(tc.cfg)

			// THEN only unknown levels fail
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
