package config

import (
	"lighter-grid-bot-go/internal/models"
	"lighter-grid-bot-go/internal/planner"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	raw := `{
		"is_testnet": true,
		"grid": {"token": "ETH", "leverage": 5, "grid_count": 4, "investment": 50, "lower_price": 3000, "upper_price": 3600},
		"poll_interval_ms": 1500
	}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "ETH", cfg.Grid.Token)
	assert.Equal(t, models.Neutral, cfg.Grid.Direction)
	assert.Equal(t, 1500, cfg.PollIntervalMs)
	assert.Equal(t, 10, cfg.FillGracePeriodSec)
	assert.Equal(t, 10, cfg.NonceResyncCycles)
	assert.Equal(t, 1, cfg.SafetyMargin)
	assert.Equal(t, 200, cfg.PlacementDelayMs)
	assert.Equal(t, "console", cfg.LogConfig.Output)
	assert.Equal(t, defaultTestnetAPIURL, cfg.TestnetAPIURL)
}

func TestLoadConfigNormalizesDirection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	raw := `{"grid": {"token": "BTC", "direction": "long", "leverage": 10, "grid_count": 3, "investment": 30, "lower_price": 90000, "upper_price": 92000}}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, models.Long, cfg.Grid.Direction)
	require.NoError(t, Validate(&cfg.Grid))

	// a LONG grid only seeds buys below mid
	orders, err := planner.Plan(cfg.Grid, 91000)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.False(t, orders[0].IsAsk)
	assert.Equal(t, 90000.0, orders[0].Price)
}

func TestLoadConfigKeepsExplicitZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	raw := `{"grid": {"token": "BTC"}, "safety_margin": 0, "placement_delay_ms": 0}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Zero(t, cfg.SafetyMargin)
	assert.Zero(t, cfg.PlacementDelayMs)

	// negative values fall back to the defaults
	raw = `{"grid": {"token": "BTC"}, "safety_margin": -1, "placement_delay_ms": -5}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))
	cfg, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.SafetyMargin)
	assert.Equal(t, 200, cfg.PlacementDelayMs)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Run("missing credentials", func(t *testing.T) {
		t.Setenv("ACCOUNT_INDEX", "")
		t.Setenv("API_KEY_INDEX", "")
		err := ApplyEnv(Default())
		assert.ErrorIs(t, err, ErrMissingCredentials)
	})

	t.Run("testnet urls and overrides", func(t *testing.T) {
		t.Setenv("ACCOUNT_INDEX", "42")
		t.Setenv("API_KEY_INDEX", "3")
		t.Setenv("SIGNER_URL", "http://signer:9000")
		t.Setenv("BASE_URL", "")

		cfg := Default()
		cfg.IsTestnet = true
		require.NoError(t, ApplyEnv(cfg))
		assert.Equal(t, int64(42), cfg.AccountIndex)
		assert.Equal(t, 3, cfg.APIKeyIndex)
		assert.Equal(t, "http://signer:9000", cfg.SignerURL)
		assert.Equal(t, cfg.TestnetAPIURL, cfg.BaseURL)
		assert.Equal(t, cfg.TestnetWSURL, cfg.WSBaseURL)
	})

	t.Run("base url wins", func(t *testing.T) {
		t.Setenv("ACCOUNT_INDEX", "1")
		t.Setenv("API_KEY_INDEX", "2")
		t.Setenv("BASE_URL", "http://localhost:8080")

		cfg := Default()
		require.NoError(t, ApplyEnv(cfg))
		assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
	})

	t.Run("bad account index", func(t *testing.T) {
		t.Setenv("ACCOUNT_INDEX", "abc")
		t.Setenv("API_KEY_INDEX", "2")
		assert.Error(t, ApplyEnv(Default()))
	})
}

func TestValidate(t *testing.T) {
	valid := Default().Grid
	require.NoError(t, Validate(&valid))

	cases := map[string]func(g *models.GridConfig){
		"empty token":      func(g *models.GridConfig) { g.Token = "" },
		"bad direction":    func(g *models.GridConfig) { g.Direction = "SIDEWAYS" },
		"zero leverage":    func(g *models.GridConfig) { g.Leverage = 0 },
		"one grid":         func(g *models.GridConfig) { g.GridCount = 1 },
		"no investment":    func(g *models.GridConfig) { g.Investment = 0 },
		"inverted range":   func(g *models.GridConfig) { g.LowerPrice, g.UpperPrice = 110000, 90000 },
		"equal bounds":     func(g *models.GridConfig) { g.UpperPrice = g.LowerPrice },
		"non-positive low": func(g *models.GridConfig) { g.LowerPrice = 0 },
	}
	lower := valid
	lower.Direction = "short"
	require.NoError(t, Validate(&lower))
	assert.Equal(t, models.Short, lower.Direction)

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			g := valid
			mutate(&g)
			assert.Error(t, Validate(&g))
		})
	}
}
