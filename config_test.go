package rebalance

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/etnz/rebalance/date"
	"github.com/etnz/rebalance/signal"
	"github.com/etnz/rebalance/weights"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
data: market.jsonl
start: 2024-01-08
end: 2024-01-12
initial_value: 1000
threshold: 0.01
commission: 0.001
window: 6
residual: CASH
assets:
  - name: EQ
    kind: risk
    base: 0.6
    indicator: EQ.PE
    sector: equity
  - name: MMF
    kind: cash
    indicator: MMF.YIELD
    yield_threshold: 0.02
    sector: cash
static_weights:
  EQ: 0.6
  CASH: 0.4
benchmark:
  weights:
    EQ: 0.5
    CASH: 0.5
sectors:
  CASH: cash
report: [daily, monthly]
`

func TestDecodeConfig(t *testing.T) {
	cfg, err := DecodeConfig(strings.NewReader(sample))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, date.New(2024, time.January, 8), cfg.Start)
	assert.Equal(t, "EUR", cfg.Currency) // default
	assert.Equal(t, []date.Period{date.Daily, date.Monthly}, cfg.Report)
	assert.Equal(t, []string{"EQ", "MMF", "CASH"}, cfg.Universe())
	assert.Equal(t, "equity", cfg.SectorMap()["EQ"])
	assert.Equal(t, "cash", cfg.SectorMap()["CASH"])

	calc, err := cfg.Calculator()
	require.NoError(t, err)
	require.Len(t, calc.Rules, 2)
	assert.Equal(t, weights.CashEquivalent, calc.Rules[1].Kind)

	reg, err := cfg.Registry()
	require.NoError(t, err)
	assert.Equal(t, []string{Dynamic, Static}, reg.Names())
}

func TestDecodeConfig_UnknownField(t *testing.T) {
	_, err := DecodeConfig(strings.NewReader("treshold: 0.01\n"))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"negative threshold", func(c *Config) { c.Threshold = -1 }},
		{"commission", func(c *Config) { c.Commission = 1 }},
		{"no capital", func(c *Config) { c.InitialValue = 0 }},
		{"end before start", func(c *Config) { c.End = c.Start.Add(-1) }},
		{"unknown kind", func(c *Config) { c.Assets[0].Kind = "crypto" }},
		{"no indicator", func(c *Config) { c.Assets[0].Indicator = "" }},
		{"window", func(c *Config) { c.Window = 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := DecodeConfig(strings.NewReader(sample))
			require.NoError(t, err)
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfig_Registry(t *testing.T) {
	cfg, err := DecodeConfig(strings.NewReader(sample))
	require.NoError(t, err)
	cfg.Assets[0].Kind = "crypto"

	// the static strategy still builds
	cfg.Strategy = Static
	reg, err := cfg.Registry()
	require.NoError(t, err)
	assert.Equal(t, []string{Static}, reg.Names())

	// the selected one reports why it cannot
	cfg.Strategy = Dynamic
	_, err = cfg.Registry()
	require.Error(t, err)
	assert.ErrorContains(t, err, "crypto")
	assert.NotErrorIs(t, err, weights.ErrUnknownStrategy)

	cfg.StaticWeights = map[string]float64{"EQ": 0.7, "CASH": 0.7}
	cfg.Strategy = Static
	_, err = cfg.Registry()
	assert.ErrorIs(t, err, weights.ErrInvalidWeights)
}

func TestConfig_Env(t *testing.T) {
	cfg, err := DecodeConfig(strings.NewReader(sample))
	require.NoError(t, err)
	env := map[string]string{
		"REBAL_THRESHOLD":      "0.05",
		"REBAL_STRATEGY":       "static",
		"REBAL_START":          "2024-01-09",
		"REBAL_STRICT_HISTORY": "true",
		"REBAL_REPORT":         "weekly,yearly",
	}
	require.NoError(t, cfg.applyEnv(func(k string) string { return env[k] }))
	assert.Equal(t, 0.05, cfg.Threshold)
	assert.Equal(t, Static, cfg.Strategy)
	assert.Equal(t, date.New(2024, time.January, 9), cfg.Start)
	assert.Equal(t, signal.Strict, cfg.Engine().Policy)
	assert.Equal(t, []date.Period{date.Weekly, date.Yearly}, cfg.Report)

	env["REBAL_COMMISSION"] = "cheap"
	assert.Error(t, cfg.applyEnv(func(k string) string { return env[k] }))
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strategy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
	t.Setenv("REBAL_COMMISSION", "0.002")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 0.002, cfg.Commission)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfig_Encode(t *testing.T) {
	cfg, err := DecodeConfig(strings.NewReader(sample))
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, cfg.Encode(&buf))
	again, err := DecodeConfig(&buf)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}
