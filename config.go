package rebalance

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/etnz/rebalance/attribution"
	"github.com/etnz/rebalance/backtest"
	"github.com/etnz/rebalance/date"
	"github.com/etnz/rebalance/signal"
	"github.com/etnz/rebalance/weights"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Strategy names known by the registry built from a Config.
const (
	Dynamic = "dynamic"
	Static  = "static"
)

// EnvPrefix prefixes the environment variables overriding the configuration file.
const EnvPrefix = "REBAL_"

// Config is the strategy file of a run.
type Config struct {
	Data string `yaml:"data,omitempty"` // JSONL market data file

	Start        date.Date `yaml:"start,omitempty"`
	End          date.Date `yaml:"end,omitempty"`
	InitialValue float64   `yaml:"initial_value"`
	Currency     string    `yaml:"currency"`
	Threshold    float64   `yaml:"threshold"`
	Commission   float64   `yaml:"commission,omitempty"`

	Window          int  `yaml:"window"`
	MinObservations int  `yaml:"min_observations,omitempty"`
	StrictHistory   bool `yaml:"strict_history,omitempty"`

	Strategy       string             `yaml:"strategy"`
	Residual       string             `yaml:"residual,omitempty"`
	Assets         []Asset            `yaml:"assets"`
	StaticWeights  map[string]float64 `yaml:"static_weights,omitempty"`
	InitialWeights map[string]float64 `yaml:"initial_weights,omitempty"`

	Benchmark Benchmark         `yaml:"benchmark,omitempty"`
	Sectors   map[string]string `yaml:"sectors,omitempty"` // sectors of assets without a rule, e.g. the residual
	Report    []date.Period     `yaml:"report"`
	Workers   int               `yaml:"workers,omitempty"`
}

// Asset is the rule of one asset of the dynamic strategy.
type Asset struct {
	Name           string  `yaml:"name"`
	Kind           string  `yaml:"kind"`
	Base           float64 `yaml:"base,omitempty"`
	Indicator      string  `yaml:"indicator,omitempty"`
	YieldThreshold float64 `yaml:"yield_threshold,omitempty"`
	Multiplier     float64 `yaml:"multiplier,omitempty"`
	Sector         string  `yaml:"sector,omitempty"`
}

// Benchmark describes the benchmark weights: static, or read from indicator
// series named Series followed by the asset name.
type Benchmark struct {
	Weights map[string]float64 `yaml:"weights,omitempty"`
	Series  string             `yaml:"series,omitempty"`
	Assets  []string           `yaml:"assets,omitempty"` // assets of the series benchmark
}

// IsZero reports whether no benchmark is configured.
func (b Benchmark) IsZero() bool { return len(b.Weights) == 0 && b.Series == "" }

// DefaultConfig returns the defaults applied before reading a file.
func DefaultConfig() Config {
	return Config{
		InitialValue:    100_000,
		Currency:        "EUR",
		Threshold:       0.01,
		Window:          252,
		MinObservations: 2,
		Strategy:        Dynamic,
		Report:          []date.Period{date.Monthly},
	}
}

// LoadConfig reads the configuration file at path, then applies the
// environment overrides. A .env file in the working directory is loaded first
// when it exists.
func LoadConfig(path string) (Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("cannot open configuration: %w", err)
	}
	defer f.Close()
	cfg, err := DecodeConfig(f)
	if err != nil {
		return Config{}, fmt.Errorf("cannot read %q: %w", path, err)
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// DecodeConfig decodes a YAML configuration over the defaults.
func DecodeConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	return cfg, nil
}

// Encode writes the configuration as YAML.
func (c Config) Encode(w io.Writer) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// applyEnv overrides fields from REBAL_* variables.
func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}
	float := func(key string, dst *float64) error {
		if v := getenv(EnvPrefix + key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = f
		}
		return nil
	}
	day := func(key string, dst *date.Date) error {
		if v := getenv(EnvPrefix + key); v != "" {
			d, err := date.Parse(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = d
		}
		return nil
	}

	str("DATA", &c.Data)
	str("STRATEGY", &c.Strategy)
	str("CURRENCY", &c.Currency)
	if v := getenv(EnvPrefix + "WINDOW"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sWINDOW: %w", EnvPrefix, err)
		}
		c.Window = n
	}
	if v := getenv(EnvPrefix + "STRICT_HISTORY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sSTRICT_HISTORY: %w", EnvPrefix, err)
		}
		c.StrictHistory = b
	}
	if v := getenv(EnvPrefix + "REPORT"); v != "" {
		c.Report = nil
		for _, name := range strings.Split(v, ",") {
			p, err := date.ParsePeriod(name)
			if err != nil {
				return fmt.Errorf("%sREPORT: %w", EnvPrefix, err)
			}
			c.Report = append(c.Report, p)
		}
	}
	return errors.Join(
		float("THRESHOLD", &c.Threshold),
		float("COMMISSION", &c.Commission),
		float("INITIAL_VALUE", &c.InitialValue),
		day("START", &c.Start),
		day("END", &c.End),
	)
}

// Validate checks the configuration once, before any data is read.
func (c Config) Validate() error {
	switch {
	case c.InitialValue <= 0:
		return fmt.Errorf("initial_value must be positive, got %v", c.InitialValue)
	case c.Threshold < 0:
		return fmt.Errorf("threshold must not be negative, got %v", c.Threshold)
	case c.Commission < 0 || c.Commission >= 1:
		return fmt.Errorf("commission must be in [0, 1), got %v", c.Commission)
	case !c.Start.IsZero() && !c.End.IsZero() && c.End.Before(c.Start):
		return fmt.Errorf("end %s is before start %s", c.End, c.Start)
	}
	if _, err := c.Calculator(); err != nil && c.Strategy == Dynamic {
		return err
	}
	if c.Strategy == Dynamic && c.Window < 2 {
		return fmt.Errorf("window of %d: %w", c.Window, signal.ErrInvalidWindow)
	}
	return nil
}

// Calculator returns the weight calculator of the dynamic strategy.
func (c Config) Calculator() (weights.Calculator, error) {
	calc := weights.Calculator{Residual: c.Residual}
	for _, a := range c.Assets {
		kind, err := weights.ParseKind(a.Kind)
		if err != nil {
			return calc, fmt.Errorf("asset %q: %w", a.Name, err)
		}
		indicator := a.Indicator
		if indicator == "" && kind != weights.Fixed {
			return calc, fmt.Errorf("asset %q has no indicator: %w", a.Name, weights.ErrInvalidWeights)
		}
		calc.Rules = append(calc.Rules, weights.Rule{
			Asset:          a.Name,
			Kind:           kind,
			Base:           a.Base,
			Indicator:      indicator,
			YieldThreshold: a.YieldThreshold,
			Multiplier:     a.Multiplier,
		})
	}
	return calc, calc.Validate()
}

// Engine returns the percentile engine of the dynamic strategy.
func (c Config) Engine() signal.Engine {
	e := signal.NewEngine(c.Window)
	e.MinObservations = c.MinObservations
	if c.StrictHistory {
		e.Policy = signal.Strict
	}
	return e
}

// Registry builds the strategies the configuration describes. A strategy
// that cannot be built is left out, unless it is the selected one: its error
// is returned then.
func (c Config) Registry() (*weights.Registry, error) {
	reg := weights.NewRegistry()
	failed := make(map[string]error)
	if calc, err := c.Calculator(); err != nil {
		failed[Dynamic] = err
	} else if d, err := weights.NewDynamic(calc, c.Engine()); err != nil {
		failed[Dynamic] = err
	} else if err := reg.Register(Dynamic, d); err != nil {
		return nil, err
	}
	if len(c.StaticWeights) > 0 {
		if s, err := weights.NewStatic(c.StaticWeights); err != nil {
			failed[Static] = err
		} else if err := reg.Register(Static, s); err != nil {
			return nil, err
		}
	}
	if err, ok := failed[c.Strategy]; ok {
		return nil, fmt.Errorf("%s strategy: %w", c.Strategy, err)
	}
	if len(reg.Names()) == 0 {
		return nil, errors.Join(failed[Dynamic], failed[Static], fmt.Errorf("no strategy configured: %w", weights.ErrUnknownStrategy))
	}
	return reg, nil
}

// SectorMap returns the sector of every configured asset. Cash left over by
// the simulator belongs to the "cash" sector.
func (c Config) SectorMap() map[string]string {
	m := map[string]string{backtest.Cash: "cash"}
	for a, s := range c.Sectors {
		m[a] = s
	}
	for _, a := range c.Assets {
		if a.Sector != "" {
			m[a.Name] = a.Sector
		}
	}
	return m
}

// Universe returns every asset the strategies may hold, in configuration order.
func (c Config) Universe() []string {
	var assets []string
	seen := make(map[string]bool)
	add := func(a string) {
		if a != "" && !seen[a] {
			seen[a] = true
			assets = append(assets, a)
		}
	}
	for _, a := range c.Assets {
		add(a.Name)
	}
	add(c.Residual)
	for _, a := range sortedKeys(c.StaticWeights) {
		add(a)
	}
	for _, a := range sortedKeys(c.InitialWeights) {
		add(a)
	}
	return assets
}

// attributionOptions returns the attribution options of the configuration.
func (c Config) attributionOptions() []attribution.Option {
	if c.Workers > 1 {
		return []attribution.Option{attribution.WithWorkers(c.Workers)}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string { return slices.Sorted(maps.Keys(m)) }
