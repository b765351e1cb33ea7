// Package market holds the in-memory market data a backtest runs on: price
// series per asset and indicator series (valuation ratios, yields) by name.
//
// Acquiring the data is not this package's concern: series are imported from
// files written by whatever downloader the user runs, see ImportJSONL and
// ImportJSONPath.
package market

import (
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/etnz/rebalance/date"
)

// Kind tells prices and indicators apart in the import/export format.
type Kind string

const (
	Price     Kind = "price"
	Indicator Kind = "indicator"
)

// Data holds market data for a set of assets and indicators.
type Data struct {
	prices     map[string]*date.History[float64]
	indicators map[string]*date.History[float64]
}

// NewData returns a new empty market data collection.
func NewData() *Data {
	return &Data{
		prices:     make(map[string]*date.History[float64]),
		indicators: make(map[string]*date.History[float64]),
	}
}

func (d *Data) series(kind Kind) map[string]*date.History[float64] {
	if kind == Indicator {
		return d.indicators
	}
	return d.prices
}

// Append records one observation. Values must be finite.
func (d *Data) Append(kind Kind, name string, on date.Date, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("%s %q on %s is not a finite number", kind, name, on)
	}
	m := d.series(kind)
	h, ok := m[name]
	if !ok {
		h = new(date.History[float64])
		m[name] = h
	}
	h.Append(on, value)
	return nil
}

// Set replaces the whole series of name.
func (d *Data) Set(kind Kind, name string, h *date.History[float64]) { d.series(kind)[name] = h }

// Has reports whether the asset has a price series.
func (d *Data) Has(asset string) bool {
	_, ok := d.prices[asset]
	return ok
}

// Prices returns the price history of asset.
func (d *Data) Prices(asset string) (*date.History[float64], bool) {
	h, ok := d.prices[asset]
	return h, ok
}

// Indicator returns the full indicator series, with no look-ahead protection.
func (d *Data) Indicator(name string) (date.Series, bool) {
	h, ok := d.indicators[name]
	if !ok {
		return nil, false
	}
	return h, true
}

// Assets returns the priced assets in lexical order.
func (d *Data) Assets() []string { return slices.Sorted(maps.Keys(d.prices)) }

// Indicators returns the indicator names in lexical order.
func (d *Data) Indicators() []string { return slices.Sorted(maps.Keys(d.indicators)) }

// Calendar returns the union of the price dates of assets within r.
func (d *Data) Calendar(r date.Range, assets ...string) []date.Date {
	histories := make([]*date.History[float64], 0, len(assets))
	for _, a := range assets {
		if h, ok := d.prices[a]; ok {
			histories = append(histories, h)
		}
	}
	return date.Union(r, histories...)
}

// Before returns what was known of the indicators strictly before on.
func (d *Data) Before(on date.Date) View { return View{data: d, cutoff: on} }

// View is a read-only, look-ahead free window over indicator data.
type View struct {
	data   *Data
	cutoff date.Date
}

// Cutoff returns the first date the view cannot see.
func (v View) Cutoff() date.Date { return v.cutoff }

// Indicator returns the series of name truncated strictly before the cutoff.
func (v View) Indicator(name string) (date.Series, bool) {
	h, ok := v.data.indicators[name]
	if !ok {
		return nil, false
	}
	return h.Before(v.cutoff), true
}
