package rebalance

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/etnz/rebalance/backtest"
	"github.com/shopspring/decimal"
)

// Precision of the exported columns.
const (
	WeightPlaces = 6
	AmountPlaces = 2
)

func fixed(x float64, places int32) string {
	return decimal.NewFromFloat(x).StringFixed(places)
}

// ExportLog writes the rebalance log as CSV, one row per asset and event.
func ExportLog(w io.Writer, rows []backtest.LogRow) error {
	cw := csv.NewWriter(w)
	header := []string{"date", "asset", "pre_weight", "target_weight", "trade_amount", "execution_date", "commission_paid"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("cannot write log header: %w", err)
	}
	for _, r := range rows {
		record := []string{
			r.Date.String(),
			r.Asset,
			fixed(r.PreWeight, WeightPlaces),
			fixed(r.TargetWeight, WeightPlaces),
			fixed(r.TradeAmount, AmountPlaces),
			r.ExecutionDate.String(),
			fixed(r.Commission, AmountPlaces),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("cannot write log row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportValues writes the portfolio value series as CSV.
func ExportValues(w io.Writer, res *backtest.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", "value"}); err != nil {
		return err
	}
	for day, v := range res.Values.Values() {
		if err := cw.Write([]string{day.String(), fixed(v, AmountPlaces)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportWeights writes a weight history as CSV, one column per asset.
func ExportWeights(w io.Writer, history []backtest.Weights) error {
	set := make(map[string]bool)
	for _, h := range history {
		for a := range h.Weights {
			set[a] = true
		}
	}
	assets := sortedKeys(set)

	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"date"}, assets...)); err != nil {
		return err
	}
	for _, h := range history {
		record := make([]string, 0, len(assets)+1)
		record = append(record, h.Date.String())
		for _, a := range assets {
			record = append(record, fixed(h.Weights[a], WeightPlaces))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
