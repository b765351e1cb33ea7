package renderer

import (
	"fmt"
	"io"

	"github.com/etnz/rebalance"
	md "github.com/nao1215/markdown"
)

// SummaryMarkdown renders the outcome of a run: performance, final holding,
// rebalances and, with a benchmark, the attribution summary.
func SummaryMarkdown(out *rebalance.Outcome) string {
	cur := out.Config.Currency
	return document(
		func(w io.Writer) bool { return renderPerformance(w, out) },
		func(w io.Writer) bool { return renderHolding(w, out) },
		func(w io.Writer) bool { return renderLog(w, out.Result.LogRows(), cur, 2) },
		func(w io.Writer) bool { return out.Report != nil && renderAttributionSummary(w, out.Report, 2) },
	)
}

func renderPerformance(w io.Writer, out *rebalance.Outcome) bool {
	return section(w, func(doc *md.Markdown) bool {
		s := out.Result.Stats()
		cur := out.Config.Currency
		perf := out.Performance()

		doc.H1(fmt.Sprintf("Backtest of the %s strategy from %s to %s", out.Config.Strategy, s.Start, s.End))
		writeTable(doc, md.TableSet{
			Header: []string{md.Bold("Final Value"), md.Bold(perf.End.String())},
			Rows:   [][]string{
				{"Initial Value", perf.Start.String()},
				{"Change", perf.Change().SignedString()},
				{"Total Return", perf.Return().SignedString()},
				{"Annualized Volatility", weight(s.Volatility)},
				{"Max Drawdown", weight(s.MaxDrawdown)},
				{"Rebalances", fmt.Sprint(s.Rebalances)},
				{"Turnover", weight(s.Turnover)},
				{"Commissions", amount(s.Commissions, cur)},
			},
		})
		return true
	})
}

func renderHolding(w io.Writer, out *rebalance.Outcome) bool {
	if len(out.Result.Post) == 0 {
		return false
	}
	last := out.Result.Post[len(out.Result.Post)-1]
	return section(w, func(doc *md.Markdown) bool {
		doc.H2(fmt.Sprintf("Weights on %s", last.Date))
		table := md.TableSet{
			Header: []string{"Asset", "Weight"},
		}
		for _, a := range last.Weights.Assets() {
			table.Rows = append(table.Rows, []string{a, weight(last.Weights[a])})
		}
		writeTable(doc, table)
		return len(table.Rows) > 0
	})
}
