package renderer

import (
	"io"

	"github.com/etnz/rebalance/backtest"
	md "github.com/nao1215/markdown"
)

// LogMarkdown renders the rebalance log, one row per asset and rebalance.
func LogMarkdown(rows []backtest.LogRow, currency string) string {
	return document(func(w io.Writer) bool { return renderLog(w, rows, currency, 1) })
}

// renderLog writes the log under a heading of the given level. It writes
// nothing when there was no rebalance.
func renderLog(w io.Writer, rows []backtest.LogRow, currency string, level int) bool {
	if len(rows) == 0 {
		return false
	}
	return section(w, func(doc *md.Markdown) bool {
		if level == 1 {
			doc.H1("Rebalance Log")
		} else {
			doc.H2("Rebalance Log")
		}
		table := md.TableSet{
			Header: []string{"Date", "Asset", "Pre", "Target", "Trade", "Executed", "Commission"},
		}
		for _, r := range rows {
			table.Rows = append(table.Rows, []string{
				r.Date.String(),
				r.Asset,
				weight(r.PreWeight),
				weight(r.TargetWeight),
				signedAmount(r.TradeAmount, currency),
				r.ExecutionDate.String(),
				amount(r.Commission, currency),
			})
		}
		writeTable(doc, table)
		return true
	})
}
