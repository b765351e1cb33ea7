package renderer

import (
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/etnz/rebalance/backtest"
	"github.com/etnz/rebalance/date"
	md "github.com/nao1215/markdown"
)

// HistoryMarkdown renders the value of the portfolio and its post-trade
// weights on every simulated date.
func HistoryMarkdown(res *backtest.Result, currency string) string {
	return document(func(w io.Writer) bool {
		return section(w, func(doc *md.Markdown) bool {
			doc.H1("History")

			post := make(map[date.Date]backtest.Weights, len(res.Post))
			set := make(map[string]bool)
			for _, p := range res.Post {
				post[p.Date] = p
				for a := range p.Weights {
					set[a] = true
				}
			}
			assets := slices.Sorted(maps.Keys(set))

			table := md.TableSet{
				Header: append([]string{"Date", "Value"}, assets...),
			}
			for day, v := range res.Values.Values() {
				row := []string{day.String(), amount(v, currency)}
				for _, a := range assets {
					row = append(row, weight(post[day].Weights[a]))
				}
				table.Rows = append(table.Rows, row)
			}
			writeTable(doc, table)
			return true
		})
	})
}

// PercentileMarkdown renders a series next to the percentile signal derived from it.
func PercentileMarkdown(name string, series date.Series, percentiles *date.History[float64]) string {
	return document(func(w io.Writer) bool {
		return section(w, func(doc *md.Markdown) bool {
			doc.H1(fmt.Sprintf("Percentile of %s", name))
			table := md.TableSet{
				Header: []string{"Date", "Value", "Percentile"},
			}
			for day, p := range percentiles.Values() {
				v, _ := series.ValueAsOf(day)
				table.Rows = append(table.Rows, []string{day.String(), fmt.Sprintf("%.4g", v), weight(p)})
			}
			writeTable(doc, table)
			return true
		})
	})
}
