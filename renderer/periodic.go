package renderer

import (
	"fmt"
	"io"

	"github.com/etnz/rebalance/attribution"
	"github.com/etnz/rebalance/date"
	"github.com/etnz/rebalance/weights"
	md "github.com/nao1215/markdown"
)

var effectsHeader = []string{"Allocation", "Selection", "Interaction", "Total"}

func effectsRow(label string, e attribution.Effects) []string {
	return []string{label, effect(e.Allocation), effect(e.Selection), effect(e.Interaction), effect(e.Total())}
}

// AttributionMarkdown renders the attribution summary, then one table per
// report period with a row per bucket and sector.
func AttributionMarkdown(r *attribution.Report, periods ...date.Period) string {
	sections := []func(io.Writer) bool{
		func(w io.Writer) bool { return renderAttributionSummary(w, r, 1) },
	}
	for _, p := range periods {
		sections = append(sections, func(w io.Writer) bool { return renderBuckets(w, r, p) })
	}
	return document(sections...)
}

func renderAttributionSummary(w io.Writer, r *attribution.Report, level int) bool {
	return section(w, func(doc *md.Markdown) bool {
		if level == 1 {
			doc.H1("Attribution")
		} else {
			doc.H2("Attribution")
		}
		s := r.Summary
		table := md.TableSet{
			Header: append([]string{"Sector"}, effectsHeader...),
		}
		for _, name := range r.SectorNames() {
			table.Rows = append(table.Rows, effectsRow(name, s.Sectors[name]))
		}
		table.Rows = append(table.Rows, effectsRow(md.Bold("Total"), s.Total))
		writeTable(doc, table)

		doc.H3("Reconciliation")
		check := "reconciled"
		if !s.Reconciled {
			check = "not reconciled"
		}
		writeTable(doc, md.TableSet{
			Header: []string{"Excess Return", effect(s.Excess)},
			Rows:   [][]string{
				{"Portfolio", effect(s.PortfolioReturn)},
				{"Attributed Portfolio", effect(s.PortfolioContribution)},
				{"Benchmark", effect(s.BenchmarkContribution)},
				{"Sum of Effects", effect(s.Total.Total())},
				{"Residual", fmt.Sprintf("%+.4g", s.Residual)},
				{"Check", check},
			},
		})
		return true
	})
}

func renderBuckets(w io.Writer, r *attribution.Report, p date.Period) bool {
	buckets := r.Periods[p]
	if len(buckets) == 0 {
		return false
	}
	return section(w, func(doc *md.Markdown) bool {
		doc.H2(fmt.Sprintf("Attribution by %s", periodNoun(p)))
		table := md.TableSet{
			Header: append([]string{"Period", "Sector"}, effectsHeader...),
		}
		for _, b := range buckets {
			for _, name := range r.SectorNames() {
				e, ok := b.Sectors[name]
				if !ok {
					continue
				}
				table.Rows = append(table.Rows, append([]string{b.Range.Identifier()}, effectsRow(name, e)...))
			}
			table.Rows = append(table.Rows, append([]string{b.Range.Identifier()}, effectsRow(md.Bold("Total"), b.Total)...))
		}
		writeTable(doc, table)
		return true
	})
}

func periodNoun(p date.Period) string {
	switch p {
	case date.Daily:
		return "day"
	case date.Weekly:
		return "week"
	case date.Monthly:
		return "month"
	case date.Quarterly:
		return "quarter"
	case date.Yearly:
		return "year"
	}
	return p.String()
}

// WeightsMarkdown renders the signals and the target weights of a strategy on a date.
func WeightsMarkdown(on date.Date, snap weights.Snapshot, target weights.Vector) string {
	return document(func(w io.Writer) bool {
		return section(w, func(doc *md.Markdown) bool {
			doc.H1(fmt.Sprintf("Target Weights on %s", on))
			table := md.TableSet{
				Header: []string{"Asset", "Valuation Percentile", "Yield Percentile", "Yield", "Weight"},
			}
			signal := func(m map[string]float64, a string) string {
				if x, ok := m[a]; ok {
					return weight(x)
				}
				return ""
			}
			for _, a := range target.Assets() {
				table.Rows = append(table.Rows, []string{
					a,
					signal(snap.Valuation, a),
					signal(snap.YieldRank, a),
					signal(snap.Yield, a),
					weight(target[a]),
				})
			}
			table.Rows = append(table.Rows, []string{md.Bold("Total"), "", "", "", weight(target.Sum())})
			writeTable(doc, table)
			return true
		})
	})
}
