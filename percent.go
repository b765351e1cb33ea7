package rebalance

import "fmt"

// Percent is a ratio expressed in percent: 12.5 means 12.5%.
type Percent float64

// Ratio converts a fraction, like a weight or a return, to a Percent.
func Ratio(x float64) Percent { return Percent(100 * x) }

func (p Percent) Equal(q Percent) bool {
	// it has to be compared with some precision
	const precision = 0.0001
	diff := p - q
	if diff < 0 {
		diff = -diff
	}
	return diff < precision
}

func (p Percent) String() string {
	return fmt.Sprintf("%.2f%%", p)
}

func (p Percent) SignedString() string {
	res := fmt.Sprintf("%+.2f%%", p)
	if res == "+0.00%" || res == "-0.00%" {
		return "-"
	}
	return res
}

// Performance holds the starting and ending value of a run.
type Performance struct {
	Start, End Money
}

func NewPerformance(start, end Money) Performance { return Performance{Start: start, End: end} }

// Change returns End - Start.
func (p Performance) Change() Money { return p.End.Sub(p.Start) }

// Return returns the total return of the run.
func (p Performance) Return() Percent {
	if p.Start.IsZero() {
		return 0
	}
	return Percent(100 * p.Change().AsFloat() / p.Start.AsFloat())
}
