package date

import "fmt"

// Range is a closed interval of dates.
type Range struct {
	From Date `json:"from"`
	To   Date `json:"to"`
}

// NewRange returns the range between two dates in whichever order they come.
func NewRange(from, to Date) Range {
	if to.Before(from) {
		return Range{From: to, To: from}
	}
	return Range{From: from, To: to}
}

// Contains reports whether d falls within r, bounds included.
func (r Range) Contains(d Date) bool { return !d.Before(r.From) && !d.After(r.To) }

// Period returns the calendar period r spans exactly, if any.
func (r Range) Period() (Period, bool) {
	for _, p := range []Period{Daily, Weekly, Monthly, Quarterly, Yearly} {
		if r.From.StartOf(p) == r.From && r.From.EndOf(p) == r.To {
			return p, true
		}
	}
	return Daily, false
}

// Identifier is the label of r in reports: "2024-W02", "2024-03", "2024-Q1",
// "2024" for calendar periods and "<from>_<to>" otherwise.
func (r Range) Identifier() string {
	p, ok := r.Period()
	if !ok {
		return fmt.Sprintf("%s_%s", r.From, r.To)
	}
	switch p {
	case Weekly:
		year, week := r.From.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	case Monthly:
		return r.From.Format("2006-01")
	case Quarterly:
		return fmt.Sprintf("%d-Q%d", r.From.Year(), (r.From.Month()-1)/3+1)
	case Yearly:
		return r.From.Format("2006")
	default:
		return r.From.String()
	}
}

func (r Range) String() string { return r.Identifier() }

