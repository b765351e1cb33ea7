package date

import (
	"iter"
	"slices"
)

// Series is the read-only contract of a date-indexed numeric series.
//
// Both *History[float64] and View[float64] implement it, so code that only
// needs to read a series can be handed a truncated View without being able
// to tell, nor to see past its end.
type Series interface {
	// Len returns the number of observations.
	Len() int
	// ValueAsOf returns the value on day or the most recent one before it.
	ValueAsOf(day Date) (float64, bool)
	// Trailing returns up to n values ending at the observation resolved for day.
	Trailing(day Date, n int) []float64
	// Values iterates over the observations in chronological order.
	Values() iter.Seq2[Date, float64]
}

// History stores a chronological series of values, each associated with a specific date.
// It ensures that dates are unique and the series is always sorted.
type History[T float32 | float64 | string] struct {
	days   []Date
	values []T
}

// Latest returns the latest date and value in the history.
// If the history is empty, it returns zero value.
func (h *History[T]) Latest() (day Date, value T) {
	last := len(h.days) - 1
	if last < 0 {
		return Date{}, *new(T) // return zero value of T
	}
	return h.days[last], h.values[last]
}

// First returns the earliest date and value in the history.
func (h *History[T]) First() (day Date, value T) {
	if len(h.days) == 0 {
		return Date{}, *new(T)
	}
	return h.days[0], h.values[0]
}

// Clear removes all items from the history.
func (h *History[T]) Clear() {
	h.days = h.days[:0]
	h.values = h.values[:0]
}

// Len returns the number of items in the history.
func (h *History[T]) Len() int { return len(h.days) }

// Append adds a point to the history.
//
// Existing value at that date are overwritten.
func (h *History[T]) Append(on Date, q T) *History[T] {
	i, found := search(h.days, on)
	if found {
		// We choose to replace, because it will give higher priority to the last data
		h.values[i] = q
		return h
	}
	h.days = slices.Insert(h.days, i, on)
	h.values = slices.Insert(h.values, i, q)
	return h
}

// Values returns an iterator over all date/value pairs in the history, in chronological order.
func (h *History[T]) Values() iter.Seq2[Date, T] { return values(h.days, h.values) }

// Dates returns a copy of the history dates, in chronological order.
func (h *History[T]) Dates() []Date { return slices.Clone(h.days) }

// Get returns the value at 'day' and true or zero value and false.
func (h *History[T]) Get(day Date) (T, bool) {
	if i, found := search(h.days, day); found {
		return h.values[i], true
	}
	return *new(T), false
}

// ValueAsOf returns the value on a given day, or the most recent value before it.
// It returns the value and true if found, otherwise it returns the zero value and false.
func (h *History[T]) ValueAsOf(day Date) (T, bool) { return valueAsOf(h.days, h.values, day) }

// Trailing returns a copy of at most n values ending at the observation ValueAsOf(day) would
// return. It is shorter than n when the history does not go back far enough, and empty
// when no observation exists on or before day.
func (h *History[T]) Trailing(day Date, n int) []T { return trailing(h.days, h.values, day, n) }

// Before returns a read-only view of the observations strictly before day.
//
// The view shares memory with h but is capped: points appended to h later,
// at or after day, are never visible through it.
func (h *History[T]) Before(day Date) View[T] {
	i, _ := search(h.days, day)
	return View[T]{days: h.days[:i:i], values: h.values[:i:i]}
}

// Clone returns a deep copy of h.
func (h *History[T]) Clone() *History[T] {
	return &History[T]{days: slices.Clone(h.days), values: slices.Clone(h.values)}
}

// View is an immutable window over a History, see History.Before.
type View[T float32 | float64 | string] struct {
	days   []Date
	values []T
}

// Len returns the number of observations in the view.
func (v View[T]) Len() int { return len(v.days) }

// Latest returns the last observation of the view.
func (v View[T]) Latest() (day Date, value T) {
	if len(v.days) == 0 {
		return Date{}, *new(T)
	}
	return v.days[len(v.days)-1], v.values[len(v.values)-1]
}

// ValueAsOf behaves like History.ValueAsOf restricted to the view.
func (v View[T]) ValueAsOf(day Date) (T, bool) { return valueAsOf(v.days, v.values, day) }

// Trailing behaves like History.Trailing restricted to the view.
func (v View[T]) Trailing(day Date, n int) []T { return trailing(v.days, v.values, day, n) }

// Values iterates over the view in chronological order.
func (v View[T]) Values() iter.Seq2[Date, T] { return values(v.days, v.values) }

var (
	_ Series = (*History[float64])(nil)
	_ Series = View[float64]{}
)

// search returns the position of day in days, or where it would be inserted.
func search(days []Date, day Date) (int, bool) {
	return slices.BinarySearchFunc(days, day, Date.Compare)
}

func valueAsOf[T any](days []Date, vals []T, day Date) (T, bool) {
	i, found := search(days, day)
	if found {
		return vals[i], true
	}
	// Not found. `i` is the index where `day` would be inserted.
	// The value we want is at `i-1`, which is the last entry before the target date.
	if i == 0 {
		var zero T
		return zero, false // No date on or before the given day.
	}
	return vals[i-1], true
}

func trailing[T any](days []Date, vals []T, day Date, n int) []T {
	if n <= 0 {
		return nil
	}
	end, found := search(days, day)
	if found {
		end++
	}
	start := max(end-n, 0)
	return slices.Clone(vals[start:end])
}

func values[T any](days []Date, vals []T) iter.Seq2[Date, T] {
	return func(yield func(Date, T) bool) {
		for i, on := range days {
			if !yield(on, vals[i]) {
				return
			}
		}
	}
}
