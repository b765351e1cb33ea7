package date

import (
	"slices"
	"testing"
	"time"
)

func TestAppend(t *testing.T) {
	h := new(History[string])
	d1, v1 := New(2025, 07, 01), "25 Jul 1"
	d2, v2 := New(2024, 07, 01), "24 Jul 1"

	// Test is about appending two values in reverse order and checking that everything is
	// as expected at every step of the way.

	if h.Len() != 0 {
		t.Errorf("History.Len() = %v want 0", h.Len())
	}

	h.Append(d1, v1)
	if h.Len() != 1 {
		t.Errorf("Append(d1, v1).Len() = %v want 1", h.Len())
	}

	h.Append(d2, v2)
	if h.Len() != 2 {
		t.Errorf("Append(d2, v2).Len() = %v want 2", h.Len())
	}

	if h.days[1] != d1 {
		t.Errorf("history[1].day = %v want %v", h.days[1], d1)
	}
	if h.days[0] != d2 {
		t.Errorf("history[0].day = %v want %v", h.days[0], d2)
	}
	if h.values[1] != v1 {
		t.Errorf("history[1].value = %v want %v", h.values[1], v1)
	}
	if h.values[0] != v2 {
		t.Errorf("history[0].value = %v want %v", h.values[0], v2)
	}

	h.Append(d1, "overwritten")
	if h.Len() != 2 {
		t.Errorf("Append(d1, ...) on existing date: Len() = %v want 2", h.Len())
	}
	if got, _ := h.Get(d1); got != "overwritten" {
		t.Errorf("Get(d1) = %q want %q", got, "overwritten")
	}
}

func TestValueAsOf(t *testing.T) {
	h := new(History[float64])
	h.Append(New(2024, time.January, 2), 1)
	h.Append(New(2024, time.January, 5), 2)

	tests := []struct {
		name  string
		on    Date
		want  float64
		found bool
	}{
		{"before any data", New(2024, time.January, 1), 0, false},
		{"exact date", New(2024, time.January, 2), 1, true},
		{"gap uses nearest prior", New(2024, time.January, 4), 1, true},
		{"after the end", New(2024, time.February, 1), 2, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := h.ValueAsOf(tt.on)
			if got != tt.want || found != tt.found {
				t.Errorf("ValueAsOf(%v) = %v, %v want %v, %v", tt.on, got, found, tt.want, tt.found)
			}
		})
	}
}

func TestTrailing(t *testing.T) {
	h := new(History[float64])
	start := New(2024, time.January, 1)
	for i := range 5 {
		h.Append(start.Add(2*i), float64(i))
	}
	// dates: Jan 1, 3, 5, 7, 9 with values 0..4

	tests := []struct {
		name string
		on   Date
		n    int
		want []float64
	}{
		{"full window", New(2024, time.January, 9), 3, []float64{2, 3, 4}},
		{"gap resolves to prior", New(2024, time.January, 8), 3, []float64{1, 2, 3}},
		{"shrinking window", New(2024, time.January, 3), 3, []float64{0, 1}},
		{"no history", New(2023, time.December, 31), 3, nil},
		{"zero length", New(2024, time.January, 9), 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := h.Trailing(tt.on, tt.n)
			if len(got) != len(tt.want) || (len(got) > 0 && !slices.Equal(got, tt.want)) {
				t.Errorf("Trailing(%v, %d) = %v want %v", tt.on, tt.n, got, tt.want)
			}
		})
	}
}

func TestBefore(t *testing.T) {
	h := new(History[float64])
	h.Append(New(2024, time.January, 1), 1)
	h.Append(New(2024, time.January, 2), 2)
	h.Append(New(2024, time.January, 3), 3)

	cutoff := New(2024, time.January, 3)
	v := h.Before(cutoff)
	if v.Len() != 2 {
		t.Fatalf("Before(%v).Len() = %d want 2", cutoff, v.Len())
	}
	if got, _ := v.ValueAsOf(cutoff); got != 2 {
		t.Errorf("Before(%v).ValueAsOf(%v) = %v want 2 (same day must be invisible)", cutoff, cutoff, got)
	}

	// Data appended at or after the cutoff never shows through the view.
	h.Append(New(2024, time.January, 4), 4)
	h.Append(cutoff, 30)
	if got := v.Trailing(New(2024, time.January, 10), 10); !slices.Equal(got, []float64{1, 2}) {
		t.Errorf("view after appending future data = %v want [1 2]", got)
	}
}

func TestUnion(t *testing.T) {
	a, b := new(History[float64]), new(History[float64])
	a.Append(New(2024, time.January, 1), 1).Append(New(2024, time.January, 3), 1)
	b.Append(New(2024, time.January, 2), 1).Append(New(2024, time.January, 3), 1).Append(New(2024, time.January, 9), 1)

	got := Union(NewRange(New(2024, time.January, 2), New(2024, time.January, 5)), a, b)
	want := []Date{New(2024, time.January, 2), New(2024, time.January, 3)}
	if !slices.Equal(got, want) {
		t.Errorf("Union() = %v want %v", got, want)
	}
}
