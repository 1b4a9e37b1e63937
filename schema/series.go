package schema

import (
	"math"
	"slices"
	"time"
)

// Series is one variable's observations at one level. Missing values are NaN.
type Series struct {
	Name   string
	Index  []time.Time
	Values []float64
}

// Point is a single timestamped value, used to return fill values.
type Point struct {
	Time  time.Time
	Value float64
}

// Len returns the number of timestamps in the series.
func (s Series) Len() int {
	return len(s.Index)
}

// Clone returns a copy whose values can be modified without touching s.
// The index is shared because it is never mutated.
func (s Series) Clone() Series {
	return Series{Name: s.Name, Index: s.Index, Values: slices.Clone(s.Values)}
}

// IsMissing reports whether the value at position i is missing.
func (s Series) IsMissing(i int) bool {
	return math.IsNaN(s.Values[i])
}

// MissingCount returns the number of missing values.
func (s Series) MissingCount() int {
	n := 0
	for _, v := range s.Values {
		if math.IsNaN(v) {
			n++
		}
	}
	return n
}

// Restrict returns the subset of s whose timestamps fall inside w.
func (s Series) Restrict(w Window) Series {
	idx := w.Indices(s.Index)
	out := Series{
		Name:   s.Name,
		Index:  make([]time.Time, len(idx)),
		Values: make([]float64, len(idx)),
	}
	for j, i := range idx {
		out.Index[j] = s.Index[i]
		out.Values[j] = s.Values[i]
	}
	return out
}

// ValueAt returns the value stored at t, if t is part of the index.
func (s Series) ValueAt(t time.Time) (float64, bool) {
	i, ok := slices.BinarySearchFunc(s.Index, t, func(a, b time.Time) int { return a.Compare(b) })
	if !ok {
		return math.NaN(), false
	}
	return s.Values[i], true
}

// Window is an inclusive time range. A nil bound is open.
type Window struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// Unbounded reports whether neither bound is set.
func (w Window) Unbounded() bool {
	return w.Start == nil && w.End == nil
}

// Contains reports whether t lies inside the window, bounds included.
func (w Window) Contains(t time.Time) bool {
	if w.Start != nil && t.Before(*w.Start) {
		return false
	}
	if w.End != nil && t.After(*w.End) {
		return false
	}
	return true
}

// Ordered reports whether Start <= End when both bounds are set.
func (w Window) Ordered() bool {
	return w.Start == nil || w.End == nil || !w.Start.After(*w.End)
}

// Indices returns the positions of index that fall inside the window.
// index must be sorted ascending.
func (w Window) Indices(index []time.Time) []int {
	lo, hi := 0, len(index)
	if w.Start != nil {
		lo, _ = slices.BinarySearchFunc(index, *w.Start, func(a, b time.Time) int { return a.Compare(b) })
	}
	if w.End != nil {
		hi, _ = slices.BinarySearchFunc(index, *w.End, func(a, b time.Time) int {
			// first element strictly after End
			if a.After(b) {
				return 1
			}
			return -1
		})
	}
	if lo >= hi {
		return nil
	}
	out := make([]int, 0, hi-lo)
	for i := lo; i < hi; i++ {
		out = append(out, i)
	}
	return out
}

// String renders the window for listings; open bounds print as "*".
func (w Window) String() string {
	start, end := "*", "*"
	if w.Start != nil {
		start = w.Start.UTC().Format(time.RFC3339)
	}
	if w.End != nil {
		end = w.End.UTC().Format(time.RFC3339)
	}
	return "[" + start + ", " + end + "]"
}
