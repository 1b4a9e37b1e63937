package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"time"
)

// Table is one logger's data at one level: a shared time index plus
// one value series and (above raw) one flag column per variable.
type Table struct {
	Logger  string
	Level   string
	Index   []time.Time
	Columns []string

	values map[string][]float64
	flags  map[string][]int64
}

// NewTable creates an empty table. The index must be strictly increasing.
func NewTable(logger, level string, index []time.Time) (*Table, error) {
	for i := 1; i < len(index); i++ {
		if !index[i].After(index[i-1]) {
			return nil, fmt.Errorf("table %s/%s: index not strictly increasing at %s", logger, level, index[i].Format(time.RFC3339))
		}
	}
	return &Table{
		Logger: logger,
		Level:  level,
		Index:  index,
		values: make(map[string][]float64),
		flags:  make(map[string][]int64),
	}, nil
}

// Len returns the number of timestamps.
func (t *Table) Len() int {
	return len(t.Index)
}

// AddSeries appends a variable. flags may be nil for raw data.
func (t *Table) AddSeries(name string, values []float64, flags []int64) error {
	if _, ok := t.values[name]; ok {
		return fmt.Errorf("table %s/%s: duplicate variable %q", t.Logger, t.Level, name)
	}
	if len(values) != len(t.Index) {
		return fmt.Errorf("table %s/%s: variable %q has %d values for %d timestamps", t.Logger, t.Level, name, len(values), len(t.Index))
	}
	if flags != nil && len(flags) != len(t.Index) {
		return fmt.Errorf("table %s/%s: variable %q has %d flags for %d timestamps", t.Logger, t.Level, name, len(flags), len(t.Index))
	}
	t.Columns = append(t.Columns, name)
	t.values[name] = values
	if flags != nil {
		t.flags[name] = flags
	}
	return nil
}

// Has reports whether the variable is present.
func (t *Table) Has(name string) bool {
	_, ok := t.values[name]
	return ok
}

// Series returns a copy of the named variable's values.
func (t *Table) Series(name string) (Series, bool) {
	v, ok := t.values[name]
	if !ok {
		return Series{}, false
	}
	return Series{Name: name, Index: t.Index, Values: slices.Clone(v)}, true
}

// Flags returns a copy of the named variable's flag column.
func (t *Table) Flags(name string) ([]int64, bool) {
	f, ok := t.flags[name]
	if !ok {
		return nil, false
	}
	return slices.Clone(f), true
}

// HasFlags reports whether any variable carries a flag column.
func (t *Table) HasFlags() bool {
	return len(t.flags) > 0
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	out := &Table{
		Logger:  t.Logger,
		Level:   t.Level,
		Index:   slices.Clone(t.Index),
		Columns: slices.Clone(t.Columns),
		values:  make(map[string][]float64, len(t.values)),
		flags:   make(map[string][]int64, len(t.flags)),
	}
	for k, v := range t.values {
		out.values[k] = slices.Clone(v)
	}
	for k, f := range t.flags {
		out.flags[k] = slices.Clone(f)
	}
	return out
}

// Equal reports whether two tables hold the same index, columns, values and flags.
// Missing values compare equal to each other.
func (t *Table) Equal(o *Table) bool {
	if t.Logger != o.Logger || t.Level != o.Level {
		return false
	}
	if !slices.EqualFunc(t.Index, o.Index, func(a, b time.Time) bool { return a.Equal(b) }) {
		return false
	}
	if !slices.Equal(t.Columns, o.Columns) {
		return false
	}
	for _, c := range t.Columns {
		eq := slices.EqualFunc(t.values[c], o.values[c], func(a, b float64) bool {
			return a == b || (math.IsNaN(a) && math.IsNaN(b))
		})
		if !eq || !slices.Equal(t.flags[c], o.flags[c]) {
			return false
		}
	}
	return true
}

// tableJSON is the wire form of Table. Missing values become null.
type tableJSON struct {
	Logger  string                `json:"logger"`
	Level   string                `json:"level"`
	Index   []time.Time           `json:"index"`
	Columns []string              `json:"columns"`
	Values  map[string][]*float64 `json:"values"`
	Flags   map[string][]int64    `json:"flags,omitempty"`
}

// MarshalJSON encodes the table with NaN values as null.
func (t *Table) MarshalJSON() ([]byte, error) {
	w := tableJSON{
		Logger:  t.Logger,
		Level:   t.Level,
		Index:   t.Index,
		Columns: t.Columns,
		Values:  make(map[string][]*float64, len(t.values)),
		Flags:   t.flags,
	}
	for name, vals := range t.values {
		out := make([]*float64, len(vals))
		for i, v := range vals {
			if !math.IsNaN(v) {
				out[i] = &vals[i]
			}
		}
		w.Values[name] = out
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a table produced by MarshalJSON.
func (t *Table) UnmarshalJSON(data []byte) error {
	var w tableJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	decoded, err := NewTable(w.Logger, w.Level, w.Index)
	if err != nil {
		return err
	}
	for _, name := range w.Columns {
		raw := w.Values[name]
		vals := make([]float64, len(raw))
		for i, p := range raw {
			if p == nil {
				vals[i] = math.NaN()
			} else {
				vals[i] = *p
			}
		}
		if err := decoded.AddSeries(name, vals, w.Flags[name]); err != nil {
			return err
		}
	}
	*t = *decoded
	return nil
}
