package domain

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Frame errors.
var (
	ErrLengthMismatch = errors.New("column length does not match timestamps")
	ErrNotIncreasing  = errors.New("timestamps are not strictly increasing")
)

// Frame is an ordered bar/quote table for one instrument-day.
// Timestamps are Unix milliseconds. Columns are keyed by their source name
// so that column bindings can be resolved at compute time.
type Frame struct {
	Timestamps []int64
	columns    map[string][]float64
}

// NewFrame creates an empty frame over the given timestamps.
func NewFrame(timestamps []int64) *Frame {
	return &Frame{
		Timestamps: timestamps,
		columns:    make(map[string][]float64),
	}
}

// Len returns the number of bars.
func (f *Frame) Len() int {
	return len(f.Timestamps)
}

// Set attaches a column. It replaces any column with the same name.
func (f *Frame) Set(name string, values []float64) error {
	if len(values) != len(f.Timestamps) {
		return fmt.Errorf("%w: %s has %d values, want %d", ErrLengthMismatch, name, len(values), len(f.Timestamps))
	}
	f.columns[name] = values
	return nil
}

// Column returns the named column and whether it exists.
func (f *Frame) Column(name string) ([]float64, bool) {
	c, ok := f.columns[name]
	return c, ok
}

// ColumnOrNaN returns the named column, or an all-NaN column of frame length
// when it is absent. The boolean reports whether the column was present.
func (f *Frame) ColumnOrNaN(name string) ([]float64, bool) {
	if c, ok := f.columns[name]; ok {
		return c, true
	}
	return NaNs(len(f.Timestamps)), false
}

// Names returns column names in sorted order.
func (f *Frame) Names() []string {
	names := make([]string, 0, len(f.columns))
	for name := range f.columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that timestamps are strictly increasing.
func (f *Frame) Validate() error {
	for i := 1; i < len(f.Timestamps); i++ {
		if f.Timestamps[i] <= f.Timestamps[i-1] {
			return fmt.Errorf("%w: index %d (%d <= %d)", ErrNotIncreasing, i, f.Timestamps[i], f.Timestamps[i-1])
		}
	}
	return nil
}

// NaNs returns a slice of n NaN values.
func NaNs(n int) []float64 {
	out := make([]float64, n)
	nan := math.NaN()
	for i := range out {
		out[i] = nan
	}
	return out
}

// Clone returns a deep copy of f.
func (f *Frame) Clone() *Frame {
	out := NewFrame(append([]int64(nil), f.Timestamps...))
	for name, values := range f.columns {
		out.columns[name] = append([]float64(nil), values...)
	}
	return out
}
