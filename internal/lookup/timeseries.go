package lookup

import "errors"

// Errors returned by lookup functions.
var (
	ErrDuplicateTime = errors.New("duplicate timestamp in index")
)

// Index maps bar timestamps to their position in an ordered series.
// Built once per run so that each lookup is O(1).
type Index struct {
	timestamps []int64
	pos        map[int64]int
}

// NewIndex builds an index over timestamps.
// Returns ErrDuplicateTime if a timestamp appears twice.
func NewIndex(timestamps []int64) (*Index, error) {
	pos := make(map[int64]int, len(timestamps))
	for i, ts := range timestamps {
		if _, exists := pos[ts]; exists {
			return nil, ErrDuplicateTime
		}
		pos[ts] = i
	}
	return &Index{timestamps: timestamps, pos: pos}, nil
}

// Len returns the number of indexed bars.
func (x *Index) Len() int {
	return len(x.timestamps)
}

// IndexOf returns the bar index of ts.
func (x *Index) IndexOf(ts int64) (int, bool) {
	i, ok := x.pos[ts]
	return i, ok
}

// Next returns the index of the bar after ts, or false when ts is unknown or
// the last bar.
func (x *Index) Next(ts int64) (int, bool) {
	i, ok := x.pos[ts]
	if !ok || i+1 >= len(x.timestamps) {
		return 0, false
	}
	return i + 1, true
}
