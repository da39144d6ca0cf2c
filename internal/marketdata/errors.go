// Package marketdata reads per instrument-day market frames and position files.
package marketdata

import "errors"

// Market data errors.
var (
	// ErrColumnNotFound is returned when the time column is absent from a file.
	ErrColumnNotFound = errors.New("column not found")

	// ErrNotMonotonic is returned when bar timestamps are not strictly increasing.
	ErrNotMonotonic = errors.New("timestamps not strictly increasing")

	// ErrBadPositionFile is returned when a position CSV cannot be parsed.
	ErrBadPositionFile = errors.New("malformed position file")
)
