// Package storage defines the persistence contracts for backtest runs, trade
// blotters, daily return series and ingested market frames.
package storage

import "errors"

var (
	// ErrNotFound reports a missing run, blotter, return series or frame.
	ErrNotFound = errors.New("storage: record not found")

	// ErrDuplicateKey reports a write that would replace stored rows.
	// Runs, blotters and frames are written exactly once.
	ErrDuplicateKey = errors.New("storage: record already stored")

	// ErrInvalidInput reports a record rejected before anything is written,
	// for example a frame column whose length differs from its timestamps.
	ErrInvalidInput = errors.New("storage: invalid record")
)

// IsConflict reports whether err means the target rows already exist.
// Batch writers treat a conflict as an already completed job.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateKey)
}
