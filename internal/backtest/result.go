package backtest

import (
	"errors"
	"fmt"

	"hft-multifactor/internal/domain"
)

// Reconstruction errors.
var (
	ErrInvalidPosition = errors.New("position outside {-1,0,1}")
	ErrQuoteMissing    = errors.New("quote data missing")
	ErrNoNextBar       = errors.New("transition on last bar has no next quote")
	ErrUnpairedLeg     = errors.New("odd number of trade legs")
)

// FailureKind classifies why a run produced no blotter.
type FailureKind string

// Failure kinds.
const (
	FailureValidation FailureKind = "validation" // position domain violated
	FailureAlignment  FailureKind = "alignment"  // timestamps or legs do not line up
	FailureInput      FailureKind = "input"      // upstream data missing or unreadable
)

// Failure is a typed reason for an empty blotter.
type Failure struct {
	Kind FailureKind
	Err  error
}

// Error implements error.
func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

// Unwrap returns the underlying error.
func (f *Failure) Unwrap() error {
	return f.Err
}

// Result is either a trade blotter or a typed failure with an empty blotter.
type Result struct {
	Trades  []domain.Trade
	Legs    int
	Failure *Failure
}

// OK reports whether reconstruction succeeded.
func (r Result) OK() bool {
	return r.Failure == nil
}

// Empty returns a successful result with no trades.
func Empty() Result {
	return Result{Trades: []domain.Trade{}}
}

// Failed returns a failed result carrying an empty blotter.
func Failed(kind FailureKind, err error) Result {
	return Result{
		Trades:  []domain.Trade{},
		Failure: &Failure{Kind: kind, Err: err},
	}
}
