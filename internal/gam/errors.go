package gam

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/optimize"
)

var (
	// ErrNoData indicates a dataset with no observed, positively weighted rows.
	ErrNoData = errors.New("gam: no observations to fit")

	// ErrUnknownLevel indicates a row whose factor level the term was not built with.
	ErrUnknownLevel = errors.New("gam: unknown factor level")

	// ErrNotPositiveDefinite indicates penalized normal equations without a Cholesky factor.
	ErrNotPositiveDefinite = errors.New("gam: penalized system is not positive definite")

	// ErrNotConverged indicates the smoothing parameter search hit a limit.
	ErrNotConverged = errors.New("gam: smoothing parameter selection did not converge")

	// ErrDuplicateLevel indicates a factor listing the same level twice.
	ErrDuplicateLevel = errors.New("gam: duplicate factor level")

	// ErrPenaltyShape indicates a penalty whose size does not match its term.
	ErrPenaltyShape = errors.New("gam: penalty dimension mismatch")
)

// FitError wraps a failure with the model it came from and the optimizer
// status at the time.
type FitError struct {
	Model   string
	Status  optimize.Status
	Wrapped error
}

func (e *FitError) Error() string {
	return fmt.Sprintf("gam: fitting %s (status %v): %v", e.Model, e.Status, e.Wrapped)
}

func (e *FitError) Unwrap() error {
	return e.Wrapped
}
