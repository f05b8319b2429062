package checkout

import (
	"errors"
	"fmt"
)

var ErrStockDeductionFailed = errors.New("stock deduction failed")

// PartialCheckoutFailure means stock may have moved but no order exists.
// Deductions lists what happened to every line item, including the result of
// compensating the applied ones. Items left DeductionUnknown need manual
// reconciliation.
type PartialCheckoutFailure struct {
	Cause      error
	Deductions []Deduction
}

func (e *PartialCheckoutFailure) Error() string {
	applied := 0
	for _, d := range e.Deductions {
		if d.Status != DeductionRejected {
			applied++
		}
	}
	return fmt.Sprintf("partial checkout failure (%d of %d deductions may have applied): %v",
		applied, len(e.Deductions), e.Cause)
}

func (e *PartialCheckoutFailure) Unwrap() error { return e.Cause }

// Unreconciled returns the deductions whose stock change is still in effect or unknown.
func (e *PartialCheckoutFailure) Unreconciled() []Deduction {
	var out []Deduction
	for _, d := range e.Deductions {
		switch d.Status {
		case DeductionUnknown, DeductionCompensationFailed, DeductionApplied:
			out = append(out, d)
		}
	}
	return out
}
