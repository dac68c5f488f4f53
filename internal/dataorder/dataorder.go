// Package dataorder implements the row-major/column-major streaming
// negotiation between a Source and a Destination (spec §3 DataOrder, §4.4
// step 1).
package dataorder

import (
	"fmt"

	"colxfer/internal/xerrors"
)

// Order is the negotiated streaming contract between a Source and a
// Destination.
type Order int

const (
	RowMajor Order = iota
	ColumnMajor
)

func (o Order) String() string {
	switch o {
	case RowMajor:
		return "RowMajor"
	case ColumnMajor:
		return "ColumnMajor"
	default:
		return fmt.Sprintf("Order(%d)", int(o))
	}
}

// Supports reports whether order appears anywhere in orders.
func Supports(orders []Order, order Order) bool {
	for _, o := range orders {
		if o == order {
			return true
		}
	}
	return false
}

// Negotiate returns the first order in sourcePreferred that also appears in
// destSupported — "the first source-preferred order also supported by the
// destination" (spec §3). Failure is ErrCannotResolveDataOrder.
func Negotiate(sourcePreferred, destSupported []Order) (Order, error) {
	for _, want := range sourcePreferred {
		if Supports(destSupported, want) {
			return want, nil
		}
	}
	return 0, fmt.Errorf("%w: source wants %v, destination supports %v",
		xerrors.ErrCannotResolveDataOrder, sourcePreferred, destSupported)
}
