// Package destination declares the Destination / DestinationPartition
// contract a column-building backend implements to receive a transfer
// (spec §3, §4.3, §6). colxfer ships one concrete implementation,
// internal/destination/arrowdest, backed by Apache Arrow column builders —
// the "concrete columnar target library" spec.md names as an external
// collaborator.
package destination

import (
	"colxfer/internal/dataorder"
	"colxfer/internal/schema"
)

// Destination is allocated exactly once from the per-partition row counts
// learned during partitioning, then handed out per-partition write
// windows, then sealed (spec §3 Destination lifecycle: created →
// allocate → partition(i) → finish → frozen).
type Destination interface {
	// DataOrders returns this destination's supported orders in priority
	// order.
	DataOrders() []dataorder.Order

	// Allocate sizes column storage from the sum of rowCounts, records
	// names/schema/order, and may be called exactly once — a second call
	// is ErrDuplicatedAllocation, an unsupported order is
	// ErrUnsupportedDataOrder.
	Allocate(rowCounts []int, names []string, schema schema.Schema, order dataorder.Order) error

	// Partition returns the DestinationPartition for index i, covering
	// rows [offset_i, offset_i+rowCounts[i]) of the shared column
	// storage. Calling before Allocate is ErrDestinationNotAllocated.
	Partition(i int) (DestinationPartition, error)

	// Finish seals all column builders into immutable arrays and returns
	// the final schema and column handles. Calling before Allocate is
	// ErrDestinationNotAllocated.
	Finish() (schema.Schema, []ColumnHandle, error)
}

// ColumnHandle is an opaque sealed column, returned by Finish. Concrete
// Destinations define what it actually wraps (e.g. an arrow.Array).
type ColumnHandle interface {
	Len() int
}

// DestinationPartition is a per-partition append cursor over a disjoint,
// exclusive row window of the shared column storage (spec §3
// DestinationPartition / Consumer).
type DestinationPartition interface {
	// Consume appends value to the current column's builder and advances
	// (row, col) in row-major order, with the same position invariant
	// PartitionParser.Produce enforces on the read side. A nil value
	// appends a null. Writing past the partition's window is
	// ErrOutOfBound; a value whose boxed type does not match the
	// declared destination type is ErrTypeCheckFailed.
	Consume(value any) error
}
