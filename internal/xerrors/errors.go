// Package xerrors declares the sentinel errors that make up colxfer's
// error taxonomy (spec §7). Like smf, colxfer never defines custom error
// types — every failure is a sentinel wrapped with fmt.Errorf("...: %w", ...)
// for context, and callers branch with errors.Is.
package xerrors

import "errors"

var (
	// ErrTypeCheckFailed: a runtime value did not match its declared
	// TypeSystem variant.
	ErrTypeCheckFailed = errors.New("type check failed")

	// ErrOutOfBound: a destination write past its partition window, or a
	// destination partition index outside the allocated partitions. A
	// parser read past its rows is ErrUnexpectedEOF instead.
	ErrOutOfBound = errors.New("out of bound")

	// ErrUnsupportedDataOrder: a DataOrder outside DATA_ORDERS was
	// requested of a Source or Destination.
	ErrUnsupportedDataOrder = errors.New("unsupported data order")

	// ErrCannotResolveDataOrder: the source's and destination's preferred
	// DataOrder lists share no common order.
	ErrCannotResolveDataOrder = errors.New("cannot resolve data order")

	// ErrCannotProduce: a PartitionParser could not yield a cell at its
	// current (row, col) position.
	ErrCannotProduce = errors.New("cannot produce value")

	// ErrDuplicatedAllocation: Destination.Allocate was called a second
	// time.
	ErrDuplicatedAllocation = errors.New("destination already allocated")

	// ErrDestinationNotAllocated: a Destination method other than
	// Allocate was called before Allocate.
	ErrDestinationNotAllocated = errors.New("destination not allocated")

	// ErrNoConversionRule: the Transport's rule table has no entry for a
	// source column's Kind.
	ErrNoConversionRule = errors.New("no conversion rule")

	// ErrSQLQueryNotSupported: a partition query is not a single SELECT
	// statement.
	ErrSQLQueryNotSupported = errors.New("SQL query not supported")

	// ErrSQLQueryPartitionNotSupported: a partition query is not in
	// select-project-join form.
	ErrSQLQueryPartitionNotSupported = errors.New("SQL query partition not supported")

	// ErrUnexpectedEOF: a PartitionParser's row buffer refill yielded zero
	// rows, whether the driver ran dry early or the caller asked for a cell
	// past the precomputed row count.
	ErrUnexpectedEOF = errors.New("unexpected end of partition rows")
)
