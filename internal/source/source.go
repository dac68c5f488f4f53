// Package source declares the Source / SourcePartition / PartitionParser
// contract a row-producing backend implements to drive a transfer (spec
// §3, §4.2, §6). The only concrete implementation colxfer ships is
// internal/source/sqlsource, a database/sql-backed Source; anything else
// that can discover a schema, split into row-ranged partitions, and
// produce cells in row-major column order can satisfy this contract.
package source

import (
	"context"

	"colxfer/internal/dataorder"
	"colxfer/internal/schema"
)

// Source is created, configured, and probed once, then consumed by
// Partition into a one-shot slice of SourcePartitions (spec §3 Source
// lifecycle: created → set_data_order → set_queries → fetch_metadata →
// partition → consumed).
type Source interface {
	// DataOrders returns this source's supported orders in priority
	// order.
	DataOrders() []dataorder.Order

	// SetDataOrder accepts order only if it appears in DataOrders();
	// otherwise ErrUnsupportedDataOrder.
	SetDataOrder(order dataorder.Order) error

	// SetQueries stores the partition queries verbatim. At least one is
	// required.
	SetQueries(queries []string)

	// FetchMetadata probes the queries to discover Names and Schema, per
	// the probing algorithm in spec §4.2.
	FetchMetadata(ctx context.Context) error

	// Names returns the discovered column names, after FetchMetadata.
	Names() []string

	// Schema returns the discovered source Schema, after FetchMetadata.
	Schema() schema.Schema

	// Partition consumes the Source and returns one SourcePartition per
	// query, each owning one freshly acquired connection.
	Partition(ctx context.Context) ([]SourcePartition, error)
}

// SourcePartition is one partition's connection-bound handle: it learns
// its row count via Prepare, then yields a single-use PartitionParser.
type SourcePartition interface {
	// Prepare determines Nrows: the query's explicit LIMIT n if present,
	// otherwise a COUNT(*) rewrite (spec §4.2).
	Prepare(ctx context.Context) error

	// Parser starts streaming the partition's query and returns a
	// PartitionParser bound to the partition's connection lifetime.
	Parser(ctx context.Context) (PartitionParser, error)

	// Nrows returns the row count determined by Prepare.
	Nrows() int

	// Ncols returns the column count, fixed at construction from the
	// partition's schema.
	Ncols() int

	// Close releases the partition's connection back to its pool.
	Close() error
}

// PartitionParser is a stateful, strictly row-major cursor over one
// partition's rows (spec §3 PartitionParser, §4.2 algorithm).
type PartitionParser interface {
	// Produce returns the next cell as a boxed value, advancing
	// (current_row, current_col). Call order must be exactly
	// (0,0), (0,1), ..., (0,C-1), (1,0), ... — the same invariant
	// DestinationPartition.Consume enforces on the write side. A nil
	// return represents SQL NULL.
	Produce(ctx context.Context) (any, error)

	// Close releases any buffered rows and driver-side resources.
	Close() error
}
