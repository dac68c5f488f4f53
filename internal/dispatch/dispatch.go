// Package dispatch implements the Dispatcher: the engine that binds a
// Source and a Destination through a Transport and runs the end-to-end
// transfer (spec §4.5, §5). No example repo in the pack wires a job-pool
// or errgroup library for this shape of fan-out/join (golang.org/x/sync
// appears only as an untouched transitive dependency of one repo's
// OpenTelemetry stack), so the worker pool here is hand-rolled from
// sync.WaitGroup, a mutex-guarded first error and an atomic cancellation
// flag — the same kind of primitive colxfer's own internal/transport.Table
// uses (a sync.RWMutex, adapted from smf's mutex-guarded dialect registry).
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"colxfer/internal/dataorder"
	"colxfer/internal/destination"
	"colxfer/internal/schema"
	"colxfer/internal/source"
	"colxfer/internal/transport"
	"colxfer/internal/xlog"
)

// Result is the outcome of a successful transfer: the final destination
// schema and one sealed ColumnHandle per column (spec §4.5 step 6).
type Result struct {
	Schema  schema.Schema
	Columns []destination.ColumnHandle
}

// Run executes the full transfer described in spec §4.5: configure src
// with queries and the negotiated order, fetch metadata, resolve a
// Transport plan against table, partition src, prepare every partition's
// row count in parallel, allocate dst, then stream every partition's rows
// through the resolved per-column Convert closures in parallel, with
// cooperative first-error-wins cancellation. maxWorkers <= 0 runs one
// worker per partition. A nil logger runs silently (xlog.NewNop).
func Run(ctx context.Context, src source.Source, dst destination.Destination, table *transport.Table, queries []string, maxWorkers int, logger *xlog.Logger) (*Result, error) {
	if logger == nil {
		logger = xlog.NewNop()
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("dispatch: at least one query is required")
	}

	order, err := dataorder.Negotiate(src.DataOrders(), dst.DataOrders())
	if err != nil {
		return nil, err
	}

	src.SetQueries(queries)
	if err := src.SetDataOrder(order); err != nil {
		return nil, err
	}

	logger.Info(ctx, "fetching source metadata", "queries", len(queries), "order", order)
	if err := src.FetchMetadata(ctx); err != nil {
		return nil, fmt.Errorf("dispatch: fetch metadata: %w", err)
	}

	plan, err := transport.Build(src.Schema(), src.DataOrders(), dst.DataOrders(), table)
	if err != nil {
		return nil, fmt.Errorf("dispatch: build transport plan: %w", err)
	}

	partitions, err := src.Partition(ctx)
	if err != nil {
		return nil, fmt.Errorf("dispatch: partition source: %w", err)
	}
	defer closeAll(partitions)

	if maxWorkers <= 0 || maxWorkers > len(partitions) {
		maxWorkers = len(partitions)
	}

	logger.Info(ctx, "preparing partitions", "partitions", len(partitions), "workers", maxWorkers)
	if err := prepareAll(ctx, partitions, maxWorkers); err != nil {
		return nil, fmt.Errorf("dispatch: prepare partitions: %w", err)
	}

	rowCounts := make([]int, len(partitions))
	total := 0
	for i, p := range partitions {
		rowCounts[i] = p.Nrows()
		total += p.Nrows()
	}

	if err := dst.Allocate(rowCounts, src.Names(), plan.DestSchema, order); err != nil {
		return nil, fmt.Errorf("dispatch: allocate destination: %w", err)
	}

	logger.Info(ctx, "streaming partitions", "rows", total)
	if err := streamAll(ctx, partitions, dst, plan, maxWorkers, logger); err != nil {
		return nil, fmt.Errorf("dispatch: stream partitions: %w", err)
	}

	sch, columns, err := dst.Finish()
	if err != nil {
		return nil, fmt.Errorf("dispatch: finish destination: %w", err)
	}

	logger.Info(ctx, "transfer complete", "columns", len(columns), "rows", total)
	return &Result{Schema: sch, Columns: columns}, nil
}

func closeAll(partitions []source.SourcePartition) {
	for _, p := range partitions {
		_ = p.Close()
	}
}

// prepareAll runs Prepare on every partition across maxWorkers goroutines,
// reporting the first error encountered (spec §4.5 step 3).
func prepareAll(ctx context.Context, partitions []source.SourcePartition, maxWorkers int) error {
	return forEachIndex(len(partitions), maxWorkers, func(i int) error {
		return partitions[i].Prepare(ctx)
	})
}

// streamAll runs one worker per partition (bounded by maxWorkers), driving
// each partition's PartitionParser against its DestinationPartition
// through the resolved Transport plan (spec §4.5 step 5). Workers observe
// a shared cancellation flag at row boundaries so a sibling's failure
// stops further I/O promptly (spec §5 cancellation).
func streamAll(ctx context.Context, partitions []source.SourcePartition, dst destination.Destination, plan *transport.Plan, maxWorkers int, logger *xlog.Logger) error {
	var cancelled atomic.Bool

	return forEachIndex(len(partitions), maxWorkers, func(i int) error {
		if cancelled.Load() {
			return context.Canceled
		}
		err := streamPartition(ctx, partitions[i], dst, plan, i, &cancelled, logger)
		if err != nil {
			cancelled.Store(true)
			logger.Warn(ctx, "partition stream failed", "partition", i, "error", err)
		}
		return err
	})
}

func streamPartition(ctx context.Context, part source.SourcePartition, dst destination.Destination, plan *transport.Plan, index int, cancelled *atomic.Bool, logger *xlog.Logger) error {
	parser, err := part.Parser(ctx)
	if err != nil {
		return fmt.Errorf("partition %d: start parser: %w", index, err)
	}
	defer parser.Close()

	consumer, err := dst.Partition(index)
	if err != nil {
		return fmt.Errorf("partition %d: acquire destination window: %w", index, err)
	}

	nrows := part.Nrows()
	plog := logger.With("partition", index)
	plog.Debug(ctx, "streaming partition", "rows", nrows)
	for r := 0; r < nrows; r++ {
		if cancelled.Load() {
			return fmt.Errorf("partition %d: %w", index, context.Canceled)
		}
		for _, col := range plan.Columns {
			v, err := parser.Produce(ctx)
			if err != nil {
				return fmt.Errorf("partition %d row %d col %d: produce: %w", index, r, col.Index, err)
			}
			converted, err := col.Convert(v)
			if err != nil {
				return fmt.Errorf("partition %d row %d col %d: convert: %w", index, r, col.Index, err)
			}
			if err := consumer.Consume(converted); err != nil {
				return fmt.Errorf("partition %d row %d col %d: consume: %w", index, r, col.Index, err)
			}
		}
	}
	return nil
}

// forEachIndex runs fn(i) for i in [0,n) across at most maxWorkers
// goroutines, returning the first non-nil error any worker reports.
// Remaining in-flight workers are not forcibly stopped mid-call — callers
// that need that observe the cancellation flag themselves, as
// streamAll's workers do.
func forEachIndex(n, maxWorkers int, fn func(i int) error) error {
	if n == 0 {
		return nil
	}
	if maxWorkers <= 0 || maxWorkers > n {
		maxWorkers = n
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for w := 0; w < maxWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := fn(i); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
				}
			}
		}()
	}

	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return firstErr
}
