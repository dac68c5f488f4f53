// Package sqlsource implements source.Source on top of database/sql,
// making any registered database/sql driver usable as a colxfer source
// without a driver-specific core (spec §1 "concrete driver bindings ...
// out of scope (external collaborators)"). The Connect/Close pattern and
// error wrapping follow smf's internal/apply.Applier; the metadata-probe
// and buffered-fetch algorithms are grounded on connectorx's
// MysqlSource/MysqlSourcePartition (original_source connectorx
// src/sources/mysql/mod.rs), generalized from a MySQL-specific driver to
// any database/sql driver via rows.ColumnTypes.
package sqlsource

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"colxfer/internal/dataorder"
	"colxfer/internal/schema"
	"colxfer/internal/source"
	"colxfer/internal/sqlquery"
	"colxfer/internal/typesystem"
	"colxfer/internal/xerrors"
)

// DefaultBufSize is the row buffer size a PartitionParser refills on
// underflow, matching connectorx's MysqlSource default.
const DefaultBufSize = 32

// Source is a database/sql-backed source.Source. One Source owns one
// *sql.DB connection pool; Partition hands each partition query its own
// acquired *sql.Conn for the partition's lifetime.
type Source struct {
	driverName string
	dsn        string
	bufSize    int

	db      *sql.DB
	queries []string
	order   dataorder.Order

	names []string
	sch   schema.Schema
}

// New returns a Source for driverName (e.g. "mysql") connecting to dsn.
// bufSize <= 0 uses DefaultBufSize.
func New(driverName, dsn string, bufSize int) *Source {
	if bufSize <= 0 {
		bufSize = DefaultBufSize
	}
	return &Source{driverName: driverName, dsn: dsn, bufSize: bufSize}
}

// Connect opens the pool and verifies connectivity, the same
// Open-then-PingContext-then-Close-on-failure sequence as
// apply.Applier.Connect.
func (s *Source) Connect(ctx context.Context) error {
	db, err := sql.Open(s.driverName, s.dsn)
	if err != nil {
		return fmt.Errorf("sqlsource: open %s connection: %w", s.driverName, err)
	}
	if pingErr := db.PingContext(ctx); pingErr != nil {
		if closeErr := db.Close(); closeErr != nil {
			return fmt.Errorf("sqlsource: ping failed: %w; additionally failed to close: %w", pingErr, closeErr)
		}
		return fmt.Errorf("sqlsource: ping failed: %w", pingErr)
	}
	s.db = db
	return nil
}

// Close releases the underlying pool.
func (s *Source) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DataOrders reports RowMajor only: database/sql exposes rows one at a
// time in row-major order and colxfer does not buffer a full
// transposition.
func (s *Source) DataOrders() []dataorder.Order {
	return []dataorder.Order{dataorder.RowMajor}
}

func (s *Source) SetDataOrder(order dataorder.Order) error {
	if !dataorder.Supports(s.DataOrders(), order) {
		return fmt.Errorf("%w: sqlsource supports %v, got %s", xerrors.ErrUnsupportedDataOrder, s.DataOrders(), order)
	}
	s.order = order
	return nil
}

func (s *Source) SetQueries(queries []string) {
	s.queries = append([]string(nil), queries...)
}

// FetchMetadata first validates every query is a single SELECT statement
// (spec §6/§7: a non-SELECT partition query is ErrSQLQueryNotSupported,
// raised before any query reaches the driver), then implements the
// probing algorithm from spec §4.2: try each query in order with a
// LIMIT-1 rewrite until one returns a row, deriving names and types from
// its result set. If every query returns zero rows, fall back to a
// column-only describe of the first query, declaring every column
// nullable Utf8 (spec §4.2, scenario S4 — explicitly nullable, unlike
// connectorx's own non-null VarChar(false) fallback).
func (s *Source) FetchMetadata(ctx context.Context) error {
	if len(s.queries) == 0 {
		return fmt.Errorf("sqlsource: fetch metadata: no queries set")
	}
	for _, q := range s.queries {
		if _, err := sqlquery.ValidateSelect(q); err != nil {
			return fmt.Errorf("sqlsource: fetch metadata: %w", err)
		}
	}

	var lastErr error
	sawZeroRow := false
	for _, q := range s.queries {
		names, sch, ok, err := s.probeQuery(ctx, q)
		if err != nil {
			lastErr = err
			continue
		}
		if !ok {
			sawZeroRow = true
			continue
		}
		s.names, s.sch = names, sch
		return nil
	}

	if lastErr != nil {
		return fmt.Errorf("sqlsource: fetch metadata: all probes failed: %w", lastErr)
	}
	if sawZeroRow {
		return s.describeFallback(ctx, s.queries[0])
	}
	return fmt.Errorf("sqlsource: fetch metadata: no queries produced metadata")
}

// probeQuery runs query rewritten as a LIMIT-1 select. ok is false when
// the query returned zero rows (not an error — the caller keeps trying
// sibling queries).
func (s *Source) probeQuery(ctx context.Context, query string) (names []string, sch schema.Schema, ok bool, err error) {
	rows, err := s.db.QueryContext(ctx, sqlquery.Limit1Query(query))
	if err != nil {
		return nil, nil, false, err
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, nil, false, err
	}

	if !rows.Next() {
		return nil, nil, false, rows.Err()
	}

	dest := make([]any, len(colTypes))
	scanTargets := make([]any, len(colTypes))
	for i := range dest {
		scanTargets[i] = &dest[i]
	}
	if err := rows.Scan(scanTargets...); err != nil {
		return nil, nil, false, err
	}

	names = make([]string, len(colTypes))
	types := make([]typesystem.Type, len(colTypes))
	for i, ct := range colTypes {
		names[i] = ct.Name()
		types[i] = columnType(ct, dest[i])
	}
	built, err := schema.New(names, types)
	if err != nil {
		return nil, nil, false, err
	}
	return names, built, true, nil
}

// describeFallback populates names from a zero-row describe of query and
// declares every column nullable Utf8.
func (s *Source) describeFallback(ctx context.Context, query string) error {
	rows, err := s.db.QueryContext(ctx, sqlquery.Limit1Query(query))
	if err != nil {
		return fmt.Errorf("sqlsource: describe fallback: %w", err)
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return fmt.Errorf("sqlsource: describe fallback: %w", err)
	}

	names := make([]string, len(colTypes))
	types := make([]typesystem.Type, len(colTypes))
	for i, ct := range colTypes {
		names[i] = ct.Name()
		types[i] = typesystem.Null(typesystem.Utf8)
	}
	built, err := schema.New(names, types)
	if err != nil {
		return err
	}
	s.names, s.sch = names, built
	return nil
}

func (s *Source) Names() []string      { return s.names }
func (s *Source) Schema() schema.Schema { return s.sch }

// Partition consumes the Source's queries, acquiring one dedicated
// *sql.Conn per query.
func (s *Source) Partition(ctx context.Context) ([]source.SourcePartition, error) {
	parts := make([]source.SourcePartition, len(s.queries))
	for i, q := range s.queries {
		conn, err := s.db.Conn(ctx)
		if err != nil {
			return nil, fmt.Errorf("sqlsource: acquire connection for partition %d: %w", i, err)
		}
		parts[i] = &Partition{
			conn:    conn,
			query:   q,
			ncols:   len(s.sch),
			bufSize: s.bufSize,
		}
	}
	return parts, nil
}

// Partition is one query's acquired connection plus its discovered row
// count.
type Partition struct {
	conn    *sql.Conn
	query   string
	ncols   int
	bufSize int

	mu    sync.Mutex
	nrows int
}

// Prepare determines Nrows: an explicit LIMIT on the query is
// authoritative (spec §4.2, S2); otherwise a COUNT(*) rewrite is issued.
func (p *Partition) Prepare(ctx context.Context) error {
	if n, ok := sqlquery.ExplicitLimit(p.query); ok {
		p.mu.Lock()
		p.nrows = n
		p.mu.Unlock()
		return nil
	}

	row := p.conn.QueryRowContext(ctx, sqlquery.CountQuery(p.query))
	var n int
	if err := row.Scan(&n); err != nil {
		return fmt.Errorf("sqlsource: prepare: count rows: %w", err)
	}
	p.mu.Lock()
	p.nrows = n
	p.mu.Unlock()
	return nil
}

func (p *Partition) Nrows() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nrows
}

func (p *Partition) Ncols() int { return p.ncols }

func (p *Partition) Close() error { return p.conn.Close() }

// Parser starts streaming p's query on p's connection.
func (p *Partition) Parser(ctx context.Context) (source.PartitionParser, error) {
	rows, err := p.conn.QueryContext(ctx, p.query)
	if err != nil {
		return nil, fmt.Errorf("sqlsource: start parser: %w", err)
	}
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		rows.Close()
		return nil, fmt.Errorf("sqlsource: start parser: %w", err)
	}
	return &PartitionParser{
		rows:     rows,
		colTypes: colTypes,
		bufSize:  p.bufSize,
		ncols:    p.ncols,
	}, nil
}

// PartitionParser is the stateful, strictly row-major cursor described in
// spec §3/§4.2: a bounded rowbuf refilled on underflow, raising
// ErrUnexpectedEOF whenever a refill yields zero rows. The parser does not
// track the precomputed row total; the caller stops at it.
type PartitionParser struct {
	rows     *sql.Rows
	colTypes []*sql.ColumnType
	bufSize  int
	ncols    int

	rowbuf []row
	pos    int // index of next unread row in rowbuf

	row, col int
}

type row []any

// Produce returns the cell at the parser's current (row, col), advancing
// the cursor in row-major column order (spec §3 PartitionParser
// invariant).
func (p *PartitionParser) Produce(ctx context.Context) (any, error) {
	if p.pos >= len(p.rowbuf) {
		if err := p.refill(); err != nil {
			return nil, err
		}
	}

	v := p.rowbuf[p.pos][p.col]
	p.col++
	if p.col >= p.ncols {
		p.col = 0
		p.pos++
		p.row++
	}
	return v, nil
}

// refill drains the exhausted buffer and pulls up to bufSize further
// rows. Zero rows pulled is ErrUnexpectedEOF: the driver is assumed to
// have exactly the row count Prepare computed, so running dry before the
// caller stops asking is malformed input (spec §9).
func (p *PartitionParser) refill() error {
	p.rowbuf = p.rowbuf[:0]
	p.pos = 0

	for len(p.rowbuf) < p.bufSize {
		if !p.rows.Next() {
			if err := p.rows.Err(); err != nil {
				return fmt.Errorf("%w: %w", xerrors.ErrCannotProduce, err)
			}
			break
		}
		dest := make([]any, p.ncols)
		scanTargets := make([]any, p.ncols)
		for i := range dest {
			scanTargets[i] = &dest[i]
		}
		if err := p.rows.Scan(scanTargets...); err != nil {
			return fmt.Errorf("%w: %w", xerrors.ErrCannotProduce, err)
		}
		p.rowbuf = append(p.rowbuf, narrowRow(dest, p.colTypes))
	}

	if len(p.rowbuf) == 0 {
		return xerrors.ErrUnexpectedEOF
	}
	return nil
}

// Close releases the parser's driver-side rows; the connection itself is
// released by the owning Partition's Close.
func (p *PartitionParser) Close() error {
	return p.rows.Close()
}

// narrowRow converts raw driver.Value cells (as yielded into []any by
// sql.Rows.Scan) into the boxed shapes colxfer moves across Produce/
// Consume: time.Time narrowed to CivilDate/CivilTime/CivilDateTime
// depending on the database column type, []byte narrowed to string for
// the text-backed Kinds (go-sql-driver/mysql scans VARCHAR/CHAR/TEXT and
// DECIMAL/NUMERIC into []byte, not string, even via interface{} scan
// targets), everything else passed through.
func narrowRow(cells []any, colTypes []*sql.ColumnType) row {
	out := make(row, len(cells))
	for i, v := range cells {
		out[i] = narrowCell(v, colTypes[i])
	}
	return out
}

func narrowCell(v any, ct *sql.ColumnType) any {
	if v == nil {
		return nil
	}

	if t, ok := v.(time.Time); ok {
		switch databaseKind(ct) {
		case typesystem.Date:
			return typesystem.DateOf(t)
		case typesystem.Time:
			return typesystem.TimeOf(t)
		default:
			return typesystem.DateTimeOf(t)
		}
	}

	if b, ok := v.([]byte); ok {
		switch databaseKind(ct) {
		case typesystem.Utf8, typesystem.Decimal:
			return string(b)
		}
	}

	return v
}
