package sqlsource

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"sync"
)

// A minimal in-memory database/sql/driver.Driver, grounded on dolthub's
// driver/ package (driver/conn.go, driver/rows.go): Conn.Prepare returns
// a Stmt bound to the query text, Stmt.Query looks the text up in a
// registry of canned result sets, and Rows.Next walks a [][]driver.Value
// table. Unlike dolthub's driver, which adapts a live sql.Engine, this
// one only ever answers queries the test pre-registers — exactly the
// exact-text rewrites sqlsource itself produces (Limit1Query, CountQuery,
// and the raw partition query).
type fakeColumn struct {
	name     string
	dbType   string
	nullable bool
}

type fakeResult struct {
	cols []fakeColumn
	rows [][]driver.Value
}

var (
	fakeRegistryMu sync.Mutex
	fakeRegistry   = map[string]map[string]fakeResult{}
)

// registerFakeDB installs results under dsn, replacing any prior
// registration, and returns dsn for convenience at the call site.
func registerFakeDB(dsn string, results map[string]fakeResult) string {
	fakeRegistryMu.Lock()
	defer fakeRegistryMu.Unlock()
	fakeRegistry[dsn] = results
	return dsn
}

type fakeDriverImpl struct{}

func (fakeDriverImpl) Open(dsn string) (driver.Conn, error) {
	fakeRegistryMu.Lock()
	results, ok := fakeRegistry[dsn]
	fakeRegistryMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("fakedriver: no database registered for dsn %q", dsn)
	}
	return &fakeConn{results: results}, nil
}

func init() {
	sql.Register("colxfer_fake", fakeDriverImpl{})
}

type fakeConn struct {
	results map[string]fakeResult
}

func (c *fakeConn) Prepare(query string) (driver.Stmt, error) {
	return &fakeStmt{conn: c, query: query}, nil
}
func (c *fakeConn) Close() error { return nil }
func (c *fakeConn) Begin() (driver.Tx, error) {
	return nil, fmt.Errorf("fakedriver: transactions not supported")
}

type fakeStmt struct {
	conn  *fakeConn
	query string
}

func (s *fakeStmt) Close() error  { return nil }
func (s *fakeStmt) NumInput() int { return -1 }
func (s *fakeStmt) Exec(args []driver.Value) (driver.Result, error) {
	return nil, fmt.Errorf("fakedriver: exec not supported")
}
func (s *fakeStmt) Query(args []driver.Value) (driver.Rows, error) {
	result, ok := s.conn.results[s.query]
	if !ok {
		return nil, fmt.Errorf("fakedriver: no registered result for query %q", s.query)
	}
	return &fakeRows{cols: result.cols, rows: result.rows}, nil
}

type fakeRows struct {
	cols []fakeColumn
	rows [][]driver.Value
	pos  int
}

func (r *fakeRows) Columns() []string {
	names := make([]string, len(r.cols))
	for i, c := range r.cols {
		names[i] = c.name
	}
	return names
}

func (r *fakeRows) Close() error { return nil }

func (r *fakeRows) Next(dest []driver.Value) error {
	if r.pos >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.pos])
	r.pos++
	return nil
}

func (r *fakeRows) ColumnTypeDatabaseTypeName(index int) string {
	return r.cols[index].dbType
}

func (r *fakeRows) ColumnTypeNullable(index int) (nullable, ok bool) {
	return r.cols[index].nullable, true
}
