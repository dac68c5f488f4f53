// Package sqlquery validates the shape of partition queries and extracts
// their authoritative row count when a LIMIT is present (spec §6 Query
// surface, §7 SQLQueryNotSupported / SQLQueryPartitionNotSupported).
//
// Shape validation uses TiDB's AST parser, the same
// github.com/pingcap/tidb/pkg/parser package smf's
// internal/apply.StatementAnalyzer uses to classify statements — here to
// reject anything that isn't a single SELECT, and anything whose FROM
// clause isn't a plain select-project-join (no subqueries, no set
// operations) once partitioning is requested. LIMIT extraction and the
// COUNT(*)/LIMIT-1 rewrites used by the source are deliberately simple
// string rewrites: spec.md names "SQL rewriting helpers (COUNT(*) and
// LIMIT 1 synthesis)" as an out-of-scope external collaborator, so colxfer
// only needs a thin, driver-agnostic stand-in rather than a full rewriter.
package sqlquery

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	_ "github.com/pingcap/tidb/pkg/parser/test_driver"

	"colxfer/internal/xerrors"
)

// ValidateSelect parses query and requires it to be exactly one SELECT
// statement. Anything else — multiple statements, DML, DDL, an empty
// parse — is ErrSQLQueryNotSupported.
func ValidateSelect(query string) (*ast.SelectStmt, error) {
	p := parser.New()
	stmtNodes, _, err := p.Parse(query, "", "")
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", xerrors.ErrSQLQueryNotSupported, query, err)
	}
	if len(stmtNodes) != 1 {
		return nil, fmt.Errorf("%w: expected exactly one statement, got %d: %q",
			xerrors.ErrSQLQueryNotSupported, len(stmtNodes), query)
	}
	sel, ok := stmtNodes[0].(*ast.SelectStmt)
	if !ok {
		return nil, fmt.Errorf("%w: only SELECT is supported, got %T: %q",
			xerrors.ErrSQLQueryNotSupported, stmtNodes[0], query)
	}
	return sel, nil
}

// ValidatePartitionable additionally requires the SELECT's FROM clause to
// be in select-project-join form: table references and joins between
// them, no nested subqueries and no set operations. Partitioning a query
// whose shape the caller cannot safely rewrite with a WHERE-range filter
// is ErrSQLQueryPartitionNotSupported.
func ValidatePartitionable(query string) (*ast.SelectStmt, error) {
	sel, err := ValidateSelect(query)
	if err != nil {
		return nil, err
	}
	if sel.From == nil || sel.From.TableRefs == nil {
		return nil, fmt.Errorf("%w: query has no FROM clause: %q",
			xerrors.ErrSQLQueryPartitionNotSupported, query)
	}
	if err := validateSPJ(sel.From.TableRefs); err != nil {
		return nil, fmt.Errorf("%w: %w: %q", xerrors.ErrSQLQueryPartitionNotSupported, err, query)
	}
	return sel, nil
}

func validateSPJ(node ast.ResultSetNode) error {
	switch n := node.(type) {
	case *ast.Join:
		if n.Left != nil {
			if err := validateSPJ(n.Left); err != nil {
				return err
			}
		}
		if n.Right != nil {
			if err := validateSPJ(n.Right); err != nil {
				return err
			}
		}
		return nil
	case *ast.TableSource:
		switch n.Source.(type) {
		case *ast.TableName:
			return nil
		default:
			return fmt.Errorf("nested subquery in FROM clause (%T)", n.Source)
		}
	default:
		return fmt.Errorf("unsupported FROM clause element %T", node)
	}
}

var limitRe = regexp.MustCompile(`(?is)\bLIMIT\s+(\d+)\s*(?:OFFSET\s+\d+\s*)?;?\s*$`)

// ExplicitLimit returns the row count of a trailing LIMIT clause and true,
// or 0 and false if query has none. SourcePartition.Prepare treats a
// present LIMIT as the authoritative row count, skipping COUNT(*) (spec
// §4.2, S2).
func ExplicitLimit(query string) (int, bool) {
	m := limitRe.FindStringSubmatch(strings.TrimSpace(query))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// CountQuery wraps query so executing it yields a single row, single
// column COUNT(*) of query's result set.
func CountQuery(query string) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM (%s) AS _colxfer_count", trimTrailingSemicolon(query))
}

// Limit1Query wraps query so executing it yields at most one row of
// query's result set, for metadata probing (spec §4.2 fetch_metadata).
func Limit1Query(query string) string {
	return fmt.Sprintf("SELECT * FROM (%s) AS _colxfer_probe LIMIT 1", trimTrailingSemicolon(query))
}

func trimTrailingSemicolon(query string) string {
	return strings.TrimRight(strings.TrimSpace(query), ";")
}
