// Package transport implements ConversionRule resolution and the Transport
// plan that binds a source Schema to a destination Schema (spec §3
// ConversionRule, §4.4 Transport).
//
// Go has neither Rust's trait-object dispatch nor generic methods on
// interfaces, so the per-column "produce_consume" capability pair from the
// spec is rendered here as a boxed-any Convert closure resolved once at
// plan time — the same technique database/sql.Rows.Scan uses internally,
// just made explicit and erased over a declared Kind instead of a
// reflect.Value. The rule table itself is a registration-time registry
// guarded by a mutex, the same shape as smf's dialect.RegisterDialect /
// dialect.GetDialect (internal/dialect/dialect.go).
package transport

import (
	"fmt"
	"sync"

	"colxfer/internal/dataorder"
	"colxfer/internal/schema"
	"colxfer/internal/typesystem"
	"colxfer/internal/xerrors"
)

// Convert maps a boxed source-side cell value to a boxed destination-side
// cell value. v is nil exactly when the source column is nullable and the
// cell was SQL NULL; a non-nullable source column never calls Convert with
// nil.
type Convert func(v any) (any, error)

// Rule is a directed (source Kind, destination Kind, Convert) triple (spec
// §3 ConversionRule). The identity rule — same Kind on both sides — passes
// the value through unchanged.
type Rule struct {
	Dst     typesystem.Kind
	Convert Convert
}

// Identity returns a Rule that treats src and dst as interchangeable,
// passing values through unconverted. It exists whenever src == dst, per
// spec §3's ConversionRule invariant.
func Identity(kind typesystem.Kind) Rule {
	return Rule{Dst: kind, Convert: func(v any) (any, error) { return v, nil }}
}

// Table is a named registry of ConversionRules, one per source Kind — "at
// most one active rule per (source_type, destination_type)" (spec §3),
// specialized here to one rule per source Kind since a Table is always
// scoped to a single destination TypeSystem.
type Table struct {
	name string

	mu    sync.RWMutex
	rules map[typesystem.Kind]Rule
}

// NewTable creates an empty rule table named for error messages (typically
// the destination it targets, e.g. "arrow").
func NewTable(name string) *Table {
	return &Table{name: name, rules: make(map[typesystem.Kind]Rule)}
}

// Register adds a rule for src. Returns false without overwriting if src
// already has a registered rule, mirroring smf's do-not-overwrite registry
// contract (dialect.RegisterDialect, tools.Register in the pack).
func (t *Table) Register(src typesystem.Kind, rule Rule) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.rules[src]; exists {
		return false
	}
	t.rules[src] = rule
	return true
}

// RegisterIdentity is shorthand for Register(kind, Identity(kind)).
func (t *Table) RegisterIdentity(kind typesystem.Kind) bool {
	return t.Register(kind, Identity(kind))
}

// Lookup returns the rule registered for src, if any.
func (t *Table) Lookup(src typesystem.Kind) (Rule, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.rules[src]
	return r, ok
}

// Column is one resolved column of a Transport plan: its position, its
// source and destination types, and the Convert closure the Dispatcher's
// hot loop calls for every cell in that column.
type Column struct {
	Index   int
	SrcType typesystem.Type
	DstType typesystem.Type
	Convert Convert
}

// Plan is the fully resolved transport: a negotiated DataOrder, the
// derived destination Schema, and one Column per source column in
// positional order.
type Plan struct {
	Order      dataorder.Order
	DestSchema schema.Schema
	Columns    []Column
}

// Build resolves a Transport plan from a source Schema, the source's and
// destination's DataOrder preference lists, and a rule Table — steps 1-3
// of spec §4.4. It refuses (step 4) if the orders cannot be resolved or
// any source column's Kind lacks a registered rule, surfacing
// CannotResolveDataOrder or NoConversionRule before any partition is
// touched.
func Build(srcSchema schema.Schema, srcOrders, dstOrders []dataorder.Order, table *Table) (*Plan, error) {
	order, err := dataorder.Negotiate(srcOrders, dstOrders)
	if err != nil {
		return nil, err
	}

	columns := make([]Column, len(srcSchema))
	destCols := make([]schema.Column, len(srcSchema))
	for i, col := range srcSchema {
		rule, ok := table.Lookup(col.Type.Kind)
		if !ok {
			return nil, fmt.Errorf("%w: column %q has source type %s, table %q has no rule for it",
				xerrors.ErrNoConversionRule, col.Name, col.Type.Kind, table.name)
		}
		dstType := typesystem.Type{Kind: rule.Dst, Nullable: col.Type.Nullable}
		columns[i] = Column{
			Index:   i,
			SrcType: col.Type,
			DstType: dstType,
			Convert: rule.Convert,
		}
		destCols[i] = schema.Column{Name: col.Name, Type: dstType}
	}

	return &Plan{
		Order:      order,
		DestSchema: schema.Schema(destCols),
		Columns:    columns,
	}, nil
}
