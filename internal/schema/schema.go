// Package schema implements the Schema entity (spec §3): an ordered list
// of (column_name, column_type) pairs. A transfer produces two — the
// discovered source Schema and the Transport-derived destination Schema —
// and the core maintains the invariant that they stay the same length,
// column i of one being the image of column i of the other.
package schema

import (
	"fmt"

	"colxfer/internal/typesystem"
)

// Column is one entry of a Schema.
type Column struct {
	Name string
	Type typesystem.Type
}

// Schema is an ordered list of Columns. Column order is significant: it is
// the row-major column order PartitionParser and DestinationPartition
// advance through.
type Schema []Column

// Names returns the column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

// Types returns the column types in order.
func (s Schema) Types() []typesystem.Type {
	types := make([]typesystem.Type, len(s))
	for i, c := range s {
		types[i] = c.Type
	}
	return types
}

// New builds a Schema from parallel names/types slices, as produced by a
// Source's metadata probe or a Transport's column mapping.
func New(names []string, types []typesystem.Type) (Schema, error) {
	if len(names) != len(types) {
		return nil, fmt.Errorf("schema: %d names but %d types", len(names), len(types))
	}
	s := make(Schema, len(names))
	for i := range names {
		s[i] = Column{Name: names[i], Type: types[i]}
	}
	return s, nil
}

// SameLength reports whether two schemas have equal length — the
// source/destination schema invariant from spec §3.
func SameLength(a, b Schema) bool {
	return len(a) == len(b)
}
