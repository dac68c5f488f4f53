package sqlsource

import (
	"database/sql"
	"reflect"
	"time"

	"colxfer/internal/typesystem"
)

// databaseKind classifies ct's database type name into the Kind used for
// time.Time narrowing and metadata derivation. Names follow the
// conventions database/sql drivers report via ColumnType.DatabaseTypeName
// (go-sql-driver/mysql in particular): DATE, TIME, DATETIME/TIMESTAMP,
// the integer family, the floating family, DECIMAL/NUMERIC, and the
// string/blob families.
func databaseKind(ct *sql.ColumnType) typesystem.Kind {
	switch ct.DatabaseTypeName() {
	case "DATE":
		return typesystem.Date
	case "TIME":
		return typesystem.Time
	case "DATETIME", "TIMESTAMP":
		return typesystem.DateTime
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "BIGINT", "YEAR":
		return typesystem.Int64
	case "FLOAT", "DOUBLE":
		return typesystem.Float64
	case "DECIMAL", "NUMERIC":
		return typesystem.Decimal
	case "BLOB", "BINARY", "VARBINARY":
		return typesystem.Bytes
	case "BOOL", "BOOLEAN":
		return typesystem.Bool
	default:
		return typesystem.Utf8
	}
}

// columnType derives the full nullable Type for ct. The sample cell value
// from the probe row refines the Kind guessed from the database type name,
// and decides nullability (nil sample means nullable) when the driver's own
// nullability report (ct.Nullable) is unavailable.
func columnType(ct *sql.ColumnType, sample any) typesystem.Type {
	kind := databaseKind(ct)
	nullable, ok := ct.Nullable()
	if !ok {
		nullable = sample == nil
	}

	// A DATE/TIME/DATETIME column reported by name but carrying a
	// non-time.Time sample (some drivers return these as strings when
	// parseTime isn't requested) falls back to Utf8 so Check never
	// rejects what the driver actually handed the parser.
	switch kind {
	case typesystem.Date, typesystem.Time, typesystem.DateTime:
		if sample != nil {
			if _, ok := sample.(time.Time); !ok {
				kind = typesystem.Utf8
			}
		}
	case typesystem.Int64:
		if sample != nil && reflect.TypeOf(sample).Kind() != reflect.Int64 {
			kind = refineNumericKind(sample)
		}
	}

	return typesystem.Type{Kind: kind, Nullable: nullable}
}

// refineNumericKind handles drivers that scan integer columns back as a
// non-int64 native type (e.g. []byte for some NUMERIC-backed columns).
func refineNumericKind(sample any) typesystem.Kind {
	switch sample.(type) {
	case int64:
		return typesystem.Int64
	case float64, float32:
		return typesystem.Float64
	default:
		return typesystem.Utf8
	}
}
