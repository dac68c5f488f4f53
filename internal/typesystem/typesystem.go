// Package typesystem implements the tagged, nullability-aware set of
// semantic column types shared by a Source and a Destination. Each side of
// a transfer speaks its own TypeSystem; colxfer ships one concrete set
// (the one below) that both the sqlsource and arrowdest packages build on,
// but the set is open at registration time the same way smf's per-dialect
// raw type tables are: new Kinds can be declared by any package via
// RegisterKind without touching this file.
package typesystem

import (
	"fmt"
	"reflect"
	"time"

	"colxfer/internal/xerrors"
)

// Kind names a semantic column type, independent of any one driver's or
// destination's native representation.
type Kind string

const (
	Int64    Kind = "int64"
	Float64  Kind = "float64"
	Bool     Kind = "bool"
	Utf8     Kind = "utf8"
	Bytes    Kind = "bytes"
	Date     Kind = "date"
	Time     Kind = "time"
	DateTime Kind = "datetime"
	Decimal  Kind = "decimal"
)

// Type is one variant of a TypeSystem: a Kind plus its nullability bit. The
// invariant from spec §3 holds by construction here, since Nullable is a
// field rather than a distinct Kind — every Kind has both a nullable and a
// non-null Type value, never a separate enum member.
type Type struct {
	Kind     Kind
	Nullable bool
}

// NonNull returns the non-nullable Type for kind.
func NonNull(kind Kind) Type { return Type{Kind: kind, Nullable: false} }

// Null returns the nullable Type for kind.
func Null(kind Kind) Type { return Type{Kind: kind, Nullable: true} }

// AsNonNull returns t with its nullability bit cleared, the "treat a
// nullable variant as its non-null variant, raising on observed null"
// behavior conversion rules are allowed to use (spec §3 TypeSystem
// invariant).
func (t Type) AsNonNull() Type { return Type{Kind: t.Kind, Nullable: false} }

func (t Type) String() string {
	if t.Nullable {
		return string(t.Kind) + "?"
	}
	return string(t.Kind)
}

// nativeGoType records which Go type a Kind's value is boxed as when it
// crosses a Produce/Consume boundary. Registered kinds not present here
// can still be used for schema bookkeeping, but Check will always fail for
// them — mirroring smf's dialectRawTypes sets, which are also closed per
// dialect and consulted rather than inferred.
var nativeGoType = map[Kind]reflect.Type{
	Int64:    reflect.TypeOf(int64(0)),
	Float64:  reflect.TypeOf(float64(0)),
	Bool:     reflect.TypeOf(false),
	Utf8:     reflect.TypeOf(""),
	Bytes:    reflect.TypeOf([]byte(nil)),
	Date:     reflect.TypeOf(CivilDate{}),
	Time:     reflect.TypeOf(CivilTime{}),
	DateTime: reflect.TypeOf(CivilDateTime{}),
	Decimal:  reflect.TypeOf(""),
}

// CivilDate, CivilTime and CivilDateTime are the wire-independent value
// shapes colxfer moves Date/Time/DateTime cells around as. Drivers hand
// back time.Time for all three; a Source narrows it to the field(s) that
// matter for the declared Kind so that a DateTime rule is never silently
// fed a bare Date.
type CivilDate struct{ Year, Month, Day int }
type CivilTime struct{ Hour, Min, Sec, Nsec int }
type CivilDateTime struct {
	CivilDate
	CivilTime
}

// DateOf, TimeOf and DateTimeOf narrow a time.Time into the civil value
// shape matching the Date, Time and DateTime Kinds respectively.
func DateOf(t time.Time) CivilDate {
	y, m, d := t.Date()
	return CivilDate{Year: y, Month: int(m), Day: d}
}

func TimeOf(t time.Time) CivilTime {
	return CivilTime{Hour: t.Hour(), Min: t.Minute(), Sec: t.Second(), Nsec: t.Nanosecond()}
}

func DateTimeOf(t time.Time) CivilDateTime {
	return CivilDateTime{CivilDate: DateOf(t), CivilTime: TimeOf(t)}
}

// RegisterKind associates kind with the Go type its values are boxed as.
// Returns false without overwriting if kind is already registered, the
// same do-not-overwrite contract smf's dialect.RegisterDialect uses.
func RegisterKind(kind Kind, goType reflect.Type) bool {
	if _, exists := nativeGoType[kind]; exists {
		return false
	}
	nativeGoType[kind] = goType
	return true
}

// Check verifies that v is a legal runtime value for t: nil is accepted
// only when t.Nullable, and any non-nil value must have t.Kind's
// registered Go type. Failure is spec §7's TypeCheckFailed.
func (t Type) Check(v any) error {
	if v == nil {
		if t.Nullable {
			return nil
		}
		return fmt.Errorf("%w: %s expected, found nil", xerrors.ErrTypeCheckFailed, t)
	}
	want, ok := nativeGoType[t.Kind]
	if !ok {
		return fmt.Errorf("%w: kind %q has no registered native type", xerrors.ErrTypeCheckFailed, t.Kind)
	}
	got := reflect.TypeOf(v)
	if got != want {
		return fmt.Errorf("%w: %s expected, %s found", xerrors.ErrTypeCheckFailed, t, got)
	}
	return nil
}
