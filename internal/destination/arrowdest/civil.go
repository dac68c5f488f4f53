package arrowdest

import (
	"time"

	"github.com/apache/arrow-go/v18/arrow"

	"colxfer/internal/typesystem"
)

const secondsPerDay = 24 * 60 * 60

// date32Of converts a CivilDate to days since the Unix epoch, the unit
// arrow.Date32 values are defined in.
func date32Of(d typesystem.CivilDate) arrow.Date32 {
	t := time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
	return arrow.Date32(t.Unix() / secondsPerDay)
}

// time32Of converts a CivilTime to milliseconds since midnight, the unit
// arrow.FixedWidthTypes.Time32ms values are defined in.
func time32Of(t typesystem.CivilTime) arrow.Time32 {
	ms := t.Hour*3_600_000 + t.Min*60_000 + t.Sec*1_000 + t.Nsec/1_000_000
	return arrow.Time32(ms)
}

// timestampOf converts a CivilDateTime to microseconds since the Unix
// epoch, the unit arrow.FixedWidthTypes.Timestamp_us values are defined
// in.
func timestampOf(dt typesystem.CivilDateTime) arrow.Timestamp {
	t := time.Date(dt.Year, time.Month(dt.Month), dt.Day, dt.Hour, dt.Min, dt.Sec, dt.Nsec, time.UTC)
	return arrow.Timestamp(t.UnixMicro())
}
