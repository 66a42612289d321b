package xatomic

import (
	"fmt"
	"time"

	"github.com/oxhq/morfx/internal/xerrors"
)

// formatTemporal renders xs:date/xs:time/xs:dateTime in their canonical
// lexical forms, appending the timezone offset only when HasTimezone.
func formatTemporal(v Value) string {
	var layout string
	switch v.Tag {
	case TagDate:
		layout = "2006-01-02"
	case TagTime:
		layout = "15:04:05.999999999"
	case TagDateTime:
		layout = "2006-01-02T15:04:05.999999999"
	}
	out := v.t.Format(layout)
	if v.hasTZ {
		out += formatTZOffset(v.tzOff)
	}
	return out
}

func formatTZOffset(off time.Duration) string {
	if off == 0 {
		return "Z"
	}
	sign := "+"
	if off < 0 {
		sign = "-"
		off = -off
	}
	h := int(off.Hours())
	m := int(off.Minutes()) % 60
	return fmt.Sprintf("%s%02d:%02d", sign, h, m)
}

func formatYearMonthDuration(months int64) string {
	neg := months < 0
	if neg {
		months = -months
	}
	y, m := months/12, months%12
	s := "P"
	if y > 0 {
		s += fmt.Sprintf("%dY", y)
	}
	if m > 0 || y == 0 {
		s += fmt.Sprintf("%dM", m)
	}
	if neg {
		s = "-" + s
	}
	return s
}

func formatDayTimeDuration(nanos int64) string {
	neg := nanos < 0
	if neg {
		nanos = -nanos
	}
	d := time.Duration(nanos)
	days := int64(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	hours := int64(d / time.Hour)
	d -= time.Duration(hours) * time.Hour
	mins := int64(d / time.Minute)
	d -= time.Duration(mins) * time.Minute
	secs := float64(d) / float64(time.Second)

	s := "P"
	if days > 0 {
		s += fmt.Sprintf("%dD", days)
	}
	if hours > 0 || mins > 0 || secs > 0 {
		s += "T"
		if hours > 0 {
			s += fmt.Sprintf("%dH", hours)
		}
		if mins > 0 {
			s += fmt.Sprintf("%dM", mins)
		}
		if secs > 0 {
			s += fmt.Sprintf("%gS", secs)
		}
	}
	if s == "P" {
		s = "PT0S"
	}
	if neg {
		s = "-" + s
	}
	return s
}

// EqualTemporal compares two date/time/dateTime values. Per spec §4.5,
// equality between timezone-less values uses a context-supplied default
// offset (implicitTimezone) to normalize both sides to an absolute instant.
func EqualTemporal(a, b Value, implicitTimezone time.Duration) (bool, error) {
	if a.Tag != b.Tag {
		return false, xerrors.New(xerrors.XPTY0004, "cannot compare temporal values of different types")
	}
	ta := normalizeInstant(a, implicitTimezone)
	tb := normalizeInstant(b, implicitTimezone)
	return ta.Equal(tb), nil
}

// CompareTemporal orders two date/time/dateTime values after normalizing
// both to an absolute instant using implicitTimezone for tz-less operands.
func CompareTemporal(a, b Value, implicitTimezone time.Duration) (int, error) {
	if a.Tag != b.Tag {
		return 0, xerrors.New(xerrors.XPTY0004, "cannot compare temporal values of different types")
	}
	ta := normalizeInstant(a, implicitTimezone)
	tb := normalizeInstant(b, implicitTimezone)
	switch {
	case ta.Before(tb):
		return -1, nil
	case ta.After(tb):
		return 1, nil
	default:
		return 0, nil
	}
}

func normalizeInstant(v Value, implicitTimezone time.Duration) time.Time {
	if v.hasTZ {
		return v.t.In(time.FixedZone("", int(v.tzOff.Seconds())))
	}
	return v.t.Add(-implicitTimezone)
}

// AddDayTimeDuration adds a dayTimeDuration to a date/time/dateTime value.
func AddDayTimeDuration(v, dur Value) (Value, error) {
	if dur.Tag != TagDayTimeDuration {
		return Value{}, xerrors.New(xerrors.XPTY0004, "expected a dayTimeDuration operand")
	}
	out := v
	out.t = v.t.Add(time.Duration(dur.durNanos))
	return out, nil
}

// AddYearMonthDuration adds a yearMonthDuration to a date/time/dateTime
// value, per calendar-month arithmetic (truncating an overflowing day,
// e.g. Jan 31 + 1 month -> Feb 28/29).
func AddYearMonthDuration(v, dur Value) (Value, error) {
	if dur.Tag != TagYearMonthDuration {
		return Value{}, xerrors.New(xerrors.XPTY0004, "expected a yearMonthDuration operand")
	}
	out := v
	y, m, d := v.t.Date()
	first := time.Date(y, m+time.Month(dur.durMonths), 1, 0, 0, 0, 0, time.UTC)
	if last := first.AddDate(0, 1, -1).Day(); d > last {
		d = last
	}
	out.t = time.Date(first.Year(), first.Month(), d, v.t.Hour(), v.t.Minute(), v.t.Second(), v.t.Nanosecond(), v.t.Location())
	return out, nil
}

// MultiplyDuration scales a duration by a numeric scalar promoted to double;
// NaN is rejected per spec §4.5 (FOCA0005).
func MultiplyDuration(dur Value, scalar Value) (Value, error) {
	if !IsNumeric(scalar.Tag) {
		return Value{}, xerrors.New(xerrors.XPTY0004, "duration multiplier must be numeric")
	}
	d := promoteTo(scalar, 3)
	if isNaNDouble(d.f64) {
		return Value{}, xerrors.New(xerrors.FOCA0005, "cannot multiply a duration by NaN")
	}
	switch dur.Tag {
	case TagYearMonthDuration:
		return NewYearMonthDuration(int64(float64(dur.durMonths) * d.f64)), nil
	case TagDayTimeDuration:
		return NewDayTimeDuration(int64(float64(dur.durNanos) * d.f64)), nil
	}
	return Value{}, xerrors.New(xerrors.XPTY0004, "expected a duration operand")
}

func isNaNDouble(f float64) bool { return f != f }
