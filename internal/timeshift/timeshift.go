// Package timeshift moves every date and date-time string in a JSON document
// by a whole number of days.
package timeshift

import (
	"regexp"
	"strings"
	"time"

	"github.com/relvacode/iso8601"

	"github.com/flarebyte/timewarp/internal/document"
)

// DateLayout is the strict calendar date form YYYY-MM-DD.
const DateLayout = "2006-01-02"

const dateTimeLayout = "2006-01-02T15:04:05"

// dateTimePattern matches a whole date-time: date, separator, hh:mm with
// optional seconds and fraction, optional zone. Nothing may follow.
var dateTimePattern = regexp.MustCompile(
	`^\d{4}-\d{2}-\d{2}[Tt ]\d{2}:\d{2}(:\d{2}([.,]\d+)?)?([Zz]|[+-]\d{2}(:?\d{2})?)?$`)

// Shift returns a new document in which every date and date-time string not
// stored under an excluded key is moved by days. v is never modified; values
// under excluded keys are shared with the input.
func Shift(v any, days int, exclusions []string) any {
	ex := make(map[string]struct{}, len(exclusions))
	for _, k := range exclusions {
		ex[k] = struct{}{}
	}
	return shiftValue(v, days, ex)
}

// Changed reports whether a shift altered the document.
func Changed(before, after any) bool {
	return !document.Equal(before, after)
}

func shiftValue(v any, days int, ex map[string]struct{}) any {
	if obj, ok := document.AsObject(v); ok {
		out := document.NewObject()
		for _, k := range obj.Keys() {
			val, _ := obj.Get(k)
			if _, skip := ex[k]; skip {
				out.Set(k, val)
				continue
			}
			out.Set(k, shiftValue(val, days, ex))
		}
		return out
	}
	switch x := v.(type) {
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = shiftValue(item, days, ex)
		}
		return out
	case string:
		if s, ok := ShiftString(x, days); ok {
			return s
		}
		return x
	default:
		return v
	}
}

// ShiftString moves a date or date-time string by days. The boolean is false,
// and s is returned verbatim, when s is neither.
func ShiftString(s string, days int) (string, bool) {
	if d, err := time.Parse(DateLayout, s); err == nil {
		return d.AddDate(0, 0, days).Format(DateLayout), true
	}
	return shiftDateTime(s, days)
}

func shiftDateTime(s string, days int) (string, bool) {
	if !dateTimePattern.MatchString(s) {
		return s, false
	}
	sep := s[len(DateLayout)]
	rest := s[len(DateLayout)+1:]
	clock, zoned := splitZone(rest)
	switch zone := rest[len(clock):]; zone {
	case "-00:00", "-0000", "-00":
		rest = clock + "+" + zone[1:]
	case "z":
		rest = clock + "Z"
	}
	t, err := iso8601.ParseString(s[:len(DateLayout)] + "T" + strings.Replace(rest, ",", ".", 1))
	if err != nil {
		return s, false
	}
	out := t.AddDate(0, 0, days).Format(renderLayout(clock, zoned, t))
	if sep != 'T' {
		out = out[:len(DateLayout)] + string(sep) + out[len(DateLayout)+1:]
	}
	return out, true
}

// splitZone separates the clock part of a time from its zone designator.
func splitZone(timePart string) (clock string, zoned bool) {
	if i := strings.IndexAny(timePart, "Zz+-"); i >= 0 {
		return timePart[:i], true
	}
	return timePart, false
}

// renderLayout keeps the input's seconds and fractional-second precision and
// renders a zero UTC offset as Z.
func renderLayout(clock string, zoned bool, t time.Time) string {
	layout := dateTimeLayout
	if len(clock) == len("15:04") {
		layout = dateTimeLayout[:len(dateTimeLayout)-len(":05")]
	}
	if i := strings.IndexAny(clock, ".,"); i >= 0 {
		digits := len(clock) - i - 1
		if digits > 9 {
			digits = 9
		}
		if digits > 0 {
			layout += "." + strings.Repeat("0", digits)
		}
	}
	if !zoned {
		return layout
	}
	if _, offset := t.Zone(); offset == 0 {
		return layout + "Z"
	}
	return layout + "-07:00"
}
