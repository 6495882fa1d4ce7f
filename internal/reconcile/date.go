package reconcile

import (
	"encoding/json"
	"strings"
	"time"
)

// UnknownYear is the bucket used for records without a usable year.
const UnknownYear = "Unknown"

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
	"2006-01",
	"2006",
}

// Date is an optional record date. It keeps the raw source text so reports can
// group by the literal year prefix, and remembers whether the text parsed.
type Date struct {
	raw   string
	t     time.Time
	valid bool
}

// ParseDate builds a Date from source text. Empty text is a missing date;
// text that matches no known layout is an invalid date.
func ParseDate(raw string) Date {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Date{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return Date{raw: raw, t: t.UTC(), valid: true}
		}
	}
	return Date{raw: raw}
}

// DateOf wraps an already parsed time.
func DateOf(t time.Time) Date {
	return Date{raw: t.UTC().Format(time.RFC3339), t: t.UTC(), valid: true}
}

// IsMissing reports whether the source carried no date text at all.
func (d Date) IsMissing() bool { return d.raw == "" }

// IsValid reports whether the date text parsed.
func (d Date) IsValid() bool { return d.valid }

// Raw returns the source text.
func (d Date) Raw() string { return d.raw }

// Time returns the parsed instant and whether it is usable.
func (d Date) Time() (time.Time, bool) { return d.t, d.valid }

// Year returns the four character year prefix of the raw text, or
// UnknownYear when the text does not start with four digits.
func (d Date) Year() string {
	if len(d.raw) < 4 {
		return UnknownYear
	}
	for _, r := range d.raw[:4] {
		if r < '0' || r > '9' {
			return UnknownYear
		}
	}
	return d.raw[:4]
}

// Day returns the calendar date part for listings, or the raw text when
// the date is partial or invalid.
func (d Date) Day() string {
	if d.valid && len(d.raw) >= 10 {
		return d.raw[:10]
	}
	return d.raw
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.raw == "" {
		return []byte("null"), nil
	}
	return json.Marshal(d.raw)
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == nil {
		*d = Date{}
		return nil
	}
	*d = ParseDate(*s)
	return nil
}

// WindowUnit is the unit of a date proximity window.
type WindowUnit string

const (
	UnitHours WindowUnit = "hours"
	UnitDays  WindowUnit = "days"
)

// DateProximityPolicy decides when two optional dates are close enough.
type DateProximityPolicy struct {
	Unit               WindowUnit `json:"unit" yaml:"unit"`
	Size               int        `json:"size" yaml:"size"`
	BothMissingIsMatch bool       `json:"both_missing_is_match" yaml:"both_missing_is_match"`
	OneMissingIsMatch  bool       `json:"one_missing_is_match" yaml:"one_missing_is_match"`
}

// DefaultDatePolicy returns a window where two missing dates match and a
// single missing date does not.
func DefaultDatePolicy(unit WindowUnit, size int) DateProximityPolicy {
	return DateProximityPolicy{Unit: unit, Size: size, BothMissingIsMatch: true}
}

// Window converts the policy size into a duration.
func (p DateProximityPolicy) Window() time.Duration {
	switch p.Unit {
	case UnitHours:
		return time.Duration(p.Size) * time.Hour
	default:
		return time.Duration(p.Size) * 24 * time.Hour
	}
}

// DatesClose applies p to two optional dates. Invalid dates never match.
func DatesClose(a, b Date, p DateProximityPolicy) bool {
	switch {
	case !a.IsMissing() && !a.valid, !b.IsMissing() && !b.valid:
		return false
	case a.IsMissing() && b.IsMissing():
		return p.BothMissingIsMatch
	case a.IsMissing() || b.IsMissing():
		return p.OneMissingIsMatch
	}
	diff := a.t.Sub(b.t)
	if diff < 0 {
		diff = -diff
	}
	return diff <= p.Window()
}
