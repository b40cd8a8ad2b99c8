package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar day in the canonical scheduling timezone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(raw string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(raw))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", raw)
	}
	return DateOf(t), nil
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Before reports whether d falls strictly before other.
func (d Date) Before(other Date) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

// At combines the date with a time of day in loc.
func (d Date) At(t TimeOfDay, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, t.Hour(), t.Minute(), 0, 0, loc)
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

// Scan implements sql.Scanner.
func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = DateOf(v)
		return nil
	case []byte:
		return d.scanString(string(v))
	case string:
		return d.scanString(v)
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}

func (d *Date) scanString(raw string) error {
	if len(raw) > len(dateLayout) {
		raw = raw[:len(dateLayout)]
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalJSON renders the date as YYYY-MM-DD.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON parses a YYYY-MM-DD string.
func (d *Date) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// TimeOfDay is a wall-clock time expressed as minutes after midnight.
type TimeOfDay int

// ParseTimeOfDay accepts HH:MM or HH:MM:SS (seconds are dropped).
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return NewTimeOfDay(t.Hour(), t.Minute()), nil
		}
	}
	return 0, fmt.Errorf("invalid time %q: expected HH:MM", raw)
}

// NewTimeOfDay builds a TimeOfDay from hour and minute.
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// Value implements driver.Valuer.
func (t TimeOfDay) Value() (driver.Value, error) {
	return t.String() + ":00", nil
}

// Scan implements sql.Scanner.
func (t *TimeOfDay) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		*t = NewTimeOfDay(v.Hour(), v.Minute())
		return nil
	case []byte:
		return t.scanString(string(v))
	case string:
		return t.scanString(v)
	default:
		return fmt.Errorf("cannot scan %T into TimeOfDay", src)
	}
}

func (t *TimeOfDay) scanString(raw string) error {
	if len(raw) > len("15:04:05") {
		raw = raw[:len("15:04:05")]
	}
	parsed, err := ParseTimeOfDay(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalJSON renders the time as HH:MM.
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON parses an HH:MM string.
func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Interval is a half-open [Start, End) window within a single day.
type Interval struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

// Valid reports whether Start is strictly before End.
func (i Interval) Valid() bool {
	return i.Start < i.End
}

// Overlaps applies the half-open rule: touching boundaries do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return other.Start < i.End && i.Start < other.End
}

func (i Interval) String() string {
	return i.Start.String() + "-" + i.End.String()
}
