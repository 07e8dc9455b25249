package timegrid

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time expressed as minutes from midnight.
// It marshals as a zero-padded 24-hour "HH:MM" string.
type TimeOfDay int

// Midnight is the zero time of day.
const Midnight TimeOfDay = 0

// NewTimeOfDay builds a TimeOfDay from hour and minute components.
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay parses "HH:MM" (seconds, if present, are ignored).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	var hour, minute int
	if _, err := fmt.Sscanf(parts[0]+":"+parts[1], "%d:%d", &hour, &minute); err != nil {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	if hour < 0 || hour > 24 || minute < 0 || minute > 59 || (hour == 24 && minute != 0) {
		return 0, fmt.Errorf("time of day %q out of range", s)
	}
	return NewTimeOfDay(hour, minute), nil
}

// Minutes returns the minutes elapsed since midnight.
func (t TimeOfDay) Minutes() int {
	return int(t)
}

// String formats the time as zero-padded "HH:MM".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// MarshalText implements encoding.TextMarshaler.
func (t TimeOfDay) MarshalText() ([]byte, error) {
	if t < 0 || t > 24*60 {
		return nil, fmt.Errorf("time of day %d out of range", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TimeOfDay) UnmarshalText(text []byte) error {
	parsed, err := ParseTimeOfDay(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Scan implements sql.Scanner for TIME columns.
func (t *TimeOfDay) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*t = 0
		return nil
	case time.Time:
		*t = NewTimeOfDay(v.Hour(), v.Minute())
		return nil
	case []byte:
		return t.UnmarshalText(v)
	case string:
		return t.UnmarshalText([]byte(v))
	default:
		return fmt.Errorf("cannot scan %T into TimeOfDay", src)
	}
}

// Value implements driver.Valuer.
func (t TimeOfDay) Value() (driver.Value, error) {
	return t.String() + ":00", nil
}

// Span is a half-open [Start, End) window within one day.
type Span struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

// IsClosed reports whether the span admits no time at all.
func (s Span) IsClosed() bool {
	return s.End <= s.Start
}

// Duration returns the span length in minutes, zero when closed.
func (s Span) Duration() int {
	if s.IsClosed() {
		return 0
	}
	return int(s.End - s.Start)
}
