package timegrid

import (
	"database/sql/driver"
	"fmt"
)

// Weekday identifies a day of the scheduling week, ordered Monday first.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// Weekdays lists all days in scheduling order.
var Weekdays = [7]Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

var weekdayNames = [7]string{"MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY", "SATURDAY", "SUNDAY"}

// String returns the uppercase English name used on the wire.
func (d Weekday) String() string {
	if d < Monday || d > Sunday {
		return fmt.Sprintf("WEEKDAY(%d)", int(d))
	}
	return weekdayNames[d]
}

// Valid reports whether d names one of the seven days.
func (d Weekday) Valid() bool {
	return d >= Monday && d <= Sunday
}

// ParseWeekday converts an uppercase English day name to a Weekday.
func ParseWeekday(s string) (Weekday, error) {
	for i, name := range weekdayNames {
		if name == s {
			return Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("invalid day of week %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (d Weekday) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid day of week %d", int(d))
	}
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Weekday) UnmarshalText(text []byte) error {
	parsed, err := ParseWeekday(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Scan implements sql.Scanner for text day-of-week columns.
func (d *Weekday) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return d.UnmarshalText(v)
	case string:
		return d.UnmarshalText([]byte(v))
	default:
		return fmt.Errorf("cannot scan %T into Weekday", src)
	}
}

// Value implements driver.Valuer.
func (d Weekday) Value() (driver.Value, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid day of week %d", int(d))
	}
	return d.String(), nil
}
