package valueobject

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Period is a billing month value object. It identifies the calendar
// month a charge applies to and drives oldest-first ordering during
// allocation. Internally it is always normalized to the first day of
// the month at midnight UTC.
type Period struct {
	year  int
	month time.Month
}

// NewPeriod creates a Period for the given year and month
func NewPeriod(year int, month time.Month) (Period, error) {
	if year < 2000 || year > 2200 {
		return Period{}, fmt.Errorf("year out of range: %d", year)
	}
	if month < time.January || month > time.December {
		return Period{}, fmt.Errorf("invalid month: %d", int(month))
	}
	return Period{year: year, month: month}, nil
}

// PeriodOf returns the Period containing the given time
func PeriodOf(t time.Time) Period {
	y, m, _ := t.UTC().Date()
	return Period{year: y, month: m}
}

// ParsePeriod parses a period from "2006-01" format
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, fmt.Errorf("invalid period %q: %w", s, err)
	}
	return Period{year: t.Year(), month: t.Month()}, nil
}

// Year returns the period's year
func (p Period) Year() int {
	return p.year
}

// Month returns the period's month
func (p Period) Month() time.Month {
	return p.month
}

// Start returns the first instant of the period (UTC)
func (p Period) Start() time.Time {
	return time.Date(p.year, p.month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns the first instant of the next period (UTC)
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, 0)
}

// Next returns the following period
func (p Period) Next() Period {
	t := p.Start().AddDate(0, 1, 0)
	return Period{year: t.Year(), month: t.Month()}
}

// Prev returns the preceding period
func (p Period) Prev() Period {
	t := p.Start().AddDate(0, -1, 0)
	return Period{year: t.Year(), month: t.Month()}
}

// Before returns true if p is strictly earlier than other
func (p Period) Before(other Period) bool {
	if p.year != other.year {
		return p.year < other.year
	}
	return p.month < other.month
}

// Compare returns -1, 0 or 1 ordering two periods chronologically
func (p Period) Compare(other Period) int {
	switch {
	case p.Before(other):
		return -1
	case other.Before(p):
		return 1
	default:
		return 0
	}
}

// Equals returns true if both periods are the same month
func (p Period) Equals(other Period) bool {
	return p.year == other.year && p.month == other.month
}

// IsZero returns true for the zero-value Period
func (p Period) IsZero() bool {
	return p.year == 0 && p.month == 0
}

// String returns the period in "2006-01" format
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.year, int(p.month))
}

// MarshalJSON implements json.Marshaler
func (p Period) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON implements json.Unmarshaler
func (p *Period) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParsePeriod(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Value implements driver.Valuer; stored as a DATE (first of month)
func (p Period) Value() (driver.Value, error) {
	return p.Start(), nil
}

// Scan implements sql.Scanner
func (p *Period) Scan(value any) error {
	switch v := value.(type) {
	case time.Time:
		*p = PeriodOf(v)
		return nil
	case string:
		parsed, err := ParsePeriod(v)
		if err != nil {
			// Also accept full date strings from the DB driver
			t, terr := time.Parse("2006-01-02", v)
			if terr != nil {
				return err
			}
			*p = PeriodOf(t)
			return nil
		}
		*p = parsed
		return nil
	case []byte:
		return p.Scan(string(v))
	case nil:
		*p = Period{}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Period", value)
	}
}
