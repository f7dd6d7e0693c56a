package core

import (
	"fmt"
	"strings"
	"time"
)

// Month identifies a calendar month in a given location. Monthly filtering
// uses the half-open range [first of month, first of next month).
type Month struct {
	Year  int
	Month time.Month
	Loc   *time.Location
}

// MonthOf returns the month containing t, in t's location.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month(), Loc: t.Location()}
}

// NewMonth builds a month; a nil loc means UTC.
func NewMonth(year int, month time.Month, loc *time.Location) Month {
	return Month{Year: year, Month: month, Loc: loc}
}

// ParseMonth parses "YYYY-MM".
func ParseMonth(s string, loc *time.Location) (Month, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation("2006-01", strings.TrimSpace(s), loc)
	if err != nil {
		return Month{}, fmt.Errorf("%w: %q (want YYYY-MM)", ErrInvalidDate, s)
	}
	return MonthOf(t), nil
}

func (m Month) location() *time.Location {
	if m.Loc == nil {
		return time.UTC
	}
	return m.Loc
}

// Start is midnight on the first day of the month.
func (m Month) Start() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, m.location())
}

// End is the exclusive upper bound: midnight on the first of the next month.
func (m Month) End() time.Time {
	return time.Date(m.Year, m.Month+1, 1, 0, 0, 0, 0, m.location())
}

// Bounds returns [start, end) in unix seconds.
func (m Month) Bounds() (start, end int64) {
	return m.Start().Unix(), m.End().Unix()
}

// AddMonths shifts the month by n, crossing year boundaries as needed.
func (m Month) AddMonths(n int) Month {
	return MonthOf(time.Date(m.Year, m.Month+time.Month(n), 1, 0, 0, 0, 0, m.location()))
}

// Contains reports whether the unix timestamp falls inside the month.
func (m Month) Contains(unix int64) bool {
	start, end := m.Bounds()
	return unix >= start && unix < end
}

func (m Month) IsZero() bool {
	return m.Year == 0 && m.Month == 0
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}
