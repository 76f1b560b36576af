package leave

import (
	"time"
)

// =============================================================================
// DATE - Day-granularity calendar date
// =============================================================================

// Date is a calendar date, normalized to UTC midnight. All dates in the
// engine are day-granular: requests span whole days, holidays are whole days.
type Date struct {
	Time time.Time
}

// Constructors
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates an arbitrary time to its calendar date.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses "2006-01-02".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

func Today() Date {
	return DateOf(time.Now().UTC())
}

// Comparison
func (d Date) Before(other Date) bool        { return d.Time.Before(other.Time) }
func (d Date) After(other Date) bool         { return d.Time.After(other.Time) }
func (d Date) Equal(other Date) bool         { return d.Time.Equal(other.Time) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }

// Arithmetic
func (d Date) AddDays(n int) Date { return DateOf(d.Time.AddDate(0, 0, n)) }

// DaysUntil returns the number of calendar days from d to other.
// Negative when other is in the past relative to d.
func (d Date) DaysUntil(other Date) int {
	return int(other.Time.Sub(d.Time).Hours() / 24)
}

// Properties
func (d Date) Weekday() time.Weekday { return d.Time.Weekday() }
func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
func (d Date) IsZero() bool { return d.Time.IsZero() }

func (d Date) String() string { return d.Time.Format("2006-01-02") }

// =============================================================================
// DATE RANGE - Inclusive [Start, End] span
// =============================================================================

// DateRange is an inclusive calendar span. A single day is {d, d}.
type DateRange struct {
	Start Date
	End   Date
}

// IsValid reports whether End >= Start.
func (r DateRange) IsValid() bool { return r.End.AfterOrEqual(r.Start) }

// Contains returns true if the date is within [Start, End].
func (r DateRange) Contains(d Date) bool {
	return d.AfterOrEqual(r.Start) && d.BeforeOrEqual(r.End)
}

// Overlaps reports whether two inclusive ranges share at least one day:
// [a,b] and [c,d] overlap iff a <= d AND c <= b.
func (r DateRange) Overlaps(other DateRange) bool {
	return r.Start.BeforeOrEqual(other.End) && other.Start.BeforeOrEqual(r.End)
}

// Days returns every day in the range, in order. Empty for invalid ranges.
func (r DateRange) Days() []Date {
	if !r.IsValid() {
		return nil
	}
	var days []Date
	for cur := r.Start; cur.BeforeOrEqual(r.End); cur = cur.AddDays(1) {
		days = append(days, cur)
	}
	return days
}

// CalendarDays returns the total day count including weekends and holidays.
func (r DateRange) CalendarDays() int {
	if !r.IsValid() {
		return 0
	}
	return r.Start.DaysUntil(r.End) + 1
}

func (r DateRange) String() string {
	return "[" + r.Start.String() + ", " + r.End.String() + "]"
}

// =============================================================================
// HOLIDAY SET + BUSINESS DAY CALENDAR
// =============================================================================

// HolidaySet is a lookup of holiday dates. Construction order is irrelevant.
type HolidaySet map[Date]struct{}

func NewHolidaySet(dates ...Date) HolidaySet {
	set := make(HolidaySet, len(dates))
	for _, d := range dates {
		set[d] = struct{}{}
	}
	return set
}

func (s HolidaySet) Contains(d Date) bool {
	_, ok := s[d]
	return ok
}

func (s HolidaySet) Add(d Date) { s[d] = struct{}{} }

// IsBusinessDay reports whether a date is a working day: not a weekend and
// not in the holiday set.
func IsBusinessDay(d Date, holidays HolidaySet) bool {
	if d.IsWeekend() {
		return false
	}
	return !holidays.Contains(d)
}

// BusinessDays counts the business days in [start, end] inclusive, excluding
// weekends and the given holidays. Pure: no side effects, integer semantics.
// Returns 0 when end < start; never negative.
func BusinessDays(start, end Date, holidays HolidaySet) int {
	if end.Before(start) {
		return 0
	}
	count := 0
	for cur := start; cur.BeforeOrEqual(end); cur = cur.AddDays(1) {
		if IsBusinessDay(cur, holidays) {
			count++
		}
	}
	return count
}
