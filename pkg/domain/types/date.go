package types

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
)

const dateLayout = "2006-01-02"

// Date is a calendar date in YYYY-MM-DD form.
type Date string

// DateOf returns the calendar date of t in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	return Date(t.In(loc).Format(dateLayout))
}

// ParseDate validates s as a calendar date.
func ParseDate(s string) (Date, error) {
	if _, err := time.Parse(dateLayout, s); err != nil {
		return "", goerr.Wrap(err, "invalid date", goerr.V("date", s))
	}
	return Date(s), nil
}

// Time returns midnight of the date in loc.
func (d Date) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(dateLayout, string(d), loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

// AddDays returns the date n days later. n may be negative.
func (d Date) AddDays(n int) Date {
	return Date(d.Time(time.UTC).AddDate(0, 0, n).Format(dateLayout))
}

// Within reports whether d falls in the inclusive range [from, to].
func (d Date) Within(from, to Date) bool {
	return from <= d && d <= to
}

func (d Date) String() string {
	return string(d)
}
