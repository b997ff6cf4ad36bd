package worker

import (
	"fmt"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// Spec says when a job fires: at Hour:Minute local time, on the listed
// weekdays (every day when empty), and when EveryNDays > 0 only on days whose
// count since 1970-01-01 is a multiple of it.
type Spec struct {
	Hour       int
	Minute     int
	Weekdays   []time.Weekday
	EveryNDays int
}

// Weekdays Monday through Friday.
var WorkingDays = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}

// maxLookahead bounds the search for the next matching day.
const maxLookahead = 400

func (s Spec) Validate() error {
	if s.Hour < 0 || s.Hour > 23 || s.Minute < 0 || s.Minute > 59 {
		return goerr.New("invalid time of day", goerr.V("hour", s.Hour), goerr.V("minute", s.Minute))
	}
	if s.EveryNDays < 0 {
		return goerr.New("every_n_days must not be negative", goerr.V("every_n_days", s.EveryNDays))
	}
	return nil
}

// Next returns the first firing time strictly after now, in now's location.
func (s Spec) Next(now time.Time) time.Time {
	loc := now.Location()
	y, m, d := now.Date()

	for i := 0; i < maxLookahead; i++ {
		candidate := time.Date(y, m, d+i, s.Hour, s.Minute, 0, 0, loc)
		if !candidate.After(now) {
			continue
		}
		if s.matchesDay(candidate) {
			return candidate
		}
	}
	return time.Time{}
}

func (s Spec) matchesDay(t time.Time) bool {
	if len(s.Weekdays) > 0 {
		found := false
		for _, wd := range s.Weekdays {
			if t.Weekday() == wd {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if s.EveryNDays > 1 {
		y, m, d := t.Date()
		days := int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
		if days%s.EveryNDays != 0 {
			return false
		}
	}
	return true
}

func (s Spec) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%02d:%02d", s.Hour, s.Minute)
	if len(s.Weekdays) > 0 {
		names := make([]string, len(s.Weekdays))
		for i, wd := range s.Weekdays {
			names[i] = wd.String()[:3]
		}
		b.WriteString(" " + strings.Join(names, ","))
	}
	if s.EveryNDays > 1 {
		fmt.Fprintf(&b, " every %d days", s.EveryNDays)
	}
	return b.String()
}

// ParseClock parses "HH:MM".
func ParseClock(s string) (int, int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, goerr.Wrap(err, "invalid time, expected HH:MM", goerr.V("value", s))
	}
	return t.Hour(), t.Minute(), nil
}

// ParseWeekday accepts English short or long names, case insensitive.
func ParseWeekday(s string) (time.Weekday, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		name := strings.ToLower(wd.String())
		if key == name || key == name[:3] {
			return wd, nil
		}
	}
	return 0, goerr.New("invalid weekday", goerr.V("value", s))
}
