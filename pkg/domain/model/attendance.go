package model

import (
	"time"

	"github.com/itmoou/attendbot/pkg/domain/types"
)

// AttendanceStatus is the clock state of one subject on one date.
type AttendanceStatus struct {
	SubjectID   types.SubjectID
	Date        types.Date
	HasCheckIn  bool
	HasCheckOut bool
	CheckInAt   *time.Time
	CheckOutAt  *time.Time
	OnVacation  bool
}

// MissingCheckIn is true when a working subject has not clocked in.
func (s *AttendanceStatus) MissingCheckIn() bool {
	return !s.OnVacation && !s.HasCheckIn
}

// MissingCheckOut is true when a working subject clocked in but never out.
func (s *AttendanceStatus) MissingCheckOut() bool {
	return !s.OnVacation && s.HasCheckIn && !s.HasCheckOut
}

// TimeOff is one vendor time-off use. StartAt and EndAt are set for partial days.
type TimeOff struct {
	SubjectID types.SubjectID
	StartDate types.Date
	EndDate   types.Date
	Type      string
	StartAt   *time.Time
	EndAt     *time.Time
}

// Covers reports whether the time-off includes date.
func (t *TimeOff) Covers(date types.Date) bool {
	return date.Within(t.StartDate, t.EndDate)
}

// Key identifies a time-off for deduplication across daily queries.
func (t *TimeOff) Key() string {
	return string(t.SubjectID) + "|" + string(t.StartDate) + "|" + string(t.EndDate) + "|" + t.Type
}

// CalendarEvent is an entry in a mailbox calendar. Events written by the bot
// are out-of-office unless Free is set.
type CalendarEvent struct {
	Subject  string
	Body     string
	Start    time.Time
	End      time.Time
	TimeZone string
	AllDay   bool
	Free     bool
	Location string
	Online   bool
}
