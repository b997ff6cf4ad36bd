package model

import (
	"time"

	"github.com/itmoou/attendbot/pkg/domain/types"
)

// NotifyState records which notifications went out to one subject on one date.
// Flags only ever flip from false to true.
type NotifyState struct {
	Date        types.Date
	SubjectID   types.SubjectID
	Flags       map[types.NotifyKind]bool
	LastUpdated time.Time
}

// NewNotifyState returns an empty state for the key.
func NewNotifyState(date types.Date, subjectID types.SubjectID) *NotifyState {
	return &NotifyState{
		Date:      date,
		SubjectID: subjectID,
		Flags:     make(map[types.NotifyKind]bool),
	}
}

// Sent reports whether kind is flagged. A nil state means nothing was sent.
func (s *NotifyState) Sent(kind types.NotifyKind) bool {
	if s == nil {
		return false
	}
	return s.Flags[kind]
}

// Copy returns a deep copy so callers cannot mutate shared flags.
func (s *NotifyState) Copy() *NotifyState {
	if s == nil {
		return nil
	}
	out := *s
	out.Flags = make(map[types.NotifyKind]bool, len(s.Flags))
	for k, v := range s.Flags {
		out.Flags[k] = v
	}
	return &out
}

// NotifyStateKey builds the storage key for a state record.
func NotifyStateKey(date types.Date, subjectID types.SubjectID) string {
	return date.String() + "_" + subjectID.String()
}
