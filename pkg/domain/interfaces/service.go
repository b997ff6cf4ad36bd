package interfaces

import (
	"context"
	"time"

	"github.com/itmoou/attendbot/pkg/domain/model"
	"github.com/itmoou/attendbot/pkg/domain/types"
)

// TokenProvider hands out bearer tokens for outbound API calls.
type TokenProvider interface {
	GetAccessToken(ctx context.Context, credential types.CredentialSet) (string, error)
}

// Messenger delivers a chat message through a stored conversation handle.
type Messenger interface {
	SendMessage(ctx context.Context, handle *model.ConversationHandle, html string) error
}

// AttendanceSource is the vendor attendance system.
type AttendanceSource interface {
	GetMissingCheckIns(ctx context.Context, date types.Date, subjectIDs []types.SubjectID) ([]types.SubjectID, error)
	GetMissingCheckOuts(ctx context.Context, date types.Date, subjectIDs []types.SubjectID) ([]types.SubjectID, error)
	GetTimeOffs(ctx context.Context, date types.Date, subjectIDs []types.SubjectID) ([]*model.TimeOff, error)
	GetVacationsInRange(ctx context.Context, start, end types.Date, subjectIDs []types.SubjectID) ([]*model.TimeOff, error)
}

// Mailer sends HTML email from the configured sender mailbox.
type Mailer interface {
	SendMail(ctx context.Context, to []string, subject, html string) error
}

// Calendar reads and writes events in a user's mailbox calendar.
type Calendar interface {
	CreateEvent(ctx context.Context, upn string, event *model.CalendarEvent) error

	// ListEvents returns the events overlapping [start, end) ordered by start time.
	ListEvents(ctx context.Context, upn string, start, end time.Time) ([]*model.CalendarEvent, error)
}

// Directory looks up users in the organization directory.
type Directory interface {
	LookupUser(ctx context.Context, upn string) (*model.DirectoryUser, error)
}

// Archiver stores rendered reports.
type Archiver interface {
	Put(ctx context.Context, name, contentType string, data []byte) error
}

// Alerter notifies operators about job failures.
type Alerter interface {
	Alert(ctx context.Context, title, text string) error
}

// Connector is the inbound side of the chat transport used during onboarding.
type Connector interface {
	GetMember(ctx context.Context, serviceURL, conversationID, userID string) (*model.TeamsMember, error)
	Reply(ctx context.Context, inbound *model.Activity, html string) error
}

// TokenRotator forces a refresh of a credential set.
type TokenRotator interface {
	Rotate(ctx context.Context, credential types.CredentialSet) error
}
