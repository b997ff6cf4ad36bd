package model

import (
	"time"

	"github.com/itmoou/attendbot/pkg/domain/types"
)

// IdentityMapping links a chat account to the vendor employee number.
type IdentityMapping struct {
	AccountID   types.AccountID
	SubjectID   types.SubjectID
	DisplayName string
	UpdatedAt   time.Time
}

// IdentityEntry is the value side of a resolved identity snapshot.
type IdentityEntry struct {
	SubjectID   types.SubjectID
	DisplayName string
}

// DirectoryUser is a user as seen by the organization directory.
type DirectoryUser struct {
	UPN         string
	EmployeeID  string
	DisplayName string
	Mail        string
}
