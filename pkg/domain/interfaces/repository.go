package interfaces

import (
	"context"
	"time"

	"github.com/itmoou/attendbot/pkg/domain/model"
	"github.com/itmoou/attendbot/pkg/domain/types"
)

// Repository defines the interface for data persistence
type Repository interface {
	NotifyState() NotifyStateRepository
	Identity() IdentityRepository
	Conversation() ConversationRepository
	RefreshToken() RefreshTokenRepository

	Close() error
}

// NotifyStateRepository stores per date and subject notification flags.
type NotifyStateRepository interface {
	// Get returns nil and no error when the state does not exist
	Get(ctx context.Context, date types.Date, subjectID types.SubjectID) (*model.NotifyState, error)

	// SetFlag merges kind=true into the state, creating it if needed. Other flags are kept.
	SetFlag(ctx context.Context, date types.Date, subjectID types.SubjectID, kind types.NotifyKind, now time.Time) error

	// Claim sets kind only if it is not already set and reports whether this call set it.
	Claim(ctx context.Context, date types.Date, subjectID types.SubjectID, kind types.NotifyKind, now time.Time) (bool, error)

	ListByDate(ctx context.Context, date types.Date) ([]*model.NotifyState, error)
}

// IdentityRepository stores account to subject mappings keyed by AccountID.
type IdentityRepository interface {
	List(ctx context.Context) ([]*model.IdentityMapping, error)
	Get(ctx context.Context, accountID types.AccountID) (*model.IdentityMapping, error)
	Put(ctx context.Context, mapping *model.IdentityMapping) error
	Delete(ctx context.Context, accountID types.AccountID) error
}

// ConversationRepository stores proactive messaging handles keyed by AccountID.
type ConversationRepository interface {
	// Get returns nil and no error when the account has never talked to the bot
	Get(ctx context.Context, accountID types.AccountID) (*model.ConversationHandle, error)
	Put(ctx context.Context, handle *model.ConversationHandle) error
	List(ctx context.Context) ([]*model.ConversationHandle, error)
}

// RefreshTokenRepository stores the rotating refresh token per credential set.
type RefreshTokenRepository interface {
	// Get returns nil and no error when nothing has been stored yet
	Get(ctx context.Context, credential types.CredentialSet) (*model.RefreshTokenRecord, error)
	Put(ctx context.Context, record *model.RefreshTokenRecord) error
}
