package usecase

import "errors"

// Sentinel errors for use case layer
var (
	// Dispatch errors
	ErrNotOnboarded         = errors.New("account has no conversation handle")
	ErrMessengerUnavailable = errors.New("messenger is not configured")

	// Inbound errors
	ErrInvalidActivity = errors.New("invalid activity")
	ErrInvalidVacation = errors.New("invalid vacation approval")

	// Job errors
	ErrUnsupportedKind  = errors.New("unsupported notify kind for this job")
	ErrNotConfigured    = errors.New("required service is not configured")
	ErrIdentityNotFound = errors.New("identity mapping not found")
)

// Context keys for error values
const (
	AccountIDKey = "account_id"
	SubjectIDKey = "subject_id"
	DateKey      = "date"
	KindKey      = "kind"
	JobKey       = "job"
)
