package model

import "github.com/itmoou/attendbot/pkg/domain/types"

// Notification is one outbound chat message. Body is HTML.
type Notification struct {
	AccountID types.AccountID
	Body      string
}

// DispatchResult counts the outcome of a batch send.
//
// SuccessCount + FailedCount always equals the number of input notifications,
// and NotOnboardedAccountIDs is a subset of FailedAccountIDs.
type DispatchResult struct {
	SuccessCount           int
	FailedCount            int
	SucceededAccountIDs    []types.AccountID
	FailedAccountIDs       []types.AccountID
	NotOnboardedAccountIDs []types.AccountID
}
