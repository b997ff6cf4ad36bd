package model

import (
	"time"

	"github.com/itmoou/attendbot/pkg/domain/types"
)

// ConversationHandle holds what the chat connector needs to start a proactive
// message to one account. Only the Teams transport reads the inner fields.
type ConversationHandle struct {
	AccountID      types.AccountID
	ServiceURL     string
	ConversationID string
	TenantID       string
	BotID          string
	BotName        string
	UserID         string
	UserName       string
	AADObjectID    string
	UpdatedAt      time.Time
}
