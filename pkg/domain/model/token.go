package model

import (
	"time"

	"github.com/itmoou/attendbot/pkg/domain/types"
)

// RefreshTokenRecord is the persisted refresh token of one credential set.
type RefreshTokenRecord struct {
	Credential types.CredentialSet
	Value      string `masq:"secret"`
	UpdatedAt  time.Time
	UpdatedBy  types.TokenUpdater
}

// TokenInfo summarizes the cache state of one credential set without exposing secrets.
type TokenInfo struct {
	Credential          types.CredentialSet
	HasAccessToken      bool
	ExpiresAt           time.Time
	ExpiresIn           time.Duration
	RefreshTokenLength  int
	RefreshTokenPreview string
	RefreshTokenSource  string
}
