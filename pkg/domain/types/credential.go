package types

import "fmt"

// CredentialSet names one token flow held by the token cache.
type CredentialSet string

const (
	// CredentialBot is the Bot Framework connector client credential flow.
	CredentialBot CredentialSet = "bot"
	// CredentialFlex is the vendor attendance API refresh token flow.
	CredentialFlex CredentialSet = "flex"
)

func (c CredentialSet) IsValid() bool {
	return c == CredentialBot || c == CredentialFlex
}

func (c CredentialSet) String() string {
	return string(c)
}

func ParseCredentialSet(s string) (CredentialSet, error) {
	c := CredentialSet(s)
	if !c.IsValid() {
		return "", fmt.Errorf("invalid credential set: %s", s)
	}
	return c, nil
}

// TokenUpdater records who wrote a persisted refresh token.
type TokenUpdater string

const (
	TokenUpdaterAuto    TokenUpdater = "auto"
	TokenUpdaterManual  TokenUpdater = "manual"
	TokenUpdaterInitial TokenUpdater = "initial"
)

func (u TokenUpdater) String() string {
	return string(u)
}
