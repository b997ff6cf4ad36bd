package types

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

var ErrInvalidAccountID = goerr.New("invalid account ID")

// AccountID is the canonical recipient identifier: a lowercase user principal name.
type AccountID string

// NewAccountID normalizes s into an AccountID.
func NewAccountID(s string) (AccountID, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	if normalized == "" {
		return "", goerr.Wrap(ErrInvalidAccountID, "account ID is empty")
	}
	if strings.ContainsAny(normalized, " \t/\\#?") {
		return "", goerr.Wrap(ErrInvalidAccountID, "account ID contains forbidden characters", goerr.V("account_id", normalized))
	}
	return AccountID(normalized), nil
}

// LooksLikeUPN reports whether s has the user@domain form.
func LooksLikeUPN(s string) bool {
	at := strings.Index(s, "@")
	return at > 0 && at < len(s)-1 && !strings.Contains(s[at+1:], "@")
}

func (a AccountID) String() string {
	return string(a)
}

// SubjectID is the vendor side employee number. It is opaque and kept as is.
type SubjectID string

func (s SubjectID) String() string {
	return string(s)
}

// SubjectIDStrings converts ids for use in query parameters.
func SubjectIDStrings(ids []SubjectID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
