package types

import "fmt"

// NotifyKind identifies one scheduled notification for deduplication.
type NotifyKind string

const (
	NotifyKindCheckInFirst  NotifyKind = "CHECK_IN_FIRST"
	NotifyKindCheckInFinal  NotifyKind = "CHECK_IN_FINAL"
	NotifyKindCheckOutFirst NotifyKind = "CHECK_OUT_FIRST"
	NotifyKindCheckOutFinal NotifyKind = "CHECK_OUT_FINAL"
	NotifyKindDailySummary  NotifyKind = "DAILY_SUMMARY"
)

// AllNotifyKinds returns all valid notify kinds in firing order
func AllNotifyKinds() []NotifyKind {
	return []NotifyKind{
		NotifyKindCheckInFirst,
		NotifyKindCheckInFinal,
		NotifyKindCheckOutFirst,
		NotifyKindCheckOutFinal,
		NotifyKindDailySummary,
	}
}

// IsValid checks if the notify kind is valid
func (k NotifyKind) IsValid() bool {
	switch k {
	case NotifyKindCheckInFirst,
		NotifyKindCheckInFinal,
		NotifyKindCheckOutFirst,
		NotifyKindCheckOutFinal,
		NotifyKindDailySummary:
		return true
	default:
		return false
	}
}

// IsCheckIn reports whether k is one of the check-in reminder passes
func (k NotifyKind) IsCheckIn() bool {
	return k == NotifyKindCheckInFirst || k == NotifyKindCheckInFinal
}

// IsCheckOut reports whether k is one of the check-out reminder passes
func (k NotifyKind) IsCheckOut() bool {
	return k == NotifyKindCheckOutFirst || k == NotifyKindCheckOutFinal
}

// IsFinal reports whether k is the last reminder pass of its kind
func (k NotifyKind) IsFinal() bool {
	return k == NotifyKindCheckInFinal || k == NotifyKindCheckOutFinal
}

// String returns the string representation of the notify kind
func (k NotifyKind) String() string {
	return string(k)
}

// ParseNotifyKind parses a string into a NotifyKind
func ParseNotifyKind(s string) (NotifyKind, error) {
	kind := NotifyKind(s)
	if !kind.IsValid() {
		return "", fmt.Errorf("invalid notify kind: %s", s)
	}
	return kind, nil
}
