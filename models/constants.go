package models

import "time"

// Request statuses
const (
	RequestStatusPending      = "pending"
	RequestStatusMatched      = "matched"
	RequestStatusConfirmed    = "confirmed"
	RequestStatusNoMatchFound = "no_match_found"
)

// Match statuses
const (
	MatchStatusNotified = "notified"
	MatchStatusAccepted = "accepted"
	MatchStatusDeclined = "declined"
	MatchStatusExpired  = "expired"
)

// FormatTime renders a timestamp the way every table stores it.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
