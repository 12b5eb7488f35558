package models

import "time"

// Match is a proposed pairing between a request and a candidate, with
// lifecycle status. Timestamps are RFC3339 strings (sortable as DynamoDB
// range keys).
type Match struct {
	ID            string `dynamodbav:"id" json:"id"`
	RequestID     string `dynamodbav:"requestId" json:"requestId"`
	MatchedUserID string `dynamodbav:"matchedUserId" json:"matchedUserId"`
	Score         int    `dynamodbav:"matchScore" json:"matchScore"`
	Status        string `dynamodbav:"status" json:"status"`
	CreatedAt     string `dynamodbav:"createdAt" json:"createdAt"`
	ExpiresAt     string `dynamodbav:"expiresAt" json:"expiresAt"`
	UpdatedAt     string `dynamodbav:"updatedAt" json:"updatedAt"`
}

// IsActive reports whether the match occupies the request's active slot.
func (m *Match) IsActive() bool {
	return m.Status == MatchStatusNotified || m.Status == MatchStatusAccepted
}

// IsExpired reports whether a notified match is past its expiry window.
// Malformed timestamps are treated as not expired.
func (m *Match) IsExpired(now time.Time) bool {
	if m.Status != MatchStatusNotified {
		return false
	}
	exp, err := time.Parse(time.RFC3339, m.ExpiresAt)
	if err != nil {
		return false
	}
	return now.After(exp)
}

// MatchesTable is the DynamoDB table name for matches
const MatchesTable = "Matches"

// ActiveMatchesTable holds one lock row per request while it has an active
// match (partition: requestId, attribute: matchId). The conditional write on
// this table is what enforces the one-active-match invariant.
const ActiveMatchesTable = "ActiveMatches"

// MatchRequestIndex is the GSI for querying matches by request
const MatchRequestIndex = "requestId-index"

// MatchUserIndex is the GSI for querying matches by matched user
// (partition: matchedUserId, sort: createdAt)
const MatchUserIndex = "matchedUserId-createdAt-index"
