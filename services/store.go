package services

import (
	"context"
	"time"

	"synapse_server/models"
)

// Store is the persistence contract the matching engine depends on. The
// DynamoDB implementation lives in dynamo_store.go; tests supply an
// in-memory fake.
//
// InsertMatch must be atomic with respect to the one-active-match-per-request
// invariant: a second insert while an active (notified/accepted) match exists
// fails with ErrDuplicateActiveMatch.
type Store interface {
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	// ListCompletedProfiles returns completed profiles, excluding the given
	// IDs. Order is not significant; callers sort.
	ListCompletedProfiles(ctx context.Context, excludeIDs map[string]struct{}) ([]models.Profile, error)

	CreateRequest(ctx context.Context, request *models.Request) error
	GetRequest(ctx context.Context, id string) (*models.Request, error)
	UpdateRequestStatus(ctx context.Context, id, status string) error
	ListRequestsByStatus(ctx context.Context, statuses ...string) ([]models.Request, error)

	InsertMatch(ctx context.Context, match *models.Match) error
	GetMatch(ctx context.Context, id string) (*models.Match, error)
	// GetActiveMatch returns the request's active match, or ErrNotFound when
	// the active slot is empty.
	GetActiveMatch(ctx context.Context, requestID string) (*models.Match, error)
	// UpdateMatchStatus transitions a match and returns the updated record.
	// Only a notified match can transition; a concurrent transition loses
	// with ErrAlreadyResolved. Transitioning to declined or expired releases
	// the request's active slot.
	UpdateMatchStatus(ctx context.Context, id, status string) (*models.Match, error)
	ListMatchesByRequest(ctx context.Context, requestID string) ([]models.Match, error)
	ListMatchesForUser(ctx context.Context, userID string) ([]models.Match, error)
	// ListRecentMatchesForUser returns matches where the user was the matched
	// candidate, created at or after since. Drives the global cooldown.
	ListRecentMatchesForUser(ctx context.Context, userID string, since time.Time) ([]models.Match, error)
}
