package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"synapse_server/models"
	"synapse_server/utils"
)

// DynamoStore implements Store on DynamoDB. The one-active-match-per-request
// invariant is enforced by a lock row in the ActiveMatches table, written in
// the same transaction as the match itself.
type DynamoStore struct {
	Dynamo *DynamoService
}

func NewDynamoStore(dynamo *DynamoService) *DynamoStore {
	return &DynamoStore{Dynamo: dynamo}
}

func (s *DynamoStore) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	item, err := s.Dynamo.GetItem(ctx, models.ProfilesTable, map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}

	var profile models.Profile
	if err := attributevalue.UnmarshalMap(item, &profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile %s: %w", id, err)
	}
	return &profile, nil
}

func (s *DynamoStore) ListCompletedProfiles(ctx context.Context, excludeIDs map[string]struct{}) ([]models.Profile, error) {
	var profiles []models.Profile
	err := s.Dynamo.ScanWithFilter(ctx, models.ProfilesTable,
		"profileCompleted = :completed",
		map[string]types.AttributeValue{
			":completed": &types.AttributeValueMemberBOOL{Value: true},
		},
		nil,
		func(item map[string]types.AttributeValue) bool {
			_, excluded := excludeIDs[utils.ExtractString(item, "id")]
			return !excluded
		},
		&profiles,
	)
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

func (s *DynamoStore) CreateRequest(ctx context.Context, request *models.Request) error {
	return s.Dynamo.PutItem(ctx, models.RequestsTable, request)
}

func (s *DynamoStore) GetRequest(ctx context.Context, id string) (*models.Request, error) {
	item, err := s.Dynamo.GetItem(ctx, models.RequestsTable, map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("request %s: %w", id, ErrNotFound)
	}

	var request models.Request
	if err := attributevalue.UnmarshalMap(item, &request); err != nil {
		return nil, fmt.Errorf("failed to unmarshal request %s: %w", id, err)
	}
	return &request, nil
}

func (s *DynamoStore) UpdateRequestStatus(ctx context.Context, id, status string) error {
	_, err := s.Dynamo.UpdateItem(ctx, models.RequestsTable,
		"SET #status = :status",
		map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: status},
		},
		map[string]string{"#status": "status"},
	)
	return err
}

func (s *DynamoStore) ListRequestsByStatus(ctx context.Context, statuses ...string) ([]models.Request, error) {
	var requests []models.Request
	for _, status := range statuses {
		items, err := s.Dynamo.QueryItemsWithIndex(ctx, models.RequestsTable, models.RequestStatusIndex,
			"#status = :status",
			map[string]types.AttributeValue{
				":status": &types.AttributeValueMemberS{Value: status},
			},
			map[string]string{"#status": "status"},
		)
		if err != nil {
			return nil, err
		}

		var page []models.Request
		if err := attributevalue.UnmarshalListOfMaps(items, &page); err != nil {
			return nil, fmt.Errorf("failed to unmarshal requests with status %s: %w", status, err)
		}
		requests = append(requests, page...)
	}
	return requests, nil
}

// InsertMatch writes the match and claims the request's active slot in one
// transaction. A concurrent claim surfaces as ErrDuplicateActiveMatch.
func (s *DynamoStore) InsertMatch(ctx context.Context, match *models.Match) error {
	matchItem, err := attributevalue.MarshalMap(match)
	if err != nil {
		return fmt.Errorf("failed to marshal match: %w", err)
	}

	err = s.Dynamo.TransactWriteItems(ctx, []types.TransactWriteItem{
		{
			Put: &types.Put{
				TableName: aws.String(models.MatchesTable),
				Item:      matchItem,
			},
		},
		{
			Put: &types.Put{
				TableName: aws.String(models.ActiveMatchesTable),
				Item: map[string]types.AttributeValue{
					"requestId": &types.AttributeValueMemberS{Value: match.RequestID},
					"matchId":   &types.AttributeValueMemberS{Value: match.ID},
				},
				ConditionExpression: aws.String("attribute_not_exists(requestId)"),
			},
		},
	})
	if err != nil {
		if isConditionalCancellation(err) {
			return ErrDuplicateActiveMatch
		}
		return fmt.Errorf("failed to insert match for request %s: %w", match.RequestID, err)
	}
	return nil
}

func (s *DynamoStore) GetMatch(ctx context.Context, id string) (*models.Match, error) {
	item, err := s.Dynamo.GetItem(ctx, models.MatchesTable, map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("match %s: %w", id, ErrNotFound)
	}

	var match models.Match
	if err := attributevalue.UnmarshalMap(item, &match); err != nil {
		return nil, fmt.Errorf("failed to unmarshal match %s: %w", id, err)
	}
	return &match, nil
}

func (s *DynamoStore) GetActiveMatch(ctx context.Context, requestID string) (*models.Match, error) {
	lock, err := s.Dynamo.GetItem(ctx, models.ActiveMatchesTable, map[string]types.AttributeValue{
		"requestId": &types.AttributeValueMemberS{Value: requestID},
	})
	if err != nil {
		return nil, err
	}
	if lock == nil {
		return nil, fmt.Errorf("active match for request %s: %w", requestID, ErrNotFound)
	}
	return s.GetMatch(ctx, utils.ExtractString(lock, "matchId"))
}

func (s *DynamoStore) UpdateMatchStatus(ctx context.Context, id, status string) (*models.Match, error) {
	// Guarded on the current status so concurrent accept/decline/expire
	// transitions cannot overwrite each other: the first writer wins.
	attrs, err := s.Dynamo.UpdateItemWithCondition(ctx, models.MatchesTable,
		"SET #status = :status, updatedAt = :updatedAt",
		"#status = :expected",
		map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		map[string]types.AttributeValue{
			":status":    &types.AttributeValueMemberS{Value: status},
			":updatedAt": &types.AttributeValueMemberS{Value: models.FormatTime(time.Now())},
			":expected":  &types.AttributeValueMemberS{Value: models.MatchStatusNotified},
		},
		map[string]string{"#status": "status"},
	)
	if err != nil {
		if isConditionalCheckFailure(err) {
			return nil, fmt.Errorf("match %s: %w", id, ErrAlreadyResolved)
		}
		return nil, fmt.Errorf("failed to update match %s: %w", id, err)
	}

	var match models.Match
	if err := attributevalue.UnmarshalMap(attrs, &match); err != nil {
		return nil, fmt.Errorf("failed to unmarshal updated match %s: %w", id, err)
	}

	// Leaving the active slot releases the lock row. The delete is guarded
	// so a newer match's lock is never removed by a stale transition.
	if status == models.MatchStatusDeclined || status == models.MatchStatusExpired {
		err := s.Dynamo.DeleteItemWithCondition(ctx, models.ActiveMatchesTable,
			map[string]types.AttributeValue{
				"requestId": &types.AttributeValueMemberS{Value: match.RequestID},
			},
			"matchId = :matchId",
			map[string]types.AttributeValue{
				":matchId": &types.AttributeValueMemberS{Value: match.ID},
			},
		)
		if err != nil && !isConditionalCheckFailure(err) {
			return nil, fmt.Errorf("failed to release active slot for request %s: %w", match.RequestID, err)
		}
	}

	return &match, nil
}

func (s *DynamoStore) ListMatchesByRequest(ctx context.Context, requestID string) ([]models.Match, error) {
	items, err := s.Dynamo.QueryItemsWithIndex(ctx, models.MatchesTable, models.MatchRequestIndex,
		"requestId = :requestId",
		map[string]types.AttributeValue{
			":requestId": &types.AttributeValueMemberS{Value: requestID},
		},
		nil,
	)
	if err != nil {
		return nil, err
	}

	var matches []models.Match
	if err := attributevalue.UnmarshalListOfMaps(items, &matches); err != nil {
		return nil, fmt.Errorf("failed to unmarshal matches for request %s: %w", requestID, err)
	}
	return matches, nil
}

func (s *DynamoStore) ListMatchesForUser(ctx context.Context, userID string) ([]models.Match, error) {
	items, err := s.Dynamo.QueryItemsWithIndex(ctx, models.MatchesTable, models.MatchUserIndex,
		"matchedUserId = :userId",
		map[string]types.AttributeValue{
			":userId": &types.AttributeValueMemberS{Value: userID},
		},
		nil,
	)
	if err != nil {
		return nil, err
	}

	var matches []models.Match
	if err := attributevalue.UnmarshalListOfMaps(items, &matches); err != nil {
		return nil, fmt.Errorf("failed to unmarshal matches for user %s: %w", userID, err)
	}
	return matches, nil
}

func (s *DynamoStore) ListRecentMatchesForUser(ctx context.Context, userID string, since time.Time) ([]models.Match, error) {
	items, err := s.Dynamo.QueryItemsWithIndex(ctx, models.MatchesTable, models.MatchUserIndex,
		"matchedUserId = :userId AND createdAt >= :since",
		map[string]types.AttributeValue{
			":userId": &types.AttributeValueMemberS{Value: userID},
			":since":  &types.AttributeValueMemberS{Value: models.FormatTime(since)},
		},
		nil,
	)
	if err != nil {
		return nil, err
	}

	var matches []models.Match
	if err := attributevalue.UnmarshalListOfMaps(items, &matches); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recent matches for user %s: %w", userID, err)
	}
	return matches, nil
}

// isConditionalCancellation reports whether a transaction was cancelled by a
// conditional check, i.e. the active slot was already claimed.
func isConditionalCancellation(err error) bool {
	var cancelled *types.TransactionCanceledException
	if !errors.As(err, &cancelled) {
		return false
	}
	for _, reason := range cancelled.CancellationReasons {
		if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
			return true
		}
	}
	return false
}

func isConditionalCheckFailure(err error) bool {
	var failed *types.ConditionalCheckFailedException
	return errors.As(err, &failed)
}
