package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"synapse_server/models"
)

// Dispatch runs a fire-and-forget side effect. The default spawns a
// goroutine; tests substitute an inline runner so side effects are
// observable synchronously.
type Dispatch func(fn func())

// MatchLifecycleService owns match creation and state transitions
// (notify, accept, decline, expire) and keeps the parent request's status in
// step with them.
type MatchLifecycleService struct {
	Store    Store
	Notifier Notifier
	Expiry   time.Duration
	Logger   *zap.Logger

	// Dispatch runs notification sends and other side effects off the
	// request path. Nil means goroutine.
	Dispatch Dispatch

	// OnDeclined, when set, is invoked after a successful decline so the
	// rematch orchestrator can schedule a retry. Must not block.
	OnDeclined func(requestID string)

	// Now is replaceable for tests.
	Now func() time.Time
}

func (s *MatchLifecycleService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *MatchLifecycleService) dispatch(fn func()) {
	if s.Dispatch != nil {
		s.Dispatch(fn)
		return
	}
	go fn()
}

// CreateMatch inserts a notified match for the request and marks the request
// matched. The matched user is notified best-effort; a notification failure
// never rolls the match back.
//
// When the request already has an active match the existing match is
// returned together with ErrDuplicateActiveMatch so callers can treat the
// call as an idempotent no-op.
func (s *MatchLifecycleService) CreateMatch(ctx context.Context, request *models.Request, candidate *Candidate) (*models.Match, error) {
	if candidate.Profile.ID == request.RequesterID {
		// The selector never proposes the requester; guard anyway.
		return nil, ErrSelfMatch
	}

	now := s.now()
	match := &models.Match{
		ID:            uuid.NewString(),
		RequestID:     request.ID,
		MatchedUserID: candidate.Profile.ID,
		Score:         candidate.Score,
		Status:        models.MatchStatusNotified,
		CreatedAt:     models.FormatTime(now),
		ExpiresAt:     models.FormatTime(now.Add(s.Expiry)),
		UpdatedAt:     models.FormatTime(now),
	}

	if err := s.Store.InsertMatch(ctx, match); err != nil {
		if errors.Is(err, ErrDuplicateActiveMatch) {
			existing, getErr := s.Store.GetActiveMatch(ctx, request.ID)
			if getErr != nil {
				return nil, ErrDuplicateActiveMatch
			}
			return existing, ErrDuplicateActiveMatch
		}
		return nil, err
	}

	if err := s.Store.UpdateRequestStatus(ctx, request.ID, models.RequestStatusMatched); err != nil {
		// The match exists; ReconcileStatus repairs the drift later.
		s.Logger.Warn("failed to mark request matched",
			zap.String("requestId", request.ID), zap.Error(err))
	}

	s.dispatch(func() {
		result := s.Notifier.SendMatchNotification(context.Background(), match)
		if !result.Success {
			s.Logger.Error("match notification failed",
				zap.String("matchId", match.ID), zap.Error(result.Err))
		}
	})

	s.Logger.Info("match created",
		zap.String("matchId", match.ID),
		zap.String("requestId", request.ID),
		zap.String("matchedUserId", match.MatchedUserID),
		zap.Int("score", match.Score))
	return match, nil
}

// ResolveExpiry lazily expires a notified match past its window. There is no
// background sweeper; every read path that surfaces a match goes through
// here first. Returns the match in its post-resolution state.
func (s *MatchLifecycleService) ResolveExpiry(ctx context.Context, match *models.Match) (*models.Match, error) {
	if !match.IsExpired(s.now()) {
		return match, nil
	}

	updated, err := s.expireMatch(ctx, match)
	if err != nil {
		return nil, err
	}

	if _, _, err := s.ReconcileStatus(ctx, match.RequestID); err != nil {
		s.Logger.Warn("failed to reconcile request after expiry",
			zap.String("requestId", match.RequestID), zap.Error(err))
	}
	return updated, nil
}

// expireMatch transitions a stale notified match to expired, releasing the
// request's active slot. Losing the transition race to a concurrent accept,
// decline or expiry is quiet: the match is re-read and returned as it now is.
func (s *MatchLifecycleService) expireMatch(ctx context.Context, match *models.Match) (*models.Match, error) {
	updated, err := s.Store.UpdateMatchStatus(ctx, match.ID, models.MatchStatusExpired)
	if errors.Is(err, ErrAlreadyResolved) {
		return s.Store.GetMatch(ctx, match.ID)
	}
	if err != nil {
		return nil, err
	}
	s.Logger.Info("match expired",
		zap.String("matchId", match.ID), zap.String("requestId", match.RequestID))
	return updated, nil
}

// Respond applies an accept or decline from the matched user.
func (s *MatchLifecycleService) Respond(ctx context.Context, matchID, actingUserID, action string) (*models.Match, error) {
	match, err := s.Store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}

	if match.MatchedUserID != actingUserID {
		return nil, ErrForbidden
	}

	match, err = s.ResolveExpiry(ctx, match)
	if err != nil {
		return nil, err
	}
	if match.Status == models.MatchStatusExpired {
		return nil, ErrExpired
	}
	if match.Status != models.MatchStatusNotified {
		return nil, ErrAlreadyResolved
	}

	switch action {
	case "accept":
		return s.accept(ctx, match)
	case "decline":
		return s.decline(ctx, match)
	default:
		return nil, errors.New("action must be either \"accept\" or \"decline\"")
	}
}

func (s *MatchLifecycleService) accept(ctx context.Context, match *models.Match) (*models.Match, error) {
	updated, err := s.Store.UpdateMatchStatus(ctx, match.ID, models.MatchStatusAccepted)
	if err != nil {
		return nil, err
	}

	if err := s.Store.UpdateRequestStatus(ctx, match.RequestID, models.RequestStatusConfirmed); err != nil {
		s.Logger.Warn("failed to mark request confirmed",
			zap.String("requestId", match.RequestID), zap.Error(err))
	}

	s.dispatch(func() {
		result := s.Notifier.SendConnectionEmail(context.Background(), updated)
		if !result.Success {
			s.Logger.Error("connection email failed",
				zap.String("matchId", updated.ID), zap.Error(result.Err))
		}
	})

	s.Logger.Info("match accepted", zap.String("matchId", match.ID), zap.String("requestId", match.RequestID))
	return updated, nil
}

func (s *MatchLifecycleService) decline(ctx context.Context, match *models.Match) (*models.Match, error) {
	updated, err := s.Store.UpdateMatchStatus(ctx, match.ID, models.MatchStatusDeclined)
	if err != nil {
		return nil, err
	}

	// The request goes back to pending unless another active match exists.
	matches, err := s.Store.ListMatchesByRequest(ctx, match.RequestID)
	if err != nil {
		return nil, err
	}
	hasActive := false
	for i := range matches {
		if matches[i].ID != match.ID && matches[i].IsActive() {
			hasActive = true
			break
		}
	}
	if !hasActive {
		if err := s.Store.UpdateRequestStatus(ctx, match.RequestID, models.RequestStatusPending); err != nil {
			s.Logger.Warn("failed to mark request pending after decline",
				zap.String("requestId", match.RequestID), zap.Error(err))
		}
	}

	s.Logger.Info("match declined", zap.String("matchId", match.ID), zap.String("requestId", match.RequestID))

	if s.OnDeclined != nil {
		s.OnDeclined(match.RequestID)
	}
	return updated, nil
}

// ReconcileStatus derives the request's status from its matches and repairs
// it when it has drifted. Match and request rows are written independently,
// so drift is possible; this is the defensive repair the UI's
// "fix status" action calls.
func (s *MatchLifecycleService) ReconcileStatus(ctx context.Context, requestID string) (string, bool, error) {
	request, err := s.Store.GetRequest(ctx, requestID)
	if err != nil {
		return "", false, err
	}
	matches, err := s.Store.ListMatchesByRequest(ctx, requestID)
	if err != nil {
		return "", false, err
	}

	now := s.now()
	hasAccepted := false
	hasNotified := false
	for i := range matches {
		if matches[i].IsExpired(now) {
			// Repair covers matches too: a stale notified match is
			// transitioned so it releases the active slot.
			updated, err := s.expireMatch(ctx, &matches[i])
			if err != nil {
				return "", false, err
			}
			matches[i] = *updated
		}
		switch {
		case matches[i].Status == models.MatchStatusAccepted:
			hasAccepted = true
		case matches[i].Status == models.MatchStatusNotified:
			hasNotified = true
		}
	}

	derived := models.RequestStatusPending
	switch {
	case hasAccepted:
		derived = models.RequestStatusConfirmed
	case hasNotified:
		derived = models.RequestStatusMatched
	case len(matches) == 0 && request.Status == models.RequestStatusNoMatchFound:
		// No matches and an exhausted initial attempt is already consistent.
		derived = models.RequestStatusNoMatchFound
	}

	if derived == request.Status {
		return derived, false, nil
	}

	if err := s.Store.UpdateRequestStatus(ctx, requestID, derived); err != nil {
		return "", false, err
	}
	s.Logger.Info("request status reconciled",
		zap.String("requestId", requestID),
		zap.String("from", request.Status),
		zap.String("to", derived))
	return derived, true, nil
}
