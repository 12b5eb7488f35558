package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"synapse_server/models"
)

// RetryResult reports the outcome of a single-request (re)match attempt.
type RetryResult struct {
	Created bool   `json:"created"`
	MatchID string `json:"matchId,omitempty"`
	Score   int    `json:"matchScore,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// SweepResult aggregates a system-wide retry.
type SweepResult struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// RematchService finds requests needing (re)matching and drives the
// lifecycle service, excluding candidates who already declined.
type RematchService struct {
	Store     Store
	Selector  *CandidateSelector
	Lifecycle *MatchLifecycleService
	Logger    *zap.Logger

	// RetryDelay defers the post-decline retry so the decline is committed
	// before the retry reads match state. The deferral never blocks the
	// decline response.
	RetryDelay time.Duration
	// SweepDelay throttles system-wide sweeps between requests.
	SweepDelay time.Duration

	Dispatch Dispatch
	// Sleep is replaceable for tests.
	Sleep func(time.Duration)
}

func (s *RematchService) dispatch(fn func()) {
	if s.Dispatch != nil {
		s.Dispatch(fn)
		return
	}
	go fn()
}

func (s *RematchService) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	if s.Sleep != nil {
		s.Sleep(d)
		return
	}
	time.Sleep(d)
}

// SubmitRequestAndMatch creates a request and immediately attempts to match
// it against the whole pool. Exhaustion on this initial path marks the
// request no_match_found; the retry paths never do.
func (s *RematchService) SubmitRequestAndMatch(ctx context.Context, requesterID, text string) (*models.Request, *models.Match, error) {
	if _, err := s.Store.GetProfile(ctx, requesterID); err != nil {
		return nil, nil, err
	}

	request := &models.Request{
		ID:          uuid.NewString(),
		RequesterID: requesterID,
		Text:        text,
		Status:      models.RequestStatusPending,
		CreatedAt:   models.FormatTime(time.Now()),
	}
	if err := s.Store.CreateRequest(ctx, request); err != nil {
		return nil, nil, err
	}

	candidate, err := s.Selector.SelectBestCandidate(ctx, request, nil)
	if err != nil {
		return nil, nil, err
	}
	if candidate == nil {
		if err := s.Store.UpdateRequestStatus(ctx, request.ID, models.RequestStatusNoMatchFound); err != nil {
			s.Logger.Warn("failed to mark request no_match_found",
				zap.String("requestId", request.ID), zap.Error(err))
		} else {
			request.Status = models.RequestStatusNoMatchFound
		}
		s.Logger.Info("no match found for new request", zap.String("requestId", request.ID))
		return request, nil, nil
	}

	match, err := s.Lifecycle.CreateMatch(ctx, request, candidate)
	if errors.Is(err, ErrDuplicateActiveMatch) {
		// Another path matched this request first.
		return request, match, nil
	}
	if err != nil {
		return request, nil, err
	}
	request.Status = models.RequestStatusMatched
	return request, match, nil
}

// RetryForRequest re-runs candidate selection for one request, excluding the
// requester and everyone who declined it before. Stale notified matches are
// expired first, so a request whose only match timed out is retryable here
// without waiting for a sweep. Users whose match merely expired stay
// eligible. Exhaustion is a soft no-op, not an error, and never flips the
// request to no_match_found.
func (s *RematchService) RetryForRequest(ctx context.Context, requestID string) (*RetryResult, error) {
	request, err := s.Store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	matches, err := s.Store.ListMatchesByRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	excluded := map[string]struct{}{request.RequesterID: {}}
	for i := range matches {
		resolved, err := s.Lifecycle.ResolveExpiry(ctx, &matches[i])
		if err != nil {
			return nil, err
		}
		if resolved.Status == models.MatchStatusDeclined {
			excluded[resolved.MatchedUserID] = struct{}{}
		}
	}

	candidate, err := s.Selector.SelectBestCandidate(ctx, request, excluded)
	if err != nil {
		return nil, err
	}
	if candidate == nil {
		s.Logger.Info("retry found no eligible candidate", zap.String("requestId", requestID))
		return &RetryResult{Reason: "no eligible candidate"}, nil
	}

	match, err := s.Lifecycle.CreateMatch(ctx, request, candidate)
	if errors.Is(err, ErrDuplicateActiveMatch) {
		s.Logger.Info("retry superseded, request already has an active match",
			zap.String("requestId", requestID))
		return &RetryResult{Reason: "request already has an active match"}, nil
	}
	if err != nil {
		return nil, err
	}

	return &RetryResult{Created: true, MatchID: match.ID, Score: match.Score}, nil
}

// RetryAllUnmatched sweeps every pending or matched request that has no
// active match and retries each one sequentially. Stale notified matches are
// expired on the way through, so the sweep doubles as the lazy-expiry pass.
func (s *RematchService) RetryAllUnmatched(ctx context.Context) (*SweepResult, error) {
	requests, err := s.Store.ListRequestsByStatus(ctx, models.RequestStatusPending, models.RequestStatusMatched)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{}
	for i := range requests {
		if result.Total > 0 {
			s.sleep(s.SweepDelay)
		}

		active, err := s.hasActiveMatch(ctx, requests[i].ID)
		if err != nil {
			s.Logger.Error("sweep failed to inspect request",
				zap.String("requestId", requests[i].ID), zap.Error(err))
			result.Total++
			result.Failed++
			continue
		}
		if active {
			continue
		}

		result.Total++
		retry, err := s.RetryForRequest(ctx, requests[i].ID)
		if err != nil {
			s.Logger.Error("sweep retry failed",
				zap.String("requestId", requests[i].ID), zap.Error(err))
			result.Failed++
			continue
		}
		if retry.Created {
			result.Successful++
		} else {
			result.Failed++
		}
	}

	s.Logger.Info("retry sweep complete",
		zap.Int("total", result.Total),
		zap.Int("successful", result.Successful),
		zap.Int("failed", result.Failed))
	return result, nil
}

// DeferRetry schedules a fire-and-forget retry for the request after
// RetryDelay. Failures are logged and never propagated.
func (s *RematchService) DeferRetry(requestID string) {
	s.dispatch(func() {
		s.sleep(s.RetryDelay)
		retry, err := s.RetryForRequest(context.Background(), requestID)
		if err != nil {
			s.Logger.Error("deferred retry failed",
				zap.String("requestId", requestID), zap.Error(err))
			return
		}
		if retry.Created {
			s.Logger.Info("deferred retry created match",
				zap.String("requestId", requestID), zap.String("matchId", retry.MatchID))
		} else {
			s.Logger.Info("deferred retry made no match",
				zap.String("requestId", requestID), zap.String("reason", retry.Reason))
		}
	})
}

// hasActiveMatch applies lazy expiry to the request's matches and reports
// whether an active one remains.
func (s *RematchService) hasActiveMatch(ctx context.Context, requestID string) (bool, error) {
	matches, err := s.Store.ListMatchesByRequest(ctx, requestID)
	if err != nil {
		return false, err
	}
	for i := range matches {
		resolved, err := s.Lifecycle.ResolveExpiry(ctx, &matches[i])
		if err != nil {
			return false, err
		}
		if resolved.IsActive() {
			return true, nil
		}
	}
	return false, nil
}
