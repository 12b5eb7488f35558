package services

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"synapse_server/models"
)

// Candidate is a scored profile returned by the selector.
type Candidate struct {
	Profile models.Profile
	Score   int
}

// CandidateSelector fetches eligible profiles, scores them against a request
// and picks the best one that clears the threshold and the global cooldown.
type CandidateSelector struct {
	Store          Store
	Scorer         *Scorer
	ScoreThreshold int
	Cooldown       time.Duration
	Logger         *zap.Logger

	// Now is replaceable for tests.
	Now func() time.Time
}

func (cs *CandidateSelector) now() time.Time {
	if cs.Now != nil {
		return cs.Now()
	}
	return time.Now()
}

// SelectBestCandidate returns the highest-scoring eligible candidate for the
// request, or (nil, nil) when nobody qualifies. The requester and every ID in
// excludedUserIDs are never considered. Ties are broken by the smaller
// profile ID so selection is deterministic regardless of store return order.
func (cs *CandidateSelector) SelectBestCandidate(ctx context.Context, request *models.Request, excludedUserIDs map[string]struct{}) (*Candidate, error) {
	requester, err := cs.Store.GetProfile(ctx, request.RequesterID)
	if err != nil {
		return nil, err
	}

	exclude := map[string]struct{}{request.RequesterID: {}}
	for id := range excludedUserIDs {
		exclude[id] = struct{}{}
	}

	profiles, err := cs.Store.ListCompletedProfiles(ctx, exclude)
	if err != nil {
		return nil, err
	}

	var candidates []Candidate
	for _, profile := range profiles {
		score := cs.Scorer.Score(request.Text, requester.Faculty, requester.Program, &profile)
		if score >= cs.ScoreThreshold {
			candidates = append(candidates, Candidate{Profile: profile, Score: score})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Profile.ID < candidates[j].Profile.ID
	})

	for i := range candidates {
		candidate := &candidates[i]
		inCooldown, err := cs.inCooldown(ctx, candidate.Profile.ID)
		if err != nil {
			return nil, err
		}
		if inCooldown {
			cs.Logger.Debug("candidate in cooldown, trying next",
				zap.String("candidateId", candidate.Profile.ID),
				zap.String("requestId", request.ID))
			continue
		}
		return candidate, nil
	}

	return nil, nil
}

// inCooldown reports whether the user was matched to any request within the
// cooldown window. The cooldown is global, not per request.
func (cs *CandidateSelector) inCooldown(ctx context.Context, userID string) (bool, error) {
	if cs.Cooldown <= 0 {
		return false, nil
	}
	recent, err := cs.Store.ListRecentMatchesForUser(ctx, userID, cs.now().Add(-cs.Cooldown))
	if err != nil {
		return false, err
	}
	return len(recent) > 0, nil
}
