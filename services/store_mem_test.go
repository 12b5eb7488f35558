package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"synapse_server/models"
)

// memStore is an in-memory Store for tests. It enforces the same
// one-active-match-per-request invariant the DynamoDB store does.
type memStore struct {
	mu       sync.Mutex
	profiles map[string]models.Profile
	requests map[string]models.Request
	matches  map[string]models.Match
}

func newMemStore() *memStore {
	return &memStore{
		profiles: make(map[string]models.Profile),
		requests: make(map[string]models.Request),
		matches:  make(map[string]models.Match),
	}
}

func (s *memStore) addProfile(p models.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
}

func (s *memStore) addRequest(r models.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[r.ID] = r
}

func (s *memStore) addMatch(m models.Match) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches[m.ID] = m
}

func (s *memStore) requestStatus(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[id].Status
}

func (s *memStore) matchStatus(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matches[id].Status
}

func (s *memStore) GetProfile(_ context.Context, id string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	return &p, nil
}

func (s *memStore) ListCompletedProfiles(_ context.Context, excludeIDs map[string]struct{}) ([]models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Profile
	for _, p := range s.profiles {
		if !p.ProfileCompleted {
			continue
		}
		if _, excluded := excludeIDs[p.ID]; excluded {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *memStore) CreateRequest(_ context.Context, request *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[request.ID] = *request
	return nil
}

func (s *memStore) GetRequest(_ context.Context, id string) (*models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, fmt.Errorf("request %s: %w", id, ErrNotFound)
	}
	return &r, nil
}

func (s *memStore) UpdateRequestStatus(_ context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return fmt.Errorf("request %s: %w", id, ErrNotFound)
	}
	r.Status = status
	s.requests[id] = r
	return nil
}

func (s *memStore) ListRequestsByStatus(_ context.Context, statuses ...string) ([]models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Request
	for _, r := range s.requests {
		for _, status := range statuses {
			if r.Status == status {
				out = append(out, r)
				break
			}
		}
	}
	return out, nil
}

func (s *memStore) InsertMatch(_ context.Context, match *models.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.matches {
		if m.RequestID == match.RequestID && m.IsActive() {
			return ErrDuplicateActiveMatch
		}
	}
	s.matches[match.ID] = *match
	return nil
}

func (s *memStore) GetMatch(_ context.Context, id string) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return nil, fmt.Errorf("match %s: %w", id, ErrNotFound)
	}
	return &m, nil
}

func (s *memStore) GetActiveMatch(_ context.Context, requestID string) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.matches {
		if m.RequestID == requestID && m.IsActive() {
			match := m
			return &match, nil
		}
	}
	return nil, fmt.Errorf("active match for request %s: %w", requestID, ErrNotFound)
}

func (s *memStore) UpdateMatchStatus(_ context.Context, id, status string) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return nil, fmt.Errorf("match %s: %w", id, ErrNotFound)
	}
	if m.Status != models.MatchStatusNotified {
		return nil, fmt.Errorf("match %s: %w", id, ErrAlreadyResolved)
	}
	m.Status = status
	m.UpdatedAt = models.FormatTime(time.Now())
	s.matches[id] = m
	return &m, nil
}

func (s *memStore) ListMatchesByRequest(_ context.Context, requestID string) ([]models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Match
	for _, m := range s.matches {
		if m.RequestID == requestID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memStore) ListMatchesForUser(_ context.Context, userID string) ([]models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Match
	for _, m := range s.matches {
		if m.MatchedUserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memStore) ListRecentMatchesForUser(_ context.Context, userID string, since time.Time) ([]models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Match
	for _, m := range s.matches {
		if m.MatchedUserID != userID {
			continue
		}
		created, err := time.Parse(time.RFC3339, m.CreatedAt)
		if err != nil {
			continue
		}
		if !created.Before(since) {
			out = append(out, m)
		}
	}
	return out, nil
}

// recordingNotifier captures notification calls for assertions.
type recordingNotifier struct {
	mu            sync.Mutex
	notifications []string
	connections   []string
	fail          bool
}

func (n *recordingNotifier) SendMatchNotification(_ context.Context, match *models.Match) NotificationResult {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifications = append(n.notifications, match.ID)
	if n.fail {
		return NotificationResult{Err: fmt.Errorf("send failed")}
	}
	return NotificationResult{Success: true}
}

func (n *recordingNotifier) SendConnectionEmail(_ context.Context, match *models.Match) NotificationResult {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.connections = append(n.connections, match.ID)
	if n.fail {
		return NotificationResult{Err: fmt.Errorf("send failed")}
	}
	return NotificationResult{Success: true}
}

func (n *recordingNotifier) notified() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.notifications...)
}

func (n *recordingNotifier) connected() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.connections...)
}
