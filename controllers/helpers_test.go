package controllers_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"synapse_server/controllers"
	"synapse_server/models"
	"synapse_server/routes"
	"synapse_server/services"
)

// fakeStore is an in-memory services.Store for handler tests.
type fakeStore struct {
	mu       sync.Mutex
	profiles map[string]models.Profile
	requests map[string]models.Request
	matches  map[string]models.Match
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		profiles: make(map[string]models.Profile),
		requests: make(map[string]models.Request),
		matches:  make(map[string]models.Match),
	}
}

func (s *fakeStore) addProfile(p models.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
}

func (s *fakeStore) addRequest(r models.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[r.ID] = r
}

func (s *fakeStore) addMatch(m models.Match) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches[m.ID] = m
}

func (s *fakeStore) requestStatus(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[id].Status
}

func (s *fakeStore) matchStatus(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matches[id].Status
}

func (s *fakeStore) GetProfile(_ context.Context, id string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", id, services.ErrNotFound)
	}
	return &p, nil
}

func (s *fakeStore) ListCompletedProfiles(_ context.Context, excludeIDs map[string]struct{}) ([]models.Profile, error) {
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

func (s *fakeStore) CreateRequest(_ context.Context, request *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[request.ID] = *request
	return nil
}

func (s *fakeStore) GetRequest(_ context.Context, id string) (*models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, fmt.Errorf("request %s: %w", id, services.ErrNotFound)
	}
	return &r, nil
}

func (s *fakeStore) UpdateRequestStatus(_ context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return fmt.Errorf("request %s: %w", id, services.ErrNotFound)
	}
	r.Status = status
	s.requests[id] = r
	return nil
}

func (s *fakeStore) ListRequestsByStatus(_ context.Context, statuses ...string) ([]models.Request, error) {
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

func (s *fakeStore) InsertMatch(_ context.Context, match *models.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.matches {
		if m.RequestID == match.RequestID && m.IsActive() {
			return services.ErrDuplicateActiveMatch
		}
	}
	s.matches[match.ID] = *match
	return nil
}

func (s *fakeStore) GetMatch(_ context.Context, id string) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return nil, fmt.Errorf("match %s: %w", id, services.ErrNotFound)
	}
	return &m, nil
}

func (s *fakeStore) GetActiveMatch(_ context.Context, requestID string) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.matches {
		if m.RequestID == requestID && m.IsActive() {
			match := m
			return &match, nil
		}
	}
	return nil, fmt.Errorf("active match for request %s: %w", requestID, services.ErrNotFound)
}

func (s *fakeStore) UpdateMatchStatus(_ context.Context, id, status string) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return nil, fmt.Errorf("match %s: %w", id, services.ErrNotFound)
	}
	if m.Status != models.MatchStatusNotified {
		return nil, fmt.Errorf("match %s: %w", id, services.ErrAlreadyResolved)
	}
	m.Status = status
	m.UpdatedAt = models.FormatTime(time.Now())
	s.matches[id] = m
	return &m, nil
}

func (s *fakeStore) ListMatchesByRequest(_ context.Context, requestID string) ([]models.Match, error) {
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

func (s *fakeStore) ListMatchesForUser(_ context.Context, userID string) ([]models.Match, error) {
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

func (s *fakeStore) ListRecentMatchesForUser(_ context.Context, userID string, since time.Time) ([]models.Match, error) {
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

// noopNotifier satisfies services.Notifier without side effects.
type noopNotifier struct{}

func (noopNotifier) SendMatchNotification(context.Context, *models.Match) services.NotificationResult {
	return services.NotificationResult{Success: true}
}

func (noopNotifier) SendConnectionEmail(context.Context, *models.Match) services.NotificationResult {
	return services.NotificationResult{Success: true}
}

// testEnv wires the full handler stack against the fake store, with side
// effects running inline and sleeps stubbed out.
type testEnv struct {
	store     *fakeStore
	router    *mux.Router
	lifecycle *services.MatchLifecycleService
	rematch   *services.RematchService
}

type envOptions struct {
	submitLimit int
	retryLimit  int
	adminID     string
}

func newTestEnv(opts envOptions) *testEnv {
	store := newFakeStore()
	log := zap.NewNop()
	inline := func(fn func()) { fn() }

	selector := &services.CandidateSelector{
		Store:          store,
		Scorer:         services.NewScorer(services.DefaultScoreConfig()),
		ScoreThreshold: 10,
		Logger:         log,
	}
	lifecycle := &services.MatchLifecycleService{
		Store:    store,
		Notifier: noopNotifier{},
		Expiry:   7 * 24 * time.Hour,
		Logger:   log,
		Dispatch: inline,
	}
	rematch := &services.RematchService{
		Store:     store,
		Selector:  selector,
		Lifecycle: lifecycle,
		Logger:    log,
		Dispatch:  inline,
		Sleep:     func(time.Duration) {},
	}
	lifecycle.OnDeclined = rematch.DeferRetry

	isAdmin := func(userID string) bool { return opts.adminID != "" && userID == opts.adminID }

	r := mux.NewRouter()
	routes.RegisterRequestRoutes(r, &controllers.RequestController{
		Rematch:   rematch,
		Lifecycle: lifecycle,
		Store:     store,
		Limiter:   services.NewRateLimiter(opts.submitLimit),
		IsAdmin:   isAdmin,
		Logger:    log,
	})
	routes.RegisterMatchRoutes(r, &controllers.MatchController{
		Lifecycle: lifecycle,
		Store:     store,
		Logger:    log,
	})
	routes.RegisterRetryRoutes(r, &controllers.RetryController{
		Rematch: rematch,
		Store:   store,
		Limiter: services.NewRateLimiter(opts.retryLimit),
		IsAdmin: isAdmin,
		Logger:  log,
	})

	return &testEnv{store: store, router: r, lifecycle: lifecycle, rematch: rematch}
}
