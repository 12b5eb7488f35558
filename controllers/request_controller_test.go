package controllers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"synapse_server/models"
)

func postJSON(t *testing.T, env *testEnv, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestSubmitRequestReturnsMatch(t *testing.T) {
	env := newTestEnv(envOptions{submitLimit: 10, retryLimit: 10})
	env.store.addProfile(models.Profile{ID: "u1", Faculty: "Science", Program: "CS", ProfileCompleted: true})
	env.store.addProfile(models.Profile{
		ID: "u2", Faculty: "Arts", Program: "Psych", ProfileCompleted: true,
		KnowledgeTags: []string{"psychology"},
	})

	rec := postJSON(t, env, "/api/requests", `{"userId":"u1","requestText":"curious about psychology"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	resp := decodeJSON(t, rec)
	if resp["status"] != models.RequestStatusMatched {
		t.Fatalf("expected matched status, got %v", resp["status"])
	}
	if resp["matchId"] == nil || resp["matchScore"] == nil {
		t.Fatalf("expected matchId and matchScore in response, got %v", resp)
	}
}

func TestSubmitRequestNoCandidates(t *testing.T) {
	env := newTestEnv(envOptions{submitLimit: 10, retryLimit: 10})
	env.store.addProfile(models.Profile{ID: "u1", Faculty: "Science", Program: "CS", ProfileCompleted: true})

	rec := postJSON(t, env, "/api/requests", `{"userId":"u1","requestText":"anything"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	resp := decodeJSON(t, rec)
	if resp["status"] != models.RequestStatusNoMatchFound {
		t.Fatalf("expected no_match_found, got %v", resp["status"])
	}
	if _, present := resp["matchId"]; present {
		t.Fatalf("expected no matchId, got %v", resp)
	}
}

func TestSubmitRequestValidation(t *testing.T) {
	env := newTestEnv(envOptions{submitLimit: 10, retryLimit: 10})

	for _, body := range []string{`not json`, `{}`, `{"userId":"u1"}`, `{"requestText":"x"}`} {
		rec := postJSON(t, env, "/api/requests", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestSubmitRequestUnknownProfile(t *testing.T) {
	env := newTestEnv(envOptions{submitLimit: 10, retryLimit: 10})

	rec := postJSON(t, env, "/api/requests", `{"userId":"ghost","requestText":"anything"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestSubmitRequestRateLimited(t *testing.T) {
	env := newTestEnv(envOptions{submitLimit: 1, retryLimit: 10})
	env.store.addProfile(models.Profile{ID: "u1", Faculty: "Science", Program: "CS", ProfileCompleted: true})

	if rec := postJSON(t, env, "/api/requests", `{"userId":"u1","requestText":"first"}`); rec.Code != http.StatusCreated {
		t.Fatalf("expected first request to pass, got %d", rec.Code)
	}
	if rec := postJSON(t, env, "/api/requests", `{"userId":"u1","requestText":"second"}`); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
}

func TestFixRequestStatusRepairsDrift(t *testing.T) {
	env := newTestEnv(envOptions{submitLimit: 10, retryLimit: 10})
	env.store.addRequest(models.Request{
		ID: "req-1", RequesterID: "u1",
		Status: models.RequestStatusMatched, CreatedAt: models.FormatTime(time.Now()),
	})
	// The only match was declined; "matched" is stale.
	env.store.addMatch(models.Match{
		ID: "m1", RequestID: "req-1", MatchedUserID: "u2",
		Status: models.MatchStatusDeclined, CreatedAt: models.FormatTime(time.Now()),
	})

	rec := postJSON(t, env, "/api/requests/req-1/fix-status", `{"userId":"u1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	resp := decodeJSON(t, rec)
	if resp["status"] != models.RequestStatusPending || resp["fixed"] != true {
		t.Fatalf("expected pending/fixed, got %v", resp)
	}
	if got := env.store.requestStatus("req-1"); got != models.RequestStatusPending {
		t.Fatalf("expected persisted pending, got %s", got)
	}
}

func TestFixRequestStatusOwnerOnly(t *testing.T) {
	env := newTestEnv(envOptions{submitLimit: 10, retryLimit: 10, adminID: "admin"})
	env.store.addRequest(models.Request{
		ID: "req-1", RequesterID: "u1",
		Status: models.RequestStatusPending, CreatedAt: models.FormatTime(time.Now()),
	})

	if rec := postJSON(t, env, "/api/requests/req-1/fix-status", `{"userId":"stranger"}`); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for stranger, got %d", rec.Code)
	}
	if rec := postJSON(t, env, "/api/requests/req-1/fix-status", `{"userId":"admin"}`); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", rec.Code)
	}
}

func TestFixRequestStatusUnknownRequest(t *testing.T) {
	env := newTestEnv(envOptions{submitLimit: 10, retryLimit: 10})

	rec := postJSON(t, env, "/api/requests/missing/fix-status", `{"userId":"u1"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
