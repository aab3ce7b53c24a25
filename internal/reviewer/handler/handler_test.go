package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"estateproof/internal/jwtauth"
	"estateproof/internal/reviewer/service"
	"estateproof/internal/reviewer/store"
)

func TestLoginViaHandler(t *testing.T) {
	router := newReviewerRouter(t)

	body, _ := json.Marshal(map[string]string{
		"email":   "maya.iyer@example.com",
		"api_key": "valid-api-key",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reviewers/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 logging in, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode login response: %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatalf("expected access token in response")
	}
	if resp.TokenType != "Bearer" {
		t.Fatalf("expected Bearer token type, got %q", resp.TokenType)
	}
	if resp.Name != "Maya Iyer" {
		t.Fatalf("expected derived reviewer name, got %q", resp.Name)
	}
	if !resp.ExpiresAt.After(time.Now()) {
		t.Fatalf("expected future expiry, got %v", resp.ExpiresAt)
	}
	if resp.ReviewerID != store.DeterministicID("maya.iyer@example.com").String() {
		t.Fatalf("expected deterministic reviewer id, got %q", resp.ReviewerID)
	}
}

func TestLoginWrongKeyIsUnauthorized(t *testing.T) {
	router := newReviewerRouter(t)

	body, _ := json.Marshal(map[string]string{
		"email":   "maya.iyer@example.com",
		"api_key": "wrong-key",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reviewers/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong key, got %d", rec.Code)
	}

	var errResp struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&errResp); err != nil {
		t.Fatalf("failed to decode error payload: %v", err)
	}
	if errResp.Error != "unauthorized" {
		t.Fatalf("expected unauthorized error code, got %q", errResp.Error)
	}
}

func TestLoginMissingFields(t *testing.T) {
	router := newReviewerRouter(t)

	body, _ := json.Marshal(map[string]string{"email": "maya.iyer@example.com"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reviewers/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 without api_key, got %d", rec.Code)
	}
}

func TestLoginMalformedBody(t *testing.T) {
	router := newReviewerRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reviewers/login", bytes.NewReader([]byte("{broken")))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
}

func newReviewerRouter(t *testing.T) http.Handler {
	t.Helper()
	reviewers := store.NewInMemory()
	if _, err := store.Seed(reviewers, []store.SeedEntry{
		{Email: "maya.iyer@example.com", APIKey: "valid-api-key"},
	}); err != nil {
		t.Fatalf("failed to seed reviewers: %v", err)
	}

	jwtService := jwtauth.NewJWTService("test-signing-key", "estateproof", "reviewers", time.Hour)
	svc, err := service.New(reviewers, jwtService)
	if err != nil {
		t.Fatalf("failed to build auth service: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	h := New(svc, logger, nil)
	r := chi.NewRouter()
	h.Register(r)
	return r
}
