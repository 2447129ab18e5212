package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/travelplanner/tripauth/jwt"
)

func newManager(t *testing.T) *jwt.Manager {
	t.Helper()
	m, err := jwt.NewManager(jwt.Config{Secret: []byte("guard-secret"), TTL: 30 * time.Minute})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func echoEmail() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(EmailFromContext(r.Context())))
	})
}

func TestRequireBearer(t *testing.T) {
	m := newManager(t)
	valid, err := m.Issue("traveler@example.com", time.Now())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	expired, err := m.Issue("traveler@example.com", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	h := RequireBearer(m)(echoEmail())

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"missing", "", http.StatusUnauthorized, "Authorization header missing"},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "Invalid authorization header format"},
		{"empty token", "Bearer ", http.StatusUnauthorized, "Invalid authorization header format"},
		{"garbage", "Bearer not-a-jwt", http.StatusUnauthorized, "Invalid authentication credentials"},
		{"expired", "Bearer " + expired, http.StatusUnauthorized, "Invalid authentication credentials"},
		{"valid", "Bearer " + valid, http.StatusOK, "traveler@example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/generate-itinerary", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Fatalf("body %q does not contain %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestRequireBearerNilVerifier(t *testing.T) {
	rec := httptest.NewRecorder()
	RequireBearer(nil)(echoEmail()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestOptionalBearer(t *testing.T) {
	m := newManager(t)
	valid, _ := m.Issue("traveler@example.com", time.Now())
	h := OptionalBearer(m)(echoEmail())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "" {
		t.Fatalf("anonymous request: %d %q", rec.Code, rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+valid)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Body.String() != "traveler@example.com" {
		t.Fatalf("expected email, got %q", rec.Body.String())
	}
}
