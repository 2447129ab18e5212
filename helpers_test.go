package tripauth

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/travelplanner/tripauth/api"
	"github.com/travelplanner/tripauth/jwt"
	"github.com/travelplanner/tripauth/session"
)

const testEmail = "traveler@example.com"

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func issueToken(t *testing.T, email string, exp time.Time) string {
	t.Helper()
	m, err := jwt.NewManager(jwt.Config{Secret: []byte("test-secret-test-secret-32-bytes"), TTL: time.Hour})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	tok, err := m.Issue(email, exp.Add(-time.Hour))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return tok
}

// fakeGateway records calls. With gate set, every call announces itself on entered
// and blocks until gate yields.
type fakeGateway struct {
	mu         sync.Mutex
	requestErr error
	rejected   bool
	verifyErr  error
	token      string
	requests   []string
	codes      []string
	verifiedAs []string

	gate    chan struct{}
	entered chan struct{}
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{token: "issued-token"}
}

func (g *fakeGateway) hold() {
	g.mu.Lock()
	g.gate = make(chan struct{})
	g.entered = make(chan struct{}, 4)
	g.mu.Unlock()
}

func (g *fakeGateway) release() {
	g.mu.Lock()
	gate := g.gate
	g.gate = nil
	g.mu.Unlock()
	if gate != nil {
		close(gate)
	}
}

func (g *fakeGateway) wait(ctx context.Context) error {
	g.mu.Lock()
	gate, entered := g.gate, g.entered
	g.mu.Unlock()
	if gate == nil {
		return nil
	}
	entered <- struct{}{}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *fakeGateway) RequestOTP(ctx context.Context, email string) (*api.RequestOTPResponse, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, email)
	if g.requestErr != nil {
		return nil, g.requestErr
	}
	ok := !g.rejected
	return &api.RequestOTPResponse{Success: &ok, Message: "sent"}, nil
}

func (g *fakeGateway) VerifyOTP(ctx context.Context, email, otp string) (*api.VerifyOTPResponse, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.codes = append(g.codes, otp)
	g.verifiedAs = append(g.verifiedAs, email)
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	return &api.VerifyOTPResponse{Token: g.token, Email: email}, nil
}

func (g *fakeGateway) requestCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

func (g *fakeGateway) requestedEmails() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.requests...)
}

func (g *fakeGateway) verifiedEmails() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.verifiedAs...)
}

func (g *fakeGateway) verifiedCodes() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.codes...)
}

// fakeSessions records saved sessions. With gate set, a save announces itself on
// entered and blocks until gate is closed.
type fakeSessions struct {
	mu    sync.Mutex
	err   error
	saved []session.Session

	gate    chan struct{}
	entered chan struct{}
}

func (s *fakeSessions) hold() {
	s.mu.Lock()
	s.gate = make(chan struct{})
	s.entered = make(chan struct{}, 1)
	s.mu.Unlock()
}

func (s *fakeSessions) release() {
	s.mu.Lock()
	gate := s.gate
	s.gate = nil
	s.mu.Unlock()
	if gate != nil {
		close(gate)
	}
}

func (s *fakeSessions) completeLogin(_ context.Context, email, token string) error {
	s.mu.Lock()
	gate, entered := s.gate, s.entered
	s.mu.Unlock()
	if gate != nil {
		entered <- struct{}{}
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, session.Session{Email: email, Token: token})
	return nil
}

func (s *fakeSessions) savedSessions() []session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]session.Session(nil), s.saved...)
}

func (s *fakeSessions) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

func newTestFlow(gw *fakeGateway, sessions *fakeSessions, cfg OTPConfig) *LoginFlow {
	if cfg.ChallengeTTL == 0 {
		cfg.ChallengeTTL = DefaultConfig().OTP.ChallengeTTL
	}
	return newLoginFlow(gw, sessions, cfg, nil)
}

func awaitingCodeFlow(t *testing.T, gw *fakeGateway, sessions *fakeSessions, cfg OTPConfig) *LoginFlow {
	t.Helper()
	f := newTestFlow(gw, sessions, cfg)
	if err := f.SubmitEmail(context.Background(), testEmail); err != nil {
		t.Fatalf("SubmitEmail: %v", err)
	}
	return f
}

func fillCode(t *testing.T, f *LoginFlow, code string) {
	t.Helper()
	for i := 0; i < len(code); i++ {
		f.SetDigit(i, code[i:i+1])
	}
	if got := f.Code(); got != code {
		t.Fatalf("expected code %q, got %q", code, got)
	}
}

var errBackendDown = errors.New("backend down")
