package session

import (
	"testing"
	"time"

	"github.com/travelplanner/tripauth/jwt"
)

// tokenExpiringAt issues a signed token whose exp claim equals exp.
func tokenExpiringAt(t *testing.T, email string, exp time.Time) string {
	t.Helper()
	mgr, err := jwt.NewManager(jwt.Config{Secret: []byte("session-test"), TTL: time.Hour})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	token, err := mgr.Issue(email, exp.Add(-time.Hour))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return token
}
