package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBootstrapEmptyStorage(t *testing.T) {
	store := NewStore(NewMemoryBackend(), nil)

	res, err := store.Bootstrap(context.Background(), time.Now())
	require.NoError(t, err)
	require.Equal(t, OutcomeEmpty, res.Outcome)
	require.True(t, res.Session.IsZero())
}

func TestBootstrapPartialStorageLeavesSessionEmpty(t *testing.T) {
	backend := NewMemoryBackend()
	backend.Seed(Record{Token: tokenExpiringAt(t, "a@b.c", time.Now().Add(time.Hour))})
	store := NewStore(backend, nil)

	res, err := store.Bootstrap(context.Background(), time.Now())
	require.NoError(t, err)
	require.Equal(t, OutcomeEmpty, res.Outcome)
	require.False(t, store.Authenticated())
}

func TestBootstrapExpiredOneSecondAgoClearsStorage(t *testing.T) {
	now := time.Now()
	backend := NewMemoryBackend()
	backend.Seed(Record{
		Token: tokenExpiringAt(t, "alice@example.com", now.Add(-time.Second)),
		Email: "alice@example.com",
	})
	store := NewStore(backend, nil)

	res, err := store.Bootstrap(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, OutcomeExpired, res.Outcome)
	require.True(t, store.Current().IsZero())
	require.Equal(t, Record{}, backend.Snapshot())
}

func TestBootstrapExpiryBoundaryIsExclusive(t *testing.T) {
	now := time.Unix(1_800_000_000, 0)
	backend := NewMemoryBackend()
	backend.Seed(Record{Token: tokenExpiringAt(t, "a@b.c", now), Email: "a@b.c"})
	store := NewStore(backend, nil)

	res, err := store.Bootstrap(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, OutcomeExpired, res.Outcome)
}

func TestBootstrapValidForAnHourRestores(t *testing.T) {
	now := time.Now()
	token := tokenExpiringAt(t, "alice@example.com", now.Add(time.Hour))
	backend := NewMemoryBackend()
	backend.Seed(Record{Token: token, Email: "alice@example.com"})
	store := NewStore(backend, nil)

	res, err := store.Bootstrap(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, OutcomeRestored, res.Outcome)
	require.Equal(t, Session{Email: "alice@example.com", Token: token}, store.Current())
	require.Equal(t, now.Add(time.Hour).Unix(), res.ExpiresAt.Unix())
	require.Equal(t, Record{Token: token, Email: "alice@example.com"}, backend.Snapshot())
}

func TestBootstrapMalformedTokenClearsStorage(t *testing.T) {
	backend := NewMemoryBackend()
	backend.Seed(Record{Token: "definitely-not-a-jwt", Email: "alice@example.com"})
	store := NewStore(backend, nil)

	res, err := store.Bootstrap(context.Background(), time.Now())
	require.NoError(t, err)
	require.Equal(t, OutcomeMalformed, res.Outcome)
	require.True(t, store.Current().IsZero())
	require.Equal(t, Record{}, backend.Snapshot())
}

func TestBootstrapIsIdempotent(t *testing.T) {
	now := time.Now()
	token := tokenExpiringAt(t, "alice@example.com", now.Add(time.Hour))
	backend := NewMemoryBackend()
	backend.Seed(Record{Token: token, Email: "alice@example.com"})
	store := NewStore(backend, nil)

	for i := 0; i < 3; i++ {
		res, err := store.Bootstrap(context.Background(), now)
		require.NoError(t, err)
		require.Equal(t, OutcomeRestored, res.Outcome)
	}
	require.Equal(t, token, store.CurrentToken())
}

func TestSaveThenBootstrapAfterRestart(t *testing.T) {
	now := time.Now()
	backend := NewMemoryBackend()
	token := tokenExpiringAt(t, "alice@example.com", now.Add(30*time.Minute))

	first := NewStore(backend, nil)
	require.NoError(t, first.Save(context.Background(), "alice@example.com", token))

	restarted := NewStore(backend, nil)
	require.True(t, restarted.Current().IsZero())

	res, err := restarted.Bootstrap(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, OutcomeRestored, res.Outcome)
	require.Equal(t, first.Current(), restarted.Current())
}

func TestBootstrapLoadFailure(t *testing.T) {
	backend := NewMemoryBackend()
	backend.FailWith(errors.New("permission denied"), true, false, false)
	store := NewStore(backend, nil)

	_, err := store.Bootstrap(context.Background(), time.Now())
	require.ErrorIs(t, err, ErrStorageUnavailable)
	require.False(t, store.Authenticated())
}

func TestOutcomeString(t *testing.T) {
	require.Equal(t, "restored", OutcomeRestored.String())
	require.Equal(t, "malformed", OutcomeMalformed.String())
	require.Equal(t, "unknown", Outcome(42).String())
}
