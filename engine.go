package tripauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/travelplanner/tripauth/api"
	"github.com/travelplanner/tripauth/geocode"
	"github.com/travelplanner/tripauth/internal/events"
	"github.com/travelplanner/tripauth/session"
	"go.uber.org/zap"
)

// Engine owns the session slot, the API client and the session event fan-out.
//
// Engine is safe for concurrent use. Build one with New().Build() and call
// Bootstrap before rendering anything that depends on the session.
type Engine struct {
	config   Config
	store    *session.Store
	api      *api.Client
	geocoder *geocode.Client
	redis    redis.UniversalClient
	events   *events.Dispatcher
	metrics  *Metrics
	logger   *zap.Logger
	now      func() time.Time

	closers   []func() error
	closeOnce sync.Once
}

// Close flushes pending session events and releases resources the engine opened.
func (e *Engine) Close() error {
	if e == nil {
		return nil
	}
	var errs []error
	e.closeOnce.Do(func() {
		e.events.Close()
		for _, c := range e.closers {
			if err := c(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}

// EventsDropped returns how many session events were dropped because the listener fell behind.
func (e *Engine) EventsDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.events.Dropped()
}

// MetricsSnapshot returns the current counters. It is empty when metrics are disabled.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return (*Metrics)(nil).Snapshot()
	}
	return e.metrics.Snapshot()
}

// Bootstrap restores the persisted session if its token has not expired. It makes
// no network calls and may be called again at any time.
func (e *Engine) Bootstrap(ctx context.Context) (session.BootstrapResult, error) {
	if e == nil {
		return session.BootstrapResult{}, ErrEngineNotReady
	}
	result, err := e.store.Bootstrap(ctx, e.now())
	if err != nil {
		e.metrics.Inc(MetricStorageFailure)
		return result, err
	}

	switch result.Outcome {
	case session.OutcomeRestored:
		e.metrics.Inc(MetricSessionRestored)
		e.emit(ctx, events.KindRestored, result.Session.Email, "")
	case session.OutcomeExpired, session.OutcomeMalformed:
		e.metrics.Inc(MetricSessionDiscarded)
		e.emit(ctx, events.KindDiscarded, "", result.Outcome.String())
	}
	return result, nil
}

// Session returns the in-memory session.
func (e *Engine) Session() session.Session {
	if e == nil {
		return session.Session{}
	}
	return e.store.Current()
}

// IsAuthenticated reports whether a session is held.
func (e *Engine) IsAuthenticated() bool {
	return e != nil && e.store.Authenticated()
}

// NewLogin starts a login flow at PhaseAwaitingEmail.
func (e *Engine) NewLogin() *LoginFlow {
	if e == nil {
		return nil
	}
	flow := newLoginFlow(e.api, e, e.config.OTP, e.logger)
	flow.metrics = e.metrics
	return flow
}

func (e *Engine) completeLogin(ctx context.Context, email, token string) error {
	if err := e.store.Save(ctx, email, token); err != nil {
		e.metrics.Inc(MetricStorageFailure)
		return err
	}
	e.logger.Info("signed in", zap.String("email", email))
	e.emit(ctx, events.KindSignedIn, email, "")
	return nil
}

// Logout clears the persisted and in-memory session. The in-memory session is
// cleared even when storage fails.
func (e *Engine) Logout(ctx context.Context) error {
	if e == nil {
		return ErrEngineNotReady
	}
	email := e.store.CurrentEmail()
	err := e.store.Clear(ctx)
	if err != nil {
		e.metrics.Inc(MetricStorageFailure)
	}
	if email != "" {
		e.metrics.Inc(MetricLogout)
		e.logger.Info("signed out", zap.String("email", email))
		e.emit(ctx, events.KindSignedOut, email, "")
	}
	return err
}

// GenerateItinerary asks the backend for a plan, sending the bearer token when a
// session is held. A 401 is reported as ErrNotAuthenticated.
func (e *Engine) GenerateItinerary(ctx context.Context, req *api.TripRequest) (*api.Itinerary, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	start := time.Now()
	it, err := e.api.GenerateItinerary(ctx, req)
	e.metrics.since(MetricBackendLatency, start)
	if err == nil {
		e.metrics.Inc(MetricItineraryGenerated)
	}
	if api.IsStatus(err, http.StatusUnauthorized) {
		e.metrics.Inc(MetricItineraryUnauthorized)
		e.logger.Warn("itinerary request rejected", zap.String("email", e.store.CurrentEmail()), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}
	return it, err
}

// Health checks that the backend is reachable.
func (e *Engine) Health(ctx context.Context) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return e.api.Health(ctx)
}

// API exposes the gateway client for calls the engine does not wrap.
func (e *Engine) API() *api.Client {
	if e == nil {
		return nil
	}
	return e.api
}

// Geocoder returns the location resolver, or nil when no geocoder URL is configured.
func (e *Engine) Geocoder() *geocode.Client {
	if e == nil {
		return nil
	}
	return e.geocoder
}

func (e *Engine) emit(ctx context.Context, kind events.Kind, email, reason string) {
	e.events.Emit(ctx, events.Event{
		Timestamp: e.now().UTC(),
		Kind:      kind,
		Email:     email,
		Reason:    reason,
	})
}
