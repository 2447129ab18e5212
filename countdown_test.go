package tripauth

import (
	"context"
	"testing"
	"time"
)

func TestStartCountdownTicksUntilStopped(t *testing.T) {
	f := awaitingCodeFlow(t, newFakeGateway(), &fakeSessions{}, OTPConfig{})

	stop := StartCountdown(context.Background(), f, time.Millisecond)
	deadline := time.Now().Add(2 * time.Second)
	for f.ExpiresIn() > 590 {
		if time.Now().After(deadline) {
			stop()
			t.Fatalf("countdown did not advance, still %d", f.ExpiresIn())
		}
		time.Sleep(time.Millisecond)
	}
	stop()
	stop()

	frozen := f.ExpiresIn()
	time.Sleep(10 * time.Millisecond)
	if f.ExpiresIn() != frozen {
		t.Fatalf("countdown advanced after stop: %d -> %d", frozen, f.ExpiresIn())
	}
}

func TestStartCountdownStopsWithContext(t *testing.T) {
	f := awaitingCodeFlow(t, newFakeGateway(), &fakeSessions{}, OTPConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	stop := StartCountdown(ctx, f, time.Hour)
	cancel()

	done := make(chan struct{})
	go func() {
		stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stop did not return after context cancel")
	}
	if f.ExpiresIn() != 600 {
		t.Fatalf("unexpected tick, got %d", f.ExpiresIn())
	}
}
