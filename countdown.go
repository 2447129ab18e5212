package tripauth

import (
	"context"
	"sync"
	"time"
)

// StartCountdown calls flow.Tick every interval (one second when interval <= 0)
// until ctx ends or the returned stop is called. stop waits for the ticker goroutine
// to exit and may be called more than once.
func StartCountdown(ctx context.Context, flow *LoginFlow, interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = time.Second
	}
	ctx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				flow.Tick()
			}
		}
	}()

	return func() {
		cancel()
		wg.Wait()
	}
}
