// Command tripauth-loadtest measures the development backend's one-time code
// store under concurrent issue and verify traffic.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/travelplanner/tripauth/internal/otpstore"
)

type challenge struct {
	email string
	code  string
	mu    sync.Mutex
}

func main() {
	var (
		emails      = flag.Int("emails", 20000, "number of addresses to issue codes for")
		concurrency = flag.Int("concurrency", 128, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "operations per phase (issue + verify)")
		wrongRatio  = flag.Float64("wrong", 0.2, "fraction of verify calls that send a wrong code")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "tripauth:loadtest", "code key prefix")
	)
	flag.Parse()

	if *emails <= 0 || *concurrency <= 0 || *ops <= 0 || *wrongRatio < 0 || *wrongRatio > 1 {
		fmt.Fprintln(os.Stderr, "emails, concurrency and ops must be > 0 and wrong must be within [0,1]")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	store := otpstore.New(client, *prefix)
	states := make([]challenge, *emails)
	for i := range states {
		states[i].email = fmt.Sprintf("load-%d@example.com", i)
	}

	issueStats := runPhase(*ops, *concurrency, 7919, func(r *rand.Rand, _ int) error {
		c := &states[r.Intn(len(states))]
		code, err := otpstore.NewCode(6)
		if err != nil {
			return err
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if err := store.Issue(ctx, c.email, code, 10*time.Minute); err != nil {
			return err
		}
		c.code = code
		return nil
	})

	var mismatches, consumed int64
	verifyStats := runPhase(*ops, *concurrency, 6151, func(r *rand.Rand, _ int) error {
		c := &states[r.Intn(len(states))]
		c.mu.Lock()
		defer c.mu.Unlock()

		code := c.code
		if code == "" || r.Float64() < *wrongRatio {
			code = "000000"
		}
		_, err := store.Consume(ctx, c.email, code, 5)
		switch {
		case err == nil:
			atomic.AddInt64(&consumed, 1)
			c.code = ""
			return nil
		case errors.Is(err, otpstore.ErrMismatch), errors.Is(err, otpstore.ErrNotFound), errors.Is(err, otpstore.ErrAttemptsExceeded):
			atomic.AddInt64(&mismatches, 1)
			return nil
		default:
			return err
		}
	})

	fmt.Println("---- results ----")
	printStats("issue", issueStats)
	printStats("verify", verifyStats)
	fmt.Printf("verify outcomes: consumed=%d rejected=%d\n", consumed, mismatches)
}

// runPhase runs op ops times across concurrency workers. Only errors returned by
// op count as failures.
func runPhase(ops, concurrency int, seed int64, op func(r *rand.Rand, i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r, i)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
