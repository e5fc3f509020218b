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

	"github.com/MrEthical07/eduAuth/internal"
	"github.com/MrEthical07/eduAuth/internal/challenge"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type subjectState struct {
	id   string
	code string
}

func main() {
	var (
		subjects    = flag.Int("subjects", 20000, "number of pending codes to issue")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "operations in the status phase")
		racers      = flag.Int("racers", 4, "concurrent verifiers per code in the race phase")
		backend     = flag.String("backend", "redis", "challenge store: redis or memory")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "ech-load", "redis key prefix")
	)
	flag.Parse()

	if *subjects <= 0 || *concurrency <= 0 || *ops <= 0 || *racers <= 0 {
		fmt.Fprintln(os.Stderr, "subjects, concurrency, ops and racers must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	var (
		store   challenge.Store
		cleanup = func() {}
	)
	switch *backend {
	case "memory":
		store = challenge.NewMemoryStore()
		fmt.Println("using in-process memory store")
	case "redis":
		client, stop, err := openRedis(*redisAddr)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cleanup = stop
		store = challenge.NewRedisStore(client, *prefix, time.Hour)
	default:
		fmt.Fprintf(os.Stderr, "unknown backend %q\n", *backend)
		os.Exit(2)
	}
	defer cleanup()

	registry := challenge.NewRegistry(store, "load", challenge.Policy{
		TTL:         10 * time.Minute,
		MaxAttempts: 3,
	})

	states := make([]subjectState, *subjects)
	for i := range states {
		code, err := internal.NewCode()
		if err != nil {
			fmt.Fprintf(os.Stderr, "code generation failed: %v\n", err)
			os.Exit(1)
		}
		states[i] = subjectState{id: fmt.Sprintf("user-%d", i), code: code}
	}

	issueStats := runIssuePhase(ctx, registry, states, *concurrency)
	statusStats := runStatusPhase(ctx, registry, states, *ops, *concurrency)
	raceStats, doubles := runVerifyRace(ctx, registry, states, *racers, *concurrency)

	fmt.Println("---- results ----")
	printStats("issue", issueStats)
	printStats("status", statusStats)
	printStats("verify-race", raceStats)
	if doubles > 0 {
		fmt.Printf("ERROR: %d codes were accepted more than once\n", doubles)
		os.Exit(1)
	}
	fmt.Println("every code was accepted exactly once")
}

func openRedis(addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to start miniredis: %w", err)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		fmt.Printf("using miniredis at %s\n", mr.Addr())
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	fmt.Printf("using redis at %s\n", addr)
	return client, func() { _ = client.Close() }, nil
}

func runIssuePhase(ctx context.Context, registry *challenge.Registry, states []subjectState, concurrency int) phaseStats {
	return runPhase(len(states), concurrency, func(i int, _ *rand.Rand) error {
		s := states[i]
		_, err := registry.Issue(ctx, s.id, s.id+"@example.com", s.code, time.Now())
		return err
	})
}

func runStatusPhase(ctx context.Context, registry *challenge.Registry, states []subjectState, ops, concurrency int) phaseStats {
	return runPhase(ops, concurrency, func(_ int, r *rand.Rand) error {
		s := states[r.Intn(len(states))]
		_, ok, err := registry.Status(ctx, s.id, time.Now())
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("pending code missing")
		}
		return nil
	})
}

// runVerifyRace submits the correct code for every subject from several
// goroutines at once. Exactly one of them may succeed.
func runVerifyRace(ctx context.Context, registry *challenge.Registry, states []subjectState, racers, concurrency int) (phaseStats, int64) {
	accepted := make([]int32, len(states))
	stats := runPhase(len(states)*racers, concurrency, func(i int, _ *rand.Rand) error {
		idx := i / racers
		s := states[idx]
		_, err := registry.Verify(ctx, s.id, s.code, time.Now())
		if err == nil {
			atomic.AddInt32(&accepted[idx], 1)
			return nil
		}
		if errors.Is(err, challenge.ErrNotFound) {
			return nil
		}
		return err
	})

	var doubles int64
	for _, n := range accepted {
		if n > 1 {
			doubles++
		}
	}
	return stats, doubles
}

func runPhase(ops, concurrency int, op func(i int, r *rand.Rand) error) phaseStats {
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
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(i, r)
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
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
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
