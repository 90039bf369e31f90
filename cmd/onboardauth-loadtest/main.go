// Command onboardauth-loadtest measures session resolution and login
// throughput against an in-process engine.
package main

import (
	"context"
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

	onboardAuth "github.com/MrEthical07/onboardAuth"
	"github.com/MrEthical07/onboardAuth/internal/store"
)

const seedPassword = "Loadtest-Harbor-Lantern-2291"

func main() {
	var (
		accounts    = flag.Int("accounts", 200, "number of accounts to seed, each with one session")
		concurrency = flag.Int("concurrency", 32, "number of concurrent workers")
		resolveOps  = flag.Int("resolve-ops", 100000, "session resolutions to run")
		loginOps    = flag.Int("login-ops", 500, "logins to run; each pays a full argon2id verify")
		driver      = flag.String("driver", store.DriverSQLite, "database driver")
		dsn         = flag.String("dsn", "file:loadtest.db?mode=memory&cache=shared", "database dsn")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *accounts <= 0 || *concurrency <= 0 || *resolveOps <= 0 || *loginOps < 0 {
		fmt.Fprintln(os.Stderr, "accounts, concurrency and resolve-ops must be > 0")
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

	db, err := store.Open(ctx, *driver, *dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := store.Migrate(ctx, db); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}

	cfg := onboardAuth.DefaultConfig()
	cfg.Audit.Enabled = false
	cfg.RateLimit.MaxLoginAttempts = *loginOps + *accounts + 1
	engine, err := onboardAuth.New().WithConfig(cfg).WithDB(db).WithRedis(client).Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	emails := make([]string, *accounts)
	sessions := make([]string, *accounts)
	fmt.Printf("seeding %d accounts...\n", *accounts)
	startSeed := time.Now()
	for i := range emails {
		emails[i] = fmt.Sprintf("loadtest-%d-%d@portal.test", startSeed.Unix(), i)
		if _, err := engine.CreateAccount(ctx, onboardAuth.CreateAccountRequest{
			Email:     emails[i],
			Password:  seedPassword,
			Role:      onboardAuth.RoleEmployee,
			FirstName: "Load",
			LastName:  "Test",
		}); err != nil {
			fmt.Fprintf(os.Stderr, "create account failed: %v\n", err)
			os.Exit(1)
		}
		res, err := engine.Login(ctx, onboardAuth.LoginRequest{Email: emails[i], Password: seedPassword})
		if err != nil || res.Status != onboardAuth.LoginSuccess {
			fmt.Fprintf(os.Stderr, "seed login failed: %v\n", err)
			os.Exit(1)
		}
		sessions[i] = res.SessionID
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	resolveStats := runPhase(*resolveOps, *concurrency, func(r *rand.Rand) error {
		_, err := engine.ResolveSession(ctx, sessions[r.Intn(len(sessions))])
		return err
	})
	loginStats := runPhase(*loginOps, *concurrency, func(r *rand.Rand) error {
		_, err := engine.Login(ctx, onboardAuth.LoginRequest{
			Email:    emails[r.Intn(len(emails))],
			Password: seedPassword,
		})
		return err
	})

	fmt.Println("---- results ----")
	printStats("resolve", resolveStats)
	printStats("login", loginStats)
}

// runPhase spreads ops calls of op over concurrency workers.
func runPhase(ops, concurrency int, op func(r *rand.Rand) error) phaseStats {
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
				err := op(r)
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
