// Command authkit-loadtest measures client throughput against a stub auth
// backend. It spins up an in-process HTTP backend and a token store (redis,
// or miniredis when no address is given), seeds one logged-in client per
// simulated device, and runs two phases: a login phase and an
// authentication-poll phase.
//
// Run:
//
//	go run ./cmd/authkit-loadtest -devices 200 -concurrency 64 -ops 50000
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	authkit "github.com/fynlo/authkit"
	"github.com/fynlo/authkit/store"
)

func main() {
	var (
		devices     = flag.Int("devices", 100, "number of simulated devices (one client each)")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "operations per phase (login + poll)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "akc", "token store key prefix")
	)
	flag.Parse()

	if *devices <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "devices, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		rdb     redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = rdb.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = rdb.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	backend := newStubBackend()
	srv := httptest.NewServer(backend)
	defer srv.Close()

	fmt.Printf("seeding %d device clients...\n", *devices)
	startSeed := time.Now()
	clients := make([]*authkit.Client, *devices)
	for i := range clients {
		c, err := authkit.New().
			WithBaseURL(srv.URL).
			WithCredentialStore(store.NewRedisStore(rdb, fmt.Sprintf("%s:d%d", *prefix, i))).
			WithMetricsEnabled(true).
			Build()
		if err != nil {
			fmt.Fprintf(os.Stderr, "build client: %v\n", err)
			os.Exit(1)
		}
		if err := c.Initialize(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "initialize client: %v\n", err)
			os.Exit(1)
		}
		clients[i] = c
		defer c.Close()
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	loginStats := runPhase(*ops, *concurrency, func(i int) error {
		c := clients[i%len(clients)]
		_, err := c.Login(ctx, authkit.Credentials{
			Email:    fmt.Sprintf("user%d@example.com", i%len(clients)),
			Password: "load-test",
		})
		return err
	})
	pollStats := runPhase(*ops, *concurrency, func(i int) error {
		c := clients[i%len(clients)]
		_, err := c.IsAuthenticated(ctx)
		return err
	})

	fmt.Println("---- results ----")
	printStats("login", loginStats)
	printStats("poll", pollStats)
}

// stubBackend issues signed short-lived tokens and answers profile and
// logout calls, so the measured path is the client and its store, not a
// real server.
type stubBackend struct {
	mux    *http.ServeMux
	secret []byte
}

func newStubBackend() *stubBackend {
	b := &stubBackend{mux: http.NewServeMux(), secret: []byte("loadtest-secret")}
	b.mux.HandleFunc("POST /auth/mobile-login", b.login)
	b.mux.HandleFunc("GET /users/me", b.me)
	b.mux.HandleFunc("POST /auth/logout", b.ok)
	b.mux.HandleFunc("POST /auth/refresh", b.ok)
	return b
}

func (b *stubBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mux.ServeHTTP(w, r)
}

func (b *stubBackend) login(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Email string `json:"email"`
	}
	_ = json.NewDecoder(r.Body).Decode(&creds)

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": creds.Email,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(b.secret)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"success": true,
		"token":   tok,
		"user": map[string]any{
			"id":    creds.Email,
			"email": creds.Email,
			"role": map[string]any{
				"name":        "member",
				"permissions": []string{"expenses.read"},
			},
		},
	})
}

func (b *stubBackend) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"id": "u1", "email": "user@example.com"})
}

func (b *stubBackend) ok(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"success": true})
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func runPhase(ops, concurrency int, op func(i int) error) phaseStats {
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
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(i)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
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
