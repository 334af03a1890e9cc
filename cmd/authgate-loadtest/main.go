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

	authgate "github.com/devharbor/authgate"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	var (
		accounts    = flag.Int("accounts", 10000, "number of accounts to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "operations per phase (login + verify)")
		recoveries  = flag.Int("recoveries", 1000, "end-to-end recovery flows to run")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *accounts <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "accounts, concurrency, and ops must be > 0")
		os.Exit(2)
	}
	if *recoveries > *accounts {
		// The per-email throttle allows only a few requests per window, so
		// each flow needs its own account.
		*recoveries = *accounts
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  *redis.Client
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		client = redis.NewClient(&redis.Options{Addr: addr})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	const seedPassword = "loadtest-password-1"

	fmt.Printf("seeding %d accounts...\n", *accounts)
	startSeed := time.Now()

	hash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.MinCost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed hash failed: %v\n", err)
		os.Exit(1)
	}

	store := newMemoryStore()
	emails := make([]string, *accounts)
	for i := 0; i < *accounts; i++ {
		email := fmt.Sprintf("user-%d@loadtest.local", i)
		emails[i] = email
		store.put(authgate.Account{ID: int64(i + 1), Email: email, PasswordHash: string(hash)})
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	notifier := newCaptureNotifier()

	cfg := authgate.Config{
		JWT: authgate.JWTConfig{
			AccessTTL:     time.Hour,
			SigningMethod: "hs256",
			PrivateKey:    []byte("loadtest-secret-loadtest-secret!"),
		},
		Password: authgate.PasswordConfig{Cost: bcrypt.MinCost, MinLength: 8},
		Recovery: authgate.RecoveryConfig{
			Enabled:               true,
			CodeDigits:            6,
			CodeTTL:               5 * time.Minute,
			ConcealAccountAbsence: true,
			MaxRequests:           3,
			MaxVerifyAttempts:     10,
			ThrottleWindow:        15 * time.Minute,
			EnableEmailThrottle:   true,
		},
		Account: authgate.AccountConfig{RegistrationEnabled: true},
		Audit:   authgate.AuditConfig{BufferSize: 1024, DropIfFull: true},
		Metrics: authgate.MetricsConfig{Enabled: true, EnableLatencyHistograms: true},
	}

	engine, err := authgate.New().
		WithConfig(cfg).
		WithRedis(client).
		WithAccountStore(store).
		WithNotifier(notifier).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	loginStats, tokens := runLoginPhase(ctx, engine, emails, seedPassword, *ops, *concurrency)
	verifyStats := runVerifyPhase(ctx, engine, tokens, *ops, *concurrency)
	recoveryStats := runRecoveryPhase(ctx, engine, notifier, emails, *recoveries, *concurrency)

	fmt.Println("---- results ----")
	printStats("login", loginStats)
	printStats("verify", verifyStats)
	printStats("recovery", recoveryStats)
}

func runLoginPhase(ctx context.Context, engine *authgate.Engine, emails []string, password string, ops, concurrency int) (phaseStats, []string) {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		tokens    = make([]string, 0, ops)
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
				email := emails[r.Intn(len(emails))]
				t0 := time.Now()
				token, err := engine.Authenticate(ctx, email, password)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				if err == nil {
					tokens = append(tokens, token)
				}
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures), tokens
}

func runVerifyPhase(ctx context.Context, engine *authgate.Engine, tokens []string, ops, concurrency int) phaseStats {
	if len(tokens) == 0 {
		return phaseStats{}
	}

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
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*6151))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				token := tokens[r.Intn(len(tokens))]
				t0 := time.Now()
				_, err := engine.VerifyToken(ctx, token)
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

func runRecoveryPhase(ctx context.Context, engine *authgate.Engine, notifier *captureNotifier, emails []string, flows, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, flows)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= flows {
					return
				}
				email := emails[i]
				t0 := time.Now()
				err := runRecoveryFlow(ctx, engine, notifier, email, i)
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
	return computeStats(time.Since(start), latencies, failures)
}

func runRecoveryFlow(ctx context.Context, engine *authgate.Engine, notifier *captureNotifier, email string, salt int) error {
	if err := engine.RequestRecovery(ctx, email); err != nil {
		return err
	}

	// Delivery runs off the request path; poll briefly for the code.
	code, err := notifier.waitForCode(email, 5*time.Second)
	if err != nil {
		return err
	}

	if err := engine.VerifyRecoveryCode(ctx, email, code); err != nil {
		return err
	}
	return engine.ResetPassword(ctx, email, code, fmt.Sprintf("rotated-password-%d", salt))
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

type memoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	byID    map[int64]authgate.Account
	byEmail map[string]int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		nextID:  1,
		byID:    make(map[int64]authgate.Account),
		byEmail: make(map[string]int64),
	}
}

func (s *memoryStore) put(a authgate.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[a.ID] = a
	s.byEmail[a.Email] = a.ID
	if a.ID >= s.nextID {
		s.nextID = a.ID + 1
	}
}

func (s *memoryStore) FindByEmail(_ context.Context, email string) (authgate.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return authgate.Account{}, authgate.ErrAccountNotFound
	}
	return s.byID[id], nil
}

func (s *memoryStore) FindByID(_ context.Context, id int64) (authgate.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.byID[id]
	if !ok {
		return authgate.Account{}, authgate.ErrAccountNotFound
	}
	return a, nil
}

func (s *memoryStore) Create(_ context.Context, input authgate.CreateAccountInput) (authgate.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[input.Email]; exists {
		return authgate.Account{}, authgate.ErrDuplicateEmail
	}
	a := authgate.Account{ID: s.nextID, Email: input.Email, PasswordHash: input.PasswordHash}
	s.nextID++
	s.byID[a.ID] = a
	s.byEmail[a.Email] = a.ID
	return a, nil
}

func (s *memoryStore) UpdatePasswordHash(_ context.Context, id int64, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return authgate.ErrAccountNotFound
	}
	a.PasswordHash = hash
	s.byID[id] = a
	return nil
}

type captureNotifier struct {
	mu    sync.Mutex
	codes map[string]string
}

func newCaptureNotifier() *captureNotifier {
	return &captureNotifier{codes: make(map[string]string)}
}

func (n *captureNotifier) Deliver(_ context.Context, email, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.codes[email] = code
	return nil
}

func (n *captureNotifier) waitForCode(email string, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		n.mu.Lock()
		code, ok := n.codes[email]
		if ok {
			delete(n.codes, email)
		}
		n.mu.Unlock()
		if ok {
			return code, nil
		}
		time.Sleep(time.Millisecond)
	}
	return "", fmt.Errorf("no recovery code delivered for %s", email)
}
