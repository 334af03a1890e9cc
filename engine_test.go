package authgate

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/devharbor/authgate/jwt"
	"github.com/devharbor/authgate/password"
)

var testJWTSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func newTestHasher(t *testing.T) *password.Hasher {
	t.Helper()

	h, err := password.NewHasher(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	return h
}

func newTestCodec(t *testing.T) *jwt.Codec {
	t.Helper()

	c, err := jwt.NewCodec(jwt.Config{
		TTL:           time.Minute,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    testJWTSecret,
	})
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}
	return c
}

type mockAccountStore struct {
	mu        sync.Mutex
	nextID    int64
	byEmail   map[string]*Account
	byID      map[int64]*Account
	updateErr error
	updates   int
}

func newMockAccountStore() *mockAccountStore {
	return &mockAccountStore{
		nextID:  1,
		byEmail: make(map[string]*Account),
		byID:    make(map[int64]*Account),
	}
}

func (m *mockAccountStore) seed(t *testing.T, hasher *password.Hasher, email, plaintext string) int64 {
	t.Helper()

	hash, err := hasher.Hash(plaintext)
	if err != nil {
		t.Fatalf("seed hash failed: %v", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	account := &Account{ID: m.nextID, Email: email, PasswordHash: hash}
	m.nextID++
	m.byEmail[email] = account
	m.byID[account.ID] = account
	return account.ID
}

func (m *mockAccountStore) passwordHash(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if account, ok := m.byEmail[email]; ok {
		return account.PasswordHash
	}
	return ""
}

func (m *mockAccountStore) FindByEmail(_ context.Context, email string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.byEmail[email]
	if !ok {
		return Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, email)
	}
	return *account, nil
}

func (m *mockAccountStore) FindByID(_ context.Context, id int64) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.byID[id]
	if !ok {
		return Account{}, fmt.Errorf("%w: %d", ErrAccountNotFound, id)
	}
	return *account, nil
}

func (m *mockAccountStore) Create(_ context.Context, input CreateAccountInput) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byEmail[input.Email]; exists {
		return Account{}, fmt.Errorf("%w: %s", ErrDuplicateEmail, input.Email)
	}

	account := &Account{ID: m.nextID, Email: input.Email, PasswordHash: input.PasswordHash}
	m.nextID++
	m.byEmail[input.Email] = account
	m.byID[account.ID] = account
	return *account, nil
}

func (m *mockAccountStore) UpdatePasswordHash(_ context.Context, id int64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.updateErr != nil {
		return m.updateErr
	}
	account, ok := m.byID[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrAccountNotFound, id)
	}
	account.PasswordHash = hash
	m.updates++
	return nil
}

type capturedDelivery struct {
	email string
	code  string
}

type captureNotifier struct {
	deliveries chan capturedDelivery
	failWith   error
}

func newCaptureNotifier() *captureNotifier {
	return &captureNotifier{deliveries: make(chan capturedDelivery, 8)}
}

func (n *captureNotifier) Deliver(_ context.Context, email, code string) error {
	if n.failWith != nil {
		return n.failWith
	}
	n.deliveries <- capturedDelivery{email: email, code: code}
	return nil
}

func (n *captureNotifier) waitForCode(t *testing.T) string {
	t.Helper()

	select {
	case d := <-n.deliveries:
		return d.code
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for recovery code delivery")
		return ""
	}
}

func (n *captureNotifier) expectNoDelivery(t *testing.T) {
	t.Helper()

	select {
	case d := <-n.deliveries:
		t.Fatalf("unexpected delivery to %s", d.email)
	case <-time.After(100 * time.Millisecond):
	}
}

func testRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		Enabled:               true,
		CodeDigits:            6,
		CodeTTL:               5 * time.Minute,
		ConcealAccountAbsence: true,
		MaxRequests:           3,
		MaxVerifyAttempts:     5,
		ThrottleWindow:        15 * time.Minute,
		EnableEmailThrottle:   true,
		EnableIPThrottle:      true,
	}
}

func newRecoveryTestEngine(
	t *testing.T,
	rdb *redis.Client,
	store AccountStore,
	notifier Notifier,
	cfg RecoveryConfig,
) *Engine {
	t.Helper()

	return &Engine{
		config: Config{
			Password: PasswordConfig{Cost: bcrypt.MinCost, MinLength: 8},
			Recovery: cfg,
		},
		accounts:        store,
		notifier:        notifier,
		passwords:       newTestHasher(t),
		tokens:          newTestCodec(t),
		challenges:      newRecoveryChallengeStore(rdb),
		recoveryLimiter: newRecoveryLimiter(rdb, cfg),
		metrics:         NewMetrics(MetricsConfig{Enabled: true}),
	}
}

func makeDifferentCode(current string) string {
	if current == "" {
		return "000000"
	}

	first := current[0]
	replacement := byte('0')
	if first == '0' {
		replacement = '1'
	}

	return string(replacement) + current[1:]
}
