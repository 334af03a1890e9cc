package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	authgate "github.com/devharbor/authgate"
	"github.com/devharbor/authgate/jwt"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type staticAccountStore struct {
	account authgate.Account
}

func (s *staticAccountStore) FindByEmail(_ context.Context, email string) (authgate.Account, error) {
	if email != s.account.Email {
		return authgate.Account{}, authgate.ErrAccountNotFound
	}
	return s.account, nil
}

func (s *staticAccountStore) FindByID(_ context.Context, id int64) (authgate.Account, error) {
	if id != s.account.ID {
		return authgate.Account{}, authgate.ErrAccountNotFound
	}
	return s.account, nil
}

func (s *staticAccountStore) Create(context.Context, authgate.CreateAccountInput) (authgate.Account, error) {
	return authgate.Account{}, authgate.ErrDuplicateEmail
}

func (s *staticAccountStore) UpdatePasswordHash(context.Context, int64, string) error {
	return nil
}

func newTestEngine(t *testing.T) *authgate.Engine {
	t.Helper()

	cfg := authgate.Config{
		JWT: authgate.JWTConfig{
			AccessTTL:     time.Minute,
			SigningMethod: "hs256",
			PrivateKey:    testSecret,
		},
		Password: authgate.PasswordConfig{
			Cost:      4,
			MinLength: 8,
		},
	}

	engine, err := authgate.New().
		WithConfig(cfg).
		WithAccountStore(&staticAccountStore{account: authgate.Account{
			ID:           7,
			Email:        "alice@example.com",
			PasswordHash: "unused",
		}}).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func issueToken(t *testing.T, subject string) string {
	t.Helper()
	codec, err := jwt.NewCodec(jwt.Config{TTL: time.Minute, SigningMethod: jwt.MethodHS256, PrivateKey: testSecret})
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	token, err := codec.Issue(subject)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return token
}

func TestAuthenticateBindsIdentity(t *testing.T) {
	engine := newTestEngine(t)

	var seen *authgate.Identity
	handler := Authenticate(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = IdentityFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, "alice@example.com"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if seen == nil || seen.AccountID != 7 || seen.Email != "alice@example.com" {
		t.Fatalf("identity = %+v, want account 7", seen)
	}
}

func TestAuthenticatePassesAnonymousThrough(t *testing.T) {
	engine := newTestEngine(t)

	handler := Authenticate(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); ok {
			t.Error("expected no identity for anonymous request")
		}
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestAuthenticateRejectsBadToken(t *testing.T) {
	engine := newTestEngine(t)

	handler := Authenticate(engine)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("handler must not run for a rejected token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q, want application/json", ct)
	}
	if rec.Body.String() != `{"error":"unauthorized"}` {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestAuthenticateRejectsUnknownSubject(t *testing.T) {
	engine := newTestEngine(t)

	handler := Authenticate(engine)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("handler must not run for an unknown subject")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, "ghost@example.com"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRequireIdentity(t *testing.T) {
	engine := newTestEngine(t)

	protected := Authenticate(engine)(RequireIdentity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, "alice@example.com"))
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("authenticated status = %d, want 204", rec.Code)
	}
}
