package authgate

import "context"

// Account is the full account record exchanged with [AccountStore].
// It carries the password hash and must never cross the public API
// boundary; Engine methods return [Identity] instead.
type Account struct {
	ID           int64
	Email        string
	PasswordHash string
}

// Identity is the authenticated principal resolved from an access token.
// It is bound to request contexts by the middleware package and never
// carries credential material.
type Identity struct {
	AccountID int64
	Email     string
}

// RegisterAccount is the input for [Engine.Register].
type RegisterAccount struct {
	Email    string
	Password string
}

// CreateAccountInput is the input for [AccountStore.Create]. The password
// arrives pre-hashed; stores never see plaintext.
type CreateAccountInput struct {
	Email        string
	PasswordHash string
}

// AccountStore is the interface callers must implement to integrate
// authgate with their account database. Lookups that miss must return an
// error wrapping [ErrAccountNotFound]; Create must return an error
// wrapping [ErrDuplicateEmail] on uniqueness violations. UpdatePasswordHash
// must replace the hash atomically for a single account row.
type AccountStore interface {
	FindByEmail(ctx context.Context, email string) (Account, error)
	FindByID(ctx context.Context, id int64) (Account, error)
	Create(ctx context.Context, input CreateAccountInput) (Account, error)
	UpdatePasswordHash(ctx context.Context, id int64, newHash string) error
}

// Notifier delivers a recovery code to its destination. The engine calls
// Deliver on a detached goroutine with a bounded context; delivery failures
// are logged and never affect the outcome of RequestRecovery.
type Notifier interface {
	Deliver(ctx context.Context, email, code string) error
}
