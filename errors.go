package authgate

import "errors"

var (
	// ErrUnauthenticated is returned by [Engine.VerifyToken] for every token
	// that cannot be resolved to an account. The underlying cause (malformed,
	// expired, bad signature, unknown subject) is never exposed to callers.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidCredentials is returned by [Engine.Authenticate] when the
	// email/password pair does not match an account.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountNotFound signals that no account matches the given email.
	// [AccountStore] implementations must return an error wrapping this
	// sentinel from FindByEmail and FindByID when the lookup misses.
	ErrAccountNotFound = errors.New("account not found")
	// ErrDuplicateEmail signals that an account with the given email already
	// exists. [AccountStore.Create] must return an error wrapping this
	// sentinel on uniqueness violations.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrRegistrationDisabled is returned by [Engine.Register] when account
	// creation is turned off in [AccountConfig].
	ErrRegistrationDisabled = errors.New("registration disabled")
	// ErrRegistrationInvalid is returned by [Engine.Register] for requests
	// with missing fields.
	ErrRegistrationInvalid = errors.New("invalid registration request")
	// ErrPasswordPolicy is returned when a password does not satisfy the
	// configured policy.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrRecoveryDisabled is returned by the recovery operations when the
	// recovery flow is turned off in [RecoveryConfig].
	ErrRecoveryDisabled = errors.New("password recovery disabled")
	// ErrRecoveryCodeInvalid is returned when no active challenge matches
	// the provided recovery code.
	ErrRecoveryCodeInvalid = errors.New("recovery code invalid")
	// ErrRecoveryCodeExpired is returned when the challenge outlived its
	// TTL. The challenge is deleted on first touch after expiry.
	ErrRecoveryCodeExpired = errors.New("recovery code expired")
	// ErrRecoveryCodeUsed is returned when a code that was already verified
	// is verified again. The challenge is invalidated.
	ErrRecoveryCodeUsed = errors.New("recovery code already used")
	// ErrRecoveryNotVerified is returned by [Engine.ResetPassword] when the
	// code was never verified through [Engine.VerifyRecoveryCode].
	ErrRecoveryNotVerified = errors.New("recovery code not verified")
	// ErrRecoveryRateLimited is returned when recovery requests or code
	// checks exceed the configured throttle window.
	ErrRecoveryRateLimited = errors.New("recovery rate limited")
	// ErrRecoveryUnavailable is returned when the recovery backend cannot
	// be reached.
	ErrRecoveryUnavailable = errors.New("recovery backend unavailable")
	// ErrEngineNotReady is returned when an Engine method is called before
	// the engine was built with the dependencies that method needs.
	ErrEngineNotReady = errors.New("engine not initialized")
)
