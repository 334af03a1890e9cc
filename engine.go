package authgate

import (
	"context"
	"log"
	"time"

	"github.com/devharbor/authgate/jwt"
	"github.com/devharbor/authgate/password"
)

// Engine is the authentication core. It is assembled by [Builder.Build]
// and safe for concurrent use afterwards.
type Engine struct {
	config          Config
	accounts        AccountStore
	notifier        Notifier
	passwords       *password.Hasher
	tokens          *jwt.Codec
	challenges      *recoveryChallengeStore
	recoveryLimiter *recoveryLimiter
	audit           *auditDispatcher
	metrics         *Metrics
}

// Close flushes and stops the audit dispatcher. It does not close the
// Redis client or the account store; both belong to the caller.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events discarded under
// backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all engine metrics.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Authenticate checks the email/password pair and issues a signed access
// token for the account. Every rejection reason collapses into
// [ErrInvalidCredentials] so callers cannot distinguish an unknown email
// from a wrong password.
func (e *Engine) Authenticate(ctx context.Context, email, pass string) (string, error) {
	if e == nil || e.passwords == nil || e.tokens == nil || e.accounts == nil {
		return "", ErrEngineNotReady
	}
	if email == "" || pass == "" {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, 0, ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": "empty_input",
			}
		})
		return "", ErrInvalidCredentials
	}

	account, err := e.accounts.FindByEmail(ctx, email)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, 0, ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": "account_not_found",
			}
		})
		return "", ErrInvalidCredentials
	}

	ok, err := e.passwords.Verify(pass, account.PasswordHash)
	if err != nil || !ok {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, account.ID, ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": "password_mismatch",
			}
		})
		return "", ErrInvalidCredentials
	}

	if e.config.Password.UpgradeOnLogin {
		if needsUpgrade, err := e.passwords.NeedsUpgrade(account.PasswordHash); err == nil && needsUpgrade {
			if upgradedHash, err := e.passwords.Hash(pass); err == nil {
				// Rehash update is best-effort and must not block successful login.
				if err := e.accounts.UpdatePasswordHash(ctx, account.ID, upgradedHash); err != nil {
					log.Print("authgate: password hash upgrade update failed")
				}
			} else {
				log.Print("authgate: password hash upgrade generation failed")
			}
		}
	}
	pass = ""

	token, err := e.tokens.Issue(account.Email)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, account.ID, err, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": "issue_token_failed",
			}
		})
		return "", err
	}

	e.metricInc(MetricLoginSuccess)
	e.metricInc(MetricTokenIssued)
	e.emitAudit(ctx, auditEventLoginSuccess, true, account.ID, nil, func() map[string]string {
		return map[string]string{
			"email": email,
		}
	})

	return token, nil
}

// VerifyToken resolves a bearer token to the account it was issued for.
// All failures collapse into [ErrUnauthenticated]; the token's actual
// defect (malformed, expired, bad signature, unknown subject) is observable
// only through metrics. This is the hot path and emits no audit events.
func (e *Engine) VerifyToken(ctx context.Context, token string) (*Identity, error) {
	if e == nil || e.tokens == nil || e.accounts == nil {
		return nil, ErrEngineNotReady
	}
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() {
			e.metrics.Observe(MetricVerifyLatency, time.Since(start))
		}()
	}

	subject, err := e.tokens.Verify(token)
	if err != nil {
		e.metricInc(MetricTokenRejected)
		return nil, ErrUnauthenticated
	}

	account, err := e.accounts.FindByEmail(ctx, subject)
	if err != nil {
		e.metricInc(MetricTokenRejected)
		return nil, ErrUnauthenticated
	}

	e.metricInc(MetricTokenAccepted)
	return &Identity{AccountID: account.ID, Email: account.Email}, nil
}
