package authgate

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/devharbor/authgate/internal"
)

// recoveryNotifyTimeout bounds the detached delivery goroutine so a slow
// mail backend cannot hold the goroutine forever.
const recoveryNotifyTimeout = 10 * time.Second

// RequestRecovery starts a password recovery flow for the account behind
// email. A fresh numeric code is generated, its hash replaces any earlier
// challenge for the same account, and the plaintext code is handed to the
// notifier off the request path.
//
// When [RecoveryConfig.ConcealAccountAbsence] is set (the default), an
// unknown email returns nil with no notification so the endpoint cannot be
// used to probe which addresses are registered.
func (e *Engine) RequestRecovery(ctx context.Context, email string) error {
	if e == nil || e.accounts == nil {
		return ErrEngineNotReady
	}
	if !e.config.Recovery.Enabled || e.challenges == nil || e.notifier == nil {
		return ErrRecoveryDisabled
	}
	if email == "" {
		return ErrRecoveryCodeInvalid
	}

	if err := e.recoveryLimiter.CheckRequest(ctx, email, clientIPFromContext(ctx)); err != nil {
		if errors.Is(err, errRecoveryThrottled) {
			e.metricInc(MetricRecoveryRateLimited)
			e.emitRateLimit(ctx, "recovery_request", func() map[string]string {
				return map[string]string{
					"email": email,
				}
			})
			return ErrRecoveryRateLimited
		}
		return mapRecoveryLimiterError(err)
	}

	account, err := e.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			if e.config.Recovery.ConcealAccountAbsence {
				e.metricInc(MetricRecoveryRequest)
				e.emitAudit(ctx, auditEventRecoveryRequest, true, 0, nil, func() map[string]string {
					return map[string]string{
						"email":     email,
						"concealed": "true",
					}
				})
				sleepRecoveryEnumerationDelay(ctx)
				return nil
			}
			e.emitAudit(ctx, auditEventRecoveryRequest, false, 0, ErrAccountNotFound, func() map[string]string {
				return map[string]string{
					"email": email,
				}
			})
			return ErrAccountNotFound
		}
		return fmt.Errorf("%w: %v", ErrRecoveryUnavailable, err)
	}

	code, err := internal.NewNumericCode(e.config.Recovery.CodeDigits)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRecoveryUnavailable, err)
	}

	if err := e.challenges.Upsert(ctx, account.ID, internal.HashRecoveryCode(code), e.config.Recovery.CodeTTL); err != nil {
		return mapRecoveryStoreError(err)
	}

	e.metricInc(MetricRecoveryRequest)
	e.emitAudit(ctx, auditEventRecoveryRequest, true, account.ID, nil, func() map[string]string {
		return map[string]string{
			"email": email,
		}
	})

	e.deliverRecoveryCode(account.Email, code)
	return nil
}

// VerifyRecoveryCode checks the submitted code against the account's
// pending challenge and marks the challenge verified on a match. The code
// stays valid for the final [Engine.ResetPassword] call; a second verify
// of the same code fails with [ErrRecoveryCodeUsed].
func (e *Engine) VerifyRecoveryCode(ctx context.Context, email, code string) error {
	if e == nil || e.accounts == nil {
		return ErrEngineNotReady
	}
	if !e.config.Recovery.Enabled || e.challenges == nil {
		return ErrRecoveryDisabled
	}

	if err := e.recoveryLimiter.CheckVerify(ctx, email, clientIPFromContext(ctx)); err != nil {
		if errors.Is(err, errRecoveryThrottled) {
			e.metricInc(MetricRecoveryRateLimited)
			e.emitRateLimit(ctx, "recovery_verify", func() map[string]string {
				return map[string]string{
					"email": email,
				}
			})
			return ErrRecoveryRateLimited
		}
		return mapRecoveryLimiterError(err)
	}

	account, err := e.resolveRecoveryAccount(ctx, email)
	if err != nil {
		e.metricInc(MetricRecoveryVerifyFailure)
		e.emitAudit(ctx, auditEventRecoveryVerify, false, 0, err, func() map[string]string {
			return map[string]string{
				"email": email,
			}
		})
		return err
	}

	if !e.recoveryCodeWellFormed(code) {
		e.metricInc(MetricRecoveryVerifyFailure)
		e.emitAudit(ctx, auditEventRecoveryVerify, false, account.ID, ErrRecoveryCodeInvalid, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": "malformed_code",
			}
		})
		return ErrRecoveryCodeInvalid
	}

	if err := e.challenges.Verify(ctx, account.ID, internal.HashRecoveryCode(code)); err != nil {
		mapped := mapRecoveryStoreError(err)
		e.metricInc(MetricRecoveryVerifyFailure)
		if errors.Is(mapped, ErrRecoveryCodeExpired) {
			e.metricInc(MetricRecoveryExpired)
		}
		e.emitAudit(ctx, auditEventRecoveryVerify, false, account.ID, mapped, func() map[string]string {
			return map[string]string{
				"email": email,
			}
		})
		return mapped
	}

	e.metricInc(MetricRecoveryVerifySuccess)
	e.emitAudit(ctx, auditEventRecoveryVerify, true, account.ID, nil, func() map[string]string {
		return map[string]string{
			"email": email,
		}
	})
	return nil
}

// ResetPassword replaces the account's password after the recovery code
// has been verified. The challenge is deleted only once the new hash is
// durably written, so a failed write leaves the verified challenge in
// place and the caller may retry.
func (e *Engine) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if e == nil || e.accounts == nil || e.passwords == nil {
		return ErrEngineNotReady
	}
	if !e.config.Recovery.Enabled || e.challenges == nil {
		return ErrRecoveryDisabled
	}

	if err := e.recoveryLimiter.CheckVerify(ctx, email, clientIPFromContext(ctx)); err != nil {
		if errors.Is(err, errRecoveryThrottled) {
			e.metricInc(MetricRecoveryRateLimited)
			e.emitRateLimit(ctx, "recovery_reset", func() map[string]string {
				return map[string]string{
					"email": email,
				}
			})
			return ErrRecoveryRateLimited
		}
		return mapRecoveryLimiterError(err)
	}

	account, err := e.resolveRecoveryAccount(ctx, email)
	if err != nil {
		e.metricInc(MetricRecoveryResetFailure)
		e.emitAudit(ctx, auditEventRecoveryReset, false, 0, err, func() map[string]string {
			return map[string]string{
				"email": email,
			}
		})
		return err
	}

	if len(newPassword) < e.config.Password.MinLength {
		e.metricInc(MetricRecoveryResetFailure)
		e.emitAudit(ctx, auditEventRecoveryReset, false, account.ID, ErrPasswordPolicy, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": "password_too_short",
			}
		})
		return ErrPasswordPolicy
	}

	if !e.recoveryCodeWellFormed(code) {
		e.metricInc(MetricRecoveryResetFailure)
		e.emitAudit(ctx, auditEventRecoveryReset, false, account.ID, ErrRecoveryCodeInvalid, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": "malformed_code",
			}
		})
		return ErrRecoveryCodeInvalid
	}

	if err := e.challenges.MatchVerified(ctx, account.ID, internal.HashRecoveryCode(code)); err != nil {
		mapped := mapRecoveryStoreError(err)
		e.metricInc(MetricRecoveryResetFailure)
		if errors.Is(mapped, ErrRecoveryCodeExpired) {
			e.metricInc(MetricRecoveryExpired)
		}
		e.emitAudit(ctx, auditEventRecoveryReset, false, account.ID, mapped, func() map[string]string {
			return map[string]string{
				"email": email,
			}
		})
		return mapped
	}

	hash, err := e.passwords.Hash(newPassword)
	if err != nil {
		e.metricInc(MetricRecoveryResetFailure)
		return ErrPasswordPolicy
	}
	newPassword = ""

	if err := e.accounts.UpdatePasswordHash(ctx, account.ID, hash); err != nil {
		// The challenge stays verified so the caller can retry the write.
		e.metricInc(MetricRecoveryResetFailure)
		e.emitAudit(ctx, auditEventRecoveryReset, false, account.ID, err, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": "store_failure",
			}
		})
		return err
	}

	if err := e.challenges.Delete(ctx, account.ID); err != nil {
		log.Print("authgate: recovery challenge cleanup failed")
		return mapRecoveryStoreError(err)
	}

	e.metricInc(MetricRecoveryResetSuccess)
	e.emitAudit(ctx, auditEventRecoveryReset, true, account.ID, nil, func() map[string]string {
		return map[string]string{
			"email": email,
		}
	})
	return nil
}

// resolveRecoveryAccount looks up the account for a verify or reset call.
// Under concealment an unknown email is indistinguishable from a wrong
// code.
func (e *Engine) resolveRecoveryAccount(ctx context.Context, email string) (Account, error) {
	if email == "" {
		return Account{}, ErrRecoveryCodeInvalid
	}

	account, err := e.accounts.FindByEmail(ctx, email)
	if err == nil {
		return account, nil
	}
	if errors.Is(err, ErrAccountNotFound) {
		if e.config.Recovery.ConcealAccountAbsence {
			return Account{}, ErrRecoveryCodeInvalid
		}
		return Account{}, ErrAccountNotFound
	}
	return Account{}, fmt.Errorf("%w: %v", ErrRecoveryUnavailable, err)
}

func (e *Engine) recoveryCodeWellFormed(code string) bool {
	return len(code) == e.config.Recovery.CodeDigits && internal.IsNumericString(code)
}

// deliverRecoveryCode hands the plaintext code to the notifier on a
// detached goroutine. Delivery failure is logged without the code and
// never surfaces to the requester.
func (e *Engine) deliverRecoveryCode(email, code string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recoveryNotifyTimeout)
		defer cancel()

		if err := e.notifier.Deliver(ctx, email, code); err != nil {
			log.Print("authgate: recovery code delivery failed")
		}
	}()
}

// sleepRecoveryEnumerationDelay pauses a concealed recovery request so
// its response time blends with the real code-generation path.
func sleepRecoveryEnumerationDelay(ctx context.Context) {
	delay := 20 * time.Millisecond
	if jitter, err := rand.Int(rand.Reader, big.NewInt(20)); err == nil {
		delay += time.Duration(jitter.Int64()) * time.Millisecond
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func mapRecoveryStoreError(err error) error {
	switch {
	case errors.Is(err, errChallengeNotFound):
		return ErrRecoveryCodeInvalid
	case errors.Is(err, errChallengeExpired):
		return ErrRecoveryCodeExpired
	case errors.Is(err, errChallengeAlreadyVerified):
		return ErrRecoveryCodeUsed
	case errors.Is(err, errChallengeUnverified):
		return ErrRecoveryNotVerified
	default:
		return fmt.Errorf("%w: %v", ErrRecoveryUnavailable, err)
	}
}

func mapRecoveryLimiterError(err error) error {
	if errors.Is(err, errRecoveryThrottled) {
		return ErrRecoveryRateLimited
	}
	return fmt.Errorf("%w: %v", ErrRecoveryUnavailable, err)
}
