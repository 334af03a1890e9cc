package authgate

import (
	"context"
	"errors"
)

// Register creates a new account with a hashed password. A duplicate email
// is reported as [ErrDuplicateEmail] so HTTP layers can map it to a
// conflict response.
func (e *Engine) Register(ctx context.Context, req RegisterAccount) (*Identity, error) {
	if e == nil || e.passwords == nil || e.accounts == nil {
		return nil, ErrEngineNotReady
	}
	if !e.config.Account.RegistrationEnabled {
		e.emitAudit(ctx, auditEventAccountFailure, false, 0, ErrRegistrationDisabled, func() map[string]string {
			return map[string]string{
				"reason": "feature_disabled",
			}
		})
		return nil, ErrRegistrationDisabled
	}
	if req.Email == "" {
		return nil, ErrRegistrationInvalid
	}
	if len(req.Password) < e.config.Password.MinLength {
		e.emitAudit(ctx, auditEventAccountFailure, false, 0, ErrPasswordPolicy, func() map[string]string {
			return map[string]string{
				"email":  req.Email,
				"reason": "password_too_short",
			}
		})
		return nil, ErrPasswordPolicy
	}

	hash, err := e.passwords.Hash(req.Password)
	if err != nil {
		return nil, ErrPasswordPolicy
	}
	req.Password = ""

	account, err := e.accounts.Create(ctx, CreateAccountInput{
		Email:        req.Email,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			e.metricInc(MetricAccountDuplicate)
			e.emitAudit(ctx, auditEventAccountDuplicate, false, 0, ErrDuplicateEmail, func() map[string]string {
				return map[string]string{
					"email": req.Email,
				}
			})
			return nil, ErrDuplicateEmail
		}
		e.emitAudit(ctx, auditEventAccountFailure, false, 0, err, func() map[string]string {
			return map[string]string{
				"email":  req.Email,
				"reason": "store_failure",
			}
		})
		return nil, err
	}

	e.metricInc(MetricAccountCreated)
	e.emitAudit(ctx, auditEventAccountCreated, true, account.ID, nil, func() map[string]string {
		return map[string]string{
			"email": account.Email,
		}
	})

	return &Identity{AccountID: account.ID, Email: account.Email}, nil
}
