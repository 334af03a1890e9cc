package authgate

import (
	"errors"
	"time"
)

// Config is the full engine configuration tree. It is treated as immutable
// after [Builder.Build]; key material is defensively copied.
type Config struct {
	JWT      JWTConfig
	Password PasswordConfig
	Recovery RecoveryConfig
	Account  AccountConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

// JWTConfig configures access-token issuance and verification.
type JWTConfig struct {
	AccessTTL     time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
}

// PasswordConfig configures bcrypt hashing and the password policy.
type PasswordConfig struct {
	Cost           int
	MinLength      int
	UpgradeOnLogin bool
}

// RecoveryConfig configures the password-recovery code flow.
//
// ConcealAccountAbsence controls what RequestRecovery reports for unknown
// emails: when true (default) the call succeeds without delivering anything,
// so callers cannot probe which addresses have accounts; when false it
// returns [ErrAccountNotFound].
type RecoveryConfig struct {
	Enabled               bool
	CodeDigits            int
	CodeTTL               time.Duration
	ConcealAccountAbsence bool
	MaxRequests           int
	MaxVerifyAttempts     int
	ThrottleWindow        time.Duration
	EnableEmailThrottle   bool
	EnableIPThrottle      bool
}

// AccountConfig configures account lifecycle operations.
type AccountConfig struct {
	RegistrationEnabled bool
}

// AuditConfig configures the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig configures the in-process metrics system.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			SigningMethod: "hs256",
		},
		Password: PasswordConfig{
			Cost:           12,
			MinLength:      8,
			UpgradeOnLogin: true,
		},
		Recovery: RecoveryConfig{
			Enabled:               false,
			CodeDigits:            6,
			CodeTTL:               5 * time.Minute,
			ConcealAccountAbsence: true,
			MaxRequests:           3,
			MaxVerifyAttempts:     5,
			ThrottleWindow:        15 * time.Minute,
			EnableEmailThrottle:   true,
			EnableIPThrottle:      true,
		},
		Account: AccountConfig{
			RegistrationEnabled: true,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate checks the configuration for internal consistency. It is called
// by [Builder.Build] and may be called directly when configs are assembled
// from external sources.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.SigningMethod != "hs256" && c.JWT.SigningMethod != "ed25519" {
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.SigningMethod == "hs256" && len(c.JWT.PrivateKey) < 32 {
		return errors.New("hs256 requires a key of at least 32 bytes")
	}
	if c.JWT.SigningMethod == "ed25519" && len(c.JWT.PrivateKey) == 0 {
		return errors.New("ed25519 requires PrivateKey")
	}
	if c.JWT.SigningMethod == "ed25519" && len(c.JWT.PublicKey) == 0 {
		return errors.New("ed25519 requires PublicKey")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Password
	if c.Password.Cost < 4 || c.Password.Cost > 31 {
		return errors.New("Password Cost must be between 4 and 31")
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}

	// Recovery
	if c.Recovery.Enabled {
		if c.Recovery.CodeDigits < 4 || c.Recovery.CodeDigits > 10 {
			return errors.New("Recovery CodeDigits must be between 4 and 10")
		}
		if c.Recovery.CodeTTL <= 0 {
			return errors.New("Recovery CodeTTL must be > 0")
		}
		if c.Recovery.CodeTTL > 15*time.Minute {
			return errors.New("Recovery CodeTTL must be <= 15m")
		}
		if c.Recovery.MaxRequests <= 0 {
			return errors.New("Recovery MaxRequests must be > 0")
		}
		if c.Recovery.MaxVerifyAttempts <= 0 || c.Recovery.MaxVerifyAttempts > 10 {
			return errors.New("Recovery MaxVerifyAttempts must be between 1 and 10")
		}
		if c.Recovery.ThrottleWindow <= 0 {
			return errors.New("Recovery ThrottleWindow must be > 0")
		}
		if !c.Recovery.EnableEmailThrottle {
			return errors.New("Recovery EnableEmailThrottle must be true")
		}
	}

	// Audit
	if c.Audit.Enabled {
		if c.Audit.BufferSize <= 0 {
			return errors.New("Audit BufferSize must be > 0 when audit is enabled")
		}
	}

	return nil
}
