package authgate

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/devharbor/authgate/jwt"
	"github.com/devharbor/authgate/password"
)

// Builder assembles an [Engine]. Zero value is not usable; start from
// [New] and chain With* calls before Build.
type Builder struct {
	config    Config
	redis     *redis.Client
	accounts  AccountStore
	notifier  Notifier
	auditSink AuditSink
	built     bool
}

// New returns a Builder preloaded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the entire configuration. The config is deep-copied
// so later mutation of cfg by the caller does not leak into the engine.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing recovery challenges and
// throttle counters. Required when recovery is enabled.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithAccountStore sets the account backend. Required.
func (b *Builder) WithAccountStore(store AccountStore) *Builder {
	b.accounts = store
	return b
}

// WithNotifier sets the channel recovery codes are delivered over.
// Required when recovery is enabled.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithAuditSink sets the audit destination and enables the dispatcher.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = true
	return b
}

// WithMetricsEnabled toggles counter collection.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the token verification latency histogram.
// Implies metrics.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	if enabled {
		b.config.Metrics.Enabled = true
	}
	return b
}

// Build validates the configuration and wires the engine. A builder can
// build at most once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("authgate: builder already used")
	}
	if b.accounts == nil {
		return nil, errors.New("authgate: account store is required")
	}
	if b.config.Recovery.Enabled {
		if b.redis == nil {
			return nil, errors.New("authgate: recovery requires a redis client")
		}
		if b.notifier == nil {
			return nil, errors.New("authgate: recovery requires a notifier")
		}
	}
	if b.config.Audit.Enabled && b.auditSink == nil {
		return nil, errors.New("authgate: audit requires a sink")
	}

	if err := b.config.Validate(); err != nil {
		return nil, fmt.Errorf("authgate: invalid config: %w", err)
	}

	tokens, err := jwt.NewCodec(jwt.Config{
		TTL:           b.config.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(b.config.JWT.SigningMethod),
		PrivateKey:    cloneBytes(b.config.JWT.PrivateKey),
		PublicKey:     cloneBytes(b.config.JWT.PublicKey),
		Issuer:        b.config.JWT.Issuer,
		Leeway:        b.config.JWT.Leeway,
	})
	if err != nil {
		return nil, fmt.Errorf("authgate: token codec: %w", err)
	}

	hasher, err := password.NewHasher(b.config.Password.Cost)
	if err != nil {
		return nil, fmt.Errorf("authgate: password hasher: %w", err)
	}

	engine := &Engine{
		config:    b.config,
		accounts:  b.accounts,
		notifier:  b.notifier,
		passwords: hasher,
		tokens:    tokens,
		metrics:   NewMetrics(b.config.Metrics),
	}

	if b.redis != nil {
		engine.challenges = newRecoveryChallengeStore(b.redis)
		engine.recoveryLimiter = newRecoveryLimiter(b.redis, b.config.Recovery)
	}
	if b.config.Audit.Enabled {
		engine.audit = newAuditDispatcher(b.config.Audit, b.auditSink)
	}

	b.built = true
	return engine, nil
}
