package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the token signature algorithm.
type SigningMethod string

const (
	// MethodHS256 signs with an HMAC-SHA256 shared secret.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an Ed25519 key pair.
	MethodEd25519 SigningMethod = "ed25519"
)

var (
	// ErrTokenMalformed reports input that is not a JWT at all.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenExpired reports a token past its expiry, leeway included.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid reports a structurally valid token that fails
	// signature, issuer, or claim checks.
	ErrTokenInvalid = errors.New("token invalid")
)

// Config carries the signing material and validation bounds for a Codec.
type Config struct {
	TTL           time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
}

// Codec issues and verifies access tokens. The subject claim carries the
// account email; no other custom claims are embedded.
type Codec struct {
	config     Config
	method     gjwt.SigningMethod
	signKey    any
	verifyKey  any
	parserOpts []gjwt.ParserOption
}

// NewCodec validates cfg and returns a ready Codec.
func NewCodec(cfg Config) (*Codec, error) {
	if cfg.TTL <= 0 {
		return nil, errors.New("jwt: TTL must be positive")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("jwt: leeway out of range")
	}
	if cfg.SigningMethod == "" {
		cfg.SigningMethod = MethodHS256
	}

	c := &Codec{config: cfg}

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) < 32 {
			return nil, errors.New("jwt: hs256 secret must be at least 32 bytes")
		}
		c.method = gjwt.SigningMethodHS256
		c.signKey = cfg.PrivateKey
		c.verifyKey = cfg.PrivateKey
	case MethodEd25519:
		priv, err := parseEdPrivateKey(cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
		pub, err := parseEdPublicKey(cfg.PublicKey)
		if err != nil {
			return nil, err
		}
		c.method = gjwt.SigningMethodEdDSA
		c.signKey = priv
		c.verifyKey = pub
	default:
		return nil, fmt.Errorf("jwt: unsupported signing method %q", cfg.SigningMethod)
	}

	c.parserOpts = []gjwt.ParserOption{
		gjwt.WithValidMethods([]string{c.method.Alg()}),
		gjwt.WithExpirationRequired(),
	}
	if cfg.Leeway > 0 {
		c.parserOpts = append(c.parserOpts, gjwt.WithLeeway(cfg.Leeway))
	}
	if cfg.Issuer != "" {
		c.parserOpts = append(c.parserOpts, gjwt.WithIssuer(cfg.Issuer))
	}

	return c, nil
}

// Issue signs a token whose subject is the given account email.
func (c *Codec) Issue(subject string) (string, error) {
	if subject == "" {
		return "", errors.New("jwt: empty subject")
	}

	now := time.Now()
	claims := gjwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  gjwt.NewNumericDate(now),
		ExpiresAt: gjwt.NewNumericDate(now.Add(c.config.TTL)),
	}
	if c.config.Issuer != "" {
		claims.Issuer = c.config.Issuer
	}

	token := gjwt.NewWithClaims(c.method, claims)
	signed, err := token.SignedString(c.signKey)
	if err != nil {
		return "", fmt.Errorf("jwt: sign: %w", err)
	}
	return signed, nil
}

// Verify parses and validates the token and returns its subject.
func (c *Codec) Verify(tokenString string) (string, error) {
	claims := &gjwt.RegisteredClaims{}
	_, err := gjwt.ParseWithClaims(tokenString, claims, c.keyfunc, c.parserOpts...)
	if err != nil {
		switch {
		case errors.Is(err, gjwt.ErrTokenMalformed):
			return "", fmt.Errorf("%w: %v", ErrTokenMalformed, err)
		case errors.Is(err, gjwt.ErrTokenExpired):
			return "", fmt.Errorf("%w: %v", ErrTokenExpired, err)
		default:
			return "", fmt.Errorf("%w: %v", ErrTokenInvalid, err)
		}
	}
	if claims.Subject == "" {
		return "", ErrTokenInvalid
	}
	return claims.Subject, nil
}

func (c *Codec) keyfunc(t *gjwt.Token) (any, error) {
	if t.Method.Alg() != c.method.Alg() {
		return nil, fmt.Errorf("jwt: unexpected signing method %q", t.Method.Alg())
	}
	return c.verifyKey, nil
}

// parseEdPrivateKey accepts either a 64-byte ed25519 private key or a
// 32-byte seed.
func parseEdPrivateKey(raw []byte) (ed25519.PrivateKey, error) {
	switch len(raw) {
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	default:
		return nil, errors.New("jwt: invalid ed25519 private key length")
	}
}

func parseEdPublicKey(raw []byte) (ed25519.PublicKey, error) {
	if len(raw) != ed25519.PublicKeySize {
		return nil, errors.New("jwt: invalid ed25519 public key length")
	}
	return ed25519.PublicKey(raw), nil
}
