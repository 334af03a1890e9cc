package middleware

import (
	"context"
	"net/http"
	"strings"

	authgate "github.com/devharbor/authgate"
)

type identityContextKey struct{}

// IdentityFromContext returns the identity bound by [Authenticate], if any.
func IdentityFromContext(ctx context.Context) (*authgate.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(*authgate.Identity)
	return identity, ok
}

// Authenticate returns middleware that resolves a Bearer token to an
// identity. Requests without a bearer header continue anonymously; a
// present but unverifiable token is rejected with 401.
func Authenticate(engine *authgate.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			identity, err := engine.VerifyToken(r.Context(), token)
			if err != nil {
				writeUnauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), identityContextKey{}, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireIdentity rejects requests that carry no authenticated identity.
// Compose it after [Authenticate].
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); !ok {
			writeUnauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return header[len(prefix):], true
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
}
