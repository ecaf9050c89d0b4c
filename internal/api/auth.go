package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type ctxKey int

const ownerCtxKey ctxKey = iota

const tokenIssuer = "minute"

// IssueToken mints a signed HS256 bearer token whose subject is ownerID.
// The CLI uses it to authenticate against the local server; tests use it
// to exercise the ownership checks.
func IssueToken(secret []byte, ownerID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   ownerID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// OwnerAuth validates the bearer token and resolves the owner identity
// for every request. Handlers downstream read the owner from the request
// context; nothing in a request body is ever trusted as an owner.
func OwnerAuth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(auth, prefix) {
				respondError(w, http.StatusUnauthorized, "invalid or missing bearer token")
				return
			}

			claims := &jwt.RegisteredClaims{}
			token, err := jwt.ParseWithClaims(auth[len(prefix):], claims,
				func(t *jwt.Token) (any, error) { return secret, nil },
				jwt.WithValidMethods([]string{"HS256"}),
			)
			if err != nil || !token.Valid || claims.Subject == "" {
				respondError(w, http.StatusUnauthorized, "invalid or missing bearer token")
				return
			}

			ctx := context.WithValue(r.Context(), ownerCtxKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ownerFrom returns the authenticated owner identity resolved by
// OwnerAuth. It is empty only if the middleware was bypassed.
func ownerFrom(ctx context.Context) string {
	owner, _ := ctx.Value(ownerCtxKey).(string)
	return owner
}
