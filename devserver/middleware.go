package devserver

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jmcleod/folio/storage"
)

type contextKey int

const (
	accountKey contextKey = iota
	claimsKey
)

// AuthMiddleware requires a valid bearer token and stores the admin account
// and token claims on the request context.
func (a *API) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			a.mapError(w, r, errUnauthorized)
			return
		}
		claims, err := a.tokens.parse(token)
		if err != nil {
			a.mapError(w, r, errInvalidBearer)
			return
		}
		acct, err := a.loadAccount(claims.Subject)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrBucketNotFound) {
				err = errInvalidBearer
			}
			a.mapError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), accountKey, acct)
		ctx = context.WithValue(ctx, claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func accountFromContext(ctx context.Context) *account {
	acct, _ := ctx.Value(accountKey).(*account)
	return acct
}

func claimsFromContext(ctx context.Context) *jwt.RegisteredClaims {
	claims, _ := ctx.Value(claimsKey).(*jwt.RegisteredClaims)
	return claims
}

// SecurityHeaders is middleware that sets standard security response headers
// on every response. The docs pages load their assets from a CDN so they get
// a looser content policy.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if !strings.Contains(r.URL.Path, "/docs") {
			w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		}
		if requestIsSecure(r) {
			w.Header().Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

func requestIsSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
