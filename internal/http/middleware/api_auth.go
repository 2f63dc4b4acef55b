package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const apiClaimsKey contextKey = "apiClaims"

// APIJWT guards the /api routes with an HS256 bearer token. An empty secret
// rejects every request rather than opening the API.
func APIJWT(secret string) func(http.Handler) http.Handler {
	key := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				http.Error(w, "api auth not configured", http.StatusUnauthorized)
				return
			}
			raw, ok := bearerToken(r)
			if !ok {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			var claims jwt.RegisteredClaims
			token, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
				return key, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
			if err != nil || !token.Valid {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), apiClaimsKey, claims)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(auth, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// APIClaimsFromContext returns the verified token claims, if any.
func APIClaimsFromContext(ctx context.Context) (jwt.RegisteredClaims, bool) {
	claims, ok := ctx.Value(apiClaimsKey).(jwt.RegisteredClaims)
	return claims, ok
}

// APISubject is the caller identity recorded in request logs.
func APISubject(ctx context.Context) string {
	claims, ok := APIClaimsFromContext(ctx)
	if !ok {
		return ""
	}
	return claims.Subject
}
