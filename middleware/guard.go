package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/travelplanner/tripauth/jwt"
)

// Verifier checks a token and returns its claims. *jwt.Manager satisfies it.
type Verifier interface {
	Parse(tokenStr string) (*jwt.Claims, error)
}

type claimsContextKey struct{}

// ClaimsFromContext returns the claims attached by a guard.
func ClaimsFromContext(ctx context.Context) (*jwt.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*jwt.Claims)
	return claims, ok
}

// EmailFromContext returns the authenticated email, or "" when none.
func EmailFromContext(ctx context.Context) string {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return ""
	}
	return claims.Subject
}

// RequireBearer answers 401 unless the request carries a token v accepts.
func RequireBearer(v Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				unauthorized(w, "Invalid authentication credentials")
				return
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				unauthorized(w, "Authorization header missing")
				return
			}
			token, ok := bearerToken(header)
			if !ok {
				unauthorized(w, "Invalid authorization header format")
				return
			}

			claims, err := v.Parse(token)
			if err != nil {
				unauthorized(w, "Invalid authentication credentials")
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalBearer attaches claims for a valid token and otherwise passes the request on unchanged.
func OptionalBearer(v Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v != nil {
				if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
					if claims, err := v.Parse(token); err == nil {
						r = r.WithContext(context.WithValue(r.Context(), claimsContextKey{}, claims))
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
