package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/trailhead/tours-api/internal/apperror"
	"github.com/trailhead/tours-api/internal/domain"
	"github.com/trailhead/tours-api/internal/http/response"
	"github.com/trailhead/tours-api/internal/service"
)

type contextKey string

const userContextKey contextKey = "currentUser"

// UserFromContext returns the authenticated user placed by Protect.
func UserFromContext(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(userContextKey).(*domain.User)
	return user, ok
}

// Protect rejects requests without a valid bearer token. The token may
// arrive in the Authorization header or in the jwt cookie; the header
// wins when both are present.
func Protect(auth service.AuthService, dev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				response.Error(w, r, apperror.Unauthorized("You are not logged in. Please log in to get access"), dev)
				return
			}

			user, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				response.Error(w, r, err, dev)
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RestrictTo allows only the named roles past. Must run after Protect.
func RestrictTo(dev bool, roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				response.Error(w, r, apperror.Unauthorized("You are not logged in. Please log in to get access"), dev)
				return
			}
			if !allowed[user.Role] {
				response.Error(w, r, apperror.Forbidden("You do not have permission to perform this action"), dev)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if cookie, err := r.Cookie("jwt"); err == nil {
		return cookie.Value
	}
	return ""
}
