package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/example/bookshelf/internal/auth"
)

// respondError writes a JSON error response
func respondError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}

// ExtractToken extracts a JWT token from cookie or Authorization header
func ExtractToken(r *http.Request) string {
	// Try cookie first (for browser)
	if cookie, err := r.Cookie("admin_token"); err == nil {
		return cookie.Value
	}
	// Fall back to Authorization header (for API clients)
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

type contextKey string

const (
	AdminContextKey contextKey = "admin"
)

// RequireAdmin validates the JWT token and checks the admin role before
// letting the request through.
func RequireAdmin(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := ExtractToken(r)
			if tokenString == "" {
				respondError(w, "access denied, no token provided", http.StatusUnauthorized)
				return
			}

			claims, err := jwtService.ValidateToken(tokenString)
			if err != nil {
				respondError(w, "invalid token", http.StatusUnauthorized)
				return
			}
			if claims.Role != auth.RoleAdmin {
				respondError(w, "admin privileges required", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), AdminContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAdminFromContext retrieves admin claims from the request context
func GetAdminFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(AdminContextKey).(*auth.Claims)
	return claims, ok
}
