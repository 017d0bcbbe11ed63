package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/zerocool-source/apiV2/internal/authz"
	"github.com/zerocool-source/apiV2/internal/shared/config"
	"github.com/zerocool-source/apiV2/internal/shared/types"
)

type contextKey string

const identityContextKey contextKey = "identity"

// Claims are the platform's JWT claims: the subject plus a single role.
// Everything downstream works off the verified (user, role) pair.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// Middleware creates JWT authentication middleware. Verified requests
// carry an authz.Identity in their context.
func Middleware(cfg config.AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				writeError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			token, err := jwt.ParseWithClaims(parts[1], &Claims{}, func(token *jwt.Token) (interface{}, error) {
				return []byte(cfg.JWTSecret), nil
			})
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			claims, ok := token.Claims.(*Claims)
			if !ok || !token.Valid {
				writeError(w, http.StatusUnauthorized, "invalid token claims")
				return
			}

			role, err := authz.ParseRole(claims.Role)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid role claim")
				return
			}
			userID, err := types.ParseID(claims.Subject)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid subject claim")
				return
			}

			identity := authz.Identity{UserID: userID, Role: role}
			ctx := context.WithValue(r.Context(), identityContextKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetIdentity extracts the verified identity from the request context. The
// zero Identity is returned for unauthenticated requests.
func GetIdentity(ctx context.Context) (authz.Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(authz.Identity)
	return id, ok
}

// WithIdentity injects an identity into a context. Used by tests and by
// internal jobs acting as the system.
func WithIdentity(ctx context.Context, id authz.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// RequireRoles creates middleware that requires one of the given roles
func RequireRoles(roles ...authz.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := GetIdentity(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			for _, role := range roles {
				if identity.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			writeError(w, http.StatusForbidden, "insufficient role")
		})
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
