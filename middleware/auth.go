package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"

	"workscope/auth"
	"workscope/db"
	"workscope/logger"
	"workscope/models"
	"workscope/normalize"
)

type contextKey string

const UserContextKey contextKey = "user"

// AuthMiddleware validates access tokens and injects the caller into the context.
// The identity is reloaded from the store on every request so level or role changes
// take effect without a new login.
func AuthMiddleware(jwtManager *auth.JWTManager, store db.Store, norm *normalize.Normalizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.ExtractToken(r.Header.Get("Authorization"))
			if err != nil {
				writeError(w, "Authentication required", http.StatusUnauthorized)
				return
			}

			claims, err := jwtManager.ValidateToken(token, auth.KindAccess)
			if err != nil {
				writeError(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			rec, err := store.GetByID(r.Context(), models.CollectionUsers, claims.UserID)
			if err != nil {
				logger.WithModule("auth").WithError(err).WithField("user_id", claims.UserID).Warn("token subject not loadable")
				writeError(w, "User not found", http.StatusUnauthorized)
				return
			}
			user := norm.User(*rec)

			ctx := WithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithUser stores user in ctx.
func WithUser(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}

// GetUserFromContext retrieves the user from the request context
func GetUserFromContext(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(UserContextKey).(models.User)
	return user, ok
}

// RequireRole middleware checks if the user has the required role
func RequireRole(allowedRoles ...models.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := GetUserFromContext(r.Context())
			if !ok {
				writeError(w, "User not found in context", http.StatusUnauthorized)
				return
			}

			if !slices.Contains(allowedRoles, user.Role) {
				writeError(w, "Insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
