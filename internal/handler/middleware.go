package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/boddenberg/ev-dealer-bfa-go/internal/domain"
	"github.com/boddenberg/ev-dealer-bfa-go/internal/service"
	"github.com/boddenberg/ev-dealer-bfa-go/internal/session"

	"go.uber.org/zap"
)

type contextKey string

const (
	userKey      contextKey = "user"
	sessionIDKey contextKey = "sessionID"
)

// JWTAuthMiddleware validates Bearer tokens, loads the session they point to and
// injects the stored user into context. Tokens whose session is gone are refused.
func JWTAuthMiddleware(authSvc *service.AuthService, sessions *session.Provider, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("auth: missing token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "authentication token not provided")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				logger.Warn("auth: invalid token format",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "invalid token format")
				return
			}

			claims, err := authSvc.ValidateAccessToken(parts[1])
			if err != nil {
				logger.Warn("auth: invalid or expired token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}

			user := sessions.ResolveUser(r.Context(), claims.SessionID)
			if user.IsGuest() || user.ID != claims.UserID() {
				logger.Info("auth: token refers to an ended session",
					zap.String("path", r.URL.Path),
					zap.Int64("user_id", claims.UserID()),
				)
				writeError(w, http.StatusUnauthorized, "session expired")
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			ctx = context.WithValue(ctx, sessionIDKey, claims.SessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext extracts the authenticated user from context, or a guest.
func UserFromContext(ctx context.Context) domain.User {
	if u, ok := ctx.Value(userKey).(domain.User); ok {
		return u
	}
	return domain.Guest()
}

// SessionIDFromContext extracts the session id bound to the access token.
func SessionIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(sessionIDKey).(string)
	return v
}

// roleOf feeds rbac.Middleware from the authenticated user.
func roleOf(r *http.Request) (domain.Role, bool) {
	u := UserFromContext(r.Context())
	if u.IsGuest() {
		return "", false
	}
	return u.Role, true
}
