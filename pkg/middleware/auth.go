package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"member-onboarding/internal/data/entity"
	"member-onboarding/internal/usecase"
	"member-onboarding/pkg/utils"

	"go.uber.org/zap"
)

// Authenticator resolves a session token into the principal behind it.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*entity.Principal, error)
}

// AuthSession validates the bearer session token and stores the principal in
// the request context.
func AuthSession(auth Authenticator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Extract token
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				utils.ResponseUnauthorized(w, "Missing authorization token")
				return
			}

			scheme, token, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				utils.ResponseUnauthorized(w, "Invalid token format. Use: Bearer <token>")
				return
			}
			token = strings.TrimSpace(token)

			principal, err := auth.Authenticate(r.Context(), token)
			switch {
			case err == nil:
			case errors.Is(err, usecase.ErrAccountInactive):
				logger.Warn("Session of inactive account", zap.String("path", r.URL.Path))
				utils.ResponseError(w, http.StatusForbidden, "Account is not active",
					utils.ErrorBody{Code: "account_inactive"})
				return
			case errors.Is(err, usecase.ErrUnauthenticated):
				logger.Warn("Invalid or expired session",
					zap.String("token", utils.TokenHint(token)),
					zap.String("path", r.URL.Path),
				)
				utils.ResponseUnauthorized(w, "Invalid or expired session")
				return
			default:
				logger.Error("Failed to validate session", zap.Error(err))
				utils.ResponseUnavailable(w, "Please try again later")
				return
			}

			next.ServeHTTP(w, r.WithContext(utils.SetPrincipal(r.Context(), principal)))
		})
	}
}

// RequirePermission rejects principals that lack perm. It must run after AuthSession.
func RequirePermission(perm entity.Permission, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := utils.GetPrincipal(r.Context())
			if !ok {
				utils.ResponseUnauthorized(w, "Authentication required")
				return
			}

			if !principal.Can(perm) {
				logger.Warn("Permission denied",
					zap.String("account_id", principal.AccountID.String()),
					zap.String("permission", perm.String()),
					zap.String("path", r.URL.Path),
				)
				utils.ResponseError(w, http.StatusForbidden, "Access denied", utils.ErrorBody{Code: "forbidden"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
