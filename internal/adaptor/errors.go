package adaptor

import (
	"errors"
	"net/http"
	"strings"

	"member-onboarding/internal/usecase"
	"member-onboarding/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const retryLaterMessage = "Please try again later"

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

// Order matters: the first mapping that matches wins.
var errorMappings = []errorMapping{
	{usecase.ErrAccountLocked, http.StatusTooManyRequests, "account_locked", "Too many failed attempts"},
	{usecase.ErrDuplicateEmail, http.StatusConflict, "duplicate_email", "Email is already registered"},
	{usecase.ErrAccountNotFound, http.StatusNotFound, "account_not_found", "Account not found"},
	{usecase.ErrTokenNotFound, http.StatusNotFound, "token_not_found", "Link is invalid"},
	{usecase.ErrTokenExpired, http.StatusGone, "token_expired", "Link has expired, request a new one"},
	{usecase.ErrTokenAlreadyConsumed, http.StatusConflict, "token_used", "Link was already used"},
	{usecase.ErrWrongTokenPurpose, http.StatusBadRequest, "token_purpose", "Link is not valid for this page"},
	{usecase.ErrAlreadyVerified, http.StatusConflict, "already_verified", "Email is already verified, please login"},
	{usecase.ErrAlreadyActivated, http.StatusConflict, "already_activated", "Account is already active, please login"},
	{usecase.ErrAlreadyInState, http.StatusConflict, "already_in_state", "Account is already in that state"},
	{usecase.ErrInvalidTransition, http.StatusConflict, "invalid_transition", "Action not allowed for this account"},
	{usecase.ErrGuardFailed, http.StatusConflict, "transition_guard", "Account is missing required data"},
	{usecase.ErrStaleState, http.StatusConflict, "stale_state", "Account changed, reload and retry"},
	{usecase.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password"},
	{usecase.ErrEmailNotVerified, http.StatusForbidden, "email_not_verified", "Verify your email before logging in"},
	{usecase.ErrAccountInactive, http.StatusForbidden, "account_inactive", "Account is not active"},
	{usecase.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated", "Authentication required"},
	{usecase.ErrForbidden, http.StatusForbidden, "forbidden", "Access denied"},
}

// Repeats of an already-satisfied request are answered with success.
var idempotentOutcomes = []errorMapping{
	{usecase.ErrAlreadyVerified, http.StatusOK, "already_verified", "Email is already verified, please login"},
	{usecase.ErrAlreadyInState, http.StatusOK, "already_in_state", "Account is already in that state"},
}

type idempotentResult struct {
	AccountID string `json:"account_id"`
	Status    string `json:"status"`
}

// handleIdempotent writes a success response when err only reports that the
// request was already satisfied. It returns false for every other error.
func handleIdempotent(w http.ResponseWriter, log *zap.Logger, err error, accountID uuid.UUID, operation string) bool {
	for _, m := range idempotentOutcomes {
		if errors.Is(err, m.target) {
			log.Info(operation+" already satisfied", zap.String("account_id", accountID.String()))
			utils.ResponseSuccess(w, m.message, idempotentResult{AccountID: accountID.String(), Status: m.code})
			return true
		}
	}
	return false
}

// handleServiceError maps a service error onto the response envelope.
// Collaborator failures never expose their cause.
func handleServiceError(w http.ResponseWriter, log *zap.Logger, err error, operation string) {
	var (
		verr *usecase.ValidationError
		perr *usecase.PasswordPolicyError
		rerr *usecase.RateLimitedError
		cerr *usecase.CollaboratorError
	)

	switch {
	case errors.As(err, &verr):
		log.Warn(operation+" validation failed", zap.Any("fields", verr.Fields))
		utils.ResponseError(w, http.StatusBadRequest, "Validation failed",
			utils.ErrorBody{Code: "validation_failed", Fields: verr.Fields})
		return

	case errors.As(err, &perr):
		log.Warn(operation+" failed - password policy", zap.Strings("reasons", perr.Reasons))
		utils.ResponseError(w, http.StatusUnprocessableEntity, "Password does not meet the policy",
			utils.ErrorBody{Code: "password_policy", Fields: map[string]string{"password": strings.Join(perr.Reasons, "; ")}})
		return

	case errors.As(err, &rerr):
		code, message := "rate_limited", "Please wait before trying again"
		if rerr.Locked {
			code, message = "account_locked", "Too many failed attempts"
		}
		log.Warn(operation+" failed - rate limited", zap.Duration("retry_after", rerr.RetryAfter))
		utils.ResponseTooManyRequests(w, message, code, rerr.RetryAfter)
		return

	case errors.As(err, &cerr):
		log.Error(operation+" failed - collaborator unavailable",
			zap.Error(err),
			zap.String("kind", string(cerr.Kind)),
			zap.String("op", cerr.Op),
		)
		utils.ResponseUnavailable(w, retryLaterMessage)
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			log.Warn(operation+" failed", zap.Error(err), zap.String("code", m.code))
			utils.ResponseError(w, m.status, m.message, utils.ErrorBody{Code: m.code})
			return
		}
	}

	log.Error("Failed to "+operation, zap.Error(err), zap.String("operation", operation))
	utils.ResponseInternalError(w, "Internal server error")
}
