package usecase

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"member-onboarding/internal/data/repository"
	"member-onboarding/pkg/utils"
)

var (
	ErrDuplicateEmail       = repository.ErrDuplicateEmail
	ErrAccountNotFound      = errors.New("account not found")
	ErrTokenNotFound        = errors.New("token not found")
	ErrTokenExpired         = errors.New("token expired")
	ErrTokenAlreadyConsumed = errors.New("token already used")
	ErrWrongTokenPurpose    = errors.New("token purpose mismatch")
	ErrAlreadyVerified      = errors.New("email already verified")
	ErrAlreadyActivated     = errors.New("account already activated")
	ErrAlreadyInState       = errors.New("account already in requested state")
	ErrInvalidTransition    = errors.New("invalid account state transition")
	ErrGuardFailed          = errors.New("transition guard failed")
	ErrStaleState           = errors.New("account state changed concurrently")
	ErrAccountInactive      = errors.New("account is not active")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrEmailNotVerified     = errors.New("email not verified")
	ErrAccountLocked        = errors.New("account temporarily locked")
	ErrPasswordPolicy       = errors.New("password does not meet policy")
	ErrUnauthenticated      = errors.New("authentication required")
	ErrForbidden            = errors.New("forbidden")
)

// ValidationError carries per-field messages keyed by JSON field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + utils.FormatValidationErrors(e.Fields)
}

func newValidationError(field, reason string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: reason}}
}

// PasswordPolicyError lists every rule a password broke. It matches ErrPasswordPolicy.
type PasswordPolicyError struct {
	Reasons []string
}

func (e *PasswordPolicyError) Error() string {
	return ErrPasswordPolicy.Error() + ": " + strings.Join(e.Reasons, "; ")
}

func (e *PasswordPolicyError) Is(target error) bool {
	return target == ErrPasswordPolicy
}

// RateLimitedError is returned while a cooldown or lockout is running.
type RateLimitedError struct {
	RetryAfter time.Duration
	Locked     bool
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter.Round(time.Second))
}

// Is lets a login lockout match ErrAccountLocked.
func (e *RateLimitedError) Is(target error) bool {
	return e.Locked && target == ErrAccountLocked
}

type CollaboratorKind string

const (
	KindPersistence CollaboratorKind = "persistence"
	KindDelivery    CollaboratorKind = "delivery"
	KindStorage     CollaboratorKind = "storage"
	KindRateLimit   CollaboratorKind = "rate_limit"
)

// CollaboratorError wraps a failure of the store, mailer, file store or limiter.
// Its cause is logged, never shown to end users.
type CollaboratorError struct {
	Kind CollaboratorKind
	Op   string
	Err  error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s failure during %s: %v", e.Kind, e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

func persistenceErr(op string, err error) error {
	return &CollaboratorError{Kind: KindPersistence, Op: op, Err: err}
}

// domainErr reports whether err belongs to the typed taxonomy and can pass
// through a transaction unchanged.
func domainErr(err error) bool {
	var (
		verr *ValidationError
		perr *PasswordPolicyError
		rerr *RateLimitedError
		cerr *CollaboratorError
	)
	if errors.As(err, &verr) || errors.As(err, &perr) || errors.As(err, &rerr) || errors.As(err, &cerr) {
		return true
	}
	for _, known := range []error{
		ErrDuplicateEmail, ErrAccountNotFound, ErrTokenNotFound, ErrTokenExpired,
		ErrTokenAlreadyConsumed, ErrWrongTokenPurpose, ErrAlreadyVerified, ErrAlreadyActivated,
		ErrAlreadyInState, ErrInvalidTransition, ErrGuardFailed, ErrStaleState,
		ErrAccountInactive, ErrForbidden,
	} {
		if errors.Is(err, known) {
			return true
		}
	}
	return false
}

// classify leaves typed errors alone and marks anything else as a persistence failure.
func classify(op string, err error) error {
	if err == nil || domainErr(err) {
		return err
	}
	return persistenceErr(op, err)
}
