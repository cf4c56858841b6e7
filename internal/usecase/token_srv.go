package usecase

import (
	"context"
	"fmt"
	"time"

	"member-onboarding/internal/data/entity"
	"member-onboarding/internal/data/repository"
	"member-onboarding/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TokenService issues and redeems single-use, time-limited tokens.
type TokenService interface {
	// Issue stores a fresh token and drops every other outstanding token of
	// the same account and purpose.
	Issue(ctx context.Context, accountID uuid.UUID, purpose entity.TokenPurpose, ttl time.Duration) (*entity.Token, error)
	// Verify checks a token without changing it.
	Verify(ctx context.Context, value string, purpose entity.TokenPurpose) (uuid.UUID, error)
	// Consume marks the token used. Among concurrent callers exactly one wins;
	// the rest get ErrTokenAlreadyConsumed.
	Consume(ctx context.Context, value string, purpose entity.TokenPurpose) (uuid.UUID, error)
	Lookup(ctx context.Context, value string) (*entity.Token, error)
	// WithRepository binds the service to a transaction-scoped repository.
	WithRepository(repo *repository.Repository) TokenService
}

type tokenService struct {
	repo     *repository.Repository
	now      Clock
	generate func() (string, error)
	log      *zap.Logger
}

func NewTokenService(repo *repository.Repository, now Clock, log *zap.Logger) TokenService {
	if now == nil {
		now = time.Now
	}
	return &tokenService{
		repo:     repo,
		now:      now,
		generate: utils.GenerateOpaqueToken,
		log:      log.With(zap.String("service", "token")),
	}
}

func (s *tokenService) WithRepository(repo *repository.Repository) TokenService {
	bound := *s
	bound.repo = repo
	return &bound
}

func (s *tokenService) Issue(ctx context.Context, accountID uuid.UUID, purpose entity.TokenPurpose, ttl time.Duration) (*entity.Token, error) {
	if ttl <= 0 {
		return nil, newValidationError("ttl", "must be positive")
	}

	value, err := s.generate()
	if err != nil {
		s.log.Error("Failed to generate token", zap.Error(err))
		return nil, fmt.Errorf("generate %s token: %w", purpose, err)
	}

	now := s.now()
	token := &entity.Token{
		BaseSimple: entity.BaseSimple{ID: uuid.New(), CreatedAt: now},
		Value:      value,
		AccountID:  accountID,
		Purpose:    purpose,
		IssuedAt:   now,
		ExpiresAt:  now.Add(ttl),
	}

	if err := s.repo.Token.Replace(ctx, token); err != nil {
		return nil, persistenceErr("issue token", err)
	}

	s.log.Info("Token issued",
		zap.String("account_id", accountID.String()),
		zap.String("purpose", string(purpose)),
		zap.String("token", utils.TokenHint(value)),
		zap.Time("expires_at", token.ExpiresAt),
	)
	return token, nil
}

func (s *tokenService) Lookup(ctx context.Context, value string) (*entity.Token, error) {
	token, err := s.repo.Token.FindByValue(ctx, value)
	if err != nil {
		return nil, persistenceErr("lookup token", err)
	}
	return token, nil
}

// check classifies a stored token at now. A used token reports
// ErrTokenAlreadyConsumed even after it has also expired.
func check(token *entity.Token, purpose entity.TokenPurpose, now time.Time) error {
	switch {
	case token == nil:
		return ErrTokenNotFound
	case token.Purpose != purpose:
		return ErrWrongTokenPurpose
	case token.IsConsumed():
		return ErrTokenAlreadyConsumed
	case token.ExpiredAt(now):
		return ErrTokenExpired
	}
	return nil
}

func (s *tokenService) Verify(ctx context.Context, value string, purpose entity.TokenPurpose) (uuid.UUID, error) {
	if value == "" {
		return uuid.Nil, ErrTokenNotFound
	}

	token, err := s.Lookup(ctx, value)
	if err != nil {
		return uuid.Nil, err
	}
	if err := check(token, purpose, s.now()); err != nil {
		return uuid.Nil, err
	}
	return token.AccountID, nil
}

func (s *tokenService) Consume(ctx context.Context, value string, purpose entity.TokenPurpose) (uuid.UUID, error) {
	// 1. Same checks as Verify
	if value == "" {
		return uuid.Nil, ErrTokenNotFound
	}
	token, err := s.Lookup(ctx, value)
	if err != nil {
		return uuid.Nil, err
	}
	now := s.now()
	if err := check(token, purpose, now); err != nil {
		return uuid.Nil, err
	}

	// 2. Conditional write; the store decides the race
	consumed, err := s.repo.Token.Consume(ctx, value, purpose, now)
	if err != nil {
		return uuid.Nil, persistenceErr("consume token", err)
	}
	if consumed {
		s.log.Info("Token consumed",
			zap.String("account_id", token.AccountID.String()),
			zap.String("purpose", string(purpose)),
		)
		return token.AccountID, nil
	}

	// 3. Lost the race or the token changed underneath; re-read to say why
	token, err = s.Lookup(ctx, value)
	if err != nil {
		return uuid.Nil, err
	}
	if err := check(token, purpose, now); err != nil {
		return uuid.Nil, err
	}
	return uuid.Nil, ErrTokenAlreadyConsumed
}
