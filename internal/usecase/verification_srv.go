package usecase

import (
	"context"
	"errors"
	"strings"

	"member-onboarding/internal/data/entity"
	"member-onboarding/internal/data/repository"
	"member-onboarding/pkg/mailer"
	"member-onboarding/pkg/ratelimit"
	"member-onboarding/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// VerificationService redeems email-verification tokens and re-sends them.
type VerificationService interface {
	VerifyEmail(ctx context.Context, token string) (uuid.UUID, error)
	// Resend accepts an account id or an email address.
	Resend(ctx context.Context, identifier string) error
}

type verificationService struct {
	repo      *repository.Repository
	tokens    TokenService
	lifecycle LifecycleService
	cooldown  *ratelimit.Cooldown
	config    *utils.Config
	mailer    EmailSender
	audit     AuditSink
	now       Clock
	log       *zap.Logger
}

func NewVerificationService(
	repo *repository.Repository,
	tokens TokenService,
	lifecycle LifecycleService,
	config *utils.Config,
	deps Dependencies,
	log *zap.Logger,
) VerificationService {
	return &verificationService{
		repo:      repo,
		tokens:    tokens,
		lifecycle: lifecycle,
		cooldown:  ratelimit.NewCooldown(deps.Limits, "resend:", config.Verification.ResendCooldown),
		config:    config,
		mailer:    deps.Mailer,
		audit:     deps.audit(),
		now:       deps.clock(),
		log:       log.With(zap.String("service", "verification")),
	}
}

func (s *verificationService) VerifyEmail(ctx context.Context, value string) (uuid.UUID, error) {
	var accountID uuid.UUID

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx *repository.Repository) error {
		id, err := s.tokens.WithRepository(tx).Consume(ctx, value, entity.PurposeEmailVerify)
		if err != nil {
			return err
		}
		accountID = id

		account, err := tx.Account.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if account == nil {
			return ErrAccountNotFound
		}

		now := s.now()
		if err := tx.Account.MarkEmailVerified(ctx, id, now); err != nil {
			return err
		}
		if account.EmailVerifiedAt == nil {
			account.EmailVerifiedAt = &now
		}

		// Accounts provisioned past email_verified only get the timestamp
		switch account.Status {
		case entity.StatusRegistered, entity.StatusEmailPending:
			_, err := s.lifecycle.WithRepository(tx).Transition(ctx, account, entity.StatusEmailVerified)
			return err
		}
		return nil
	})

	if errors.Is(err, ErrTokenExpired) || errors.Is(err, ErrTokenAlreadyConsumed) {
		// A replayed link of a verified account is not a failure
		if id, ok := s.verifiedOwner(ctx, value); ok {
			s.log.Info("Email already verified", zap.String("account_id", id.String()))
			return id, ErrAlreadyVerified
		}
		return uuid.Nil, err
	}
	if err != nil {
		if !domainErr(err) {
			s.log.Error("Failed to verify email", zap.Error(err))
		}
		return uuid.Nil, classify("verify email", err)
	}

	s.audit.Record(ctx, entity.NewAuditLog(entity.AuditEmailVerified, &accountID, s.now()))
	s.log.Info("Email verified", zap.String("account_id", accountID.String()))

	return accountID, nil
}

func (s *verificationService) verifiedOwner(ctx context.Context, value string) (uuid.UUID, bool) {
	token, err := s.tokens.Lookup(ctx, value)
	if err != nil || token == nil || token.Purpose != entity.PurposeEmailVerify {
		return uuid.Nil, false
	}
	account, err := s.repo.Account.FindByID(ctx, token.AccountID)
	if err != nil || account == nil || !account.IsEmailVerified() {
		return uuid.Nil, false
	}
	return account.ID, true
}

func (s *verificationService) resolve(ctx context.Context, identifier string) (*entity.Account, error) {
	identifier = strings.TrimSpace(identifier)
	if id, err := uuid.Parse(identifier); err == nil {
		return s.repo.Account.FindByID(ctx, id)
	}
	return s.repo.Account.FindByEmail(ctx, normalizeEmail(identifier))
}

func (s *verificationService) Resend(ctx context.Context, identifier string) error {
	// 1. Find account
	account, err := s.resolve(ctx, identifier)
	if err != nil {
		s.log.Error("Failed to resolve account for resend", zap.Error(err))
		return persistenceErr("find account", err)
	}
	if account == nil {
		return ErrAccountNotFound
	}
	if account.IsEmailVerified() {
		return ErrAlreadyVerified
	}

	// 2. Cooldown keyed by account, shared by every client
	key := account.ID.String()
	ok, retryAfter, err := s.cooldown.Acquire(ctx, key)
	if err != nil {
		s.log.Error("Rate limiter unavailable", zap.Error(err))
		return &CollaboratorError{Kind: KindRateLimit, Op: "resend cooldown", Err: err}
	}
	if !ok {
		s.log.Info("Resend throttled",
			zap.String("account_id", key),
			zap.Duration("retry_after", retryAfter),
		)
		return &RateLimitedError{RetryAfter: retryAfter}
	}

	release := func() {
		if err := s.cooldown.Release(context.WithoutCancel(ctx), key); err != nil {
			s.log.Warn("Failed to release resend cooldown", zap.Error(err), zap.String("account_id", key))
		}
	}

	// 3. New token replaces the old one
	var token *entity.Token
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx *repository.Repository) error {
		issued, err := s.tokens.WithRepository(tx).Issue(ctx, account.ID, entity.PurposeEmailVerify, s.config.Token.EmailVerifyTTL)
		if err != nil {
			return err
		}
		token = issued

		if account.Status == entity.StatusRegistered {
			_, err := s.lifecycle.WithRepository(tx).Transition(ctx, account, entity.StatusEmailPending)
			if err != nil && !errors.Is(err, ErrAlreadyInState) {
				return err
			}
		}
		return nil
	})
	if err != nil {
		release()
		s.log.Error("Failed to reissue verification token", zap.Error(err), zap.String("account_id", key))
		return classify("resend verification", err)
	}

	// 4. Dispatch
	if err := s.mailer.Send(ctx, account.Email, mailer.TemplateEmailVerify, token.Value); err != nil {
		release()
		s.log.Error("Failed to send verification email", zap.Error(err), zap.String("account_id", key))
		return &CollaboratorError{Kind: KindDelivery, Op: "send verification email", Err: err}
	}

	s.audit.Record(ctx, entity.NewAuditLog(entity.AuditVerificationResent, &account.ID, s.now()))
	s.log.Info("Verification email resent", zap.String("account_id", key))

	return nil
}
