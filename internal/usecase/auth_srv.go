package usecase

import (
	"context"
	"errors"

	"member-onboarding/internal/data/entity"
	"member-onboarding/internal/data/repository"
	"member-onboarding/internal/dto/request"
	"member-onboarding/internal/dto/response"
	"member-onboarding/pkg/ratelimit"
	"member-onboarding/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionMeta describes the client opening a session.
type SessionMeta struct {
	UserAgent string
	IPAddress string
}

// AuthService is the login gateway: it evaluates attempts, opens and closes
// sessions and resolves the principal behind a session token.
type AuthService interface {
	Login(ctx context.Context, req *request.LoginRequest, meta SessionMeta) (*response.LoginResponse, error)
	Logout(ctx context.Context, principal *entity.Principal) error
	Authenticate(ctx context.Context, token string) (*entity.Principal, error)
	LoginForm() response.LoginFormResponse
}

type authService struct {
	repo    *repository.Repository
	access  AccessService
	lockout *ratelimit.Lockout
	config  *utils.Config
	audit   AuditSink
	now     Clock
	log     *zap.Logger
}

func NewAuthService(
	repo *repository.Repository,
	access AccessService,
	config *utils.Config,
	deps Dependencies,
	log *zap.Logger,
) AuthService {
	return &authService{
		repo:   repo,
		access: access,
		lockout: ratelimit.NewLockout(deps.Limits, "login:",
			config.Login.MaxAttempts, config.Login.AttemptWindow, config.Login.LockoutPeriod),
		config: config,
		audit:  deps.audit(),
		now:    deps.clock(),
		log:    log.With(zap.String("service", "auth")),
	}
}

func (s *authService) LoginForm() response.LoginFormResponse {
	return response.LoginFormResponse{
		MaxAttempts:          s.config.Login.MaxAttempts,
		LockoutMinutes:       int(s.config.Login.LockoutPeriod.Minutes()),
		RequireVerifiedEmail: s.config.Verification.RequireVerifiedEmail,
	}
}

func (s *authService) recordFailure(ctx context.Context, account *entity.Account, reason string) {
	var id *uuid.UUID
	if account != nil {
		id = &account.ID
	}
	event := entity.NewAuditLog(entity.AuditLoginFailed, id, s.now())
	event.Detail["reason"] = reason
	s.audit.Record(ctx, event)
}

func (s *authService) Login(ctx context.Context, req *request.LoginRequest, meta SessionMeta) (*response.LoginResponse, error) {
	// 1. Validasi
	req.Email = normalizeEmail(req.Email)
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Login validation failed", zap.Any("errors", errs))
		return nil, &ValidationError{Fields: errs}
	}

	// 2. Find account
	account, err := s.repo.Account.FindByEmail(ctx, req.Email)
	if err != nil {
		s.log.Error("Failed to find account", zap.Error(err))
		return nil, persistenceErr("find account", err)
	}
	if account == nil {
		// Same bcrypt cost as a real check; unknown emails are not counted
		utils.BurnPasswordCheck(req.Password)
		s.recordFailure(ctx, nil, "unknown_email")
		return nil, ErrInvalidCredentials
	}
	key := account.ID.String()

	// 3. Lockout guard
	remaining, err := s.lockout.Locked(ctx, key)
	if err != nil {
		s.log.Error("Rate limiter unavailable", zap.Error(err))
		return nil, &CollaboratorError{Kind: KindRateLimit, Op: "login lockout", Err: err}
	}
	if remaining > 0 {
		s.log.Warn("Login attempt on locked account", zap.String("account_id", key))
		return nil, &RateLimitedError{RetryAfter: remaining, Locked: true}
	}

	// 4. Check password
	if !account.HasPassword() || !utils.CheckPasswordHash(req.Password, *account.PasswordHash) {
		if !account.HasPassword() {
			utils.BurnPasswordCheck(req.Password)
		}
		s.recordFailure(ctx, account, "invalid_password")

		locked, retryAfter, err := s.lockout.Fail(ctx, key)
		if err != nil {
			s.log.Error("Failed to count login failure", zap.Error(err), zap.String("account_id", key))
		}
		if locked {
			s.log.Warn("Account locked after failed logins", zap.String("account_id", key))
			event := entity.NewAuditLog(entity.AuditAccountLocked, &account.ID, s.now())
			event.Detail["attempts"] = s.lockout.MaxAttempts()
			s.audit.Record(ctx, event)
			return nil, &RateLimitedError{RetryAfter: retryAfter, Locked: true}
		}
		s.log.Warn("Invalid password", zap.String("account_id", key))
		return nil, ErrInvalidCredentials
	}

	// 5. Gating
	if s.config.Verification.RequireVerifiedEmail && !account.IsEmailVerified() {
		s.recordFailure(ctx, account, "email_not_verified")
		return nil, ErrEmailNotVerified
	}
	if account.Status != entity.StatusActive {
		s.log.Warn("Inactive account tried to login",
			zap.String("account_id", key),
			zap.String("status", string(account.Status)),
		)
		s.recordFailure(ctx, account, "inactive")
		return nil, ErrAccountInactive
	}

	if err := s.lockout.Reset(ctx, key); err != nil {
		s.log.Warn("Failed to reset login failures", zap.Error(err), zap.String("account_id", key))
	}

	// 6. Create session
	now := s.now()
	session := &entity.Session{
		BaseSimple: entity.BaseSimple{ID: uuid.New(), CreatedAt: now},
		AccountID:  account.ID,
		Token:      utils.GenerateSessionToken(),
		ExpiresAt:  now.Add(s.config.Session.TTL),
	}
	if meta.UserAgent != "" {
		session.UserAgent = &meta.UserAgent
	}
	if meta.IPAddress != "" {
		session.IPAddress = &meta.IPAddress
	}
	if err := s.repo.Session.Create(ctx, session); err != nil {
		s.log.Error("Failed to create session", zap.Error(err), zap.String("account_id", key))
		return nil, persistenceErr("create session", err)
	}

	// 7. Roles, permissions, redirect
	principal, err := s.access.Principal(ctx, account, session.Token)
	if err != nil {
		return nil, err
	}
	redirect := s.access.ResolveRedirect(principal.Roles)

	s.audit.Record(ctx, entity.NewAuditLog(entity.AuditLoginSucceeded, &account.ID, now))
	s.log.Info("Account logged in",
		zap.String("account_id", key),
		zap.String("redirect", redirect.Path),
	)

	return &response.LoginResponse{
		AccountID:   key,
		Token:       session.Token.String(),
		ExpiresAt:   session.ExpiresAt,
		Email:       account.Email,
		Roles:       principal.Roles,
		Permissions: principal.Permissions.Names(),
		Redirect:    redirect,
	}, nil
}

func (s *authService) Logout(ctx context.Context, principal *entity.Principal) error {
	if principal == nil {
		return ErrUnauthenticated
	}

	err := s.repo.Session.Revoke(ctx, principal.SessionToken, s.now())
	if err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
		s.log.Error("Failed to revoke session", zap.Error(err))
		return persistenceErr("revoke session", err)
	}

	s.audit.Record(ctx, entity.NewAuditLog(entity.AuditLogout, &principal.AccountID, s.now()))
	s.log.Info("Account logged out", zap.String("account_id", principal.AccountID.String()))
	return nil
}

func (s *authService) Authenticate(ctx context.Context, token string) (*entity.Principal, error) {
	tokenUUID, err := uuid.Parse(token)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	session, err := s.repo.Session.FindValidSession(ctx, tokenUUID, s.now())
	if err != nil {
		return nil, persistenceErr("find session", err)
	}
	if session == nil {
		return nil, ErrUnauthenticated
	}

	account, err := s.repo.Account.FindByID(ctx, session.AccountID)
	if err != nil {
		return nil, persistenceErr("find account", err)
	}
	if account == nil {
		return nil, ErrUnauthenticated
	}
	if account.Status != entity.StatusActive {
		return nil, ErrAccountInactive
	}

	return s.access.Principal(ctx, account, session.Token)
}
