package usecase

import (
	"context"
	"errors"
	"strings"

	"member-onboarding/internal/data/entity"
	"member-onboarding/internal/data/repository"
	"member-onboarding/internal/dto/request"
	"member-onboarding/internal/dto/response"
	"member-onboarding/pkg/mailer"
	"member-onboarding/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RegistrationService creates self-registered accounts.
type RegistrationService interface {
	Register(ctx context.Context, req *request.RegisterRequest) (*response.RegisterResponse, error)
	Form(ctx context.Context) (*response.RegisterFormResponse, error)
}

type registrationService struct {
	repo   *repository.Repository
	tokens TokenService
	config *utils.Config
	mailer EmailSender
	audit  AuditSink
	now    Clock
	log    *zap.Logger
}

func NewRegistrationService(
	repo *repository.Repository,
	tokens TokenService,
	config *utils.Config,
	deps Dependencies,
	log *zap.Logger,
) RegistrationService {
	return &registrationService{
		repo:   repo,
		tokens: tokens,
		config: config,
		mailer: deps.Mailer,
		audit:  deps.audit(),
		now:    deps.clock(),
		log:    log.With(zap.String("service", "registration")),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizeOptionalPhone(phone *string) *string {
	if phone == nil || strings.TrimSpace(*phone) == "" {
		return nil
	}
	n := utils.NormalizePhone(strings.TrimSpace(*phone))
	return &n
}

func (s *registrationService) Form(ctx context.Context) (*response.RegisterFormResponse, error) {
	regions, err := s.repo.Region.FindAll(ctx)
	if err != nil {
		return nil, persistenceErr("list regions", err)
	}

	p := s.config.Password
	return &response.RegisterFormResponse{
		Regions: response.RegionsToResponse(regions),
		PasswordPolicy: response.PasswordPolicyResponse{
			MinLength:     p.MinLength,
			MaxLength:     p.MaxLength,
			RequireUpper:  p.RequireUpper,
			RequireLower:  p.RequireLower,
			RequireDigit:  p.RequireDigit,
			RequireSymbol: p.RequireSymbol,
		},
	}, nil
}

func (s *registrationService) Register(ctx context.Context, req *request.RegisterRequest) (*response.RegisterResponse, error) {
	// 1. Validasi input
	req.Email = normalizeEmail(req.Email)
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Register validation failed", zap.Any("errors", errs))
		return nil, &ValidationError{Fields: errs}
	}

	var passwordHash *string
	if req.Password != "" {
		if reasons := utils.CheckPasswordPolicy(s.config.Password, req.Password); len(reasons) > 0 {
			return nil, &PasswordPolicyError{Reasons: reasons}
		}
		hash, err := utils.HashPassword(req.Password)
		if err != nil {
			s.log.Error("Failed to hash password", zap.Error(err))
			return nil, persistenceErr("hash password", err)
		}
		passwordHash = &hash
	}

	if req.RegionID != nil {
		region, err := s.repo.Region.FindByID(ctx, *req.RegionID)
		if err != nil {
			return nil, persistenceErr("find region", err)
		}
		if region == nil {
			return nil, newValidationError("region_id", "Unknown region")
		}
	}

	// 2. Cek email sudah terdaftar
	existing, err := s.repo.Account.FindByEmail(ctx, req.Email)
	if err != nil {
		s.log.Error("Failed to check email", zap.Error(err))
		return nil, persistenceErr("check email", err)
	}
	if existing != nil {
		return nil, ErrDuplicateEmail
	}

	// 3. Account, profile, role and token commit together
	now := s.now()
	account := &entity.Account{
		BaseNoDelete: entity.BaseNoDelete{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Email:        req.Email,
		PasswordHash: passwordHash,
		Status:       entity.StatusRegistered,
	}
	profile := &entity.MemberProfile{
		AccountID: account.ID,
		FullName:  strings.TrimSpace(req.FullName),
		Phone:     normalizeOptionalPhone(req.Phone),
		WhatsApp:  normalizeOptionalPhone(req.WhatsApp),
		RegionID:  req.RegionID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var token *entity.Token
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx *repository.Repository) error {
		if err := tx.Account.Create(ctx, account); err != nil {
			return err
		}
		if err := tx.Profile.Create(ctx, profile); err != nil {
			return err
		}
		if err := tx.Role.Assign(ctx, account.ID, entity.RolePendingMember, nil); err != nil {
			return err
		}
		issued, err := s.tokens.WithRepository(tx).Issue(ctx, account.ID, entity.PurposeEmailVerify, s.config.Token.EmailVerifyTTL)
		if err != nil {
			return err
		}
		token = issued
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, ErrDuplicateEmail
		}
		s.log.Error("Registration rolled back", zap.Error(err), zap.String("email", req.Email))
		return nil, classify("register account", err)
	}

	event := entity.NewAuditLog(entity.AuditAccountRegistered, &account.ID, now)
	event.Detail["email"] = account.Email
	s.audit.Record(ctx, event)

	// 4. Email goes out after commit; a failure leaves the account resendable
	sent := true
	if err := s.mailer.Send(ctx, account.Email, mailer.TemplateEmailVerify, token.Value); err != nil {
		sent = false
		s.log.Warn("Failed to send verification email",
			zap.Error(err),
			zap.String("account_id", account.ID.String()),
		)
	}

	s.log.Info("Account registered",
		zap.String("account_id", account.ID.String()),
		zap.String("email", account.Email),
	)

	return &response.RegisterResponse{
		AccountID: account.ID.String(),
		Email:     account.Email,
		Status:    account.Status,
		EmailSent: sent,
	}, nil
}
