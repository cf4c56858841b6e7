package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"member-onboarding/internal/data/entity"
	"member-onboarding/internal/data/repository"
	"member-onboarding/internal/dto/request"
	"member-onboarding/internal/dto/response"
	"member-onboarding/pkg/mailer"
	"member-onboarding/pkg/storage"
	"member-onboarding/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ActivationService brings approved or provisioned accounts to active.
type ActivationService interface {
	// Provision creates an account directly in activated and mails its activation link.
	Provision(ctx context.Context, actorID *uuid.UUID, req *request.ProvisionAccountRequest) (*response.ProvisionResponse, error)
	// Approve activates a verified account and mails its activation link.
	Approve(ctx context.Context, actorID *uuid.UUID, accountID uuid.UUID, reason string) (*response.ProvisionResponse, error)
	VerifyActivationToken(ctx context.Context, token string) (*response.ActivationView, error)
	CompleteActivation(ctx context.Context, token string, req *request.CompleteActivationRequest) (*response.ActivationResponse, error)
	VerifyProfileToken(ctx context.Context, token string) (*response.ActivationView, error)
	CompleteProfile(ctx context.Context, accountID uuid.UUID, req *request.CompleteProfileRequest, photo *storage.Upload) (uuid.UUID, error)
	CompleteProfileWithToken(ctx context.Context, token string, req *request.CompleteProfileRequest, photo *storage.Upload) (uuid.UUID, error)
}

type activationService struct {
	repo      *repository.Repository
	tokens    TokenService
	lifecycle LifecycleService
	config    *utils.Config
	mailer    EmailSender
	files     FileStore
	audit     AuditSink
	now       Clock
	log       *zap.Logger
}

func NewActivationService(
	repo *repository.Repository,
	tokens TokenService,
	lifecycle LifecycleService,
	config *utils.Config,
	deps Dependencies,
	log *zap.Logger,
) ActivationService {
	return &activationService{
		repo:      repo,
		tokens:    tokens,
		lifecycle: lifecycle,
		config:    config,
		mailer:    deps.Mailer,
		files:     deps.Files,
		audit:     deps.audit(),
		now:       deps.clock(),
		log:       log.With(zap.String("service", "activation")),
	}
}

func pastActivation(status entity.AccountStatus) bool {
	return status == entity.StatusActive || status == entity.StatusSuspended
}

func (s *activationService) sendActivation(ctx context.Context, account *entity.Account, token *entity.Token) bool {
	if err := s.mailer.Send(ctx, account.Email, mailer.TemplateActivation, token.Value); err != nil {
		s.log.Warn("Failed to send activation email",
			zap.Error(err),
			zap.String("account_id", account.ID.String()),
		)
		return false
	}
	return true
}

func (s *activationService) Provision(ctx context.Context, actorID *uuid.UUID, req *request.ProvisionAccountRequest) (*response.ProvisionResponse, error) {
	req.Email = normalizeEmail(req.Email)
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}

	region, err := s.repo.Region.FindByID(ctx, req.RegionID)
	if err != nil {
		return nil, persistenceErr("find region", err)
	}
	if region == nil {
		return nil, newValidationError("region_id", "Unknown region")
	}

	existing, err := s.repo.Account.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, persistenceErr("check email", err)
	}
	if existing != nil {
		return nil, ErrDuplicateEmail
	}

	role := entity.RoleMember
	if req.Role != "" {
		role = entity.RoleName(req.Role)
	}
	var roleRegion *int64
	if role == entity.RoleCoordinator {
		roleRegion = &req.RegionID
	}

	now := s.now()
	account := &entity.Account{
		BaseNoDelete: entity.BaseNoDelete{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Email:        req.Email,
		Status:       entity.StatusActivated,
	}
	profile := &entity.MemberProfile{
		AccountID: account.ID,
		FullName:  strings.TrimSpace(req.FullName),
		Phone:     normalizeOptionalPhone(req.Phone),
		WhatsApp:  normalizeOptionalPhone(req.WhatsApp),
		RegionID:  &req.RegionID,
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
		if err := tx.Role.Assign(ctx, account.ID, role, roleRegion); err != nil {
			return err
		}
		issued, err := s.tokens.WithRepository(tx).Issue(ctx, account.ID, entity.PurposeActivation, s.config.Token.ActivationTTL)
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
		s.log.Error("Provisioning rolled back", zap.Error(err), zap.String("email", req.Email))
		return nil, classify("provision account", err)
	}

	event := entity.NewAuditLog(entity.AuditAccountProvisioned, &account.ID, now)
	event.ActorID = actorID
	event.Detail["role"] = string(role)
	event.Detail["region_id"] = req.RegionID
	s.audit.Record(ctx, event)

	s.log.Info("Account provisioned",
		zap.String("account_id", account.ID.String()),
		zap.String("role", string(role)),
	)

	return &response.ProvisionResponse{
		AccountID: account.ID.String(),
		Email:     account.Email,
		Status:    account.Status,
		EmailSent: s.sendActivation(ctx, account, token),
	}, nil
}

func (s *activationService) Approve(ctx context.Context, actorID *uuid.UUID, accountID uuid.UUID, reason string) (*response.ProvisionResponse, error) {
	var (
		account *entity.Account
		token   *entity.Token
	)

	opts := []TransitionOption{WithTransitionReason(reason)}
	if actorID != nil {
		opts = append(opts, WithTransitionActor(*actorID))
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx *repository.Repository) error {
		current, err := tx.Account.FindByID(ctx, accountID)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrAccountNotFound
		}

		account, err = s.lifecycle.WithRepository(tx).Transition(ctx, current, entity.StatusActivated, opts...)
		if err != nil {
			return err
		}

		// Approved members drop the pending role
		if err := tx.Role.Assign(ctx, accountID, entity.RoleMember, nil); err != nil {
			return err
		}
		if err := tx.Role.Revoke(ctx, accountID, entity.RolePendingMember); err != nil {
			return err
		}

		token, err = s.tokens.WithRepository(tx).Issue(ctx, accountID, entity.PurposeActivation, s.config.Token.ActivationTTL)
		return err
	})
	if err != nil {
		if !domainErr(err) {
			s.log.Error("Failed to approve account", zap.Error(err), zap.String("account_id", accountID.String()))
		}
		return nil, classify("approve account", err)
	}

	return &response.ProvisionResponse{
		AccountID: account.ID.String(),
		Email:     account.Email,
		Status:    account.Status,
		EmailSent: s.sendActivation(ctx, account, token),
	}, nil
}

// view loads the account behind a verified token and checks it still awaits activation.
func (s *activationService) view(ctx context.Context, value string, purpose entity.TokenPurpose) (*response.ActivationView, error) {
	accountID, tokenErr := s.tokens.Verify(ctx, value, purpose)
	if tokenErr != nil && !errors.Is(tokenErr, ErrTokenAlreadyConsumed) {
		return nil, tokenErr
	}

	if tokenErr != nil {
		token, err := s.tokens.Lookup(ctx, value)
		if err != nil {
			return nil, err
		}
		accountID = token.AccountID
	}

	account, err := s.repo.Account.FindByID(ctx, accountID)
	if err != nil {
		return nil, persistenceErr("find account", err)
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	if pastActivation(account.Status) {
		return nil, ErrAlreadyActivated
	}
	if tokenErr != nil {
		return nil, tokenErr
	}
	if account.Status != entity.StatusActivated {
		return nil, ErrInvalidTransition
	}

	profile, err := s.repo.Profile.FindByAccountID(ctx, accountID)
	if err != nil {
		return nil, persistenceErr("find profile", err)
	}
	token, err := s.tokens.Lookup(ctx, value)
	if err != nil {
		return nil, err
	}

	return &response.ActivationView{
		AccountID: account.ID.String(),
		Email:     account.Email,
		ExpiresAt: token.ExpiresAt,
		Profile:   response.ProfileToResponse(profile),
	}, nil
}

func (s *activationService) VerifyActivationToken(ctx context.Context, value string) (*response.ActivationView, error) {
	return s.view(ctx, value, entity.PurposeActivation)
}

func (s *activationService) VerifyProfileToken(ctx context.Context, value string) (*response.ActivationView, error) {
	return s.view(ctx, value, entity.PurposeProfileCompletion)
}

func (s *activationService) CompleteActivation(ctx context.Context, value string, req *request.CompleteActivationRequest) (*response.ActivationResponse, error) {
	// 1. Policy before the token is touched
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}
	if reasons := utils.CheckPasswordPolicy(s.config.Password, req.Password); len(reasons) > 0 {
		return nil, &PasswordPolicyError{Reasons: reasons}
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		s.log.Error("Failed to hash password", zap.Error(err))
		return nil, persistenceErr("hash password", err)
	}

	// 2. Consume, store credentials, hand out the profile token
	var (
		accountID    uuid.UUID
		profileToken *entity.Token
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx *repository.Repository) error {
		id, err := s.tokens.WithRepository(tx).Consume(ctx, value, entity.PurposeActivation)
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
		if pastActivation(account.Status) {
			return ErrAlreadyActivated
		}
		if account.Status != entity.StatusActivated {
			return ErrInvalidTransition
		}

		now := s.now()
		if err := tx.Account.SetPassword(ctx, id, hash, now); err != nil {
			return err
		}
		// The activation link proves control of the mailbox
		if err := tx.Account.MarkEmailVerified(ctx, id, now); err != nil {
			return err
		}

		profileToken, err = s.tokens.WithRepository(tx).Issue(ctx, id, entity.PurposeProfileCompletion, s.config.Token.ProfileTTL)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrTokenAlreadyConsumed) && s.alreadyActive(ctx, value) {
			return nil, ErrAlreadyActivated
		}
		if !domainErr(err) {
			s.log.Error("Failed to complete activation", zap.Error(err))
		}
		return nil, classify("complete activation", err)
	}

	s.audit.Record(ctx, entity.NewAuditLog(entity.AuditPasswordSet, &accountID, s.now()))
	s.log.Info("Activation completed", zap.String("account_id", accountID.String()))

	return &response.ActivationResponse{
		AccountID:        accountID.String(),
		ProfileToken:     profileToken.Value,
		ProfileExpiresAt: profileToken.ExpiresAt,
	}, nil
}

func (s *activationService) alreadyActive(ctx context.Context, value string) bool {
	token, err := s.tokens.Lookup(ctx, value)
	if err != nil || token == nil {
		return false
	}
	account, err := s.repo.Account.FindByID(ctx, token.AccountID)
	return err == nil && account != nil && pastActivation(account.Status)
}

func (s *activationService) CompleteProfile(ctx context.Context, accountID uuid.UUID, req *request.CompleteProfileRequest, photo *storage.Upload) (uuid.UUID, error) {
	return s.completeProfile(ctx, req, photo, func(context.Context, *repository.Repository) (uuid.UUID, error) {
		return accountID, nil
	})
}

func (s *activationService) CompleteProfileWithToken(ctx context.Context, value string, req *request.CompleteProfileRequest, photo *storage.Upload) (uuid.UUID, error) {
	id, err := s.completeProfile(ctx, req, photo, func(ctx context.Context, tx *repository.Repository) (uuid.UUID, error) {
		return s.tokens.WithRepository(tx).Consume(ctx, value, entity.PurposeProfileCompletion)
	})
	if errors.Is(err, ErrTokenAlreadyConsumed) && s.alreadyActive(ctx, value) {
		return uuid.Nil, ErrAlreadyActivated
	}
	return id, err
}

type accountResolver func(ctx context.Context, tx *repository.Repository) (uuid.UUID, error)

func (s *activationService) completeProfile(ctx context.Context, req *request.CompleteProfileRequest, photo *storage.Upload, resolve accountResolver) (uuid.UUID, error) {
	// 1. Validasi field
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return uuid.Nil, &ValidationError{Fields: errs}
	}
	birthDate, err := time.Parse(utils.DateLayout, req.BirthDate)
	if err != nil {
		return uuid.Nil, newValidationError("birth_date", "Must be a date in the past (YYYY-MM-DD)")
	}

	// 2. Store the photo; from here every failure removes it again
	var photoPath string
	if photo != nil {
		photoPath, err = s.files.Store(ctx, *photo)
		if err != nil {
			return uuid.Nil, storageErr(err)
		}
	}

	var (
		accountID uuid.UUID
		oldPhoto  *string
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx *repository.Repository) error {
		id, err := resolve(ctx, tx)
		if err != nil {
			return err
		}
		accountID = id

		region, err := tx.Region.FindByID(ctx, req.RegionID)
		if err != nil {
			return err
		}
		if region == nil {
			return newValidationError("region_id", "Unknown region")
		}

		account, err := tx.Account.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if account == nil {
			return ErrAccountNotFound
		}
		if pastActivation(account.Status) {
			return ErrAlreadyActivated
		}

		profile, err := tx.Profile.FindByAccountID(ctx, id)
		if err != nil {
			return err
		}
		if profile == nil {
			return ErrAccountNotFound
		}
		now := s.now()

		oldPhoto = profile.PhotoPath
		address := strings.TrimSpace(req.Address)
		birthPlace := strings.TrimSpace(req.BirthPlace)
		phone := utils.NormalizePhone(req.Phone)
		regionID := req.RegionID

		profile.FullName = strings.TrimSpace(req.FullName)
		profile.Phone = &phone
		profile.WhatsApp = normalizeOptionalPhone(req.WhatsApp)
		profile.Address = &address
		profile.BirthPlace = &birthPlace
		profile.BirthDate = &birthDate
		profile.RegionID = &regionID
		profile.UpdatedAt = now
		if photoPath != "" {
			profile.PhotoPath = &photoPath
		}
		if err := tx.Profile.Update(ctx, profile); err != nil {
			return err
		}

		_, err = s.lifecycle.WithRepository(tx).Transition(ctx, account, entity.StatusActive)
		return err
	})
	if err != nil {
		if photoPath != "" {
			s.discard(ctx, photoPath)
		}
		if !domainErr(err) {
			s.log.Error("Failed to complete profile", zap.Error(err))
		}
		return uuid.Nil, classify("complete profile", err)
	}

	if photoPath != "" && oldPhoto != nil && *oldPhoto != photoPath {
		s.discard(ctx, *oldPhoto)
	}

	s.audit.Record(ctx, entity.NewAuditLog(entity.AuditProfileCompleted, &accountID, s.now()))
	s.log.Info("Profile completed", zap.String("account_id", accountID.String()))

	return accountID, nil
}

// discard is the compensating delete of a stored upload.
func (s *activationService) discard(ctx context.Context, path string) {
	if err := s.files.Delete(context.WithoutCancel(ctx), path); err != nil {
		s.log.Error("Failed to delete orphaned upload", zap.Error(err), zap.String("path", path))
	}
}

func storageErr(err error) error {
	switch {
	case errors.Is(err, storage.ErrEmptyUpload):
		return newValidationError("photo", "File is empty")
	case errors.Is(err, storage.ErrUploadTooLarge):
		return newValidationError("photo", "File is too large")
	case errors.Is(err, storage.ErrUnsupportedType):
		return newValidationError("photo", "Unsupported file type")
	}
	return &CollaboratorError{Kind: KindStorage, Op: "store photo", Err: err}
}
