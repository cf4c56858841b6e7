package usecase

import (
	"context"

	"member-onboarding/internal/data/entity"
	"member-onboarding/internal/data/repository"
	"member-onboarding/internal/dto/request"
	"member-onboarding/internal/dto/response"
	"member-onboarding/pkg/storage"
	"member-onboarding/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const auditTrailLimit = 100

// AccountService is the administrative surface over the lifecycle. Every call
// checks the actor's permission and region before acting.
type AccountService interface {
	Me(ctx context.Context, actor *entity.Principal) (*response.AccountResponse, error)
	Get(ctx context.Context, actor *entity.Principal, id uuid.UUID) (*response.AccountResponse, error)
	Provision(ctx context.Context, actor *entity.Principal, req *request.ProvisionAccountRequest) (*response.ProvisionResponse, error)
	CompleteProfile(ctx context.Context, actor *entity.Principal, id uuid.UUID, req *request.CompleteProfileRequest, photo *storage.Upload) (*response.AccountResponse, error)
	SubmitForApproval(ctx context.Context, actor *entity.Principal, id uuid.UUID, req *request.TransitionRequest) (*response.AccountResponse, error)
	Approve(ctx context.Context, actor *entity.Principal, id uuid.UUID, req *request.TransitionRequest) (*response.ProvisionResponse, error)
	Reject(ctx context.Context, actor *entity.Principal, id uuid.UUID, req *request.TransitionRequest) (*response.AccountResponse, error)
	Suspend(ctx context.Context, actor *entity.Principal, id uuid.UUID, req *request.TransitionRequest) (*response.AccountResponse, error)
	Reinstate(ctx context.Context, actor *entity.Principal, id uuid.UUID, req *request.TransitionRequest) (*response.AccountResponse, error)
	AssignRole(ctx context.Context, actor *entity.Principal, id uuid.UUID, req *request.AssignRoleRequest) (*response.AccountResponse, error)
	AuditTrail(ctx context.Context, actor *entity.Principal, id uuid.UUID) ([]response.AuditEntryResponse, error)
}

type accountService struct {
	repo       *repository.Repository
	access     AccessService
	lifecycle  LifecycleService
	activation ActivationService
	now        Clock
	log        *zap.Logger
}

func NewAccountService(
	repo *repository.Repository,
	access AccessService,
	lifecycle LifecycleService,
	activation ActivationService,
	deps Dependencies,
	log *zap.Logger,
) AccountService {
	return &accountService{
		repo:       repo,
		access:     access,
		lifecycle:  lifecycle,
		activation: activation,
		now:        deps.clock(),
		log:        log.With(zap.String("service", "account")),
	}
}

func (s *accountService) load(ctx context.Context, id uuid.UUID) (*entity.Account, *entity.MemberProfile, error) {
	account, err := s.repo.Account.FindByID(ctx, id)
	if err != nil {
		return nil, nil, persistenceErr("find account", err)
	}
	if account == nil {
		return nil, nil, ErrAccountNotFound
	}
	profile, err := s.repo.Profile.FindByAccountID(ctx, id)
	if err != nil {
		return nil, nil, persistenceErr("find profile", err)
	}
	return account, profile, nil
}

func regionOf(profile *entity.MemberProfile) *int64 {
	if profile == nil {
		return nil
	}
	return profile.RegionID
}

// authorized loads the target and checks perm against its region.
func (s *accountService) authorized(ctx context.Context, actor *entity.Principal, perm entity.Permission, id uuid.UUID) (*entity.Account, *entity.MemberProfile, error) {
	if err := s.access.Authorize(actor, perm); err != nil {
		return nil, nil, err
	}
	account, profile, err := s.load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := s.access.AuthorizeRegion(actor, perm, regionOf(profile)); err != nil {
		return nil, nil, err
	}
	return account, profile, nil
}

func (s *accountService) detail(ctx context.Context, account *entity.Account, profile *entity.MemberProfile) (*response.AccountResponse, error) {
	grants, err := s.repo.Role.FindAssignments(ctx, account.ID)
	if err != nil {
		return nil, persistenceErr("load roles", err)
	}
	resp := response.AccountToResponse(account, profile, grants)
	return &resp, nil
}

func (s *accountService) Me(ctx context.Context, actor *entity.Principal) (*response.AccountResponse, error) {
	if err := s.access.Authorize(actor, entity.PermProfileRead); err != nil {
		return nil, err
	}
	account, profile, err := s.load(ctx, actor.AccountID)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, account, profile)
}

func (s *accountService) Get(ctx context.Context, actor *entity.Principal, id uuid.UUID) (*response.AccountResponse, error) {
	account, profile, err := s.authorized(ctx, actor, entity.PermAccountRead, id)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, account, profile)
}

func (s *accountService) Provision(ctx context.Context, actor *entity.Principal, req *request.ProvisionAccountRequest) (*response.ProvisionResponse, error) {
	if err := s.access.AuthorizeRegion(actor, entity.PermAccountProvision, &req.RegionID); err != nil {
		return nil, err
	}
	// Granting anything above member is a role assignment
	if req.Role != "" && entity.RoleName(req.Role) != entity.RoleMember {
		if err := s.access.Authorize(actor, entity.PermRoleAssign); err != nil {
			return nil, err
		}
	}
	return s.activation.Provision(ctx, &actor.AccountID, req)
}

func (s *accountService) CompleteProfile(ctx context.Context, actor *entity.Principal, id uuid.UUID, req *request.CompleteProfileRequest, photo *storage.Upload) (*response.AccountResponse, error) {
	if _, _, err := s.authorized(ctx, actor, entity.PermAccountProvision, id); err != nil {
		return nil, err
	}
	// The new region must be reachable too
	if err := s.access.AuthorizeRegion(actor, entity.PermAccountProvision, &req.RegionID); err != nil {
		return nil, err
	}
	if _, err := s.activation.CompleteProfile(ctx, id, req, photo); err != nil {
		return nil, err
	}
	account, profile, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, account, profile)
}

func (s *accountService) transition(
	ctx context.Context,
	actor *entity.Principal,
	perm entity.Permission,
	id uuid.UUID,
	target entity.AccountStatus,
	req *request.TransitionRequest,
	extra ...TransitionOption,
) (*response.AccountResponse, error) {
	if req == nil {
		req = &request.TransitionRequest{}
	}
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}
	if _, _, err := s.authorized(ctx, actor, perm, id); err != nil {
		return nil, err
	}

	opts := append([]TransitionOption{
		WithTransitionActor(actor.AccountID),
		WithTransitionReason(req.Reason),
	}, extra...)

	var updated *entity.Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx *repository.Repository) error {
		// Re-read inside the transaction so the conditional write sees the latest state
		current, err := tx.Account.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrAccountNotFound
		}
		updated, err = s.lifecycle.WithRepository(tx).Transition(ctx, current, target, opts...)
		return err
	})
	if err != nil {
		if !domainErr(err) {
			s.log.Error("Failed to transition account", zap.Error(err), zap.String("account_id", id.String()))
		}
		return nil, classify("transition account", err)
	}

	profile, err := s.repo.Profile.FindByAccountID(ctx, id)
	if err != nil {
		return nil, persistenceErr("find profile", err)
	}
	return s.detail(ctx, updated, profile)
}

func (s *accountService) SubmitForApproval(ctx context.Context, actor *entity.Principal, id uuid.UUID, req *request.TransitionRequest) (*response.AccountResponse, error) {
	return s.transition(ctx, actor, entity.PermAccountApprove, id, entity.StatusPendingApproval, req)
}

func (s *accountService) Approve(ctx context.Context, actor *entity.Principal, id uuid.UUID, req *request.TransitionRequest) (*response.ProvisionResponse, error) {
	if req == nil {
		req = &request.TransitionRequest{}
	}
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}
	if _, _, err := s.authorized(ctx, actor, entity.PermAccountApprove, id); err != nil {
		return nil, err
	}
	return s.activation.Approve(ctx, &actor.AccountID, id, req.Reason)
}

func (s *accountService) Reject(ctx context.Context, actor *entity.Principal, id uuid.UUID, req *request.TransitionRequest) (*response.AccountResponse, error) {
	return s.transition(ctx, actor, entity.PermAccountReject, id, entity.StatusRejected, req)
}

func (s *accountService) Suspend(ctx context.Context, actor *entity.Principal, id uuid.UUID, req *request.TransitionRequest) (*response.AccountResponse, error) {
	if actor != nil && actor.AccountID == id {
		return nil, ErrForbidden
	}
	// Suspension ends every open session of the account
	revoke := WithAfterTransitionHook(func(ctx context.Context, tc TransitionContext) error {
		return tc.Repo.Session.RevokeAllForAccount(ctx, tc.Account.ID, s.now())
	})
	return s.transition(ctx, actor, entity.PermAccountSuspend, id, entity.StatusSuspended, req, revoke)
}

func (s *accountService) Reinstate(ctx context.Context, actor *entity.Principal, id uuid.UUID, req *request.TransitionRequest) (*response.AccountResponse, error) {
	return s.transition(ctx, actor, entity.PermAccountReinstate, id, entity.StatusActive, req)
}

func (s *accountService) AssignRole(ctx context.Context, actor *entity.Principal, id uuid.UUID, req *request.AssignRoleRequest) (*response.AccountResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}
	account, profile, err := s.authorized(ctx, actor, entity.PermRoleAssign, id)
	if err != nil {
		return nil, err
	}

	role := entity.RoleName(req.Role)
	regionID := req.RegionID
	if role == entity.RoleCoordinator {
		if regionID == nil {
			regionID = regionOf(profile)
		}
		if regionID == nil {
			return nil, newValidationError("region_id", "Coordinators need a region")
		}
		region, err := s.repo.Region.FindByID(ctx, *regionID)
		if err != nil {
			return nil, persistenceErr("find region", err)
		}
		if region == nil {
			return nil, newValidationError("region_id", "Unknown region")
		}
	} else {
		regionID = nil
	}

	if err := s.repo.Role.Assign(ctx, id, role, regionID); err != nil {
		s.log.Error("Failed to assign role", zap.Error(err), zap.String("account_id", id.String()))
		return nil, persistenceErr("assign role", err)
	}

	s.log.Info("Role assigned",
		zap.String("account_id", id.String()),
		zap.String("role", string(role)),
		zap.String("actor_id", actor.AccountID.String()),
	)
	return s.detail(ctx, account, profile)
}

func (s *accountService) AuditTrail(ctx context.Context, actor *entity.Principal, id uuid.UUID) ([]response.AuditEntryResponse, error) {
	if _, _, err := s.authorized(ctx, actor, entity.PermAuditRead, id); err != nil {
		return nil, err
	}
	entries, err := s.repo.Audit.FindByAccount(ctx, id, auditTrailLimit)
	if err != nil {
		return nil, persistenceErr("list audit trail", err)
	}
	return response.AuditToResponse(entries), nil
}
