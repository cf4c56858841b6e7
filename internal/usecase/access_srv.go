package usecase

import (
	"context"

	"member-onboarding/internal/data/entity"
	"member-onboarding/internal/data/repository"
	"member-onboarding/internal/dto/response"
	"member-onboarding/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// rolePriority lists roles from most to least privileged.
var rolePriority = []entity.RoleName{
	entity.RoleSuperAdmin,
	entity.RolePengurus,
	entity.RoleCoordinator,
	entity.RoleMember,
	entity.RolePendingMember,
}

var redirectTargets = map[entity.RoleName]string{
	entity.RoleSuperAdmin:    "/admin/dashboard",
	entity.RolePengurus:      "/pengurus/dashboard",
	entity.RoleCoordinator:   "/koordinator/dashboard",
	entity.RoleMember:        "/member/dashboard",
	entity.RolePendingMember: "/member/pending",
}

var defaultTarget = response.RouteTarget{Role: entity.RoleMember, Path: "/member/dashboard"}

var memberPermissions = entity.NewPermissionSet(
	entity.PermProfileRead,
	entity.PermProfileUpdate,
)

var coordinatorPermissions = memberPermissions.Union(entity.NewPermissionSet(
	entity.PermAccountRead,
	entity.PermAccountProvision,
	entity.PermAccountApprove,
	entity.PermAccountReject,
))

var pengurusPermissions = coordinatorPermissions.Union(entity.NewPermissionSet(
	entity.PermAccountSuspend,
	entity.PermAccountReinstate,
	entity.PermAuditRead,
))

var rolePermissions = map[entity.RoleName]entity.PermissionSet{
	entity.RoleSuperAdmin:    pengurusPermissions.With(entity.PermRoleAssign),
	entity.RolePengurus:      pengurusPermissions,
	entity.RoleCoordinator:   coordinatorPermissions,
	entity.RoleMember:        memberPermissions,
	entity.RolePendingMember: entity.NewPermissionSet(entity.PermProfileRead),
}

// AccessService resolves roles into redirects, permissions and region decisions.
type AccessService interface {
	ResolveRedirect(roles []entity.RoleName) response.RouteTarget
	CanAccessRegion(actorLevel int, actorRegion, targetRegion *int64) bool
	Permissions(roles []entity.RoleName) entity.PermissionSet
	// Principal loads the role assignments of account once per session.
	Principal(ctx context.Context, account *entity.Account, sessionToken uuid.UUID) (*entity.Principal, error)
	Authorize(actor *entity.Principal, perm entity.Permission) error
	// AuthorizeRegion checks perm and then region access to targetRegion. A
	// nil target is only reachable by region-wide actors.
	AuthorizeRegion(actor *entity.Principal, perm entity.Permission, targetRegion *int64) error
}

type accessService struct {
	repo   *repository.Repository
	config utils.AccessConfig
	log    *zap.Logger
}

func NewAccessService(repo *repository.Repository, config utils.AccessConfig, log *zap.Logger) AccessService {
	return &accessService{
		repo:   repo,
		config: config,
		log:    log.With(zap.String("service", "access")),
	}
}

func (s *accessService) ResolveRedirect(roles []entity.RoleName) response.RouteTarget {
	held := make(map[entity.RoleName]bool, len(roles))
	for _, r := range roles {
		held[r] = true
	}
	for _, r := range rolePriority {
		if held[r] {
			return response.RouteTarget{Role: r, Path: redirectTargets[r]}
		}
	}
	return defaultTarget
}

func (s *accessService) CanAccessRegion(actorLevel int, actorRegion, targetRegion *int64) bool {
	if actorLevel >= s.config.RegionWideLevel {
		return true
	}
	if actorLevel == s.config.RegionScopedLevel {
		return actorRegion != nil && targetRegion != nil && *actorRegion == *targetRegion
	}
	return false
}

func (s *accessService) Permissions(roles []entity.RoleName) entity.PermissionSet {
	var set entity.PermissionSet
	for _, r := range roles {
		set = set.Union(rolePermissions[r])
	}
	return set
}

func (s *accessService) Principal(ctx context.Context, account *entity.Account, sessionToken uuid.UUID) (*entity.Principal, error) {
	grants, err := s.repo.Role.FindAssignments(ctx, account.ID)
	if err != nil {
		return nil, persistenceErr("load roles", err)
	}

	p := &entity.Principal{
		AccountID:    account.ID,
		SessionToken: sessionToken,
		Email:        account.Email,
		Level:        -1,
	}
	for _, g := range grants {
		p.Roles = append(p.Roles, g.Role.Name)
		// The dominant grant decides level and scope
		if g.Role.Level > p.Level {
			p.Level = g.Role.Level
			p.RegionID = g.RegionID
		}
	}
	if p.Level < 0 {
		p.Level = 0
	}
	p.Permissions = s.Permissions(p.Roles)

	return p, nil
}

func (s *accessService) Authorize(actor *entity.Principal, perm entity.Permission) error {
	if actor == nil {
		return ErrUnauthenticated
	}
	if !actor.Can(perm) {
		s.log.Warn("Permission denied",
			zap.String("account_id", actor.AccountID.String()),
			zap.String("permission", perm.String()),
		)
		return ErrForbidden
	}
	return nil
}

func (s *accessService) AuthorizeRegion(actor *entity.Principal, perm entity.Permission, targetRegion *int64) error {
	if err := s.Authorize(actor, perm); err != nil {
		return err
	}
	if !s.CanAccessRegion(actor.Level, actor.RegionID, targetRegion) {
		s.log.Warn("Region access denied",
			zap.String("account_id", actor.AccountID.String()),
			zap.Any("target_region", targetRegion),
		)
		return ErrForbidden
	}
	return nil
}
