package usecase

import (
	"context"
	"testing"

	"member-onboarding/internal/data/entity"
	"member-onboarding/internal/dto/request"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestCanAccessRegion(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		level  int
		actor  *int64
		target *int64
		want   bool
	}{
		{"coordinator same region", 2, ptr(regionJakarta), ptr(regionJakarta), true},
		{"coordinator other region", 2, ptr(regionJakarta), ptr(regionBandung), false},
		{"coordinator without region", 2, nil, ptr(regionJakarta), false},
		{"coordinator unscoped target", 2, ptr(regionJakarta), nil, false},
		{"pengurus other region", 3, ptr(regionJakarta), ptr(regionBandung), true},
		{"pengurus unscoped target", 3, nil, nil, true},
		{"super admin", 4, nil, ptr(regionBandung), true},
		{"member", 1, ptr(regionJakarta), ptr(regionJakarta), false},
		{"pending member", 0, ptr(regionJakarta), ptr(regionJakarta), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, env.svc.Access.CanAccessRegion(tt.level, tt.actor, tt.target))
		})
	}
}

func TestResolveRedirect(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name  string
		roles []entity.RoleName
		want  string
	}{
		{"highest role wins", []entity.RoleName{entity.RoleMember, entity.RoleCoordinator}, "/koordinator/dashboard"},
		{"super admin", []entity.RoleName{entity.RolePengurus, entity.RoleSuperAdmin}, "/admin/dashboard"},
		{"pending", []entity.RoleName{entity.RolePendingMember}, "/member/pending"},
		{"no roles", nil, "/member/dashboard"},
		{"unknown role", []entity.RoleName{"treasurer"}, "/member/dashboard"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, env.svc.Access.ResolveRedirect(tt.roles).Path)
		})
	}
}

func TestPermissions(t *testing.T) {
	env := newTestEnv(t)
	access := env.svc.Access

	member := access.Permissions([]entity.RoleName{entity.RoleMember})
	assert.True(t, member.Has(entity.PermProfileUpdate))
	assert.False(t, member.Has(entity.PermAccountRead))

	coordinator := access.Permissions([]entity.RoleName{entity.RoleCoordinator})
	assert.True(t, coordinator.Has(entity.PermAccountApprove))
	assert.False(t, coordinator.Has(entity.PermAccountSuspend))

	pengurus := access.Permissions([]entity.RoleName{entity.RolePengurus})
	assert.True(t, pengurus.Has(entity.PermAuditRead))
	assert.False(t, pengurus.Has(entity.PermRoleAssign))

	admin := access.Permissions([]entity.RoleName{entity.RoleSuperAdmin})
	assert.True(t, admin.Has(entity.PermRoleAssign))

	union := access.Permissions([]entity.RoleName{entity.RolePendingMember, entity.RoleCoordinator})
	assert.Equal(t, coordinator, union)
}

func TestPrincipal_DominantGrantSetsScope(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.activeMember(t, "koor@x.com", regionBandung)

	_, err := env.svc.Account.AssignRole(ctx, env.admin(), id, &request.AssignRoleRequest{Role: string(entity.RoleCoordinator)})
	require.NoError(t, err)

	p, err := env.svc.Access.Principal(ctx, env.account(t, id), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 2, p.Level)
	require.NotNil(t, p.RegionID)
	assert.Equal(t, regionBandung, *p.RegionID)
	assert.ElementsMatch(t, []entity.RoleName{entity.RoleCoordinator, entity.RoleMember}, p.Roles)
	assert.True(t, p.Can(entity.PermAccountProvision))
}

func TestAccountAccess_CoordinatorScopedToRegion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	inRegion := env.activeMember(t, "a@x.com", regionJakarta)
	outOfRegion := env.activeMember(t, "b@x.com", regionBandung)
	coordinator := env.actor(entity.RoleCoordinator, 2, ptr(regionJakarta))

	got, err := env.svc.Account.Get(ctx, coordinator, inRegion)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", got.Email)

	_, err = env.svc.Account.Get(ctx, coordinator, outOfRegion)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = env.svc.Account.Provision(ctx, coordinator, &request.ProvisionAccountRequest{
		Email: "c@x.com", FullName: "Citra", RegionID: regionBandung,
	})
	assert.ErrorIs(t, err, ErrForbidden)

	// coordinators cannot hand out elevated roles
	_, err = env.svc.Account.Provision(ctx, coordinator, &request.ProvisionAccountRequest{
		Email: "c@x.com", FullName: "Citra", RegionID: regionJakarta, Role: string(entity.RolePengurus),
	})
	assert.ErrorIs(t, err, ErrForbidden)

	member := env.actor(entity.RoleMember, 1, ptr(regionJakarta))
	_, err = env.svc.Account.Get(ctx, member, inRegion)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = env.svc.Account.Get(ctx, nil, inRegion)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestAccountAccess_SuspendAndReinstate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.activeMember(t, "a@x.com", regionJakarta)
	pengurus := env.actor(entity.RolePengurus, 3, nil)

	_, err := env.svc.Account.Suspend(ctx, env.actor(entity.RoleCoordinator, 2, ptr(regionJakarta)), id, nil)
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := env.svc.Account.Suspend(ctx, pengurus, id, &request.TransitionRequest{Reason: "dues unpaid"})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusSuspended, got.Status)

	_, err = env.svc.Account.Suspend(ctx, pengurus, pengurus.AccountID, nil)
	assert.ErrorIs(t, err, ErrForbidden)

	got, err = env.svc.Account.Reinstate(ctx, pengurus, id, nil)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusActive, got.Status)

	var suspension *entity.AuditLog
	for i := range env.audit.events {
		if env.audit.events[i].Detail["to"] == string(entity.StatusSuspended) {
			suspension = &env.audit.events[i]
		}
	}
	require.NotNil(t, suspension)
	assert.Equal(t, "dues unpaid", suspension.Detail["reason"])
	assert.Equal(t, pengurus.AccountID, *suspension.ActorID)

	_, err = env.svc.Account.AuditTrail(ctx, env.actor(entity.RoleCoordinator, 2, ptr(regionJakarta)), id)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAssignRole_CoordinatorNeedsRegion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.activeMember(t, "a@x.com", regionJakarta)

	_, err := env.svc.Account.AssignRole(ctx, env.admin(), id, &request.AssignRoleRequest{
		Role: string(entity.RoleCoordinator), RegionID: ptr(int64(99)),
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "region_id")

	_, err = env.svc.Account.AssignRole(ctx, env.actor(entity.RolePengurus, 3, nil), id, &request.AssignRoleRequest{
		Role: string(entity.RoleCoordinator),
	})
	assert.ErrorIs(t, err, ErrForbidden)
}
