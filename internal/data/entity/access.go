package entity

import (
	"github.com/google/uuid"
)

type RoleName string

const (
	RoleSuperAdmin    RoleName = "super_admin"
	RolePengurus      RoleName = "pengurus"
	RoleCoordinator   RoleName = "coordinator"
	RoleMember        RoleName = "member"
	RolePendingMember RoleName = "pending_member"
)

type Role struct {
	ID    int64    `db:"id"`
	Name  RoleName `db:"name"`
	Level int      `db:"level"`
}

// RoleAssignment links an account to a role, optionally scoped to a region.
type RoleAssignment struct {
	AccountID uuid.UUID `db:"account_id"`
	Role      Role
	RegionID  *int64 `db:"region_id"`
}

// Permission is a closed set of actions checked by handlers and services.
type Permission uint16

const (
	PermProfileRead Permission = iota + 1
	PermProfileUpdate
	PermAccountRead
	PermAccountProvision
	PermAccountApprove
	PermAccountReject
	PermAccountSuspend
	PermAccountReinstate
	PermRoleAssign
	PermAuditRead
)

var permissionNames = map[Permission]string{
	PermProfileRead:      "profile.read",
	PermProfileUpdate:    "profile.update",
	PermAccountRead:      "account.read",
	PermAccountProvision: "account.provision",
	PermAccountApprove:   "account.approve",
	PermAccountReject:    "account.reject",
	PermAccountSuspend:   "account.suspend",
	PermAccountReinstate: "account.reinstate",
	PermRoleAssign:       "role.assign",
	PermAuditRead:        "audit.read",
}

func (p Permission) String() string {
	if name, ok := permissionNames[p]; ok {
		return name
	}
	return "unknown"
}

// PermissionSet is a bitmask over Permission.
type PermissionSet uint64

func NewPermissionSet(perms ...Permission) PermissionSet {
	var s PermissionSet
	for _, p := range perms {
		s = s.With(p)
	}
	return s
}

func (s PermissionSet) With(p Permission) PermissionSet {
	return s | 1<<uint(p)
}

func (s PermissionSet) Union(o PermissionSet) PermissionSet {
	return s | o
}

func (s PermissionSet) Has(p Permission) bool {
	return s&(1<<uint(p)) != 0
}

// Names lists the permissions in declaration order.
func (s PermissionSet) Names() []string {
	names := make([]string, 0)
	for p := PermProfileRead; p <= PermAuditRead; p++ {
		if s.Has(p) {
			names = append(names, p.String())
		}
	}
	return names
}

// Principal is the authenticated actor threaded through a request.
type Principal struct {
	AccountID    uuid.UUID
	SessionToken uuid.UUID
	Email        string
	Roles        []RoleName
	Level        int
	RegionID     *int64
	Permissions  PermissionSet
}

func (p *Principal) Can(perm Permission) bool {
	return p != nil && p.Permissions.Has(perm)
}
