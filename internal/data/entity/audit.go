package entity

import (
	"time"

	"github.com/google/uuid"
)

type AuditAction string

const (
	AuditAccountRegistered   AuditAction = "account.registered"
	AuditAccountProvisioned  AuditAction = "account.provisioned"
	AuditAccountTransitioned AuditAction = "account.transitioned"
	AuditEmailVerified       AuditAction = "account.email_verified"
	AuditVerificationResent  AuditAction = "account.verification_resent"
	AuditPasswordSet         AuditAction = "account.password_set"
	AuditProfileCompleted    AuditAction = "account.profile_completed"
	AuditLoginSucceeded      AuditAction = "auth.login_succeeded"
	AuditLoginFailed         AuditAction = "auth.login_failed"
	AuditAccountLocked       AuditAction = "auth.account_locked"
	AuditLogout              AuditAction = "auth.logout"
)

type AuditLog struct {
	BaseSimple
	AccountID *uuid.UUID     `db:"account_id"`
	ActorID   *uuid.UUID     `db:"actor_id"`
	Action    AuditAction    `db:"action"`
	Detail    map[string]any `db:"detail"`
}

// NewAuditLog builds an event stamped with at.
func NewAuditLog(action AuditAction, accountID *uuid.UUID, at time.Time) *AuditLog {
	return &AuditLog{
		BaseSimple: BaseSimple{ID: uuid.New(), CreatedAt: at},
		AccountID:  accountID,
		Action:     action,
		Detail:     map[string]any{},
	}
}
