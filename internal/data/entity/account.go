package entity

import (
	"time"

	"github.com/google/uuid"
)

type AccountStatus string

const (
	StatusRegistered      AccountStatus = "registered"
	StatusEmailPending    AccountStatus = "email_pending"
	StatusEmailVerified   AccountStatus = "email_verified"
	StatusPendingApproval AccountStatus = "pending_approval"
	StatusActivated       AccountStatus = "activated"
	StatusActive          AccountStatus = "active"
	StatusSuspended       AccountStatus = "suspended"
	StatusRejected        AccountStatus = "rejected"
)

// Valid reports whether s is a known lifecycle state.
func (s AccountStatus) Valid() bool {
	switch s {
	case StatusRegistered, StatusEmailPending, StatusEmailVerified, StatusPendingApproval,
		StatusActivated, StatusActive, StatusSuspended, StatusRejected:
		return true
	}
	return false
}

type Account struct {
	BaseNoDelete
	Email           string        `db:"email"`
	PasswordHash    *string       `db:"password_hash"`
	Status          AccountStatus `db:"status"`
	EmailVerifiedAt *time.Time    `db:"email_verified_at"`
}

func (a *Account) IsEmailVerified() bool {
	return a.EmailVerifiedAt != nil
}

func (a *Account) HasPassword() bool {
	return a.PasswordHash != nil && *a.PasswordHash != ""
}

type MemberProfile struct {
	AccountID  uuid.UUID  `db:"account_id"`
	FullName   string     `db:"full_name"`
	Phone      *string    `db:"phone"`
	WhatsApp   *string    `db:"whatsapp"`
	Address    *string    `db:"address"`
	BirthPlace *string    `db:"birth_place"`
	BirthDate  *time.Time `db:"birth_date"`
	PhotoPath  *string    `db:"photo_path"`
	RegionID   *int64     `db:"region_id"`
	CreatedAt  time.Time  `db:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"`
}

type Region struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}
