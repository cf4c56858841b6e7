package entity

import (
	"time"

	"github.com/google/uuid"
)

type TokenPurpose string

const (
	PurposeEmailVerify       TokenPurpose = "email_verify"
	PurposeActivation        TokenPurpose = "activation"
	PurposeProfileCompletion TokenPurpose = "profile_completion"
)

type Token struct {
	BaseSimple
	Value      string       `db:"token"`
	AccountID  uuid.UUID    `db:"account_id"`
	Purpose    TokenPurpose `db:"purpose"`
	IssuedAt   time.Time    `db:"issued_at"`
	ExpiresAt  time.Time    `db:"expires_at"`
	ConsumedAt *time.Time   `db:"consumed_at"`
}

// ExpiredAt reports expiry at now. A token is still valid at exactly ExpiresAt.
func (t *Token) ExpiredAt(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

func (t *Token) IsConsumed() bool {
	return t.ConsumedAt != nil
}
