package response

import (
	"time"

	"member-onboarding/internal/data/entity"
)

type ProfileResponse struct {
	FullName   string  `json:"full_name"`
	Phone      *string `json:"phone,omitempty"`
	WhatsApp   *string `json:"whatsapp,omitempty"`
	Address    *string `json:"address,omitempty"`
	BirthPlace *string `json:"birth_place,omitempty"`
	BirthDate  *string `json:"birth_date,omitempty"`
	PhotoPath  *string `json:"photo_path,omitempty"`
	RegionID   *int64  `json:"region_id,omitempty"`
}

type AccountResponse struct {
	ID              string               `json:"id"`
	Email           string               `json:"email"`
	Status          entity.AccountStatus `json:"status"`
	EmailVerified   bool                 `json:"email_verified"`
	EmailVerifiedAt *time.Time           `json:"email_verified_at,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	Profile         *ProfileResponse     `json:"profile,omitempty"`
	Roles           []entity.RoleName    `json:"roles,omitempty"`
}

// ActivationView is shown before an activation or profile form is submitted.
type ActivationView struct {
	AccountID string           `json:"account_id"`
	Email     string           `json:"email"`
	ExpiresAt time.Time        `json:"expires_at"`
	Profile   *ProfileResponse `json:"profile,omitempty"`
}

type ActivationResponse struct {
	AccountID        string    `json:"account_id"`
	ProfileToken     string    `json:"profile_token"`
	ProfileExpiresAt time.Time `json:"profile_expires_at"`
}

type ProvisionResponse struct {
	AccountID string               `json:"account_id"`
	Email     string               `json:"email"`
	Status    entity.AccountStatus `json:"status"`
	EmailSent bool                 `json:"email_sent"`
}

type AuditEntryResponse struct {
	ID        string         `json:"id"`
	Action    string         `json:"action"`
	ActorID   *string        `json:"actor_id,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Helper converters
func ProfileToResponse(p *entity.MemberProfile) *ProfileResponse {
	if p == nil {
		return nil
	}
	resp := &ProfileResponse{
		FullName:   p.FullName,
		Phone:      p.Phone,
		WhatsApp:   p.WhatsApp,
		Address:    p.Address,
		BirthPlace: p.BirthPlace,
		PhotoPath:  p.PhotoPath,
		RegionID:   p.RegionID,
	}
	if p.BirthDate != nil {
		d := p.BirthDate.Format("2006-01-02")
		resp.BirthDate = &d
	}
	return resp
}

func AccountToResponse(a *entity.Account, p *entity.MemberProfile, grants []entity.RoleAssignment) AccountResponse {
	resp := AccountResponse{
		ID:              a.ID.String(),
		Email:           a.Email,
		Status:          a.Status,
		EmailVerified:   a.IsEmailVerified(),
		EmailVerifiedAt: a.EmailVerifiedAt,
		CreatedAt:       a.CreatedAt,
		Profile:         ProfileToResponse(p),
	}
	for _, g := range grants {
		resp.Roles = append(resp.Roles, g.Role.Name)
	}
	return resp
}

func AuditToResponse(entries []entity.AuditLog) []AuditEntryResponse {
	out := make([]AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		item := AuditEntryResponse{
			ID:        e.ID.String(),
			Action:    string(e.Action),
			Detail:    e.Detail,
			CreatedAt: e.CreatedAt,
		}
		if e.ActorID != nil {
			actor := e.ActorID.String()
			item.ActorID = &actor
		}
		out = append(out, item)
	}
	return out
}
