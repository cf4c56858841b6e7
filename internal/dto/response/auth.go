package response

import (
	"time"

	"member-onboarding/internal/data/entity"
)

type RegisterResponse struct {
	AccountID string               `json:"account_id"`
	Email     string               `json:"email"`
	Status    entity.AccountStatus `json:"status"`
	EmailSent bool                 `json:"email_sent"`
}

type RouteTarget struct {
	Role entity.RoleName `json:"role"`
	Path string          `json:"path"`
}

type LoginResponse struct {
	AccountID   string            `json:"account_id"`
	Token       string            `json:"token"`
	ExpiresAt   time.Time         `json:"expires_at"`
	Email       string            `json:"email"`
	Roles       []entity.RoleName `json:"roles"`
	Permissions []string          `json:"permissions"`
	Redirect    RouteTarget       `json:"redirect"`
}

type RegionResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type PasswordPolicyResponse struct {
	MinLength     int  `json:"min_length"`
	MaxLength     int  `json:"max_length"`
	RequireUpper  bool `json:"require_upper"`
	RequireLower  bool `json:"require_lower"`
	RequireDigit  bool `json:"require_digit"`
	RequireSymbol bool `json:"require_symbol"`
}

// RegisterFormResponse is the metadata a registration form needs.
type RegisterFormResponse struct {
	Regions        []RegionResponse       `json:"regions"`
	PasswordPolicy PasswordPolicyResponse `json:"password_policy"`
}

type LoginFormResponse struct {
	MaxAttempts          int  `json:"max_attempts"`
	LockoutMinutes       int  `json:"lockout_minutes"`
	RequireVerifiedEmail bool `json:"require_verified_email"`
}

type PrincipalResponse struct {
	AccountID   string            `json:"account_id"`
	Email       string            `json:"email"`
	Roles       []entity.RoleName `json:"roles"`
	Level       int               `json:"level"`
	RegionID    *int64            `json:"region_id,omitempty"`
	Permissions []string          `json:"permissions"`
}

func RegionsToResponse(regions []entity.Region) []RegionResponse {
	out := make([]RegionResponse, 0, len(regions))
	for _, r := range regions {
		out = append(out, RegionResponse{ID: r.ID, Name: r.Name})
	}
	return out
}

func PrincipalToResponse(p *entity.Principal) PrincipalResponse {
	return PrincipalResponse{
		AccountID:   p.AccountID.String(),
		Email:       p.Email,
		Roles:       p.Roles,
		Level:       p.Level,
		RegionID:    p.RegionID,
		Permissions: p.Permissions.Names(),
	}
}
