package request

type ProvisionAccountRequest struct {
	Email    string  `json:"email" validate:"required,email,max=255"`
	FullName string  `json:"full_name" validate:"required,min=2,max=100"`
	Phone    *string `json:"phone,omitempty" validate:"omitempty,phone"`
	WhatsApp *string `json:"whatsapp,omitempty" validate:"omitempty,phone"`
	RegionID int64   `json:"region_id" validate:"required,gt=0"`
	Role     string  `json:"role,omitempty" validate:"omitempty,oneof=member coordinator pengurus"`
}

type TransitionRequest struct {
	Reason string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

type AssignRoleRequest struct {
	Role     string `json:"role" validate:"required,oneof=super_admin pengurus coordinator member pending_member"`
	RegionID *int64 `json:"region_id,omitempty" validate:"omitempty,gt=0"`
}
