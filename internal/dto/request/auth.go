package request

type RegisterRequest struct {
	Email    string  `json:"email" validate:"required,email,max=255"`
	Password string  `json:"password,omitempty" validate:"omitempty,max=72"`
	FullName string  `json:"full_name" validate:"required,min=2,max=100"`
	Phone    *string `json:"phone,omitempty" validate:"omitempty,phone"`
	WhatsApp *string `json:"whatsapp,omitempty" validate:"omitempty,phone"`
	RegionID *int64  `json:"region_id,omitempty" validate:"omitempty,gt=0"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ResendVerificationRequest takes an account id or an email address.
type ResendVerificationRequest struct {
	Identifier string `json:"identifier" validate:"required,max=255"`
}
