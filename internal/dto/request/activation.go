package request

type CompleteActivationRequest struct {
	Password             string `json:"password" validate:"required"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required,eqfield=Password"`
}

// CompleteProfileRequest carries the text fields of the profile form. The
// photo travels as a multipart file next to it.
type CompleteProfileRequest struct {
	FullName   string  `json:"full_name" validate:"required,min=2,max=100"`
	Phone      string  `json:"phone" validate:"required,phone"`
	WhatsApp   *string `json:"whatsapp,omitempty" validate:"omitempty,phone"`
	Address    string  `json:"address" validate:"required,max=500"`
	BirthPlace string  `json:"birth_place" validate:"required,max=100"`
	BirthDate  string  `json:"birth_date" validate:"required,pastdate"`
	RegionID   int64   `json:"region_id" validate:"required,gt=0"`
}
