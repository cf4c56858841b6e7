package adaptor

import (
	"net/http"

	"member-onboarding/internal/dto/request"
	"member-onboarding/internal/usecase"
	"member-onboarding/pkg/utils"

	"go.uber.org/zap"
)

type RegistrationHandler struct {
	service usecase.RegistrationService
	log     *zap.Logger
}

func NewRegistrationHandler(service usecase.RegistrationService, log *zap.Logger) *RegistrationHandler {
	return &RegistrationHandler{
		service: service,
		log:     log,
	}
}

// Form handles GET /register
func (h *RegistrationHandler) Form(w http.ResponseWriter, r *http.Request) {
	form, err := h.service.Form(r.Context())
	if err != nil {
		handleServiceError(w, h.log, err, "load registration form")
		return
	}

	utils.ResponseSuccess(w, "Registration form", form)
}

// Register handles POST /register
func (h *RegistrationHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req request.RegisterRequest

	if err := decodeJSON(r, &req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	// Validation runs in the service after normalisation
	resp, err := h.service.Register(r.Context(), &req)
	if err != nil {
		handleServiceError(w, h.log, err, "register")
		return
	}

	message := "Registration successful. Check your email to verify your address."
	if !resp.EmailSent {
		message = "Registration successful, but the verification email could not be sent. Request a new one."
	}
	utils.ResponseCreated(w, message, resp)
}
