package adaptor

import (
	"net/http"

	"member-onboarding/internal/dto/request"
	"member-onboarding/internal/usecase"
	"member-onboarding/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type ActivationHandler struct {
	service usecase.ActivationService
	upload  utils.UploadConfig
	log     *zap.Logger
}

func NewActivationHandler(service usecase.ActivationService, upload utils.UploadConfig, log *zap.Logger) *ActivationHandler {
	return &ActivationHandler{
		service: service,
		upload:  upload,
		log:     log,
	}
}

// Show handles GET /activate/{token}
func (h *ActivationHandler) Show(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.VerifyActivationToken(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		handleServiceError(w, h.log, err, "verify activation token")
		return
	}

	utils.ResponseSuccess(w, "Activation link is valid", view)
}

// Complete handles POST /activate/{token}
func (h *ActivationHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req request.CompleteActivationRequest

	if err := decodeJSON(r, &req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	resp, err := h.service.CompleteActivation(r.Context(), chi.URLParam(r, "token"), &req)
	if err != nil {
		handleServiceError(w, h.log, err, "complete activation")
		return
	}

	utils.ResponseSuccess(w, "Password set. Complete your profile to finish activation.", resp)
}

// ShowProfile handles GET /activate/update-profile/{token}
func (h *ActivationHandler) ShowProfile(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.VerifyProfileToken(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		handleServiceError(w, h.log, err, "verify profile token")
		return
	}

	utils.ResponseSuccess(w, "Profile link is valid", view)
}

// ProcessProfile handles POST /activate/process-profile/{token}
func (h *ActivationHandler) ProcessProfile(w http.ResponseWriter, r *http.Request) {
	form, ok := parseProfileForm(w, r, h.upload)
	if !ok {
		return
	}
	defer form.Close()

	accountID, err := h.service.CompleteProfileWithToken(r.Context(), chi.URLParam(r, "token"), form.Request, form.Photo)
	if err != nil {
		handleServiceError(w, h.log, err, "complete profile")
		return
	}

	utils.ResponseSuccess(w, "Account activated. You can now login.", map[string]string{
		"account_id": accountID.String(),
		"redirect":   "/login",
	})
}
