package adaptor

import (
	"net/http"

	"member-onboarding/internal/dto/request"
	"member-onboarding/internal/usecase"
	"member-onboarding/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type VerificationHandler struct {
	service usecase.VerificationService
	log     *zap.Logger
}

func NewVerificationHandler(service usecase.VerificationService, log *zap.Logger) *VerificationHandler {
	return &VerificationHandler{
		service: service,
		log:     log,
	}
}

// Verify handles GET /verify-email?token= and GET /verify-email/{token}
func (h *VerificationHandler) Verify(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		utils.ResponseError(w, http.StatusBadRequest, "Verification token is required",
			utils.ErrorBody{Code: "token_not_found"})
		return
	}

	accountID, err := h.service.VerifyEmail(r.Context(), token)
	if err != nil && accountID != uuid.Nil && handleIdempotent(w, h.log, err, accountID, "verify email") {
		return
	}
	if err != nil {
		handleServiceError(w, h.log, err, "verify email")
		return
	}

	utils.ResponseSuccess(w, "Email verified successfully", map[string]string{
		"account_id": accountID.String(),
	})
}

// Resend handles POST /verify-email/resend
func (h *VerificationHandler) Resend(w http.ResponseWriter, r *http.Request) {
	var req request.ResendVerificationRequest

	if err := decodeJSON(r, &req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseError(w, http.StatusBadRequest, "Validation failed",
			utils.ErrorBody{Code: "validation_failed", Fields: validationErrors})
		return
	}

	if err := h.service.Resend(r.Context(), req.Identifier); err != nil {
		handleServiceError(w, h.log, err, "resend verification")
		return
	}

	utils.ResponseSuccess(w, "Verification email sent", nil)
}
