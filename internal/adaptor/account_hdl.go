package adaptor

import (
	"context"
	"net/http"

	"member-onboarding/internal/data/entity"
	"member-onboarding/internal/dto/request"
	"member-onboarding/internal/dto/response"
	"member-onboarding/internal/usecase"
	"member-onboarding/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AccountHandler serves the administrative account routes. Every route
// runs behind the session middleware.
type AccountHandler struct {
	service usecase.AccountService
	upload  utils.UploadConfig
	log     *zap.Logger
}

func NewAccountHandler(service usecase.AccountService, upload utils.UploadConfig, log *zap.Logger) *AccountHandler {
	return &AccountHandler{
		service: service,
		upload:  upload,
		log:     log,
	}
}

type transitionFunc func(ctx context.Context, actor *entity.Principal, id uuid.UUID, req *request.TransitionRequest) (*response.AccountResponse, error)

// Profile handles GET /me/profile
func (h *AccountHandler) Profile(w http.ResponseWriter, r *http.Request) {
	actor, _ := utils.GetPrincipal(r.Context())

	account, err := h.service.Me(r.Context(), actor)
	if err != nil {
		handleServiceError(w, h.log, err, "get own account")
		return
	}

	utils.ResponseSuccess(w, "Account retrieved successfully", account)
}

// Provision handles POST /admin/accounts
func (h *AccountHandler) Provision(w http.ResponseWriter, r *http.Request) {
	var req request.ProvisionAccountRequest

	if err := decodeJSON(r, &req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	actor, _ := utils.GetPrincipal(r.Context())
	resp, err := h.service.Provision(r.Context(), actor, &req)
	if err != nil {
		handleServiceError(w, h.log, err, "provision account")
		return
	}

	utils.ResponseCreated(w, "Account provisioned", resp)
}

// Get handles GET /admin/accounts/{id}
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := accountIDParam(w, r)
	if !ok {
		return
	}

	actor, _ := utils.GetPrincipal(r.Context())
	account, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		handleServiceError(w, h.log, err, "get account")
		return
	}

	utils.ResponseSuccess(w, "Account retrieved successfully", account)
}

// CompleteProfile handles POST /admin/accounts/{id}/profile
func (h *AccountHandler) CompleteProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := accountIDParam(w, r)
	if !ok {
		return
	}

	form, ok := parseProfileForm(w, r, h.upload)
	if !ok {
		return
	}
	defer form.Close()

	actor, _ := utils.GetPrincipal(r.Context())
	account, err := h.service.CompleteProfile(r.Context(), actor, id, form.Request, form.Photo)
	if err != nil {
		handleServiceError(w, h.log, err, "complete profile")
		return
	}

	utils.ResponseSuccess(w, "Profile completed", account)
}

func (h *AccountHandler) transition(fn transitionFunc, operation, message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := accountIDParam(w, r)
		if !ok {
			return
		}

		var req request.TransitionRequest
		if err := decodeJSON(r, &req); err != nil {
			utils.ResponseBadRequest(w, "Invalid request body", nil)
			return
		}

		actor, _ := utils.GetPrincipal(r.Context())
		account, err := fn(r.Context(), actor, id, &req)
		if err != nil && handleIdempotent(w, h.log, err, id, operation) {
			return
		}
		if err != nil {
			handleServiceError(w, h.log, err, operation)
			return
		}

		utils.ResponseSuccess(w, message, account)
	}
}

// Submit handles POST /admin/accounts/{id}/submit
func (h *AccountHandler) Submit() http.HandlerFunc {
	return h.transition(h.service.SubmitForApproval, "submit account", "Account submitted for approval")
}

// Reject handles POST /admin/accounts/{id}/reject
func (h *AccountHandler) Reject() http.HandlerFunc {
	return h.transition(h.service.Reject, "reject account", "Account rejected")
}

// Suspend handles POST /admin/accounts/{id}/suspend
func (h *AccountHandler) Suspend() http.HandlerFunc {
	return h.transition(h.service.Suspend, "suspend account", "Account suspended")
}

// Reinstate handles POST /admin/accounts/{id}/reinstate
func (h *AccountHandler) Reinstate() http.HandlerFunc {
	return h.transition(h.service.Reinstate, "reinstate account", "Account reinstated")
}

// Approve handles POST /admin/accounts/{id}/approve
func (h *AccountHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, ok := accountIDParam(w, r)
	if !ok {
		return
	}

	var req request.TransitionRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	actor, _ := utils.GetPrincipal(r.Context())
	resp, err := h.service.Approve(r.Context(), actor, id, &req)
	if err != nil && handleIdempotent(w, h.log, err, id, "approve account") {
		return
	}
	if err != nil {
		handleServiceError(w, h.log, err, "approve account")
		return
	}

	utils.ResponseSuccess(w, "Account approved. Activation email sent.", resp)
}

// AssignRole handles POST /admin/accounts/{id}/roles
func (h *AccountHandler) AssignRole(w http.ResponseWriter, r *http.Request) {
	id, ok := accountIDParam(w, r)
	if !ok {
		return
	}

	var req request.AssignRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	actor, _ := utils.GetPrincipal(r.Context())
	account, err := h.service.AssignRole(r.Context(), actor, id, &req)
	if err != nil {
		handleServiceError(w, h.log, err, "assign role")
		return
	}

	utils.ResponseSuccess(w, "Role assigned", account)
}

// AuditTrail handles GET /admin/accounts/{id}/audit
func (h *AccountHandler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	id, ok := accountIDParam(w, r)
	if !ok {
		return
	}

	actor, _ := utils.GetPrincipal(r.Context())
	entries, err := h.service.AuditTrail(r.Context(), actor, id)
	if err != nil {
		handleServiceError(w, h.log, err, "list audit trail")
		return
	}

	utils.ResponseSuccess(w, "Audit trail retrieved successfully", entries)
}
