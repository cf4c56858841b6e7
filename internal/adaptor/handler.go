package adaptor

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"member-onboarding/internal/usecase"
	"member-onboarding/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Handler struct {
	Registration *RegistrationHandler
	Verification *VerificationHandler
	Activation   *ActivationHandler
	Auth         *AuthHandler
	Account      *AccountHandler
}

func NewHandler(service *usecase.Service, config *utils.Config, log *zap.Logger) *Handler {
	return &Handler{
		Registration: NewRegistrationHandler(service.Registration, log),
		Verification: NewVerificationHandler(service.Verification, log),
		Activation:   NewActivationHandler(service.Activation, config.Upload, log),
		Auth:         NewAuthHandler(service.Auth, log),
		Account:      NewAccountHandler(service.Account, config.Upload, log),
	}
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func accountIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		utils.ResponseBadRequest(w, "Invalid account ID", nil)
		return uuid.Nil, false
	}
	return id, true
}
