package wire

import (
	"member-onboarding/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

func wireActivation(r chi.Router, activation *adaptor.ActivationHandler) {
	// ==================== PUBLIC ROUTES ====================
	// The token in the path is the credential
	r.Route("/activate", func(r chi.Router) {
		r.Get("/update-profile/{token}", activation.ShowProfile)
		r.Post("/process-profile/{token}", activation.ProcessProfile)
		r.Get("/{token}", activation.Show)
		r.Post("/{token}", activation.Complete)
	})
}
