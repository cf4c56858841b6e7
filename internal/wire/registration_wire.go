package wire

import (
	"member-onboarding/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

func wireRegistration(r chi.Router, registration *adaptor.RegistrationHandler, verification *adaptor.VerificationHandler) {
	// ==================== PUBLIC ROUTES ====================
	r.Get("/register", registration.Form)
	r.Post("/register", registration.Register)

	r.Get("/verify-email", verification.Verify)
	r.Get("/verify-email/{token}", verification.Verify)
	r.Post("/verify-email/resend", verification.Resend)
}
