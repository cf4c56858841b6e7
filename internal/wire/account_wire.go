package wire

import (
	"net/http"

	"member-onboarding/internal/adaptor"
	"member-onboarding/internal/data/entity"
	"member-onboarding/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// wireAccount configures the administrative routes. The permission middleware
// is a coarse gate; the service re-checks permission and region per target.
func wireAccount(
	r chi.Router,
	accountHandler *adaptor.AccountHandler,
	session func(http.Handler) http.Handler,
	log *zap.Logger,
) {
	perm := func(p entity.Permission) func(http.Handler) http.Handler {
		return middleware.RequirePermission(p, log)
	}

	// ==================== ADMIN ROUTES ====================
	r.Route("/admin/accounts", func(r chi.Router) {
		r.Use(session)

		r.With(perm(entity.PermAccountProvision)).Post("/", accountHandler.Provision)

		r.Route("/{id}", func(r chi.Router) {
			r.With(perm(entity.PermAccountRead)).Get("/", accountHandler.Get)
			r.With(perm(entity.PermAccountProvision)).Post("/profile", accountHandler.CompleteProfile)
			r.With(perm(entity.PermAccountApprove)).Post("/submit", accountHandler.Submit())
			r.With(perm(entity.PermAccountApprove)).Post("/approve", accountHandler.Approve)
			r.With(perm(entity.PermAccountReject)).Post("/reject", accountHandler.Reject())
			r.With(perm(entity.PermAccountSuspend)).Post("/suspend", accountHandler.Suspend())
			r.With(perm(entity.PermAccountReinstate)).Post("/reinstate", accountHandler.Reinstate())
			r.With(perm(entity.PermRoleAssign)).Post("/roles", accountHandler.AssignRole)
			r.With(perm(entity.PermAuditRead)).Get("/audit", accountHandler.AuditTrail)
		})
	})
}
