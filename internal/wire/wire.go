// internal/wire/wire.go
package wire

import (
	"net/http"

	"member-onboarding/internal/adaptor"
	"member-onboarding/internal/data/repository"
	"member-onboarding/internal/usecase"
	"member-onboarding/pkg/middleware"
	"member-onboarding/pkg/utils"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// App menyimpan semua dependencies
type App struct {
	Router  *chi.Mux
	Service *usecase.Service
}

// Wiring menginisialisasi semua dependencies
func Wiring(repo *repository.Repository, config *utils.Config, deps usecase.Dependencies, logger *zap.Logger) *App {
	// Initialize services dan handlers
	service := usecase.NewService(repo, config, deps, logger)
	handler := adaptor.NewHandler(service, config, logger)

	// Setup router
	router := setupRouter(handler, service, logger)

	return &App{
		Router:  router,
		Service: service,
	}
}

// setupRouter konfigurasi Chi router
func setupRouter(handler *adaptor.Handler, service *usecase.Service, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recover(logger))
	r.Use(middleware.CORS())

	session := middleware.AuthSession(service.Auth, logger)

	// Apply routes
	wireRegistration(r, handler.Registration, handler.Verification)
	wireActivation(r, handler.Activation)
	wireAuth(r, handler.Auth, handler.Account, session)
	wireAccount(r, handler.Account, session, logger)

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}
