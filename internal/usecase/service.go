package usecase

import (
	"member-onboarding/internal/data/repository"
	"member-onboarding/pkg/utils"

	"go.uber.org/zap"
)

type Service struct {
	Token        TokenService
	Lifecycle    LifecycleService
	Access       AccessService
	Registration RegistrationService
	Verification VerificationService
	Activation   ActivationService
	Auth         AuthService
	Account      AccountService
}

func NewService(repo *repository.Repository, config *utils.Config, deps Dependencies, log *zap.Logger) *Service {
	tokens := NewTokenService(repo, deps.clock(), log)
	lifecycle := NewLifecycleService(repo, deps, log)
	access := NewAccessService(repo, config.Access, log)
	activation := NewActivationService(repo, tokens, lifecycle, config, deps, log)

	return &Service{
		Token:        tokens,
		Lifecycle:    lifecycle,
		Access:       access,
		Registration: NewRegistrationService(repo, tokens, config, deps, log),
		Verification: NewVerificationService(repo, tokens, lifecycle, config, deps, log),
		Activation:   activation,
		Auth:         NewAuthService(repo, access, config, deps, log),
		Account:      NewAccountService(repo, access, lifecycle, activation, deps, log),
	}
}
