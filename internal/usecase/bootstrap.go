package usecase

import (
	"context"
	"errors"
	"fmt"

	"member-onboarding/internal/data/entity"
	"member-onboarding/internal/data/repository"
	"member-onboarding/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BootstrapAdmin creates an active super admin from config when no account
// uses that email yet. It reports whether an account was created.
func BootstrapAdmin(
	ctx context.Context,
	repo *repository.Repository,
	config *utils.Config,
	deps Dependencies,
	log *zap.Logger,
) (bool, error) {
	admin := config.Admin
	if admin.Email == "" {
		return false, nil
	}

	existing, err := repo.Account.FindByEmail(ctx, admin.Email)
	if err != nil {
		return false, fmt.Errorf("check admin account: %w", err)
	}
	if existing != nil {
		log.Info("Admin account already exists - skipping bootstrap", zap.String("email", admin.Email))
		return false, nil
	}

	if reasons := utils.CheckPasswordPolicy(config.Password, admin.Password); len(reasons) > 0 {
		return false, &PasswordPolicyError{Reasons: reasons}
	}
	hash, err := utils.HashPassword(admin.Password)
	if err != nil {
		return false, fmt.Errorf("hash admin password: %w", err)
	}

	ts := deps.clock()()
	account := &entity.Account{
		BaseNoDelete:    entity.BaseNoDelete{ID: uuid.New(), CreatedAt: ts, UpdatedAt: ts},
		Email:           admin.Email,
		PasswordHash:    &hash,
		Status:          entity.StatusActive,
		EmailVerifiedAt: &ts,
	}
	profile := &entity.MemberProfile{
		AccountID: account.ID,
		FullName:  admin.FullName,
		CreatedAt: ts,
		UpdatedAt: ts,
	}

	err = repo.WithTx(ctx, func(ctx context.Context, tx *repository.Repository) error {
		if err := tx.Account.Create(ctx, account); err != nil {
			return err
		}
		if err := tx.Profile.Create(ctx, profile); err != nil {
			return err
		}
		return tx.Role.Assign(ctx, account.ID, entity.RoleSuperAdmin, nil)
	})
	if errors.Is(err, repository.ErrDuplicateEmail) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("bootstrap admin: %w", err)
	}

	log.Info("Admin account bootstrapped",
		zap.String("account_id", account.ID.String()),
		zap.String("email", account.Email),
	)
	return true, nil
}
