package repository

import (
	"context"
	"errors"
	"fmt"

	"member-onboarding/internal/data/entity"
	"member-onboarding/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type ProfileRepository interface {
	Create(ctx context.Context, profile *entity.MemberProfile) error
	FindByAccountID(ctx context.Context, accountID uuid.UUID) (*entity.MemberProfile, error)
	Update(ctx context.Context, profile *entity.MemberProfile) error
}

type profileRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewProfileRepository(db database.Querier, log *zap.Logger) ProfileRepository {
	return &profileRepository{
		db:  db,
		log: log.With(zap.String("repository", "profile")),
	}
}

func (r *profileRepository) Create(ctx context.Context, p *entity.MemberProfile) error {
	query := `
		INSERT INTO member_profiles (account_id, full_name, phone, whatsapp, address,
		                             birth_place, birth_date, photo_path, region_id,
		                             created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.Exec(ctx, query,
		p.AccountID,
		p.FullName,
		p.Phone,
		p.WhatsApp,
		p.Address,
		p.BirthPlace,
		p.BirthDate,
		p.PhotoPath,
		p.RegionID,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to create profile",
			zap.Error(err),
			zap.String("account_id", p.AccountID.String()),
		)
		return fmt.Errorf("create profile for %s: %w", p.AccountID.String(), err)
	}

	return nil
}

func (r *profileRepository) FindByAccountID(ctx context.Context, accountID uuid.UUID) (*entity.MemberProfile, error) {
	query := `
		SELECT account_id, full_name, phone, whatsapp, address, birth_place,
		       birth_date, photo_path, region_id, created_at, updated_at
		FROM member_profiles
		WHERE account_id = $1
	`

	var p entity.MemberProfile
	err := r.db.QueryRow(ctx, query, accountID).Scan(
		&p.AccountID,
		&p.FullName,
		&p.Phone,
		&p.WhatsApp,
		&p.Address,
		&p.BirthPlace,
		&p.BirthDate,
		&p.PhotoPath,
		&p.RegionID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find profile",
			zap.Error(err),
			zap.String("account_id", accountID.String()),
		)
		return nil, fmt.Errorf("find profile for %s: %w", accountID.String(), err)
	}

	return &p, nil
}

func (r *profileRepository) Update(ctx context.Context, p *entity.MemberProfile) error {
	query := `
		UPDATE member_profiles
		SET full_name = $2, phone = $3, whatsapp = $4, address = $5,
		    birth_place = $6, birth_date = $7, photo_path = $8, region_id = $9,
		    updated_at = $10
		WHERE account_id = $1
	`

	result, err := r.db.Exec(ctx, query,
		p.AccountID,
		p.FullName,
		p.Phone,
		p.WhatsApp,
		p.Address,
		p.BirthPlace,
		p.BirthDate,
		p.PhotoPath,
		p.RegionID,
		p.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to update profile",
			zap.Error(err),
			zap.String("account_id", p.AccountID.String()),
		)
		return fmt.Errorf("update profile for %s: %w", p.AccountID.String(), err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("profile for %s not found", p.AccountID.String())
	}

	return nil
}
