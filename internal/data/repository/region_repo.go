package repository

import (
	"context"
	"errors"
	"fmt"

	"member-onboarding/internal/data/entity"
	"member-onboarding/pkg/database"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type RegionRepository interface {
	FindAll(ctx context.Context) ([]entity.Region, error)
	FindByID(ctx context.Context, id int64) (*entity.Region, error)
}

type regionRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewRegionRepository(db database.Querier, log *zap.Logger) RegionRepository {
	return &regionRepository{
		db:  db,
		log: log.With(zap.String("repository", "region")),
	}
}

func (r *regionRepository) FindAll(ctx context.Context) ([]entity.Region, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name FROM regions ORDER BY name`)
	if err != nil {
		r.log.Error("Failed to list regions", zap.Error(err))
		return nil, fmt.Errorf("list regions: %w", err)
	}
	defer rows.Close()

	regions := make([]entity.Region, 0)
	for rows.Next() {
		var region entity.Region
		if err := rows.Scan(&region.ID, &region.Name); err != nil {
			return nil, fmt.Errorf("scan region row: %w", err)
		}
		regions = append(regions, region)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate regions rows: %w", err)
	}

	return regions, nil
}

func (r *regionRepository) FindByID(ctx context.Context, id int64) (*entity.Region, error) {
	var region entity.Region
	err := r.db.QueryRow(ctx, `SELECT id, name FROM regions WHERE id = $1`, id).Scan(&region.ID, &region.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find region", zap.Error(err), zap.Int64("region_id", id))
		return nil, fmt.Errorf("find region %d: %w", id, err)
	}

	return &region, nil
}
