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

type RoleRepository interface {
	FindByName(ctx context.Context, name entity.RoleName) (*entity.Role, error)
	FindAssignments(ctx context.Context, accountID uuid.UUID) ([]entity.RoleAssignment, error)
	// Assign grants role to the account, replacing the scope of an existing grant.
	Assign(ctx context.Context, accountID uuid.UUID, role entity.RoleName, regionID *int64) error
	// Revoke removes a grant. Revoking a missing grant is not an error.
	Revoke(ctx context.Context, accountID uuid.UUID, role entity.RoleName) error
}

type roleRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewRoleRepository(db database.Querier, log *zap.Logger) RoleRepository {
	return &roleRepository{
		db:  db,
		log: log.With(zap.String("repository", "role")),
	}
}

func (r *roleRepository) FindByName(ctx context.Context, name entity.RoleName) (*entity.Role, error) {
	query := `SELECT id, name, level FROM roles WHERE name = $1`

	var role entity.Role
	err := r.db.QueryRow(ctx, query, name).Scan(&role.ID, &role.Name, &role.Level)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find role", zap.Error(err), zap.String("role", string(name)))
		return nil, fmt.Errorf("find role %s: %w", name, err)
	}

	return &role, nil
}

func (r *roleRepository) FindAssignments(ctx context.Context, accountID uuid.UUID) ([]entity.RoleAssignment, error) {
	query := `
		SELECT ra.account_id, r.id, r.name, r.level, ra.region_id
		FROM role_assignments ra
		JOIN roles r ON r.id = ra.role_id
		WHERE ra.account_id = $1
		ORDER BY r.level DESC
	`

	rows, err := r.db.Query(ctx, query, accountID)
	if err != nil {
		r.log.Error("Failed to find role assignments",
			zap.Error(err),
			zap.String("account_id", accountID.String()),
		)
		return nil, fmt.Errorf("find roles for %s: %w", accountID.String(), err)
	}
	defer rows.Close()

	var assignments []entity.RoleAssignment
	for rows.Next() {
		var a entity.RoleAssignment
		if err := rows.Scan(&a.AccountID, &a.Role.ID, &a.Role.Name, &a.Role.Level, &a.RegionID); err != nil {
			r.log.Error("Failed to scan role assignment", zap.Error(err))
			return nil, fmt.Errorf("scan role assignment: %w", err)
		}
		assignments = append(assignments, a)
	}

	if err := rows.Err(); err != nil {
		r.log.Error("Rows iteration error", zap.Error(err))
		return nil, fmt.Errorf("iterate role assignments: %w", err)
	}

	return assignments, nil
}

func (r *roleRepository) Assign(ctx context.Context, accountID uuid.UUID, role entity.RoleName, regionID *int64) error {
	query := `
		INSERT INTO role_assignments (account_id, role_id, region_id)
		SELECT $1, id, $3 FROM roles WHERE name = $2
		ON CONFLICT (account_id, role_id) DO UPDATE SET region_id = EXCLUDED.region_id
	`

	result, err := r.db.Exec(ctx, query, accountID, role, regionID)
	if err != nil {
		r.log.Error("Failed to assign role",
			zap.Error(err),
			zap.String("account_id", accountID.String()),
			zap.String("role", string(role)),
		)
		return fmt.Errorf("assign role %s to %s: %w", role, accountID.String(), err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("role %s not found", role)
	}

	return nil
}

func (r *roleRepository) Revoke(ctx context.Context, accountID uuid.UUID, role entity.RoleName) error {
	query := `
		DELETE FROM role_assignments
		WHERE account_id = $1 AND role_id = (SELECT id FROM roles WHERE name = $2)
	`

	if _, err := r.db.Exec(ctx, query, accountID, role); err != nil {
		r.log.Error("Failed to revoke role",
			zap.Error(err),
			zap.String("account_id", accountID.String()),
			zap.String("role", string(role)),
		)
		return fmt.Errorf("revoke role %s from %s: %w", role, accountID.String(), err)
	}

	return nil
}
