package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"member-onboarding/internal/data/entity"
	"member-onboarding/pkg/database"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AuditRepository interface {
	Create(ctx context.Context, log *entity.AuditLog) error
	// FindByAccount returns the newest entries first.
	FindByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]entity.AuditLog, error)
}

type auditRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewAuditRepository(db database.Querier, log *zap.Logger) AuditRepository {
	return &auditRepository{
		db:  db,
		log: log.With(zap.String("repository", "audit")),
	}
}

func (r *auditRepository) Create(ctx context.Context, entry *entity.AuditLog) error {
	detail, err := json.Marshal(entry.Detail)
	if err != nil {
		return fmt.Errorf("encode audit detail: %w", err)
	}

	query := `
		INSERT INTO audit_logs (id, account_id, actor_id, action, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	if _, err := r.db.Exec(ctx, query,
		entry.ID,
		entry.AccountID,
		entry.ActorID,
		entry.Action,
		detail,
		entry.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert audit log %s: %w", entry.Action, err)
	}

	return nil
}

func (r *auditRepository) FindByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]entity.AuditLog, error) {
	query := `
		SELECT id, account_id, actor_id, action, detail, created_at
		FROM audit_logs
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, accountID, limit)
	if err != nil {
		r.log.Error("Failed to list audit logs",
			zap.Error(err),
			zap.String("account_id", accountID.String()),
		)
		return nil, fmt.Errorf("list audit logs for %s: %w", accountID.String(), err)
	}
	defer rows.Close()

	entries := make([]entity.AuditLog, 0)
	for rows.Next() {
		var (
			entry  entity.AuditLog
			detail []byte
		)
		if err := rows.Scan(&entry.ID, &entry.AccountID, &entry.ActorID, &entry.Action, &detail, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log row: %w", err)
		}
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &entry.Detail); err != nil {
				return nil, fmt.Errorf("decode audit detail: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit log rows: %w", err)
	}

	return entries, nil
}
