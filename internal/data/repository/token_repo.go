package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"member-onboarding/internal/data/entity"
	"member-onboarding/pkg/database"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type TokenRepository interface {
	// Replace drops every unconsumed token of the same account and purpose and
	// stores token. The account row is locked first so concurrent issuers
	// queue; the live-token unique index backs this up outside a transaction.
	Replace(ctx context.Context, token *entity.Token) error
	FindByValue(ctx context.Context, value string) (*entity.Token, error)
	// Consume sets consumed_at on a live token of the given purpose. It reports
	// false when no row qualified; the caller re-reads to find out why.
	Consume(ctx context.Context, value string, purpose entity.TokenPurpose, at time.Time) (bool, error)
}

type tokenRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewTokenRepository(db database.Querier, log *zap.Logger) TokenRepository {
	return &tokenRepository{
		db:  db,
		log: log.With(zap.String("repository", "token")),
	}
}

func (r *tokenRepository) Replace(ctx context.Context, t *entity.Token) error {
	lock := `SELECT id FROM accounts WHERE id = $1 FOR UPDATE`

	if _, err := r.db.Exec(ctx, lock, t.AccountID); err != nil {
		r.log.Error("Failed to lock account for token issue",
			zap.Error(err),
			zap.String("account_id", t.AccountID.String()),
		)
		return fmt.Errorf("lock account %s: %w", t.AccountID.String(), err)
	}

	query := `
		WITH purged AS (
			DELETE FROM account_tokens
			WHERE account_id = $3 AND purpose = $4 AND consumed_at IS NULL
		)
		INSERT INTO account_tokens (id, token, account_id, purpose, issued_at,
		                            expires_at, consumed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULL, $7)
	`

	_, err := r.db.Exec(ctx, query,
		t.ID,
		t.Value,
		t.AccountID,
		t.Purpose,
		t.IssuedAt,
		t.ExpiresAt,
		t.CreatedAt,
	)
	if err != nil {
		r.log.Error("Failed to store token",
			zap.Error(err),
			zap.String("account_id", t.AccountID.String()),
			zap.String("purpose", string(t.Purpose)),
		)
		return fmt.Errorf("store %s token for %s: %w", t.Purpose, t.AccountID.String(), err)
	}

	return nil
}

func (r *tokenRepository) FindByValue(ctx context.Context, value string) (*entity.Token, error) {
	query := `
		SELECT id, token, account_id, purpose, issued_at, expires_at, consumed_at, created_at
		FROM account_tokens
		WHERE token = $1
	`

	var t entity.Token
	err := r.db.QueryRow(ctx, query, value).Scan(
		&t.ID,
		&t.Value,
		&t.AccountID,
		&t.Purpose,
		&t.IssuedAt,
		&t.ExpiresAt,
		&t.ConsumedAt,
		&t.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find token", zap.Error(err))
		return nil, fmt.Errorf("find token: %w", err)
	}

	return &t, nil
}

func (r *tokenRepository) Consume(ctx context.Context, value string, purpose entity.TokenPurpose, at time.Time) (bool, error) {
	query := `
		UPDATE account_tokens
		SET consumed_at = $3
		WHERE token = $1
		  AND purpose = $2
		  AND consumed_at IS NULL
		  AND expires_at >= $3
	`

	result, err := r.db.Exec(ctx, query, value, purpose, at)
	if err != nil {
		r.log.Error("Failed to consume token",
			zap.Error(err),
			zap.String("purpose", string(purpose)),
		)
		return false, fmt.Errorf("consume %s token: %w", purpose, err)
	}

	return result.RowsAffected() == 1, nil
}
