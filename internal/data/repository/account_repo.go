package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"member-onboarding/internal/data/entity"
	"member-onboarding/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type AccountRepository interface {
	Create(ctx context.Context, account *entity.Account) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Account, error)
	FindByEmail(ctx context.Context, email string) (*entity.Account, error)
	// UpdateStatus moves the account from one status to another. It reports
	// false when the stored status is no longer from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to entity.AccountStatus, at time.Time) (bool, error)
	MarkEmailVerified(ctx context.Context, id uuid.UUID, at time.Time) error
	SetPassword(ctx context.Context, id uuid.UUID, hash string, at time.Time) error
}

type accountRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewAccountRepository(db database.Querier, log *zap.Logger) AccountRepository {
	return &accountRepository{
		db:  db,
		log: log.With(zap.String("repository", "account")),
	}
}

const accountColumns = `id, email, password_hash, status, email_verified_at, created_at, updated_at`

// Create inserts a new account record into the database
func (r *accountRepository) Create(ctx context.Context, account *entity.Account) error {
	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Exec(ctx, query,
		account.ID,
		account.Email,
		account.PasswordHash,
		account.Status,
		account.EmailVerifiedAt,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		r.log.Error("Failed to create account",
			zap.Error(err),
			zap.String("email", account.Email),
		)
		return fmt.Errorf("create account %s: %w", account.Email, err)
	}

	return nil
}

func (r *accountRepository) scanOne(row pgx.Row) (*entity.Account, error) {
	var account entity.Account
	err := row.Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
		&account.Status,
		&account.EmailVerifiedAt,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	account, err := r.scanOne(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find account by ID",
			zap.Error(err),
			zap.String("account_id", id.String()),
		)
		return nil, fmt.Errorf("find account by ID %s: %w", id.String(), err)
	}

	return account, nil
}

func (r *accountRepository) FindByEmail(ctx context.Context, email string) (*entity.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`

	account, err := r.scanOne(r.db.QueryRow(ctx, query, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find account by email",
			zap.Error(err),
			zap.String("email", email),
		)
		return nil, fmt.Errorf("find account by email %s: %w", email, err)
	}

	return account, nil
}

func (r *accountRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to entity.AccountStatus, at time.Time) (bool, error) {
	query := `
		UPDATE accounts
		SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
	`

	result, err := r.db.Exec(ctx, query, id, from, to, at)
	if err != nil {
		r.log.Error("Failed to update account status",
			zap.Error(err),
			zap.String("account_id", id.String()),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
		)
		return false, fmt.Errorf("update account %s status: %w", id.String(), err)
	}

	return result.RowsAffected() == 1, nil
}

func (r *accountRepository) MarkEmailVerified(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE accounts
		SET email_verified_at = COALESCE(email_verified_at, $2), updated_at = $2
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query, id, at)
	if err != nil {
		r.log.Error("Failed to mark email verified",
			zap.Error(err),
			zap.String("account_id", id.String()),
		)
		return fmt.Errorf("mark account %s verified: %w", id.String(), err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("account %s not found", id.String())
	}

	return nil
}

func (r *accountRepository) SetPassword(ctx context.Context, id uuid.UUID, hash string, at time.Time) error {
	query := `
		UPDATE accounts
		SET password_hash = $2, updated_at = $3
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query, id, hash, at)
	if err != nil {
		r.log.Error("Failed to set password",
			zap.Error(err),
			zap.String("account_id", id.String()),
		)
		return fmt.Errorf("set account %s password: %w", id.String(), err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("account %s not found", id.String())
	}

	return nil
}
