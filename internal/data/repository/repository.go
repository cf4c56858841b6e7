package repository

import (
	"context"
	"errors"

	"member-onboarding/pkg/database"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// ErrDuplicateEmail is returned by AccountRepository.Create when the email is taken.
var ErrDuplicateEmail = errors.New("email already registered")

// TxFunc runs fn against a Repository bound to one transaction.
type TxFunc func(ctx context.Context, fn func(ctx context.Context, tx *Repository) error) error

type Repository struct {
	Account AccountRepository
	Profile ProfileRepository
	Token   TokenRepository
	Role    RoleRepository
	Region  RegionRepository
	Session SessionRepository
	Audit   AuditRepository

	Tx TxFunc
}

// WithTx runs fn atomically. Calls made on a transaction-bound Repository join
// the running transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx *Repository) error) error {
	if r.Tx == nil {
		return fn(ctx, r)
	}
	return r.Tx(ctx, fn)
}

func NewRepository(db database.PgxIface, log *zap.Logger) *Repository {
	repo := newRepository(db, log)
	repo.Tx = func(ctx context.Context, fn func(ctx context.Context, tx *Repository) error) error {
		return database.RunInTx(ctx, db, func(tx pgx.Tx) error {
			txRepo := newRepository(tx, log)
			txRepo.Tx = joinTx(txRepo)
			return fn(ctx, txRepo)
		})
	}
	return repo
}

func newRepository(q database.Querier, log *zap.Logger) *Repository {
	return &Repository{
		Account: NewAccountRepository(q, log),
		Profile: NewProfileRepository(q, log),
		Token:   NewTokenRepository(q, log),
		Role:    NewRoleRepository(q, log),
		Region:  NewRegionRepository(q, log),
		Session: NewSessionRepository(q, log),
		Audit:   NewAuditRepository(q, log),
	}
}

func joinTx(repo *Repository) TxFunc {
	return func(ctx context.Context, fn func(ctx context.Context, tx *Repository) error) error {
		return fn(ctx, repo)
	}
}
