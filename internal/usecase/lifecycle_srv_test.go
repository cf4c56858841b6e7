package usecase

import (
	"context"
	"errors"
	"testing"

	"member-onboarding/internal/data/entity"
	"member-onboarding/internal/data/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAccount(t *testing.T, env *testEnv, status entity.AccountStatus, withPassword bool) *entity.Account {
	t.Helper()
	now := env.clock.Now()
	account := &entity.Account{
		BaseNoDelete: entity.BaseNoDelete{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Email:        uuid.NewString() + "@example.org",
		Status:       status,
	}
	if withPassword {
		hash := "$2a$10$placeholder"
		account.PasswordHash = &hash
	}
	require.NoError(t, env.repo.Account.Create(context.Background(), account))
	return account
}

func TestLifecycle_Can(t *testing.T) {
	env := newTestEnv(t)
	sm := env.svc.Lifecycle

	tests := []struct {
		from, to entity.AccountStatus
		want     bool
	}{
		{entity.StatusRegistered, entity.StatusEmailPending, true},
		{entity.StatusRegistered, entity.StatusEmailVerified, true},
		{entity.StatusEmailPending, entity.StatusEmailVerified, true},
		{entity.StatusEmailVerified, entity.StatusPendingApproval, true},
		{entity.StatusEmailVerified, entity.StatusActivated, true},
		{entity.StatusPendingApproval, entity.StatusActivated, true},
		{entity.StatusPendingApproval, entity.StatusRejected, true},
		{entity.StatusActivated, entity.StatusActive, true},
		{entity.StatusActive, entity.StatusSuspended, true},
		{entity.StatusSuspended, entity.StatusActive, true},

		{entity.StatusActive, entity.StatusRegistered, false},
		{entity.StatusEmailVerified, entity.StatusEmailPending, false},
		{entity.StatusRegistered, entity.StatusActive, false},
		{entity.StatusRejected, entity.StatusActivated, false},
		{entity.StatusSuspended, entity.StatusActivated, false},
		{entity.StatusActive, entity.StatusActive, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, sm.Can(tt.from, tt.to))
		})
	}
}

func TestLifecycle_SameStateIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	account := seedAccount(t, env, entity.StatusActive, true)

	got, err := env.svc.Lifecycle.Transition(context.Background(), account, entity.StatusActive)
	assert.ErrorIs(t, err, ErrAlreadyInState)
	assert.Equal(t, entity.StatusActive, got.Status)
	assert.Empty(t, env.audit.actions())
}

func TestLifecycle_IllegalTransitionLeavesState(t *testing.T) {
	env := newTestEnv(t)
	account := seedAccount(t, env, entity.StatusRegistered, false)

	_, err := env.svc.Lifecycle.Transition(context.Background(), account, entity.StatusActive)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, entity.StatusRegistered, env.account(t, account.ID).Status)
}

func TestLifecycle_GuardRequiresPassword(t *testing.T) {
	env := newTestEnv(t)
	account := seedAccount(t, env, entity.StatusActivated, false)

	_, err := env.svc.Lifecycle.Transition(context.Background(), account, entity.StatusActive)
	assert.ErrorIs(t, err, ErrGuardFailed)
	assert.Equal(t, entity.StatusActivated, env.account(t, account.ID).Status)
}

func TestLifecycle_StaleStateLosesRace(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := seedAccount(t, env, entity.StatusActive, true)

	stale := *account
	_, err := env.svc.Lifecycle.Transition(ctx, account, entity.StatusSuspended)
	require.NoError(t, err)

	// a second writer still holding the old status
	_, err = env.svc.Lifecycle.Transition(ctx, &stale, entity.StatusSuspended)
	assert.ErrorIs(t, err, ErrStaleState)
}

func TestLifecycle_WalksThroughIntermediateState(t *testing.T) {
	env := newTestEnv(t)
	account := seedAccount(t, env, entity.StatusRegistered, false)
	now := env.clock.Now()
	account.EmailVerifiedAt = &now

	got, err := env.svc.Lifecycle.Transition(context.Background(), account, entity.StatusEmailVerified)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusEmailVerified, got.Status)
	assert.Equal(t, []entity.AuditAction{entity.AuditAccountTransitioned, entity.AuditAccountTransitioned}, env.audit.actions())
	// the caller's copy is not mutated
	assert.Equal(t, entity.StatusRegistered, account.Status)
}

func TestLifecycle_HookErrorAbortsTransaction(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := seedAccount(t, env, entity.StatusActive, true)
	boom := errors.New("hook failed")

	err := env.repo.WithTx(ctx, func(ctx context.Context, tx *repository.Repository) error {
		_, err := env.svc.Lifecycle.WithRepository(tx).Transition(ctx, account, entity.StatusSuspended,
			WithAfterTransitionHook(func(context.Context, TransitionContext) error { return boom }))
		return err
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, entity.StatusActive, env.account(t, account.ID).Status)
}
