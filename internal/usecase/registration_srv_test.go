package usecase

import (
	"context"
	"errors"
	"testing"

	"member-onboarding/internal/data/entity"
	"member-onboarding/internal/data/repository"
	"member-onboarding/internal/dto/request"
	"member-onboarding/pkg/mailer"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type failingTokenRepo struct {
	repository.TokenRepository
	err error
}

func (f failingTokenRepo) Replace(context.Context, *entity.Token) error {
	return f.err
}

func TestRegister_CreatesRegisteredAccountWithToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	phone := "0812-3456-7890"

	resp, err := env.svc.Registration.Register(ctx, &request.RegisterRequest{
		Email:    "  A@X.com ",
		FullName: "Siti Rahma",
		Phone:    &phone,
	})
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", resp.Email)
	assert.Equal(t, entity.StatusRegistered, resp.Status)
	assert.True(t, resp.EmailSent)

	id := uuid.MustParse(resp.AccountID)
	account := env.account(t, id)
	assert.Equal(t, entity.StatusRegistered, account.Status)
	assert.False(t, account.HasPassword())

	profile, err := env.repo.Profile.FindByAccountID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, "+6281234567890", *profile.Phone)

	token, err := env.repo.Token.FindByValue(ctx, env.lastToken(t, "a@x.com", mailer.TemplateEmailVerify))
	require.NoError(t, err)
	require.NotNil(t, token)
	assert.Equal(t, entity.PurposeEmailVerify, token.Purpose)
	assert.Equal(t, id, token.AccountID)

	grants, err := env.repo.Role.FindAssignments(ctx, id)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, entity.RolePendingMember, grants[0].Role.Name)
}

func TestRegister_Validation(t *testing.T) {
	env := newTestEnv(t)
	unknownRegion := int64(99)

	tests := []struct {
		name  string
		req   *request.RegisterRequest
		field string
	}{
		{name: "bad email", req: &request.RegisterRequest{Email: "nope", FullName: "Siti"}, field: "email"},
		{name: "missing name", req: &request.RegisterRequest{Email: "a@x.com"}, field: "full_name"},
		{name: "unknown region", req: &request.RegisterRequest{Email: "a@x.com", FullName: "Siti", RegionID: &unknownRegion}, field: "region_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Registration.Register(context.Background(), tt.req)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.field)
		})
	}
	assert.Zero(t, env.mailCount())
}

func TestRegister_WeakPasswordRejected(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Registration.Register(context.Background(), &request.RegisterRequest{
		Email:    "a@x.com",
		Password: "short",
		FullName: "Siti Rahma",
	})

	assert.ErrorIs(t, err, ErrPasswordPolicy)
	var perr *PasswordPolicyError
	require.ErrorAs(t, err, &perr)
	assert.NotEmpty(t, perr.Reasons)
}

func TestRegister_RollsBackWhenTokenIssueFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.repo.Token = failingTokenRepo{TokenRepository: env.repo.Token, err: errors.New("disk full")}

	_, err := env.svc.Registration.Register(ctx, &request.RegisterRequest{Email: "a@x.com", FullName: "Siti Rahma"})

	var cerr *CollaboratorError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, KindPersistence, cerr.Kind)

	account, err := env.repo.Account.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Nil(t, account, "account creation must roll back")
	env.mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRegister_DeliveryFailureKeepsAccount(t *testing.T) {
	env := newTestEnv(t, withMailerError(errors.New("smtp down")))

	resp, err := env.svc.Registration.Register(context.Background(), &request.RegisterRequest{Email: "a@x.com", FullName: "Siti Rahma"})
	require.NoError(t, err)
	assert.False(t, resp.EmailSent)
	env.account(t, uuid.MustParse(resp.AccountID))
}

// Walks the registration scenario end to end.
func TestRegistrationScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.register(t, "a@x.com", "")

	// duplicate
	_, err := env.svc.Registration.Register(ctx, &request.RegisterRequest{Email: "a@x.com", FullName: "Other"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	fresh := env.register(t, "fresh@x.com", "")
	assert.Equal(t, entity.StatusRegistered, env.account(t, fresh).Status)
	token := env.lastToken(t, "fresh@x.com", mailer.TemplateEmailVerify)

	// wrong token
	_, err = env.svc.Verification.VerifyEmail(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrTokenNotFound)

	// past the TTL
	env.clock.Advance(env.config.Token.EmailVerifyTTL + 1)
	_, err = env.svc.Verification.VerifyEmail(ctx, token)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.Equal(t, entity.StatusRegistered, env.account(t, fresh).Status)

	// fresh token
	require.NoError(t, env.svc.Verification.Resend(ctx, "fresh@x.com"))
	token = env.lastToken(t, "fresh@x.com", mailer.TemplateEmailVerify)

	id, err := env.svc.Verification.VerifyEmail(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, fresh, id)
	account := env.account(t, fresh)
	assert.Equal(t, entity.StatusEmailVerified, account.Status)
	assert.True(t, account.IsEmailVerified())

	_, err = env.svc.Verification.VerifyEmail(ctx, token)
	assert.ErrorIs(t, err, ErrAlreadyVerified)
}
