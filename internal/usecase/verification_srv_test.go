package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"member-onboarding/internal/data/entity"
	"member-onboarding/pkg/mailer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestVerifyEmail_IdempotentWithoutResend(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.register(t, "a@x.com", "")
	token := env.lastToken(t, "a@x.com", mailer.TemplateEmailVerify)

	got, err := env.svc.Verification.VerifyEmail(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, id, got)
	verifiedAt := env.account(t, id).EmailVerifiedAt

	env.clock.Advance(time.Minute)
	got, err = env.svc.Verification.VerifyEmail(ctx, token)
	assert.ErrorIs(t, err, ErrAlreadyVerified)
	assert.Equal(t, id, got)

	// still verified after the token itself expired
	env.clock.Advance(2 * env.config.Token.EmailVerifyTTL)
	_, err = env.svc.Verification.VerifyEmail(ctx, token)
	assert.ErrorIs(t, err, ErrAlreadyVerified)

	assert.Equal(t, verifiedAt, env.account(t, id).EmailVerifiedAt)
	env.mailer.AssertNumberOfCalls(t, "Send", 1)
}

func TestResend_RateLimitedPerAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.register(t, "a@x.com", "")
	first := env.lastToken(t, "a@x.com", mailer.TemplateEmailVerify)

	require.NoError(t, env.svc.Verification.Resend(ctx, "a@x.com"))
	assert.Equal(t, entity.StatusEmailPending, env.account(t, id).Status)

	// same account through the other identifier
	err := env.svc.Verification.Resend(ctx, id.String())
	var rerr *RateLimitedError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, time.Minute, rerr.RetryAfter)

	env.clock.Advance(time.Minute)
	require.NoError(t, env.svc.Verification.Resend(ctx, id.String()))

	// only the latest link works
	_, err = env.svc.Verification.VerifyEmail(ctx, first)
	assert.ErrorIs(t, err, ErrTokenNotFound)
	_, err = env.svc.Verification.VerifyEmail(ctx, env.lastToken(t, "a@x.com", mailer.TemplateEmailVerify))
	assert.NoError(t, err)
}

func TestResend_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	err := env.svc.Verification.Resend(ctx, "ghost@x.com")
	assert.ErrorIs(t, err, ErrAccountNotFound)

	env.register(t, "a@x.com", "")
	_, err = env.svc.Verification.VerifyEmail(ctx, env.lastToken(t, "a@x.com", mailer.TemplateEmailVerify))
	require.NoError(t, err)

	err = env.svc.Verification.Resend(ctx, "a@x.com")
	assert.ErrorIs(t, err, ErrAlreadyVerified)
}

func TestResend_DeliveryFailureReleasesCooldown(t *testing.T) {
	env := newTestEnv(t, withMailerError(errors.New("smtp down")))
	ctx := context.Background()
	env.register(t, "a@x.com", "")

	for i := 0; i < 2; i++ {
		err := env.svc.Verification.Resend(ctx, "a@x.com")
		var cerr *CollaboratorError
		require.ErrorAs(t, err, &cerr, "attempt %d must not be throttled", i)
		assert.Equal(t, KindDelivery, cerr.Kind)
	}
	env.mailer.AssertCalled(t, "Send", mock.Anything, "a@x.com", mailer.TemplateEmailVerify, mock.Anything)
}
