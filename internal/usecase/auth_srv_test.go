package usecase

import (
	"context"
	"testing"
	"time"

	"member-onboarding/internal/data/entity"
	"member-onboarding/internal/dto/request"
	"member-onboarding/pkg/mailer"
	"member-onboarding/pkg/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) login(email, password string) (*entity.Principal, string, error) {
	ctx := context.Background()
	resp, err := e.svc.Auth.Login(ctx, &request.LoginRequest{Email: email, Password: password},
		SessionMeta{UserAgent: "go-test", IPAddress: "127.0.0.1"})
	if err != nil {
		return nil, "", err
	}
	principal, err := e.svc.Auth.Authenticate(ctx, resp.Token)
	return principal, resp.Redirect.Path, err
}

func TestLogin_Success(t *testing.T) {
	env := newTestEnv(t)
	id := env.activeMember(t, "a@x.com", regionJakarta)

	resp, err := env.svc.Auth.Login(context.Background(), &request.LoginRequest{Email: " A@X.com ", Password: strongPass}, SessionMeta{})
	require.NoError(t, err)
	assert.Equal(t, id.String(), resp.AccountID)
	assert.Equal(t, "/member/dashboard", resp.Redirect.Path)
	assert.Equal(t, []entity.RoleName{entity.RoleMember}, resp.Roles)
	assert.Contains(t, resp.Permissions, entity.PermProfileUpdate.String())
	assert.Equal(t, env.clock.Now().Add(24*time.Hour), resp.ExpiresAt)
	assert.Contains(t, env.audit.actions(), entity.AuditLoginSucceeded)
}

func TestLogin_LockoutAfterRepeatedFailures(t *testing.T) {
	env := newTestEnv(t)
	env.activeMember(t, "a@x.com", regionJakarta)

	for i := 0; i < 2; i++ {
		_, _, err := env.login("a@x.com", "Wrong1234")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}

	_, _, err := env.login("a@x.com", "Wrong1234")
	var rerr *RateLimitedError
	require.ErrorAs(t, err, &rerr)
	assert.True(t, rerr.Locked)
	assert.Equal(t, 15*time.Minute, rerr.RetryAfter)
	assert.ErrorIs(t, err, ErrAccountLocked)
	assert.Contains(t, env.audit.actions(), entity.AuditAccountLocked)

	// the correct password is refused while locked
	env.clock.Advance(10 * time.Minute)
	_, _, err = env.login("a@x.com", strongPass)
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, 5*time.Minute, rerr.RetryAfter)

	env.clock.Advance(5 * time.Minute)
	_, path, err := env.login("a@x.com", strongPass)
	require.NoError(t, err)
	assert.Equal(t, "/member/dashboard", path)
}

func TestLogin_SuccessResetsFailures(t *testing.T) {
	env := newTestEnv(t)
	env.activeMember(t, "a@x.com", regionJakarta)

	for round := 0; round < 2; round++ {
		for i := 0; i < 2; i++ {
			_, _, err := env.login("a@x.com", "Wrong1234")
			require.ErrorIs(t, err, ErrInvalidCredentials)
		}
		_, _, err := env.login("a@x.com", strongPass)
		require.NoError(t, err)
	}
}

func TestLogin_UnknownEmailIsNotCounted(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 5; i++ {
		_, _, err := env.login("ghost@x.com", strongPass)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		assert.NotErrorIs(t, err, ErrAccountLocked)
	}
}

func TestLogin_Gating(t *testing.T) {
	t.Run("email not verified", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, "a@x.com", strongPass)

		_, _, err := env.login("a@x.com", strongPass)
		assert.ErrorIs(t, err, ErrEmailNotVerified)
	})

	t.Run("verified but not approved", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, "a@x.com", strongPass)
		_, err := env.svc.Verification.VerifyEmail(context.Background(), env.lastToken(t, "a@x.com", mailer.TemplateEmailVerify))
		require.NoError(t, err)

		_, _, err = env.login("a@x.com", strongPass)
		assert.ErrorIs(t, err, ErrAccountInactive)
	})

	t.Run("verification not required", func(t *testing.T) {
		env := newTestEnv(t, withConfig(func(c *utils.Config) { c.Verification.RequireVerifiedEmail = false }))
		env.register(t, "a@x.com", strongPass)

		_, _, err := env.login("a@x.com", strongPass)
		assert.ErrorIs(t, err, ErrAccountInactive)
	})

	t.Run("no password yet", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, "a@x.com", "")

		_, _, err := env.login("a@x.com", strongPass)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("validation", func(t *testing.T) {
		env := newTestEnv(t)

		_, _, err := env.login("not-an-email", "")
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "email")
		assert.Contains(t, verr.Fields, "password")
	})
}

func TestAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.activeMember(t, "a@x.com", regionJakarta)

	principal, _, err := env.login("a@x.com", strongPass)
	require.NoError(t, err)
	assert.Equal(t, id, principal.AccountID)
	assert.Equal(t, 1, principal.Level)

	_, err = env.svc.Auth.Authenticate(ctx, "garbage")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = env.svc.Auth.Authenticate(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrUnauthenticated)

	token := principal.SessionToken.String()
	env.clock.Advance(24*time.Hour + time.Second)
	_, err = env.svc.Auth.Authenticate(ctx, token)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestLogout_RevokesSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.activeMember(t, "a@x.com", regionJakarta)

	principal, _, err := env.login("a@x.com", strongPass)
	require.NoError(t, err)

	require.NoError(t, env.svc.Auth.Logout(ctx, principal))
	_, err = env.svc.Auth.Authenticate(ctx, principal.SessionToken.String())
	assert.ErrorIs(t, err, ErrUnauthenticated)

	// a second logout is harmless
	assert.NoError(t, env.svc.Auth.Logout(ctx, principal))
	assert.ErrorIs(t, env.svc.Auth.Logout(ctx, nil), ErrUnauthenticated)
}

func TestSuspend_EndsOpenSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.activeMember(t, "a@x.com", regionJakarta)

	first, _, err := env.login("a@x.com", strongPass)
	require.NoError(t, err)
	second, _, err := env.login("a@x.com", strongPass)
	require.NoError(t, err)

	_, err = env.svc.Account.Suspend(ctx, env.admin(), id, nil)
	require.NoError(t, err)

	for _, p := range []*entity.Principal{first, second} {
		_, err = env.svc.Auth.Authenticate(ctx, p.SessionToken.String())
		assert.ErrorIs(t, err, ErrUnauthenticated)
	}

	_, _, err = env.login("a@x.com", strongPass)
	assert.ErrorIs(t, err, ErrAccountInactive)
}
