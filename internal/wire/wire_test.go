package wire

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"member-onboarding/internal/data/entity"
	"member-onboarding/internal/data/repository"
	"member-onboarding/internal/usecase"
	"member-onboarding/pkg/mailer"
	"member-onboarding/pkg/ratelimit"
	"member-onboarding/pkg/storage"
	"member-onboarding/pkg/utils"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	adminEmail = "root@x.com"
	password   = "Sup3rSecret"
)

var pngBytes = []byte{
	0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A,
	0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1F, 0x15, 0xC4, 0x89,
}

// outbox records mails instead of sending them.
type outbox struct {
	mu    sync.Mutex
	links map[string]string
}

func (o *outbox) Send(_ context.Context, recipient, template, token string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.links[recipient+"/"+template] = token
	return nil
}

func (o *outbox) token(t *testing.T, recipient, template string) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	token, ok := o.links[recipient+"/"+template]
	require.True(t, ok, "no %s mail for %s", template, recipient)
	return token
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  struct {
		Code string `json:"code"`
	} `json:"errors"`
}

type testServer struct {
	*httptest.Server
	mail *outbox
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := zap.NewNop()

	config := &utils.Config{
		App:          utils.AppConfig{Name: "member-onboarding-test", BaseURL: "http://localhost"},
		Token:        utils.TokenConfig{EmailVerifyTTL: time.Hour, ActivationTTL: 72 * time.Hour, ProfileTTL: 24 * time.Hour},
		Verification: utils.VerificationConfig{ResendCooldown: time.Minute, RequireVerifiedEmail: true},
		Login:        utils.LoginConfig{MaxAttempts: 5, AttemptWindow: 15 * time.Minute, LockoutPeriod: 15 * time.Minute},
		Password:     utils.PasswordPolicy{MinLength: 8, MaxLength: 72, RequireUpper: true, RequireLower: true, RequireDigit: true},
		Session:      utils.SessionConfig{TTL: time.Hour},
		Upload:       utils.UploadConfig{MaxBytes: 1 << 20, AllowedTypes: []string{"image/png"}},
		Access:       utils.AccessConfig{RegionWideLevel: 3, RegionScopedLevel: 2},
		Admin:        utils.AdminConfig{Email: adminEmail, Password: password, FullName: "Root"},
	}

	repo := repository.NewMemoryRepository(log,
		entity.Region{ID: 1, Name: "Jakarta"},
		entity.Region{ID: 2, Name: "Bandung"},
	)
	mail := &outbox{links: map[string]string{}}
	deps := usecase.Dependencies{
		Mailer: mail,
		Files:  storage.NewFileStoreOn(afero.NewMemMapFs(), config.Upload, log),
		Limits: ratelimit.NewMemoryStore(),
	}

	_, err := usecase.BootstrapAdmin(context.Background(), repo, config, deps, log)
	require.NoError(t, err)

	app := Wiring(repo, config, deps, log)
	srv := httptest.NewServer(app.Router)
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, mail: mail}
}

func (s *testServer) do(t *testing.T, method, path, bearer string, body any) (*http.Response, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return s.send(t, req)
}

func (s *testServer) send(t *testing.T, req *http.Request) (*http.Response, envelope) {
	t.Helper()
	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp, env
}

func (s *testServer) login(t *testing.T, email string) (token, redirect string) {
	t.Helper()
	resp, env := s.do(t, http.MethodPost, "/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)

	var data struct {
		Token    string `json:"token"`
		Redirect struct {
			Path string `json:"path"`
		} `json:"redirect"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data.Token, data.Redirect.Path
}

func profileUpload(t *testing.T, url string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range map[string]string{
		"full_name":   "Siti Rahma",
		"phone":       "081234567890",
		"address":     "Jl. Merdeka 10",
		"birth_place": "Jakarta",
		"birth_date":  "1992-01-30",
		"region_id":   "1",
	} {
		require.NoError(t, mw.WriteField(k, v))
	}
	part, err := mw.CreateFormFile("photo", "me.png")
	require.NoError(t, err)
	_, err = part.Write(pngBytes)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, url, &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestRouter_SelfRegistrationToActive(t *testing.T) {
	s := newTestServer(t)
	member := "siti@x.com"

	resp, env := s.do(t, http.MethodGet, "/register", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(env.Data), "Bandung")

	resp, env = s.do(t, http.MethodPost, "/register", "", map[string]any{
		"email": member, "password": password, "full_name": "Siti Rahma", "region_id": 1,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.Message)
	var registered struct {
		AccountID string `json:"account_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &registered))

	resp, env = s.do(t, http.MethodPost, "/register", "", map[string]any{
		"email": strings.ToUpper(member), "full_name": "Siti Rahma",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "duplicate_email", env.Errors.Code)

	verify := s.mail.token(t, member, mailer.TemplateEmailVerify)
	resp, _ = s.do(t, http.MethodGet, "/verify-email?token="+verify, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, env = s.do(t, http.MethodGet, "/verify-email/"+verify, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.Status)
	var replayed struct {
		AccountID string `json:"account_id"`
		Status    string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &replayed))
	assert.Equal(t, registered.AccountID, replayed.AccountID)
	assert.Equal(t, "already_verified", replayed.Status)

	resp, env = s.do(t, http.MethodPost, "/login", "", map[string]string{"email": member, "password": password})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "account_inactive", env.Errors.Code)

	admin, redirect := s.login(t, adminEmail)
	assert.Equal(t, "/admin/dashboard", redirect)

	resp, env = s.do(t, http.MethodPost, "/admin/accounts/"+registered.AccountID+"/approve", admin, map[string]string{"reason": "ok"})
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)

	activation := s.mail.token(t, member, mailer.TemplateActivation)
	resp, _ = s.do(t, http.MethodGet, "/activate/"+activation, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, env = s.do(t, http.MethodPost, "/activate/"+activation, "", map[string]string{
		"password": password, "password_confirmation": password,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)
	var activated struct {
		ProfileToken string `json:"profile_token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &activated))

	resp, _ = s.do(t, http.MethodGet, "/activate/update-profile/"+activated.ProfileToken, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, env = s.send(t, profileUpload(t, s.URL+"/activate/process-profile/"+activated.ProfileToken))
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)

	token, redirect := s.login(t, member)
	assert.Equal(t, "/member/dashboard", redirect)

	resp, env = s.do(t, http.MethodGet, "/me", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(env.Data), member)

	resp, env = s.do(t, http.MethodGet, "/admin/accounts/"+registered.AccountID, token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "forbidden", env.Errors.Code)

	resp, _ = s.do(t, http.MethodPost, "/logout", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = s.do(t, http.MethodGet, "/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRouter_ResendIsRateLimited(t *testing.T) {
	s := newTestServer(t)

	resp, _ := s.do(t, http.MethodPost, "/register", "", map[string]any{"email": "a@x.com", "full_name": "Andi"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/verify-email/resend", "", map[string]string{"identifier": "a@x.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, env := s.do(t, http.MethodPost, "/verify-email/resend", "", map[string]string{"identifier": "a@x.com"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "rate_limited", env.Errors.Code)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestRouter_RepeatedApprovalSucceeds(t *testing.T) {
	s := newTestServer(t)
	member := "b@x.com"

	resp, env := s.do(t, http.MethodPost, "/register", "", map[string]any{
		"email": member, "password": password, "full_name": "Budi", "region_id": 1,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.Message)
	var registered struct {
		AccountID string `json:"account_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &registered))

	resp, _ = s.do(t, http.MethodGet, "/verify-email/"+s.mail.token(t, member, mailer.TemplateEmailVerify), "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	admin, _ := s.login(t, adminEmail)
	path := "/admin/accounts/" + registered.AccountID + "/approve"

	resp, env = s.do(t, http.MethodPost, path, admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)

	resp, env = s.do(t, http.MethodPost, path, admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)
	assert.True(t, env.Status)
	var repeated struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &repeated))
	assert.Equal(t, "already_in_state", repeated.Status)
}

func TestRouter_AuthErrors(t *testing.T) {
	s := newTestServer(t)

	resp, _ := s.do(t, http.MethodGet, "/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/me", "not-a-session", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, env := s.do(t, http.MethodPost, "/login", "", map[string]string{"email": adminEmail, "password": "Wrong1234"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid_credentials", env.Errors.Code)

	resp, env = s.do(t, http.MethodGet, "/verify-email/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "token_not_found", env.Errors.Code)

	admin, _ := s.login(t, adminEmail)
	resp, _ = s.do(t, http.MethodGet, "/admin/accounts/not-a-uuid", admin, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t)

	resp, err := s.Client().Get(s.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
