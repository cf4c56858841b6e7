package usecase

import (
	"bytes"
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"member-onboarding/internal/data/entity"
	"member-onboarding/internal/data/repository"
	"member-onboarding/internal/dto/request"
	"member-onboarding/pkg/mailer"
	"member-onboarding/pkg/ratelimit"
	"member-onboarding/pkg/storage"
	"member-onboarding/pkg/utils"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	regionJakarta int64 = 1
	regionBandung int64 = 2
	strongPass          = "Sup3rSecret"
)

// smallest valid PNG header + IHDR chunk
var pngBytes = []byte{
	0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A,
	0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1F, 0x15, 0xC4, 0x89,
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) Send(ctx context.Context, recipient, template, token string) error {
	args := m.Called(ctx, recipient, template, token)
	return args.Error(0)
}

type sentMail struct {
	Recipient string
	Template  string
	Token     string
}

// recordingSink keeps audit events in order, synchronously.
type recordingSink struct {
	mu     sync.Mutex
	events []entity.AuditLog
}

func (s *recordingSink) Record(_ context.Context, event *entity.AuditLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *event)
}

func (s *recordingSink) actions() []entity.AuditAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.AuditAction, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Action)
	}
	return out
}

type testEnv struct {
	repo   *repository.Repository
	svc    *Service
	clock  *fakeClock
	mailer *mockMailer
	files  afero.Fs
	audit  *recordingSink
	config *utils.Config

	mu   sync.Mutex
	sent []sentMail
}

type envOption func(*envSetup)

type envSetup struct {
	mailErr error
	mutate  func(*utils.Config)
}

func withMailerError(err error) envOption {
	return func(s *envSetup) { s.mailErr = err }
}

func withConfig(fn func(*utils.Config)) envOption {
	return func(s *envSetup) { s.mutate = fn }
}

func testConfig() *utils.Config {
	return &utils.Config{
		App: utils.AppConfig{Name: "member-onboarding-test", BaseURL: "http://localhost"},
		Token: utils.TokenConfig{
			EmailVerifyTTL: time.Hour,
			ActivationTTL:  72 * time.Hour,
			ProfileTTL:     24 * time.Hour,
		},
		Verification: utils.VerificationConfig{
			ResendCooldown:       time.Minute,
			RequireVerifiedEmail: true,
		},
		Login: utils.LoginConfig{
			MaxAttempts:   3,
			AttemptWindow: 15 * time.Minute,
			LockoutPeriod: 15 * time.Minute,
		},
		Password: utils.PasswordPolicy{
			MinLength:    8,
			MaxLength:    72,
			RequireUpper: true,
			RequireLower: true,
			RequireDigit: true,
		},
		Session: utils.SessionConfig{TTL: 24 * time.Hour},
		Upload: utils.UploadConfig{
			MaxBytes:     1 << 20,
			AllowedTypes: []string{"image/png", "image/jpeg"},
		},
		Access: utils.AccessConfig{RegionWideLevel: 3, RegionScopedLevel: 2},
	}
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	var setup envSetup
	for _, opt := range opts {
		opt(&setup)
	}

	config := testConfig()
	if setup.mutate != nil {
		setup.mutate(config)
	}

	log := zap.NewNop()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	files := afero.NewMemMapFs()

	env := &testEnv{
		repo: repository.NewMemoryRepository(log,
			entity.Region{ID: regionJakarta, Name: "Jakarta"},
			entity.Region{ID: regionBandung, Name: "Bandung"},
		),
		clock:  clock,
		mailer: &mockMailer{},
		files:  files,
		audit:  &recordingSink{},
		config: config,
	}

	env.mailer.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			env.mu.Lock()
			defer env.mu.Unlock()
			env.sent = append(env.sent, sentMail{
				Recipient: args.String(1),
				Template:  args.String(2),
				Token:     args.String(3),
			})
		}).
		Return(setup.mailErr)

	env.svc = NewService(env.repo, config, Dependencies{
		Mailer: env.mailer,
		Files:  storage.NewFileStoreOn(files, config.Upload, log),
		Limits: ratelimit.NewMemoryStore(ratelimit.WithClock(clock.Now)),
		Audit:  env.audit,
		Now:    clock.Now,
	}, log)

	return env
}

// lastToken returns the token of the newest mail of template sent to recipient.
func (e *testEnv) lastToken(t *testing.T, recipient, template string) string {
	t.Helper()
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := len(e.sent) - 1; i >= 0; i-- {
		if e.sent[i].Recipient == recipient && e.sent[i].Template == template {
			return e.sent[i].Token
		}
	}
	t.Fatalf("no %s mail sent to %s", template, recipient)
	return ""
}

func (e *testEnv) mailCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sent)
}

func (e *testEnv) actor(role entity.RoleName, level int, region *int64) *entity.Principal {
	roles := []entity.RoleName{role}
	return &entity.Principal{
		AccountID:   uuid.New(),
		Roles:       roles,
		Level:       level,
		RegionID:    region,
		Permissions: e.svc.Access.Permissions(roles),
	}
}

func (e *testEnv) admin() *entity.Principal {
	return e.actor(entity.RoleSuperAdmin, 4, nil)
}

func (e *testEnv) account(t *testing.T, id uuid.UUID) *entity.Account {
	t.Helper()
	account, err := e.repo.Account.FindByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, account)
	return account
}

func (e *testEnv) register(t *testing.T, email, password string) uuid.UUID {
	t.Helper()
	region := regionJakarta
	resp, err := e.svc.Registration.Register(context.Background(), &request.RegisterRequest{
		Email:    email,
		Password: password,
		FullName: "Siti Rahma",
		RegionID: &region,
	})
	require.NoError(t, err)
	return uuid.MustParse(resp.AccountID)
}

func profileRequest(region int64) *request.CompleteProfileRequest {
	return &request.CompleteProfileRequest{
		FullName:   "Budi Santoso",
		Phone:      "081234567890",
		Address:    "Jl. Merdeka 10",
		BirthPlace: "Bandung",
		BirthDate:  "1990-05-17",
		RegionID:   region,
	}
}

func photo() *storage.Upload {
	return &storage.Upload{Filename: "me.png", Size: int64(len(pngBytes)), Content: bytes.NewReader(pngBytes)}
}

// activeMember provisions an account and walks it to active.
func (e *testEnv) activeMember(t *testing.T, email string, region int64) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	_, err := e.svc.Account.Provision(ctx, e.admin(), &request.ProvisionAccountRequest{
		Email:    email,
		FullName: "Budi Santoso",
		RegionID: region,
	})
	require.NoError(t, err)

	activation, err := e.svc.Activation.CompleteActivation(ctx, e.lastToken(t, email, mailer.TemplateActivation),
		&request.CompleteActivationRequest{Password: strongPass, PasswordConfirmation: strongPass})
	require.NoError(t, err)

	id, err := e.svc.Activation.CompleteProfileWithToken(ctx, activation.ProfileToken, profileRequest(region), nil)
	require.NoError(t, err)
	return id
}

func countFiles(t *testing.T, fs afero.Fs) int {
	t.Helper()
	entries, err := afero.ReadDir(fs, "photos")
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(t, err)
	n := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			n++
		}
	}
	return n
}

func bytesReader(s string) *bytes.Reader {
	return bytes.NewReader([]byte(s))
}
