package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"member-onboarding/internal/data/entity"
	"member-onboarding/internal/usecase"
	"member-onboarding/pkg/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type authenticatorFunc func(ctx context.Context, token string) (*entity.Principal, error)

func (f authenticatorFunc) Authenticate(ctx context.Context, token string) (*entity.Principal, error) {
	return f(ctx, token)
}

func TestAuthSession(t *testing.T) {
	member := &entity.Principal{
		AccountID:   uuid.New(),
		Roles:       []entity.RoleName{entity.RoleMember},
		Permissions: entity.NewPermissionSet(entity.PermProfileRead),
	}
	auth := authenticatorFunc(func(_ context.Context, token string) (*entity.Principal, error) {
		switch token {
		case "good":
			return member, nil
		case "inactive":
			return nil, usecase.ErrAccountInactive
		case "broken":
			return nil, errors.New("db down")
		}
		return nil, usecase.ErrUnauthenticated
	})

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := utils.GetPrincipal(r.Context())
		assert.True(t, ok)
		assert.Equal(t, member.AccountID, p.AccountID)
		w.WriteHeader(http.StatusNoContent)
	})
	handler := AuthSession(auth, zap.NewNop())(next)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer good", http.StatusNoContent},
		{"lower-case scheme", "bearer good", http.StatusNoContent},
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"unknown session", "Bearer nope", http.StatusUnauthorized},
		{"inactive account", "Bearer inactive", http.StatusForbidden},
		{"backend failure", "Bearer broken", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestRequirePermission(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := RequirePermission(entity.PermAccountRead, zap.NewNop())(next)

	serve := func(p *entity.Principal) int {
		req := httptest.NewRequest(http.MethodGet, "/admin/accounts/x", nil)
		if p != nil {
			req = req.WithContext(utils.SetPrincipal(req.Context(), p))
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, serve(nil))
	assert.Equal(t, http.StatusForbidden, serve(&entity.Principal{Permissions: entity.NewPermissionSet(entity.PermProfileRead)}))
	assert.Equal(t, http.StatusNoContent, serve(&entity.Principal{Permissions: entity.NewPermissionSet(entity.PermAccountRead)}))
}

func TestRecover(t *testing.T) {
	handler := Recover(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"status":false,"message":"Internal server error"}`, rec.Body.String())
}
