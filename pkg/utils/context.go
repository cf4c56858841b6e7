package utils

import (
	"context"

	"member-onboarding/internal/data/entity"
)

type contextKey string

const PrincipalKey contextKey = "principal"

// SetPrincipal stores the authenticated principal resolved for this request.
func SetPrincipal(ctx context.Context, p *entity.Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}

func GetPrincipal(ctx context.Context) (*entity.Principal, bool) {
	p, ok := ctx.Value(PrincipalKey).(*entity.Principal)
	return p, ok && p != nil
}
