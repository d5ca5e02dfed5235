package auth

import (
	"context"

	"github.com/jwalitptl/clinic-api/internal/model"
)

type claimsKey struct{}

// WithClaims attaches the authenticated caller to ctx.
func WithClaims(ctx context.Context, claims *model.TokenClaims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFromContext returns the caller set by WithClaims. Public requests
// have none.
func ClaimsFromContext(ctx context.Context) (*model.TokenClaims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*model.TokenClaims)
	return claims, ok && claims != nil
}
