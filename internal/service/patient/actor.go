package patient

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/pkg/auth"
)

func actorID(ctx context.Context) uuid.UUID {
	if claims, ok := auth.ClaimsFromContext(ctx); ok {
		return claims.UserID
	}
	return uuid.Nil
}
