package middleware

import (
	"context"

	"blogify/internal/models"
	"blogify/internal/reqctx"
)

type ctxKey string

// ContextSkipGuards ставится админам, чтобы пропускать проверки ролей.
const ContextSkipGuards ctxKey = "skip_guards"

func WithSkipGuards(ctx context.Context) context.Context {
	return context.WithValue(ctx, ContextSkipGuards, true)
}

func SkipGuards(ctx context.Context) bool {
	v := ctx.Value(ContextSkipGuards)
	b, _ := v.(bool)
	return b
}

// ActorFrom собирает models.Actor из того, что положил JWTAuth.
func ActorFrom(ctx context.Context) (models.Actor, bool) {
	userID, ok := reqctx.GetUserID(ctx)
	if !ok {
		return models.Actor{}, false
	}
	role, _ := reqctx.GetRole(ctx)
	return models.Actor{UserID: userID, Role: role}, true
}
