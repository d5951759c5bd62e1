package userctx

import (
	"context"

	"github.com/fdg312/nutri-plans/internal/access"
)

type contextKey string

const actorContextKey contextKey = "actor"

func WithActor(ctx context.Context, actor access.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}

func GetActor(ctx context.Context) (access.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey).(access.Actor)
	return actor, ok
}
