package auth

import (
	"context"

	"github.com/fdg312/nutri-plans/internal/access"
	"github.com/fdg312/nutri-plans/internal/userctx"
)

func WithActor(ctx context.Context, actor access.Actor) context.Context {
	return userctx.WithActor(ctx, actor)
}

func GetActor(ctx context.Context) (access.Actor, bool) {
	return userctx.GetActor(ctx)
}
