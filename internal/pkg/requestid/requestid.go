package requestid

import (
	"context"

	"github.com/google/uuid"
)

const Header = "X-Request-Id"

type ctxKey struct{}

func New() string {
	return uuid.NewString()
}

func With(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func From(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
