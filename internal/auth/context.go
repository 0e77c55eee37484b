package auth

import (
	"context"

	"github.com/jw6ventures/studycal/internal/calendar"
)

type contextKey string

const (
	contextKeyUser   contextKey = "user"
	contextKeyMethod contextKey = "auth_method"
)

// Method records how the current request was authenticated.
type Method string

const (
	MethodCookie Method = "cookie"
	MethodBearer Method = "bearer"
)

func WithUser(ctx context.Context, user calendar.User, method Method) context.Context {
	ctx = context.WithValue(ctx, contextKeyUser, user)
	return context.WithValue(ctx, contextKeyMethod, method)
}

func UserFromContext(ctx context.Context) (calendar.User, bool) {
	u, ok := ctx.Value(contextKeyUser).(calendar.User)
	return u, ok
}

func MethodFromContext(ctx context.Context) Method {
	m, _ := ctx.Value(contextKeyMethod).(Method)
	return m
}
