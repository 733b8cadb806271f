package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type userKeyType struct{}

var (
	userKey userKeyType
)

// User is the authenticated session resolved once per request. Handlers receive it
// through the request context and pass it by value to the services.
type User struct {
	ID       string
	Username string
	Email    string
	Token    *jwt.Token
}

func UserFromContext(ctx context.Context) (User, bool) {
	val := ctx.Value(userKey)
	if val == nil {
		return User{}, false
	}
	user, ok := val.(User)
	return user, ok
}

func MustHaveUser(ctx context.Context) User {
	user, found := UserFromContext(ctx)
	if !found {
		zap.S().Named("auth").Panic("failed to find user in context")
	}
	return user
}

func NewUserContext(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userKey, u)
}
