package auth

import (
	"net/http"

	"github.com/golang-jwt/jwt/v5"
)

const (
	noneUserID   = "00000000-0000-0000-0000-000000000001"
	noneUsername = "admin"
)

// NoneAuthenticator attaches a fixed development user to every request.
type NoneAuthenticator struct{}

func NewNoneAuthenticator() (*NoneAuthenticator, error) {
	return &NoneAuthenticator{}, nil
}

func (n *NoneAuthenticator) Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub":                noneUserID,
			"preferred_username": noneUsername,
		})
		token.Raw = "fake-raw-token"

		user := User{
			ID:       noneUserID,
			Username: noneUsername,
			Token:    token,
		}

		next.ServeHTTP(w, r.WithContext(NewUserContext(r.Context(), user)))
	})
}
