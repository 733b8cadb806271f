package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/render"
	"github.com/retinalab/retina-dashboard/internal/config"
	"go.uber.org/zap"
)

type Authenticator interface {
	Authenticator(next http.Handler) http.Handler
}

const (
	SSOAuthentication   string = "sso"
	LocalAuthentication string = "local"
	NoneAuthentication  string = "none"
)

func NewAuthenticator(authConfig config.Auth) (Authenticator, error) {
	zap.S().Named("auth").Infof("authentication: '%s'", authConfig.AuthenticationType)

	switch authConfig.AuthenticationType {
	case SSOAuthentication:
		return NewSSOAuthenticator(context.Background(), authConfig.JwkCertURL)
	case LocalAuthentication:
		if authConfig.LocalSecret == "" {
			return nil, fmt.Errorf("local authentication requires a secret")
		}
		return NewLocalAuthenticator([]byte(authConfig.LocalSecret)), nil
	case NoneAuthentication:
		zap.S().Named("auth").Warn("authentication is disabled, every request runs as the development user")
		return NewNoneAuthenticator()
	default:
		return nil, fmt.Errorf("unknown authentication type %q, expected one of %s, %s or %s",
			authConfig.AuthenticationType, SSOAuthentication, LocalAuthentication, NoneAuthentication)
	}
}

type unauthorizedReply struct {
	Error string `json:"error"`
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusUnauthorized)
	render.JSON(w, r, unauthorizedReply{Error: "Unauthorized"})
}
