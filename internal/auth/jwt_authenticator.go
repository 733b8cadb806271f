package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	keyfunc "github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// JWTAuthenticator validates bearer tokens. The SSO flavour resolves RS256 keys from a
// JWKS endpoint; the local flavour checks HS256 signatures with a shared secret.
type JWTAuthenticator struct {
	keyFn   jwt.Keyfunc
	methods []string
}

func NewSSOAuthenticatorWithKeyFn(keyFn jwt.Keyfunc) *JWTAuthenticator {
	return &JWTAuthenticator{keyFn: keyFn, methods: []string{jwt.SigningMethodRS256.Name}}
}

func NewSSOAuthenticator(ctx context.Context, jwkCertUrl string) (*JWTAuthenticator, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	k, err := keyfunc.NewDefaultCtx(ctx, []string{jwkCertUrl})
	if err != nil {
		return nil, fmt.Errorf("failed to get sso public keys: %w", err)
	}

	return NewSSOAuthenticatorWithKeyFn(k.Keyfunc), nil
}

func NewLocalAuthenticator(secret []byte) *JWTAuthenticator {
	return &JWTAuthenticator{
		keyFn: func(t *jwt.Token) (any, error) {
			return secret, nil
		},
		methods: []string{jwt.SigningMethodHS256.Name},
	}
}

// GenerateLocalToken signs a token accepted by the local authenticator.
func GenerateLocalToken(secret []byte, user User, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":                user.ID,
		"preferred_username": user.Username,
		"email":              user.Email,
		"iat":                now.Unix(),
		"exp":                now.Add(ttl).Unix(),
	})
	return token.SignedString(secret)
}

func (ja *JWTAuthenticator) Authenticate(token string) (User, error) {
	parser := jwt.NewParser(jwt.WithValidMethods(ja.methods), jwt.WithIssuedAt(), jwt.WithExpirationRequired())
	t, err := parser.Parse(token, ja.keyFn)
	if err != nil {
		zap.S().Named("auth").Debugw("failed to parse or the token is invalid", "error", err)
		return User{}, fmt.Errorf("failed to authenticate token: %w", err)
	}

	if !t.Valid {
		return User{}, errors.New("failed to parse or validate token")
	}

	return ja.parseToken(t)
}

func (ja *JWTAuthenticator) parseToken(userToken *jwt.Token) (User, error) {
	claims, ok := userToken.Claims.(jwt.MapClaims)
	if !ok {
		return User{}, errors.New("failed to parse jwt token claims")
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return User{}, errors.New("token has no subject")
	}

	user := User{ID: sub, Token: userToken}
	if username, ok := claims["preferred_username"].(string); ok {
		user.Username = username
	}
	if email, ok := claims["email"].(string); ok {
		user.Email = email
	}
	if user.Username == "" {
		user.Username = user.Email
	}

	return user, nil
}

func (ja *JWTAuthenticator) Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accessToken, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !found || accessToken == "" {
			unauthorized(w, r)
			return
		}

		user, err := ja.Authenticate(accessToken)
		if err != nil {
			unauthorized(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(NewUserContext(r.Context(), user)))
	})
}
