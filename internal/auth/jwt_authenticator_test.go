package auth_test

import (
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/golang-jwt/jwt/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/retinalab/retina-dashboard/internal/auth"
	"github.com/retinalab/retina-dashboard/internal/config"
)

var _ = Describe("jwt authentication", func() {
	Context("sso authentication", func() {
		It("successfully validates the token", func() {
			sToken, keyFn := generateRSAToken(jwt.MapClaims{
				"sub":                "user-1",
				"preferred_username": "batman",
				"email":              "batman@gothamcity.com",
			})
			authenticator := auth.NewSSOAuthenticatorWithKeyFn(keyFn)

			user, err := authenticator.Authenticate(sToken)
			Expect(err).To(BeNil())
			Expect(user.ID).To(Equal("user-1"))
			Expect(user.Username).To(Equal("batman"))
			Expect(user.Email).To(Equal("batman@gothamcity.com"))
		})

		It("falls back to the email when the username is missing", func() {
			sToken, keyFn := generateRSAToken(jwt.MapClaims{
				"sub":   "user-2",
				"email": "robin@gothamcity.com",
			})
			authenticator := auth.NewSSOAuthenticatorWithKeyFn(keyFn)

			user, err := authenticator.Authenticate(sToken)
			Expect(err).To(BeNil())
			Expect(user.Username).To(Equal("robin@gothamcity.com"))
		})

		It("fails to validate the token -- subject is missing", func() {
			sToken, keyFn := generateRSAToken(jwt.MapClaims{"preferred_username": "joker"})
			authenticator := auth.NewSSOAuthenticatorWithKeyFn(keyFn)

			_, err := authenticator.Authenticate(sToken)
			Expect(err).ToNot(BeNil())
		})

		It("fails to validate the token -- expired", func() {
			sToken, keyFn := generateRSAToken(jwt.MapClaims{
				"sub": "user-3",
				"exp": time.Now().Add(-time.Hour).Unix(),
			})
			authenticator := auth.NewSSOAuthenticatorWithKeyFn(keyFn)

			_, err := authenticator.Authenticate(sToken)
			Expect(err).ToNot(BeNil())
		})

		It("fails to validate the token -- wrong signing method", func() {
			secret := []byte("secret")
			sToken, err := auth.GenerateLocalToken(secret, auth.User{ID: "user-4"}, time.Hour)
			Expect(err).To(BeNil())

			authenticator := auth.NewSSOAuthenticatorWithKeyFn(func(t *jwt.Token) (any, error) { return secret, nil })
			_, err = authenticator.Authenticate(sToken)
			Expect(err).ToNot(BeNil())
		})
	})

	Context("local authentication", func() {
		It("successfully validates a generated token", func() {
			secret := []byte("shared-secret")
			sToken, err := auth.GenerateLocalToken(secret, auth.User{ID: "user-5", Username: "alfred"}, time.Hour)
			Expect(err).To(BeNil())

			user, err := auth.NewLocalAuthenticator(secret).Authenticate(sToken)
			Expect(err).To(BeNil())
			Expect(user.ID).To(Equal("user-5"))
			Expect(user.Username).To(Equal("alfred"))
		})

		It("fails to validate a token signed with another secret", func() {
			sToken, err := auth.GenerateLocalToken([]byte("other"), auth.User{ID: "user-6"}, time.Hour)
			Expect(err).To(BeNil())

			_, err = auth.NewLocalAuthenticator([]byte("shared-secret")).Authenticate(sToken)
			Expect(err).ToNot(BeNil())
		})

		It("requires a secret", func() {
			_, err := auth.NewAuthenticator(config.Auth{AuthenticationType: auth.LocalAuthentication})
			Expect(err).ToNot(BeNil())
		})
	})

	Context("auth middleware", func() {
		var (
			secret        = []byte("shared-secret")
			authenticator auth.Authenticator
		)

		BeforeEach(func() {
			var err error
			authenticator, err = auth.NewAuthenticator(config.Auth{
				AuthenticationType: auth.LocalAuthentication,
				LocalSecret:        string(secret),
			})
			Expect(err).To(BeNil())
		})

		It("successfully authenticates", func() {
			sToken, err := auth.GenerateLocalToken(secret, auth.User{ID: "user-7", Username: "lucius"}, time.Hour)
			Expect(err).To(BeNil())

			h := &handler{}
			ts := httptest.NewServer(authenticator.Authenticator(h))
			defer ts.Close()

			req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
			Expect(err).To(BeNil())
			req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", sToken))

			resp, rerr := http.DefaultClient.Do(req)
			Expect(rerr).To(BeNil())
			Expect(resp.StatusCode).To(Equal(200))
			Expect(h.user.ID).To(Equal("user-7"))
		})

		It("rejects a request without a token", func() {
			ts := httptest.NewServer(authenticator.Authenticator(&handler{}))
			defer ts.Close()

			resp, err := http.Get(ts.URL)
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(401))
		})

		It("rejects an invalid token", func() {
			ts := httptest.NewServer(authenticator.Authenticator(&handler{}))
			defer ts.Close()

			req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
			Expect(err).To(BeNil())
			req.Header.Add("Authorization", "Bearer not-a-token")

			resp, rerr := http.DefaultClient.Do(req)
			Expect(rerr).To(BeNil())
			Expect(resp.StatusCode).To(Equal(401))
		})
	})

	Context("authentication type", func() {
		It("rejects an empty type", func() {
			authenticator, err := auth.NewAuthenticator(config.Auth{})
			Expect(err).To(MatchError(ContainSubstring("unknown authentication type")))
			Expect(authenticator).To(BeNil())
		})

		It("rejects a type it does not know", func() {
			_, err := auth.NewAuthenticator(config.Auth{AuthenticationType: "SSO"})
			Expect(err).To(MatchError(ContainSubstring(`"SSO"`)))

			_, err = auth.NewAuthenticator(config.Auth{AuthenticationType: "oauth"})
			Expect(err).NotTo(BeNil())
		})
	})

	Context("none authentication", func() {
		It("attaches the development user", func() {
			authenticator, err := auth.NewAuthenticator(config.Auth{AuthenticationType: auth.NoneAuthentication})
			Expect(err).To(BeNil())

			h := &handler{}
			ts := httptest.NewServer(authenticator.Authenticator(h))
			defer ts.Close()

			resp, err := http.Get(ts.URL)
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(200))
			Expect(h.user.Username).To(Equal("admin"))
			Expect(h.user.ID).ToNot(BeEmpty())
		})
	})
})

type handler struct {
	user auth.User
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.user = auth.MustHaveUser(r.Context())
	w.WriteHeader(200)
}

func generateRSAToken(claims jwt.MapClaims) (string, func(t *jwt.Token) (any, error)) {
	if _, ok := claims["exp"]; !ok {
		claims["exp"] = time.Now().Add(time.Hour).Unix()
	}
	claims["iat"] = time.Now().Add(-time.Minute).Unix()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	Expect(err).To(BeNil())

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	sToken, err := token.SignedString(privateKey)
	Expect(err).To(BeNil())

	return sToken, func(t *jwt.Token) (any, error) {
		return privateKey.Public(), nil
	}
}
