package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/retinalab/retina-dashboard/internal/auth"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const secretEnvKey = "RETINA_DASHBOARD_LOCAL_SECRET"

type tokenOptions struct {
	Secret   string
	UserID   string
	Username string
	Email    string
	TTL      time.Duration
}

func (o *tokenOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVarP(&o.Secret, "secret", "", "", "HMAC secret of the local authenticator (defaults to $"+secretEnvKey+")")
	fs.StringVarP(&o.UserID, "user-id", "", "", "subject of the token")
	fs.StringVarP(&o.Username, "username", "", "", "username")
	fs.StringVarP(&o.Email, "email", "", "", "email")
	fs.DurationVarP(&o.TTL, "ttl", "", 24*time.Hour, "token lifetime")
}

func (o *tokenOptions) Validate() error {
	if o.Secret == "" {
		o.Secret = os.Getenv(secretEnvKey)
	}
	if o.Secret == "" {
		return errors.New("--secret is required")
	}
	if o.UserID == "" {
		return errors.New("--user-id is required")
	}
	if o.TTL <= 0 {
		return fmt.Errorf("--ttl must be positive, got %s", o.TTL)
	}
	return nil
}

// NewCmdToken prints a jwt accepted by the local authenticator.
func NewCmdToken() *cobra.Command {
	o := &tokenOptions{}
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Generate a jwt for local authentication",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Validate(); err != nil {
				return err
			}

			token, err := auth.GenerateLocalToken([]byte(o.Secret), auth.User{
				ID:       o.UserID,
				Username: o.Username,
				Email:    o.Email,
			}, o.TTL)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	o.Bind(cmd.Flags())

	return cmd
}
