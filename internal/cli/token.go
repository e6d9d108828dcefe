package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Sternrassler/freshbooks-report/internal/config"
	"github.com/Sternrassler/freshbooks-report/pkg/tokenstore"
)

func newTokenCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Inspect or move the stored credential token",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the stored token with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, closeFn := o.openStore()
			defer closeFn()

			token, err := store.Load(cmd.Context())
			if err != nil {
				return err
			}

			data, err := yaml.Marshal(describeToken(token, time.Now()))
			if err != nil {
				return fmt.Errorf("marshal token summary: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "import",
		Short: "Copy the token file into Redis",
		Long:  "import reads the token file named by --token and saves it under the Redis key of --redis-addr.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if o.cfg.RedisAddr == "" {
				return fmt.Errorf("%w: --redis-addr or %s is required", config.ErrInvalid, config.EnvRedisAddr)
			}

			token, err := tokenstore.NewFileStore(o.cfg.TokenPath).Load(cmd.Context())
			if err != nil {
				return err
			}

			dst, closeFn := o.openStore()
			defer closeFn()
			if err := dst.Save(cmd.Context(), token); err != nil {
				return err
			}

			o.logger.Info().
				Str("from", o.cfg.TokenPath).
				Str("redis_key", o.cfg.RedisKey).
				Msg("Token imported")
			return nil
		},
	})

	return cmd
}

type tokenSummary struct {
	AccessToken  string `yaml:"access_token"`
	RefreshToken string `yaml:"refresh_token"`
	TokenType    string `yaml:"token_type,omitempty"`
	Scope        string `yaml:"scope,omitempty"`
	Expiry       string `yaml:"expiry"`
	Expired      bool   `yaml:"expired"`
}

func describeToken(t *tokenstore.Token, now time.Time) tokenSummary {
	expiry := "never"
	if !t.Expiry.IsZero() {
		expiry = t.Expiry.UTC().Format(time.RFC3339)
	}
	return tokenSummary{
		AccessToken:  mask(t.AccessToken),
		RefreshToken: mask(t.RefreshToken),
		TokenType:    t.TokenType,
		Scope:        t.Scope,
		Expiry:       expiry,
		Expired:      t.Expired(now),
	}
}

// mask keeps the last four characters of secret.
func mask(secret string) string {
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}
