package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"crosspost/infrastructure/configuration"
	"crosspost/infrastructure/utils"
)

type options struct {
	userID string
	secret string
	ttl    time.Duration
}

func newRootCommand() *cobra.Command {
	opts := options{}
	cmd := &cobra.Command{
		Use:           "devtoken",
		Short:         "Sign an HS256 token accepted by the API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.secret == "" {
				configuration.LoadEnvFromFile("config.env", ".env")
				configuration.Reload()
				opts.secret = configuration.C.App.SecretKey
			}
			token, err := sign(opts)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&opts.userID, "user", "", "user id placed in the token subject")
	cmd.Flags().StringVar(&opts.secret, "secret", "", "signing key (defaults to the configured SECRET_KEY)")
	cmd.Flags().DurationVar(&opts.ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func sign(opts options) (string, error) {
	if opts.secret == "" {
		return "", errors.New("no signing key: set SECRET_KEY or pass --secret")
	}
	if opts.ttl <= 0 {
		return "", fmt.Errorf("ttl must be positive, got %s", opts.ttl)
	}
	return utils.GenerateToken(opts.userID, opts.secret, opts.ttl)
}
