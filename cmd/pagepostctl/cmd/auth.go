package cmd

import (
	"errors"
	"fmt"

	"github.com/pilab-dev/pagepost/cache"
	"github.com/spf13/cobra"
)

func newAuthURLCmd(a *app) *cobra.Command {
	var state string

	cmd := &cobra.Command{
		Use:   "auth-url",
		Short: "Print the LinkedIn authorization URL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if state == "" {
				var err error
				if state, err = cache.NewState(); err != nil {
					return err
				}
			}

			fmt.Fprintln(cmd.OutOrStdout(), a.client.AuthCodeURL(state))
			return nil
		},
	}

	cmd.Flags().StringVar(&state, "state", "", "state value to embed (random when empty)")

	return cmd
}

func newExchangeCmd(a *app) *cobra.Command {
	var code, redirectURI string

	cmd := &cobra.Command{
		Use:   "exchange",
		Short: "Exchange an authorization code for an access token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if code == "" {
				return errors.New("--code is required")
			}

			tok, err := a.client.ExchangeCode(cmd.Context(), code, redirectURI)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, tok.AccessToken)
			if !tok.Expiry.IsZero() {
				fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", tok.Expiry.Format("2006-01-02 15:04:05 MST"))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "authorization code from the callback")
	cmd.Flags().StringVar(&redirectURI, "redirect-uri", "", "redirect URI used for the authorization (defaults to config)")

	return cmd
}
