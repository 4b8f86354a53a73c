package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newPagesCmd(a *app) *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "pages",
		Short: "List the organizations the member administers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if token == "" {
				return errors.New("--token is required")
			}

			pages, err := a.client.ListAdministeredPages(cmd.Context(), token)
			if err != nil {
				return err
			}

			if len(pages) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No pages found for this user.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME")
			for _, p := range pages {
				fmt.Fprintf(w, "%s\t%s\n", p.ID, p.Name)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "member access token")

	return cmd
}
