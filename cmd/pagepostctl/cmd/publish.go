package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/pilab-dev/pagepost/services"
	"github.com/spf13/cobra"
)

func newPublishCmd(a *app) *cobra.Command {
	var req services.PublishRequest

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish a post, optionally with an image, on behalf of an organization",
		RunE: func(cmd *cobra.Command, _ []string) error {
			flow := services.NewPublishService(a.client, nil, services.PublishConfig{
				RedirectURI: a.cfg.RedirectURI,
			}, a.logger, nil)

			if req.ImagePath != "" {
				req.ImageName = filepath.Base(req.ImagePath)
			}

			res, err := flow.PublishPost(cmd.Context(), req)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), string(res.Response))
			return nil
		},
	}

	cmd.Flags().StringVar(&req.AccessToken, "token", "", "member access token")
	cmd.Flags().StringVar(&req.OrgID, "org", "", "organization id or URN")
	cmd.Flags().StringVar(&req.Text, "text", "", "post text")
	cmd.Flags().StringVar(&req.ImagePath, "image", "", "path to an image to attach")

	return cmd
}
