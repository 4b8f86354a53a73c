package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/pilab-dev/pagepost/config"
	"github.com/pilab-dev/pagepost/internal/linkedin"
	"github.com/pilab-dev/pagepost/log"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const AppName = "pagepostctl"

// app carries what every subcommand needs once configuration is loaded.
type app struct {
	cfg    *config.ServerConfig
	logger log.Logger
	client *linkedin.Client
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	var verbose bool

	root := &cobra.Command{
		Use:           AppName,
		Short:         "pagepostctl talks to LinkedIn with the pagepost configuration",
		Long:          `A command-line companion to the pagepost server: build authorization URLs, exchange codes, list administered pages and publish posts.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}

			level := zerolog.WarnLevel
			if verbose {
				level = zerolog.DebugLevel
			}

			a.cfg = cfg
			a.logger = log.NewWriterLogger(cmd.ErrOrStderr(), level)
			a.client = linkedin.NewClient(cfg.Credentials(),
				linkedin.WithDefaultTimeout(cfg.HTTPTimeout),
				linkedin.WithUploadTimeout(cfg.UploadTimeout),
				linkedin.WithLogger(a.logger),
			)
			return nil
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log upstream calls to stderr")

	root.AddCommand(
		newAuthURLCmd(a),
		newExchangeCmd(a),
		newPagesCmd(a),
		newPublishCmd(a),
	)

	return root
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
