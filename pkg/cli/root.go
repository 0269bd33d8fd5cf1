// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

// Package cli implements the formae-sequencer command line.
package cli

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/platform-engineering-labs/formae-sequencer/pkg/logging"
)

type rootOptions struct {
	logLevel string
	envFile  string
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "formae-sequencer",
		Short: "Declarative, idempotent resource provisioning",
		Long: `formae-sequencer runs a plan of CreateOrUpdate, Delete and List operations
in dependency order against a provider, then deletes everything the run created.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if opts.envFile != "" {
				if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
					return err
				}
			}
			logger := logging.New(cmd.ErrOrStderr(), opts.logLevel)
			slog.SetDefault(logger)

			pterm.SetDefaultOutput(cmd.ErrOrStderr())
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before running; ignored when missing")

	root.AddCommand(newRunCommand())
	root.AddCommand(newSampleCommand())
	root.AddCommand(newGraphCommand())
	root.AddCommand(newKindsCommand())
	return root
}

// Execute runs the command line with ctx.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}
