// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/platform-engineering-labs/formae-sequencer/pkg/plan"
)

func newSampleCommand() *cobra.Command {
	opts := &runOptions{}
	var (
		resourceGroup string
		location      string
		show          bool
	)

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Run the built-in storage account plan",
		Long: `Creates a resource group and two storage accounts, updates the first
account's SKU, lists the group, deletes the second account, and tears the rest down.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if show {
				_, err := fmt.Fprint(cmd.OutOrStdout(), plan.SampleSource())
				return err
			}

			overrides, err := plan.ParseSet(opts.set)
			if err != nil {
				return err
			}
			if resourceGroup != "" {
				overrides["resourceGroup"] = resourceGroup
			}
			if location != "" {
				overrides["location"] = location
			}

			p, err := plan.Sample(overrides)
			if err != nil {
				return err
			}
			return runPlan(cmd, p, opts)
		},
	}
	opts.bind(cmd)
	cmd.Flags().StringVar(&resourceGroup, "resource-group", "", "resource group name")
	cmd.Flags().StringVar(&location, "location", "", "Azure region")
	cmd.Flags().BoolVar(&show, "show", false, "print the plan instead of running it")
	return cmd
}
