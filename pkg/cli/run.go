// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/platform-engineering-labs/formae-sequencer/pkg/azure"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/config"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/memory"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/plan"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/prov"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/sequencer"
)

const (
	providerAzure  = "azure"
	providerMemory = "memory"
)

type runOptions struct {
	provider        string
	parallelism     int
	teardownTimeout time.Duration
	set             []string
	targetConfig    string
}

func (o *runOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.provider, "provider", "p", providerAzure, "provider to run against (azure, memory)")
	cmd.Flags().IntVar(&o.parallelism, "parallelism", 1, "maximum number of independent operations running at once")
	cmd.Flags().DurationVar(&o.teardownTimeout, "teardown-timeout", 0, "bound on the whole teardown phase (0 means no limit)")
	cmd.Flags().StringArrayVar(&o.set, "set", nil, "override a plan variable (key=value)")
	cmd.Flags().StringVar(&o.targetConfig, "target-config", "", `azure target config as JSON, e.g. {"SubscriptionId":"...","Location":"westus"}; used instead of AZURE_LOCATION and AZURE_POLL_FREQUENCY`)
}

func newRunCommand() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run PLAN",
		Short: "Run a plan file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides, err := plan.ParseSet(opts.set)
			if err != nil {
				return err
			}
			p, err := plan.Load(args[0], overrides)
			if err != nil {
				return err
			}
			return runPlan(cmd, p, opts)
		},
	}
	opts.bind(cmd)
	return cmd
}

func runPlan(cmd *cobra.Command, p *plan.Plan, opts *runOptions) error {
	ctx := cmd.Context()
	adapter, err := newAdapter(ctx, opts.provider, opts.targetConfig)
	if err != nil {
		return err
	}

	seq := sequencer.New(
		sequencer.WithParallelism(opts.parallelism),
		sequencer.WithLogger(slog.Default()),
		sequencer.WithTeardownTimeout(opts.teardownTimeout),
	)
	report, runErr := seq.Execute(ctx, p.Descriptors, adapter)
	if report != nil {
		if err := printReport(cmd.OutOrStdout(), report); err != nil {
			return err
		}
	}
	return runErr
}

func newAdapter(ctx context.Context, name, targetConfig string) (prov.Adapter, error) {
	switch name {
	case providerMemory:
		return memory.New(), nil
	case providerAzure:
		cfg, err := azureConfig(targetConfig)
		if err != nil {
			return nil, err
		}
		return azure.NewFromConfig(ctx, cfg)
	}
	return nil, fmt.Errorf("unknown provider %q (want %s or %s)", name, providerAzure, providerMemory)
}

// azureConfig reads the target config when one is given and the environment
// otherwise. A target config without a subscription takes it from
// AZURE_SUBSCRIPTION_ID.
func azureConfig(targetConfig string) (*config.Config, error) {
	if targetConfig == "" {
		return config.FromEnv()
	}
	raw := json.RawMessage(targetConfig)
	if !json.Valid(raw) {
		return nil, fmt.Errorf("invalid --target-config: not valid JSON")
	}
	cfg := config.FromTargetConfig(raw)
	if cfg.SubscriptionId == "" {
		cfg.SubscriptionId = os.Getenv(config.EnvSubscriptionID)
	}
	return cfg, nil
}
