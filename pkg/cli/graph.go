// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/platform-engineering-labs/formae-sequencer/pkg/graph"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/plan"
)

func newGraphCommand() *cobra.Command {
	var (
		format string
		set    []string
	)

	cmd := &cobra.Command{
		Use:   "graph PLAN",
		Short: "Print the execution order of a plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides, err := plan.ParseSet(set)
			if err != nil {
				return err
			}
			p, err := plan.Load(args[0], overrides)
			if err != nil {
				return err
			}
			g, err := graph.New(p.Descriptors)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch format {
			case "order":
				for i, id := range g.IDs() {
					d, _ := g.Descriptor(id)
					line := fmt.Sprintf("%d. %s %s %s", i+1, id, d.Kind, d.Target)
					if deps := g.DependsOn(id); len(deps) > 0 {
						line += " <- " + strings.Join(deps, ", ")
					}
					fmt.Fprintln(out, line)
				}
			case "dot":
				fmt.Fprint(out, g.DOT())
			case "mermaid":
				fmt.Fprint(out, g.Mermaid())
			default:
				return fmt.Errorf("unknown format %q (want order, dot or mermaid)", format)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "order", "output format (order, dot, mermaid)")
	cmd.Flags().StringArrayVar(&set, "set", nil, "override a plan variable (key=value)")
	return cmd
}
