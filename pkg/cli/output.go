// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/pterm/pterm"

	"github.com/platform-engineering-labs/formae-sequencer/pkg/prov"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/sequencer"
)

func printReport(w io.Writer, report *sequencer.Report) error {
	data := pterm.TableData{{"PHASE", "OPERATION", "KIND", "HANDLE", "OUTCOME", "DETAIL"}}
	for _, e := range report.Entries {
		data = append(data, []string{
			string(e.Phase),
			e.OperationID,
			string(e.Kind),
			e.Handle,
			string(e.Outcome),
			detail(e),
		})
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	fmt.Fprintln(w, table)

	for _, o := range report.Observations {
		fmt.Fprintf(w, "\n%s observed %d:\n", o.OperationID, len(o.Handles))
		for _, h := range o.Handles {
			fmt.Fprintf(w, "  %s %s\n", h.Key(), h.RemoteID)
		}
	}

	fmt.Fprintf(w, "\nrun %s: %d succeeded, %d failed, %d skipped, %d rolled back in %s\n",
		report.RunID,
		report.Count(sequencer.OutcomeSucceeded),
		report.Count(sequencer.OutcomeFailed),
		report.Count(sequencer.OutcomeSkipped),
		report.Count(sequencer.OutcomeRolledBack),
		report.Duration().Round(time.Millisecond),
	)
	return nil
}

func detail(e sequencer.Entry) string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("[%s] %v", prov.CodeOf(e.Err), e.Err)
	case e.Reason != "":
		return e.Reason
	}
	return ""
}
