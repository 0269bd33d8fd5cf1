// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package sequencer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/platform-engineering-labs/formae-sequencer/pkg/model"
)

// PartialTeardownError means one or more teardown deletes failed. Handles
// lists what was left behind, in the order the deletes were attempted.
type PartialTeardownError struct {
	Handles []model.Handle
	Errs    []error
}

func (e *PartialTeardownError) Error() string {
	keys := make([]string, len(e.Handles))
	for i := range e.Handles {
		keys[i] = e.Handles[i].Key()
	}
	return fmt.Sprintf("teardown left %d resource(s) behind [%s]: %v",
		len(e.Handles), strings.Join(keys, ", "), errors.Join(e.Errs...))
}

func (e *PartialTeardownError) Unwrap() []error {
	return e.Errs
}
