// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package prov

import (
	"context"
	"encoding/json"

	"github.com/platform-engineering-labs/formae-sequencer/pkg/model"
)

// Adapter is the capability interface the sequencer drives.
//
// Every method blocks until the provider reports a terminal state; long-running
// operations are polled to completion inside the adapter. Implementations must
// be safe for concurrent use by independent runs and must never mutate the
// handles passed to them: results are returned as fresh handles.
//
// CreateOrUpdate is idempotent for an unchanged payload. Delete of a resource
// that is already gone succeeds.
type Adapter interface {
	CreateOrUpdate(ctx context.Context, target *model.Handle, payload json.RawMessage) (*model.Handle, error)
	Delete(ctx context.Context, target *model.Handle) error
	Get(ctx context.Context, target *model.Handle) (*model.Handle, error)
	List(ctx context.Context, kind string, scope *model.Handle) ([]*model.Handle, error)
}

// Observed returns a detached copy of target carrying the remote id reported
// by the provider. Adapters use it to build their results.
func Observed(target *model.Handle, remoteID string) *model.Handle {
	h := target.Snapshot()
	h.RemoteID = remoteID
	return &h
}
