// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

// Package azure exposes the Azure provisioners as a single prov.Adapter.
// Calls are dispatched on Handle.Kind through the provisioner registry.
package azure

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/platform-engineering-labs/formae/pkg/plugin"
	"github.com/platform-engineering-labs/formae/pkg/plugin/resource"

	"github.com/platform-engineering-labs/formae-sequencer/pkg/client"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/config"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/model"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/nativeid"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/prov"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/registry"

	// Import resources to trigger init() registration
	_ "github.com/platform-engineering-labs/formae-sequencer/pkg/resources"
)

// UnsupportedKindError is returned for a kind with no registered provisioner.
type UnsupportedKindError struct {
	Kind string
}

func (e *UnsupportedKindError) Error() string {
	return fmt.Sprintf("unsupported resource type: %s", e.Kind)
}

func (e *UnsupportedKindError) ErrorCode() resource.OperationErrorCode {
	return resource.OperationErrorCodeInvalidRequest
}

// Adapter implements prov.Adapter on top of Azure Resource Manager.
//
// Remote IDs handed back to the sequencer are encoded with nativeid. An
// update that leaves the ARM ID unchanged keeps the existing encoding.
type Adapter struct {
	client *client.Client
}

var _ prov.Adapter = (*Adapter)(nil)

// New wraps an existing client.
func New(c *client.Client) *Adapter {
	return &Adapter{client: c}
}

// NewFromConfig validates cfg, acquires credentials and builds the client.
func NewFromConfig(ctx context.Context, cfg *config.Config) (*Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c, err := client.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}
	return New(c), nil
}

// Supports reports whether kind has a provisioner.
func (a *Adapter) Supports(kind string) bool {
	return registry.HasProvisioner(kind)
}

// Kinds returns the supported resource kinds.
func (a *Adapter) Kinds() []string {
	return registry.Kinds()
}

func (a *Adapter) provisioner(kind string) (prov.Adapter, error) {
	if !registry.HasProvisioner(kind) {
		return nil, &UnsupportedKindError{Kind: kind}
	}
	return registry.Get(kind, a.client), nil
}

func (a *Adapter) CreateOrUpdate(ctx context.Context, target *model.Handle, payload json.RawMessage) (*model.Handle, error) {
	p, err := a.provisioner(target.Kind)
	if err != nil {
		return nil, err
	}
	plugin.LoggerFromContext(ctx).Debug("azure create-or-update", "kind", target.Kind, "name", target.Name)

	result, err := p.CreateOrUpdate(ctx, target, payload)
	if err != nil {
		return nil, err
	}
	result.RemoteID = nativeid.ReEncode(target.RemoteID, nativeid.NativeID(result.RemoteID).ArmID()).String()
	return result, nil
}

func (a *Adapter) Delete(ctx context.Context, target *model.Handle) error {
	p, err := a.provisioner(target.Kind)
	if err != nil {
		return err
	}
	plugin.LoggerFromContext(ctx).Debug("azure delete", "kind", target.Kind, "name", target.Name, "remote_id", target.RemoteID)
	return p.Delete(ctx, target)
}

func (a *Adapter) Get(ctx context.Context, target *model.Handle) (*model.Handle, error) {
	p, err := a.provisioner(target.Kind)
	if err != nil {
		return nil, err
	}
	result, err := p.Get(ctx, target)
	if err != nil {
		return nil, err
	}
	result.RemoteID = nativeid.ReEncode(target.RemoteID, nativeid.NativeID(result.RemoteID).ArmID()).String()
	return result, nil
}

func (a *Adapter) List(ctx context.Context, kind string, scope *model.Handle) ([]*model.Handle, error) {
	p, err := a.provisioner(kind)
	if err != nil {
		return nil, err
	}
	handles, err := p.List(ctx, kind, scope)
	if err != nil {
		return nil, err
	}
	for _, h := range handles {
		h.RemoteID = nativeid.Encode(h.RemoteID).String()
	}
	plugin.LoggerFromContext(ctx).Debug("azure list", "kind", kind, "count", len(handles))
	return handles, nil
}
