// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package registry

import (
	"sort"

	"github.com/platform-engineering-labs/formae-sequencer/pkg/client"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/prov"
)

// ProvisionerFactory creates the adapter for one resource kind.
type ProvisionerFactory func(client *client.Client) prov.Adapter

// registry stores provisioner factories for each resource kind.
var registry = make(map[string]ProvisionerFactory)

// Register registers a provisioner factory for a resource kind.
func Register(resourceType string, factory ProvisionerFactory) {
	registry[resourceType] = factory
}

// Get returns a provisioner for the given resource kind, or nil.
func Get(resourceType string, client *client.Client) prov.Adapter {
	factory, ok := registry[resourceType]
	if !ok {
		return nil
	}
	return factory(client)
}

// HasProvisioner returns true if a provisioner is registered for the given resource kind.
func HasProvisioner(resourceType string) bool {
	_, ok := registry[resourceType]
	return ok
}

// Kinds returns every registered resource kind, sorted.
func Kinds() []string {
	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
