// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package graph

import (
	"fmt"
	"strings"
)

// CycleError means no topological order exists. IDs names the descriptors
// that sit on a dependency cycle, sorted.
type CycleError struct {
	IDs []string
}

func (e *CycleError) Error() string {
	return "dependency cycle detected: " + strings.Join(e.IDs, ", ")
}

// UnknownDependencyError means a dependsOn entry references an id that is not
// part of the descriptor set.
type UnknownDependencyError struct {
	ID         string
	Dependency string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("operation %q depends on unknown operation %q", e.ID, e.Dependency)
}

// InvalidDescriptorError means a descriptor is malformed (empty or duplicate
// id, missing target).
type InvalidDescriptorError struct {
	ID     string
	Reason string
}

func (e *InvalidDescriptorError) Error() string {
	if e.ID == "" {
		return "invalid operation: " + e.Reason
	}
	return fmt.Sprintf("invalid operation %q: %s", e.ID, e.Reason)
}
