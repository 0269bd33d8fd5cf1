// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package model

import (
	"encoding/json"
	"fmt"
)

// OperationKind is the action a descriptor performs against its target.
type OperationKind string

const (
	OperationCreateOrUpdate OperationKind = "CreateOrUpdate"
	OperationDelete         OperationKind = "Delete"
	OperationList           OperationKind = "List"
)

// ParseOperationKind accepts the canonical names and the lower-case forms
// used in plan files.
func ParseOperationKind(s string) (OperationKind, error) {
	switch s {
	case "CreateOrUpdate", "createOrUpdate", "create-or-update":
		return OperationCreateOrUpdate, nil
	case "Delete", "delete":
		return OperationDelete, nil
	case "List", "list":
		return OperationList, nil
	}
	return "", fmt.Errorf("unknown operation kind %q", s)
}

// Descriptor is a declarative unit of work.
//
// For List descriptors the target is a query: Kind selects the resource type
// and Scope the container to list; the target's own name and state are not used.
type Descriptor struct {
	ID        string
	Target    *Handle
	Kind      OperationKind
	Payload   json.RawMessage
	DependsOn []string
}
