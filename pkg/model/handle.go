// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package model

import (
	"fmt"
	"strings"
)

// State is the last-known lifecycle state of a remote resource within a run.
type State int

const (
	StatePending State = iota
	StateCreated
	StateUpdated
	StateDeleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "Pending"
	case StateCreated:
		return "Created"
	case StateUpdated:
		return "Updated"
	case StateDeleted:
		return "Deleted"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Live reports whether a resource in this state exists remotely and was
// brought into existence by the current run.
func (s State) Live() bool {
	return s == StateCreated || s == StateUpdated
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDeleted || s == StateFailed
}

// allowed lists the legal transitions. Deleted and Failed have no outgoing edges.
var allowed = map[State][]State{
	StatePending: {StateCreated, StateFailed},
	StateCreated: {StateUpdated, StateDeleted},
	StateUpdated: {StateUpdated, StateDeleted},
}

// CanTransition reports whether from -> to is a legal handle transition.
func CanTransition(from, to State) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Handle identifies a remote resource by kind, name and parent scope, plus
// its last observed state.
//
// Scope models containment: a storage account's scope is the handle of its
// resource group. A nil Scope means the resource lives at the provider root
// (for Azure, the subscription).
type Handle struct {
	Kind     string
	Name     string
	Scope    *Handle
	RemoteID string
	State    State
}

// NewHandle returns a Pending handle.
func NewHandle(kind, name string, scope *Handle) *Handle {
	return &Handle{Kind: kind, Name: name, Scope: scope}
}

// Key is the identity of the handle: kind, name and the full scope chain.
// Two handles with equal keys refer to the same remote resource.
func (h *Handle) Key() string {
	if h == nil {
		return ""
	}
	var b strings.Builder
	if h.Scope != nil {
		b.WriteString(h.Scope.Key())
		b.WriteString("/")
	}
	b.WriteString(h.Kind)
	b.WriteString(":")
	b.WriteString(h.Name)
	return b.String()
}

func (h *Handle) String() string {
	return h.Key()
}

// Transition moves the handle to a new state, rejecting illegal transitions.
func (h *Handle) Transition(to State) error {
	if !CanTransition(h.State, to) {
		return &InvalidStateError{
			Handle: h.Key(),
			State:  h.State,
			Reason: fmt.Sprintf("illegal transition %s -> %s", h.State, to),
		}
	}
	h.State = to
	return nil
}

// Snapshot returns a detached copy of the handle. The scope chain is copied
// as well so the snapshot cannot observe later mutations.
func (h *Handle) Snapshot() Handle {
	c := *h
	if h.Scope != nil {
		s := h.Scope.Snapshot()
		c.Scope = &s
	}
	return c
}

// Ancestor walks the scope chain and returns the first handle of the given
// kind, starting with the scope itself.
func (h *Handle) Ancestor(kind string) *Handle {
	for s := h.Scope; s != nil; s = s.Scope {
		if s.Kind == kind {
			return s
		}
	}
	return nil
}

// InvalidStateError means a handle is not in a state that permits the
// requested operation.
type InvalidStateError struct {
	Handle string
	State  State
	Reason string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid state for %s (%s): %s", e.Handle, e.State, e.Reason)
}
