// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package sequencer

import (
	"fmt"

	"github.com/platform-engineering-labs/formae-sequencer/pkg/graph"
	"github.com/platform-engineering-labs/formae-sequencer/pkg/model"
)

// validate rejects descriptor sets whose handles cannot legally go through the
// run. It runs before any provider call.
func validate(g *graph.Graph) error {
	byHandle := make(map[*model.Handle][]model.Descriptor)
	byKey := make(map[string]*model.Handle)
	creators := make(map[*model.Handle]string)
	deleters := make(map[*model.Handle]string)
	var handles []*model.Handle

	for _, d := range g.Descriptors() {
		switch d.Kind {
		case model.OperationCreateOrUpdate, model.OperationDelete, model.OperationList:
		default:
			return &graph.InvalidDescriptorError{ID: d.ID, Reason: fmt.Sprintf("unknown operation kind %q", d.Kind)}
		}

		for s := d.Target.Scope; s != nil; s = s.Scope {
			if s.State.Terminal() {
				return &model.InvalidStateError{
					Handle: s.Key(),
					State:  s.State,
					Reason: fmt.Sprintf("operation %q is scoped to a %s resource", d.ID, s.State),
				}
			}
		}

		// List targets are queries; their state is never read or written.
		if d.Kind == model.OperationList {
			continue
		}

		h := d.Target
		if h.State != model.StatePending {
			return &model.InvalidStateError{
				Handle: h.Key(),
				State:  h.State,
				Reason: fmt.Sprintf("operation %q: a handle must be Pending to enter a run", d.ID),
			}
		}
		if other, ok := byKey[h.Key()]; ok && other != h {
			return &model.InvalidStateError{
				Handle: h.Key(),
				State:  h.State,
				Reason: fmt.Sprintf("operation %q uses a second handle for the same resource", d.ID),
			}
		}
		byKey[h.Key()] = h

		if _, seen := byHandle[h]; !seen {
			handles = append(handles, h)
		}
		byHandle[h] = append(byHandle[h], d)
		if _, ok := creators[h]; !ok && d.Kind == model.OperationCreateOrUpdate {
			creators[h] = d.ID
		}
		if d.Kind == model.OperationDelete {
			deleters[h] = d.ID
		}
	}

	for _, h := range handles {
		if err := validateHandleOps(g, h, byHandle[h]); err != nil {
			return err
		}
	}

	for _, d := range g.Descriptors() {
		for s := d.Target.Scope; s != nil; s = s.Scope {
			creator, ok := creators[s]
			if !ok || g.InChain(d.ID, creator) {
				continue
			}
			return &model.InvalidStateError{
				Handle: s.Key(),
				State:  s.State,
				Reason: fmt.Sprintf("operation %q needs its scope but does not depend on %q, which creates it", d.ID, creator),
			}
		}
		// A scope's delete must come after every operation inside it.
		for s := d.Target.Scope; s != nil; s = s.Scope {
			deleter, ok := deleters[s]
			if !ok || g.InChain(deleter, d.ID) {
				continue
			}
			return &model.InvalidStateError{
				Handle: s.Key(),
				State:  s.State,
				Reason: fmt.Sprintf("operation %q deletes the scope of %q but does not depend on it", deleter, d.ID),
			}
		}
	}
	return nil
}

// validateHandleOps checks that the operations on one handle (given in
// topological order) form a chain: each depends on the previous one, a delete
// is preceded by a create-or-update and nothing follows a delete.
func validateHandleOps(g *graph.Graph, h *model.Handle, ops []model.Descriptor) error {
	created := false
	for i, d := range ops {
		if i > 0 && !g.InChain(d.ID, ops[i-1].ID) {
			return &model.InvalidStateError{
				Handle: h.Key(),
				State:  h.State,
				Reason: fmt.Sprintf("operations %q and %q target the same resource but are not ordered by dependsOn", ops[i-1].ID, d.ID),
			}
		}
		switch d.Kind {
		case model.OperationCreateOrUpdate:
			created = true
		case model.OperationDelete:
			if !created {
				return &model.InvalidStateError{
					Handle: h.Key(),
					State:  h.State,
					Reason: fmt.Sprintf("operation %q deletes a resource that no earlier operation in its chain creates", d.ID),
				}
			}
			if i != len(ops)-1 {
				return &model.InvalidStateError{
					Handle: h.Key(),
					State:  h.State,
					Reason: fmt.Sprintf("operation %q follows the delete in %q", ops[i+1].ID, d.ID),
				}
			}
		}
	}
	return nil
}
