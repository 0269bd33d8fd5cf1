// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/platform-engineering-labs/formae-sequencer/pkg/model"
)

// Graph orders descriptors so that every descriptor comes after everything it
// depends on. It is derived per run and never persisted.
type Graph struct {
	nodes      map[string]model.Descriptor
	deps       map[string][]string // id -> ids it depends on (sorted, deduplicated)
	dependents map[string][]string // id -> ids depending on it (sorted)
	order      []string
	position   map[string]int
	ancestors  map[string]map[string]struct{}
}

// Order returns the descriptors in dependency order. Ties between ready
// descriptors are broken by ascending id, so equal input always yields the
// same sequence.
func Order(descriptors []model.Descriptor) ([]model.Descriptor, error) {
	g, err := New(descriptors)
	if err != nil {
		return nil, err
	}
	return g.Descriptors(), nil
}

// New validates the descriptor set and computes its topological order.
func New(descriptors []model.Descriptor) (*Graph, error) {
	g := &Graph{
		nodes:      make(map[string]model.Descriptor, len(descriptors)),
		deps:       make(map[string][]string, len(descriptors)),
		dependents: make(map[string][]string, len(descriptors)),
	}

	for _, d := range descriptors {
		if d.ID == "" {
			return nil, &InvalidDescriptorError{Reason: "id is empty"}
		}
		if _, exists := g.nodes[d.ID]; exists {
			return nil, &InvalidDescriptorError{ID: d.ID, Reason: "duplicate id"}
		}
		if d.Target == nil {
			return nil, &InvalidDescriptorError{ID: d.ID, Reason: "target is nil"}
		}
		g.nodes[d.ID] = d
	}

	for _, d := range descriptors {
		seen := make(map[string]struct{}, len(d.DependsOn))
		deps := make([]string, 0, len(d.DependsOn))
		for _, dep := range d.DependsOn {
			if _, ok := g.nodes[dep]; !ok {
				return nil, &UnknownDependencyError{ID: d.ID, Dependency: dep}
			}
			if _, dup := seen[dep]; dup {
				continue
			}
			seen[dep] = struct{}{}
			deps = append(deps, dep)
			g.dependents[dep] = append(g.dependents[dep], d.ID)
		}
		sort.Strings(deps)
		g.deps[d.ID] = deps
	}
	for id := range g.dependents {
		sort.Strings(g.dependents[id])
	}

	if err := g.sort(); err != nil {
		return nil, err
	}
	g.computeAncestors()
	return g, nil
}

// sort runs Kahn's algorithm with the ready set kept in ascending id order.
func (g *Graph) sort() error {
	inDegree := make(map[string]int, len(g.nodes))
	var ready []string
	for id := range g.nodes {
		inDegree[id] = len(g.deps[id])
		if inDegree[id] == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		released := false
		for _, dependent := range g.dependents[id] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready = append(ready, dependent)
				released = true
			}
		}
		if released {
			sort.Strings(ready)
		}
	}

	if len(order) != len(g.nodes) {
		return &CycleError{IDs: g.cycleMembers(inDegree)}
	}

	g.order = order
	g.position = make(map[string]int, len(order))
	for i, id := range order {
		g.position[id] = i
	}
	return nil
}

// cycleMembers narrows the nodes Kahn could not release down to those that
// sit on a cycle, by repeatedly discarding nodes nothing unresolved depends on.
func (g *Graph) cycleMembers(inDegree map[string]int) []string {
	remaining := make(map[string]struct{})
	for id, deg := range inDegree {
		if deg > 0 {
			remaining[id] = struct{}{}
		}
	}

	for {
		pruned := false
		for id := range remaining {
			needed := false
			for _, dependent := range g.dependents[id] {
				if _, ok := remaining[dependent]; ok {
					needed = true
					break
				}
			}
			if !needed {
				delete(remaining, id)
				pruned = true
			}
		}
		if !pruned {
			break
		}
	}

	ids := make([]string, 0, len(remaining))
	for id := range remaining {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (g *Graph) computeAncestors() {
	g.ancestors = make(map[string]map[string]struct{}, len(g.order))
	for _, id := range g.order {
		set := make(map[string]struct{})
		for _, dep := range g.deps[id] {
			set[dep] = struct{}{}
			for a := range g.ancestors[dep] {
				set[a] = struct{}{}
			}
		}
		g.ancestors[id] = set
	}
}

// Len returns the number of descriptors in the graph.
func (g *Graph) Len() int {
	return len(g.order)
}

// IDs returns the topological order of descriptor ids.
func (g *Graph) IDs() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Descriptors returns the descriptors in topological order.
func (g *Graph) Descriptors() []model.Descriptor {
	out := make([]model.Descriptor, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Descriptor looks up a descriptor by id.
func (g *Graph) Descriptor(id string) (model.Descriptor, bool) {
	d, ok := g.nodes[id]
	return d, ok
}

// Position returns the index of id in the topological order, or -1.
func (g *Graph) Position(id string) int {
	if p, ok := g.position[id]; ok {
		return p
	}
	return -1
}

// DependsOn returns the direct dependencies of id.
func (g *Graph) DependsOn(id string) []string {
	return g.deps[id]
}

// Dependents returns the descriptors that directly depend on id.
func (g *Graph) Dependents(id string) []string {
	return g.dependents[id]
}

// InChain reports whether ancestor is in the dependency chain of id, i.e.
// id depends on it directly or transitively.
func (g *Graph) InChain(id, ancestor string) bool {
	_, ok := g.ancestors[id][ancestor]
	return ok
}

// Chain returns the dependency chain of id, sorted by topological position.
func (g *Graph) Chain(id string) []string {
	out := make([]string, 0, len(g.ancestors[id]))
	for a := range g.ancestors[id] {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return g.position[out[i]] < g.position[out[j]] })
	return out
}

// DOT exports Graphviz DOT text. Edges point from a descriptor to the
// descriptors it depends on.
func (g *Graph) DOT() string {
	var b strings.Builder
	b.WriteString("digraph sequence {\n")
	b.WriteString("  rankdir=LR;\n")
	for i, id := range g.order {
		d := g.nodes[id]
		label := escape(id) + "\\n" + escape(string(d.Kind)+" "+d.Target.Kind)
		fmt.Fprintf(&b, "  n%d [label=\"%s\"];\n", i, label)
	}
	for i, id := range g.order {
		for _, dep := range g.deps[id] {
			fmt.Fprintf(&b, "  n%d -> n%d;\n", i, g.position[dep])
		}
	}
	b.WriteString("}\n")
	return b.String()
}

// Mermaid exports Mermaid graph text.
func (g *Graph) Mermaid() string {
	var b strings.Builder
	b.WriteString("graph TD\n")
	for i, id := range g.order {
		d := g.nodes[id]
		fmt.Fprintf(&b, "    n%d[\"%s<br/>(%s)\"]\n", i, escape(id), escape(string(d.Kind)))
	}
	for i, id := range g.order {
		for _, dep := range g.deps[id] {
			fmt.Fprintf(&b, "    n%d --> n%d\n", i, g.position[dep])
		}
	}
	return b.String()
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "\\\"")
}
