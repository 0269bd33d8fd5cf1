// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platform-engineering-labs/formae-sequencer/pkg/model"
)

func op(id string, deps ...string) model.Descriptor {
	return model.Descriptor{
		ID:        id,
		Target:    model.NewHandle("test", id, nil),
		Kind:      model.OperationCreateOrUpdate,
		DependsOn: deps,
	}
}

func ids(ds []model.Descriptor) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.ID
	}
	return out
}

func TestOrder_Empty(t *testing.T) {
	ordered, err := Order(nil)
	require.NoError(t, err)
	assert.Empty(t, ordered)
}

func TestOrder_SimpleChain(t *testing.T) {
	ordered, err := Order([]model.Descriptor{
		op("c", "b"),
		op("a"),
		op("b", "a"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(ordered))
}

func TestOrder_TieBreakByID(t *testing.T) {
	ordered, err := Order([]model.Descriptor{
		op("d", "b", "c"),
		op("c", "a"),
		op("b", "a"),
		op("z"),
		op("a"),
	})
	require.NoError(t, err)
	// a and z are ready at the start; releasing a makes b and c ready, which
	// sort before z.
	assert.Equal(t, []string{"a", "b", "c", "d", "z"}, ids(ordered))
}

func TestOrder_Deterministic(t *testing.T) {
	input := []model.Descriptor{
		op("group"),
		op("account2", "group"),
		op("account1", "group"),
		op("list-accounts", "account1", "account2"),
		op("delete-account2", "account2", "list-accounts"),
	}
	first, err := Order(input)
	require.NoError(t, err)

	for range 20 {
		again, err := Order(input)
		require.NoError(t, err)
		assert.Equal(t, ids(first), ids(again))
	}
	assert.Equal(t, []string{"group", "account1", "account2", "list-accounts", "delete-account2"}, ids(first))
}

func TestOrder_Cycle(t *testing.T) {
	_, err := Order([]model.Descriptor{
		op("X", "Y"),
		op("Y", "X"),
	})
	var cycleErr *CycleError
	require.True(t, errors.As(err, &cycleErr))
	assert.Equal(t, []string{"X", "Y"}, cycleErr.IDs)
}

func TestOrder_CycleExcludesDownstream(t *testing.T) {
	_, err := Order([]model.Descriptor{
		op("root"),
		op("a", "root", "c"),
		op("b", "a"),
		op("c", "b"),
		op("tail", "c"),
	})
	var cycleErr *CycleError
	require.True(t, errors.As(err, &cycleErr))
	assert.Equal(t, []string{"a", "b", "c"}, cycleErr.IDs)
}

func TestOrder_SelfDependency(t *testing.T) {
	_, err := Order([]model.Descriptor{op("a", "a")})
	var cycleErr *CycleError
	require.True(t, errors.As(err, &cycleErr))
	assert.Equal(t, []string{"a"}, cycleErr.IDs)
}

func TestOrder_UnknownDependency(t *testing.T) {
	_, err := Order([]model.Descriptor{op("a", "ghost")})
	var depErr *UnknownDependencyError
	require.True(t, errors.As(err, &depErr))
	assert.Equal(t, "a", depErr.ID)
	assert.Equal(t, "ghost", depErr.Dependency)
}

func TestNew_InvalidDescriptors(t *testing.T) {
	tests := []struct {
		name  string
		input []model.Descriptor
	}{
		{"empty id", []model.Descriptor{op("")}},
		{"duplicate id", []model.Descriptor{op("a"), op("a")}},
		{"nil target", []model.Descriptor{{ID: "a", Kind: model.OperationDelete}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.input)
			var invalid *InvalidDescriptorError
			assert.True(t, errors.As(err, &invalid), "got %v", err)
		})
	}
}

func TestGraph_Chain(t *testing.T) {
	g, err := New([]model.Descriptor{
		op("a"),
		op("b", "a"),
		op("c", "b"),
		op("d"),
	})
	require.NoError(t, err)

	assert.True(t, g.InChain("c", "a"))
	assert.True(t, g.InChain("c", "b"))
	assert.False(t, g.InChain("a", "c"))
	assert.False(t, g.InChain("c", "d"))
	assert.Equal(t, []string{"a", "b"}, g.Chain("c"))
	assert.Equal(t, []string{"b"}, g.Dependents("a"))
	assert.Equal(t, 2, g.Position("c"))
	assert.Equal(t, -1, g.Position("missing"))
}

func TestGraph_DuplicateDependsOnCollapsed(t *testing.T) {
	g, err := New([]model.Descriptor{op("a"), op("b", "a", "a")})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, g.DependsOn("b"))
	assert.Equal(t, []string{"b"}, g.Dependents("a"))
}

func TestGraph_Export(t *testing.T) {
	g, err := New([]model.Descriptor{op("a"), op("b", "a")})
	require.NoError(t, err)

	dot := g.DOT()
	assert.Contains(t, dot, "digraph sequence {")
	assert.Contains(t, dot, "n1 -> n0;")

	mermaid := g.Mermaid()
	assert.Contains(t, mermaid, "graph TD")
	assert.Contains(t, mermaid, "n1 --> n0")
}
