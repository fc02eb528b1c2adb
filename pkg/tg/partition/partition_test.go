// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package partition

import (
	"testing"

	"github.com/gomlx/tgraph/pkg/core/te"
	"github.com/gomlx/tgraph/pkg/core/te/tetest"
	"github.com/gomlx/tgraph/pkg/tg/tgerrors"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// checkBoundaries verifies that every tensor crossing subgraphs is produced by exactly one
// subgraph and consumed only by its topological successors.
func checkBoundaries(t *testing.T, subgraphs []*Subgraph) {
	producedBy := make(map[te.TensorKey]int)
	for pos, s := range subgraphs {
		for _, output := range s.Outputs {
			_, dup := producedBy[output.Key()]
			require.False(t, dup, "tensor %s produced by more than one subgraph", output)
			producedBy[output.Key()] = pos
		}
	}
	for pos, s := range subgraphs {
		for _, input := range s.Inputs {
			if input.Op().IsPlaceholder() {
				continue
			}
			producer, found := producedBy[input.Key()]
			require.True(t, found, "input %s of subgraph #%d not produced by any subgraph", input, pos)
			require.Less(t, producer, pos)
			assert.Contains(t, s.Predecessors, producer)
			assert.Contains(t, subgraphs[producer].Successors, pos)
		}
		for _, pred := range s.Predecessors {
			assert.Less(t, pred, pos)
		}
	}
}

func marksOf(s []*Subgraph) []Mark {
	marks := make([]Mark, len(s))
	for ii, sub := range s {
		marks[ii] = sub.Mark
	}
	return marks
}

func TestPartition(t *testing.T) {
	x := tetest.Placeholder("x", 4, 8)
	a := tetest.Exp("a", x)
	b := tetest.Exp("b", a)
	c := tetest.Add("c", a, b)
	marks := GraphMark{a.Op().ID(): 1, b.Op().ID(): 2, c.Op().ID(): 3}

	subgraphs, err := Partition(marks, []te.Tensor{c})
	require.NoError(t, err)
	require.Len(t, subgraphs, 3)
	if diff := cmp.Diff([]Mark{1, 2, 3}, marksOf(subgraphs)); diff != "" {
		t.Errorf("unexpected order (-want +got):\n%s", diff)
	}
	checkBoundaries(t, subgraphs)

	first, last := subgraphs[0], subgraphs[2]
	assert.Equal(t, []te.TensorKey{x.Key()}, te.Keys(first.Inputs))
	assert.Equal(t, []te.TensorKey{a.Key()}, te.Keys(first.Outputs))
	assert.Equal(t, []int{1, 2}, first.Successors)
	assert.Equal(t, []te.TensorKey{a.Key(), b.Key()}, te.Keys(last.Inputs))
	assert.Equal(t, []te.TensorKey{c.Key()}, te.Keys(last.Outputs))
	assert.Equal(t, []int{0, 1}, last.Predecessors)
	assert.Empty(t, last.Successors)

	// A single mark: one subgraph with all operations in topological order.
	marks = GraphMark{a.Op().ID(): 0, b.Op().ID(): 0, c.Op().ID(): 0}
	subgraphs, err = Partition(marks, []te.Tensor{c})
	require.NoError(t, err)
	require.Len(t, subgraphs, 1)
	require.Len(t, subgraphs[0].Ops, 3)
	assert.Same(t, a.Op(), subgraphs[0].Ops[0])
	assert.Same(t, c.Op(), subgraphs[0].Ops[2])
	assert.Equal(t, []te.TensorKey{c.Key()}, te.Keys(subgraphs[0].Outputs))
}

func TestPartitionTieBreak(t *testing.T) {
	x := tetest.Placeholder("x", 4)
	y := tetest.Placeholder("y", 4)
	o1 := tetest.Exp("o1", x)
	o2 := tetest.Exp("o2", y)
	marks := GraphMark{o1.Op().ID(): 5, o2.Op().ID(): 4}

	subgraphs, err := Partition(marks, []te.Tensor{o1, o2})
	require.NoError(t, err)
	assert.Equal(t, []Mark{5, 4}, marksOf(subgraphs))

	subgraphs, err = Partition(marks, []te.Tensor{o2, o1})
	require.NoError(t, err)
	assert.Equal(t, []Mark{4, 5}, marksOf(subgraphs))

	// Same mark, not connected: still one subgraph.
	marks = GraphMark{o1.Op().ID(): 7, o2.Op().ID(): 7}
	subgraphs, err = Partition(marks, []te.Tensor{o1, o2})
	require.NoError(t, err)
	require.Len(t, subgraphs, 1)
	assert.Equal(t, []te.TensorKey{o1.Key(), o2.Key()}, te.Keys(subgraphs[0].Outputs))
}

func TestPartitionMLP(t *testing.T) {
	m := tetest.BuildMLP(2, 3, 4, 1)
	// Mark each layer, and the loss, separately.
	marks := GraphMark{
		m.H.Op().ID():    10,
		m.A.Op().ID():    10,
		m.Y.Op().ID():    20,
		m.Loss.Op().ID(): 30,
	}
	subgraphs, err := Partition(marks, []te.Tensor{m.Y, m.Loss})
	require.NoError(t, err)
	assert.Equal(t, []Mark{10, 20, 30}, marksOf(subgraphs))
	checkBoundaries(t, subgraphs)
	assert.Equal(t, []te.TensorKey{m.Y.Key()}, te.Keys(subgraphs[1].Outputs))
	assert.Equal(t, []te.TensorKey{m.A.Key()}, te.Keys(subgraphs[0].Outputs))
}

func TestPartitionErrors(t *testing.T) {
	x := tetest.Placeholder("x", 4)
	a := tetest.Exp("a", x)
	b := tetest.Exp("b", a)
	c := tetest.Exp("c", b)

	// A(1) -> B(2) -> C(1) makes the two subgraphs depend on each other.
	_, err := Partition(GraphMark{a.Op().ID(): 1, b.Op().ID(): 2, c.Op().ID(): 1}, []te.Tensor{c})
	require.Error(t, err)
	assert.True(t, errors.Is(err, tgerrors.ErrCyclicPartition))

	_, err = Partition(GraphMark{a.Op().ID(): 1, c.Op().ID(): 1}, []te.Tensor{c})
	require.Error(t, err)
	assert.True(t, errors.Is(err, tgerrors.ErrMissingMark))
	assert.Contains(t, err.Error(), `"b"`)

	_, err = Partition(GraphMark{}, []te.Tensor{{}})
	assert.True(t, errors.Is(err, tgerrors.ErrInvalidGraph))
}
