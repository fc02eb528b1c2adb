// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package multigraph

import (
	"context"
	"testing"

	"github.com/gomlx/tgraph/pkg/core/te"
	"github.com/gomlx/tgraph/pkg/core/te/tetest"
	"github.com/gomlx/tgraph/pkg/support/sets"
	"github.com/gomlx/tgraph/pkg/support/xslices"
	"github.com/gomlx/tgraph/pkg/tg/partition"
	"github.com/gomlx/tgraph/pkg/tg/tgerrors"
	"github.com/gomlx/tgraph/pkg/tg/tir"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trainingGraph(m *tetest.MLP) *tir.Graph {
	return must.M1(tir.MakeTraining([]te.Tensor{m.X}, []te.Tensor{m.Label}, []te.Tensor{m.Y},
		[]te.Tensor{m.W1, m.W2}, m.Loss, []te.Tensor{m.G1, m.G2}, m.LR, []te.Tensor{m.U1, m.U2}))
}

func opIDs(g *tir.Graph) []te.OpID {
	return xslices.Map(g.Ops(), (*te.Operation).ID)
}

func idsOf(tensors ...te.Tensor) []te.OpID {
	return xslices.Map(tensors, func(t te.Tensor) te.OpID { return t.Op().ID() })
}

// checkFragments verifies the fragments partition the operations of the source graph, and that
// every tensor a fragment reads is either declared by the source graph or produced by one of its
// predecessors.
func checkFragments(t *testing.T, mg *MultiGraph) {
	source := mg.Source()
	sourceBoundary := sets.MakeWith(te.Keys(source.Boundary())...)
	owner := make(map[te.OpID]Key)
	for _, key := range mg.Keys() {
		for _, op := range mg.Graph(key).Ops() {
			_, dup := owner[op.ID()]
			require.False(t, dup, "op %s in more than one fragment", op)
			owner[op.ID()] = key
		}
	}
	require.Len(t, owner, len(source.Ops()))
	for _, key := range mg.Keys() {
		for _, input := range mg.Graph(key).Boundary() {
			if sourceBoundary.Has(input.Key()) {
				continue
			}
			from, found := owner[input.Op().ID()]
			require.True(t, found, "fragment %d reads %s, produced nowhere", key, input)
			assert.Contains(t, mg.Attrs(key).Predecessors, from)
		}
	}
	position := make(map[Key]int)
	for ii, key := range mg.Order() {
		position[key] = ii
	}
	for _, key := range mg.Keys() {
		for _, pred := range mg.Attrs(key).Predecessors {
			assert.Less(t, position[pred], position[key])
		}
	}
}

func TestMakeInference(t *testing.T) {
	x := tetest.Placeholder("x", 4, 8)
	a := tetest.Exp("a", x)
	b := tetest.Exp("b", a)
	out := tetest.ReLU("out", b)
	g := must.M1(tir.MakeInference([]te.Tensor{x}, []te.Tensor{out}, nil))

	// No marker: kept whole.
	mg, err := Make(g)
	require.NoError(t, err)
	require.Equal(t, 1, mg.Len())
	assert.Same(t, g, mg.Graph(0))
	assert.Equal(t, Inference, mg.Attrs(0).Kind)
	assert.Equal(t, Auto, mg.Policy())
	assert.Equal(t, g.Tag(), mg.Attrs(0).Tag)
	assert.Nil(t, mg.Graph(1))
	assert.Nil(t, mg.Attrs(-1))

	// Split by op name.
	marker := func(marks map[string]partition.Mark) func(op *te.Operation) partition.Mark {
		return func(op *te.Operation) partition.Mark { return marks[op.Name()] }
	}
	mg, err = Make(g, WithMarker(marker(map[string]partition.Mark{"a": 1, "b": 1, "out": 2})))
	require.NoError(t, err)
	require.Equal(t, 2, mg.Len())
	checkFragments(t, mg)
	assert.Equal(t, idsOf(a, b), opIDs(mg.Graph(0)))
	assert.Equal(t, []te.TensorKey{b.Key()}, te.Keys(mg.Graph(0).Outputs()))
	assert.Equal(t, []te.TensorKey{b.Key()}, te.Keys(mg.Graph(1).Inputs()))
	assert.Equal(t, []Key{0}, mg.Attrs(1).Predecessors)
	assert.Equal(t, []Key{1}, mg.Attrs(0).Successors)
	assert.Equal(t, [][]Key{{0}, {1}}, mg.CallOrder())

	// Marks inconsistent with the dependencies.
	_, err = Make(g, WithMarker(marker(map[string]partition.Mark{"a": 1, "b": 2, "out": 1})))
	require.Error(t, err)
	assert.True(t, errors.Is(err, tgerrors.ErrCyclicPartition))

	_, err = Make(nil)
	assert.True(t, errors.Is(err, tgerrors.ErrInvalidGraph))
}

func TestMakeTrainingPerGradient(t *testing.T) {
	m := tetest.BuildMLP(2, 3, 4, 1)
	g := trainingGraph(m)
	mg, err := Make(g, WithGradientPolicy(PerGradient), WithParallelism(1))
	require.NoError(t, err)
	assert.Equal(t, PerGradient, mg.Policy())
	require.Equal(t, 5, mg.Len())
	checkFragments(t, mg)

	kinds := []Kind{Forward, Backward, Backward, Update, Update}
	for ii, kind := range kinds {
		assert.Equal(t, kind, mg.Attrs(Key(ii)).Kind, "fragment %d", ii)
	}
	assert.Equal(t, idsOf(m.H, m.A, m.Y, m.Loss), opIDs(mg.Graph(0)))
	assert.Equal(t, idsOf(m.DY, m.DA, m.DH, m.G1), opIDs(mg.Graph(1)))
	assert.Equal(t, idsOf(m.G2), opIDs(mg.Graph(2)))
	assert.Equal(t, idsOf(m.U1), opIDs(mg.Graph(3)))
	assert.Equal(t, idsOf(m.U2), opIDs(mg.Graph(4)))

	forward := mg.Graph(0)
	assert.Equal(t, te.Keys([]te.Tensor{m.H, m.A, m.Y, m.Loss}), te.Keys(forward.Outputs()))
	assert.Equal(t, te.Keys([]te.Tensor{m.X, m.Label}), te.Keys(forward.Inputs()))
	assert.Equal(t, te.Keys([]te.Tensor{m.W1, m.W2}), te.Keys(forward.Weights()))
	assert.False(t, forward.IsTraining())
	assert.Equal(t, te.Keys([]te.Tensor{m.DY, m.G1}), te.Keys(mg.Graph(1).Outputs()))

	wantPreds := [][]Key{nil, {0}, {0, 1}, {1}, {2}}
	for ii, preds := range wantPreds {
		attrs := mg.Attrs(Key(ii))
		assert.Equal(t, preds, attrs.Predecessors, "fragment %d", ii)
		assert.Equal(t, len(preds), attrs.NumPredecessors)
	}
	assert.Equal(t, []Key{1, 2}, mg.Attrs(0).Successors)
	assert.Empty(t, mg.Attrs(4).Successors)
	assert.Equal(t, []Key{0, 1, 2, 3, 4}, mg.Order())
	assert.Equal(t, [][]Key{{0}, {1}, {2, 3}, {4}}, mg.CallOrder())

	table := mg.String()
	assert.Contains(t, table, mg.ID().String())
	assert.Contains(t, table, "per_gradient")
	for _, kind := range []string{"forward", "backward", "update"} {
		assert.Contains(t, table, kind)
	}
}

func TestMakeTrainingMerged(t *testing.T) {
	m := tetest.BuildMLP(2, 3, 4, 1)
	mg, err := Make(trainingGraph(m), WithGradientPolicy(Merged))
	require.NoError(t, err)
	assert.Equal(t, Merged, mg.Policy())
	require.Equal(t, 4, mg.Len())
	checkFragments(t, mg)
	assert.Equal(t, idsOf(m.DY, m.DA, m.DH, m.G1, m.G2), opIDs(mg.Graph(1)))
	assert.Equal(t, te.Keys([]te.Tensor{m.G1, m.G2}), te.Keys(mg.Graph(1).Outputs()))
	assert.Equal(t, [][]Key{{0}, {1}, {2, 3}}, mg.CallOrder())
}

func TestMakeTrainingAuto(t *testing.T) {
	// Only DY is shared by both gradients: 1 of the 5 backward ops.
	m := tetest.BuildMLP(2, 3, 4, 1)
	mg := must.M1(Make(trainingGraph(m)))
	assert.Equal(t, PerGradient, mg.Policy())
	assert.Equal(t, 5, mg.Len())

	mg = must.M1(Make(trainingGraph(m), WithMergeThreshold(0.1)))
	assert.Equal(t, Merged, mg.Policy())
	assert.Equal(t, 4, mg.Len())
}

func TestRepresentatives(t *testing.T) {
	// W1 and W2 have the same shape, so the update fragments are identical.
	m := tetest.BuildMLP(2, 4, 4, 4)
	mg := must.M1(Make(trainingGraph(m), WithGradientPolicy(PerGradient)))
	require.Equal(t, 5, mg.Len())
	assert.Equal(t, mg.Attrs(3).Tag, mg.Attrs(4).Tag)
	reps := mg.Representatives()
	assert.Equal(t, Key(3), reps[4])
	assert.Equal(t, Key(3), reps[3])
	assert.Equal(t, Key(0), reps[0])
	assert.Contains(t, mg.String(), "Same as")

	// Different shapes.
	mg = must.M1(Make(trainingGraph(tetest.BuildMLP(2, 3, 4, 1)), WithGradientPolicy(PerGradient)))
	assert.NotEqual(t, mg.Attrs(3).Tag, mg.Attrs(4).Tag)
	assert.Equal(t, Key(4), mg.Representatives()[4])
}

func TestMakeAll(t *testing.T) {
	graphs := []*tir.Graph{
		trainingGraph(tetest.BuildMLP(2, 3, 4, 1)),
		trainingGraph(tetest.BuildMLP(8, 3, 4, 1)),
		trainingGraph(tetest.BuildMLP(2, 5, 4, 1)),
	}
	results, err := MakeAll(context.Background(), graphs, WithGradientPolicy(Merged), WithParallelism(2))
	require.NoError(t, err)
	require.Len(t, results, len(graphs))
	for ii, mg := range results {
		assert.Same(t, graphs[ii], mg.Source())
		assert.Equal(t, 4, mg.Len())
		assert.NotEqual(t, mg.ID(), results[(ii+1)%len(results)].ID())
	}

	_, err = MakeAll(context.Background(), []*tir.Graph{graphs[0], nil})
	require.Error(t, err)
	assert.True(t, errors.Is(err, tgerrors.ErrInvalidGraph))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = MakeAll(ctx, graphs)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseGradientPolicy(t *testing.T) {
	for _, policy := range []GradientPolicy{Auto, PerGradient, Merged} {
		parsed, err := ParseGradientPolicy(policy.String())
		require.NoError(t, err)
		assert.Equal(t, policy, parsed)
	}
	parsed, err := ParseGradientPolicy(" Merged ")
	require.NoError(t, err)
	assert.Equal(t, Merged, parsed)
	_, err = ParseGradientPolicy("fastest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "per_gradient")

	var policy GradientPolicy
	require.NoError(t, policy.UnmarshalText([]byte("per_gradient")))
	assert.Equal(t, PerGradient, policy)
	text, err := Merged.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "merged", string(text))
	assert.Error(t, policy.UnmarshalText([]byte("fastest")))
	kind, err := KindString("backward")
	require.NoError(t, err)
	assert.Equal(t, Backward, kind)
	assert.Equal(t, "GradientPolicy(7)", GradientPolicy(7).String())
	assert.Equal(t, "update", Update.String())
}
