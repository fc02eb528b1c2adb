// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tir

import (
	"testing"

	"github.com/gomlx/tgraph/pkg/core/te"
	"github.com/gomlx/tgraph/pkg/core/te/tetest"
	"github.com/gomlx/tgraph/pkg/tg/tgerrors"
	"github.com/gomlx/tgraph/pkg/tg/usage"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trainingGraph builds the training graph of the MLP.
func trainingGraph(m *tetest.MLP) (*Graph, error) {
	return MakeTraining([]te.Tensor{m.X}, []te.Tensor{m.Label}, []te.Tensor{m.Y},
		[]te.Tensor{m.W1, m.W2}, m.Loss, []te.Tensor{m.G1, m.G2}, m.LR, []te.Tensor{m.U1, m.U2})
}

func TestMakeInference(t *testing.T) {
	x := tetest.Placeholder("x", 4, 8)
	w := tetest.Placeholder("w", 8, 3)
	y := tetest.MatMul("y", x, w)

	g, err := MakeInference([]te.Tensor{x}, []te.Tensor{y}, []te.Tensor{w})
	require.NoError(t, err)
	assert.False(t, g.IsTraining())
	require.Len(t, g.Ops(), 1)
	assert.Same(t, y.Op(), g.Ops()[0])
	assert.Equal(t, 1, g.CountOperation(y.Op()))
	assert.True(t, g.IsBoundary(w))
	assert.False(t, g.Contains(x.Op()))
	assert.Equal(t, uintptr(4*3*4), g.Memory())

	// The output can't be inlined.
	inlined, err := InlineGraph(g)
	require.NoError(t, err)
	require.Len(t, inlined.Ops(), 1)
	assert.Same(t, y.Op(), inlined.Ops()[0])
	assert.Equal(t, g.Tag(), inlined.Tag())
	assert.True(t, te.EqualBodies(y.Op().Body(), inlined.Ops()[0].Body()))
}

func TestMakeInferenceErrors(t *testing.T) {
	x := tetest.Placeholder("x", 4, 8)
	w := tetest.Placeholder("w", 8, 3)
	b := tetest.Placeholder("bias", 3)
	y := tetest.BiasAdd("y", tetest.MatMul("xw", x, w), b)

	// All dangling placeholders are reported.
	_, err := MakeInference([]te.Tensor{x}, []te.Tensor{y}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, tgerrors.ErrDanglingReference))
	assert.Contains(t, err.Error(), `"w"`)
	assert.Contains(t, err.Error(), `"bias"`)

	_, err = MakeInference([]te.Tensor{x}, []te.Tensor{y, {}}, []te.Tensor{w, b})
	assert.True(t, errors.Is(err, tgerrors.ErrInvalidGraph))

	// Feeding an intermediate tensor cuts the graph there.
	xw := y.Op().InputTensors()[0]
	g, err := MakeInference([]te.Tensor{xw}, []te.Tensor{y}, []te.Tensor{b})
	require.NoError(t, err)
	assert.Len(t, g.Ops(), 1)
}

func TestMakeTraining(t *testing.T) {
	m := tetest.BuildMLP(2, 3, 4, 1)
	g, err := trainingGraph(m)
	require.NoError(t, err)
	assert.True(t, g.IsTraining())
	assert.True(t, g.Loss().Same(m.Loss))
	assert.True(t, g.LR().Same(m.LR))
	assert.Len(t, g.Ops(), 11)
	assert.Equal(t, 2, g.CountOperation(m.H.Op()), "H is read by A and DH")
	assert.Equal(t, 2, g.CountOperation(m.G1.Op()), "G1 is a gradient, read by U1")
	assert.Equal(t, 3, g.CountOperation(m.Y.Op()), "Y is an output, read by Loss and DY")
	assert.Contains(t, g.String(), "TrainingGraph")

	// Structurally identical graphs have the same tag.
	g2 := must.M1(trainingGraph(tetest.BuildMLP(2, 3, 4, 1)))
	assert.Equal(t, g.Tag(), g2.Tag())
	g3 := must.M1(trainingGraph(tetest.BuildMLP(2, 3, 5, 1)))
	assert.NotEqual(t, g.Tag(), g3.Tag())
}

func TestMakeTrainingErrors(t *testing.T) {
	m := tetest.BuildMLP(2, 3, 4, 1)

	// Weights [W1, W2] with gradients [G1].
	_, err := MakeTraining([]te.Tensor{m.X}, []te.Tensor{m.Label}, []te.Tensor{m.Y},
		[]te.Tensor{m.W1, m.W2}, m.Loss, []te.Tensor{m.G1}, m.LR, []te.Tensor{m.U1, m.U2})
	require.Error(t, err)
	assert.True(t, errors.Is(err, tgerrors.ErrArityMismatch))

	// Gradients in the wrong order don't match the weights shapes.
	_, err = MakeTraining([]te.Tensor{m.X}, []te.Tensor{m.Label}, []te.Tensor{m.Y},
		[]te.Tensor{m.W1, m.W2}, m.Loss, []te.Tensor{m.G2, m.G1}, m.LR, []te.Tensor{m.U1, m.U2})
	assert.True(t, errors.Is(err, tgerrors.ErrArityMismatch))

	// Label not declared.
	_, err = MakeTraining([]te.Tensor{m.X}, nil, []te.Tensor{m.Y},
		[]te.Tensor{m.W1, m.W2}, m.Loss, []te.Tensor{m.G1, m.G2}, m.LR, []te.Tensor{m.U1, m.U2})
	assert.True(t, errors.Is(err, tgerrors.ErrDanglingReference))

	// The loss doesn't depend on an extra label.
	extra := tetest.Placeholder("extra_label", 2, 1)
	_, err = MakeTraining([]te.Tensor{m.X}, []te.Tensor{m.Label, extra}, []te.Tensor{m.Y},
		[]te.Tensor{m.W1, m.W2}, m.Loss, []te.Tensor{m.G1, m.G2}, m.LR, []te.Tensor{m.U1, m.U2})
	assert.True(t, errors.Is(err, tgerrors.ErrDanglingReference))
	assert.Contains(t, err.Error(), "extra_label")

	// The loss doesn't depend on the outputs.
	_, err = MakeTraining([]te.Tensor{m.X}, []te.Tensor{m.Label}, []te.Tensor{m.A},
		[]te.Tensor{m.W1, m.W2}, m.Loss, []te.Tensor{m.G1, m.G2}, m.LR, []te.Tensor{m.U1, m.U2})
	require.NoError(t, err, "A is an ancestor of the loss")
	_, err = MakeTraining([]te.Tensor{m.X}, []te.Tensor{m.Label}, []te.Tensor{m.DY},
		[]te.Tensor{m.W1, m.W2}, m.Loss, []te.Tensor{m.G1, m.G2}, m.LR, []te.Tensor{m.U1, m.U2})
	assert.True(t, errors.Is(err, tgerrors.ErrDanglingReference))

	_, err = MakeTraining([]te.Tensor{m.X}, []te.Tensor{m.Label}, []te.Tensor{m.Y},
		[]te.Tensor{m.W1, m.W2}, te.Tensor{}, []te.Tensor{m.G1, m.G2}, m.LR, []te.Tensor{m.U1, m.U2})
	assert.True(t, errors.Is(err, tgerrors.ErrInvalidGraph))

	// Learning rate is not a scalar.
	_, err = MakeTraining([]te.Tensor{m.X}, []te.Tensor{m.Label}, []te.Tensor{m.Y},
		[]te.Tensor{m.W1, m.W2}, m.Loss, []te.Tensor{m.G1, m.G2}, tetest.Placeholder("lr", 2), []te.Tensor{m.U1, m.U2})
	require.Error(t, err)
	assert.True(t, errors.Is(err, tgerrors.ErrInvalidGraph))
	assert.Contains(t, err.Error(), "scalar")
}

func TestInlineGraph(t *testing.T) {
	x := tetest.Placeholder("x", 4, 8)
	a := tetest.Exp("a", x)
	b := tetest.Exp("b", a)
	out := tetest.ReLU("out", b)
	g := must.M1(MakeInference([]te.Tensor{x}, []te.Tensor{out}, nil))
	require.Len(t, g.Ops(), 3)

	inlined, err := InlineGraph(g)
	require.NoError(t, err)
	require.Len(t, inlined.Ops(), 1)
	newOut := inlined.Outputs()[0]
	assert.True(t, newOut.Same(out), "output keeps its identity")
	assert.NotSame(t, out.Op(), newOut.Op())
	assert.Equal(t, []te.TensorKey{x.Key()}, te.Keys(newOut.Op().InputTensors()))
	vars := te.VarsOf(out.Op().Axis())
	want := te.Max(te.Exp(te.Exp(x.At(vars...))), tetest.Zero())
	assert.True(t, te.Equal(want, newOut.Op().Body()[0]), "got %s", newOut.Op().Body()[0])

	// Idempotent.
	twice, err := InlineGraph(inlined)
	require.NoError(t, err)
	assert.Equal(t, inlined.Tag(), twice.Tag())
	require.Len(t, twice.Ops(), 1)
	assert.True(t, te.EqualBodies(inlined.Ops()[0].Body(), twice.Ops()[0].Body()))

	// Fan-out is not inlined, single consumers reading twice are.
	e := tetest.Exp("e", x)
	sq := tetest.Mul("sq", e, e)
	s0 := tetest.Add("s0", sq, x)
	s1 := tetest.Mul("s1", sq, x)
	g = must.M1(MakeInference([]te.Tensor{x}, []te.Tensor{s0, s1}, nil))
	require.Equal(t, 2, usage.CountInputOccur([]te.Tensor{e}, sq.Op()))
	inlined = must.M1(InlineGraph(g))
	require.Len(t, inlined.Ops(), 3)
	assert.Equal(t, sq.Op().ID(), inlined.Ops()[0].ID())
	assert.Equal(t, 2, inlined.CountOperation(inlined.Ops()[0]))
	assert.Equal(t, []te.TensorKey{x.Key()}, te.Keys(inlined.Ops()[0].InputTensors()))
}

func TestInlineGraphReductions(t *testing.T) {
	a := tetest.Placeholder("a", 4, 8)
	p := tetest.RowSum("p", a)

	// An element-wise consumer doesn't cover the reduction.
	e := tetest.Exp("e", p)
	g := must.M1(MakeInference([]te.Tensor{a}, []te.Tensor{e}, nil))
	inlined := must.M1(InlineGraph(g))
	assert.Len(t, inlined.Ops(), 2)

	// A consumer reducing over an axis of the same extent does.
	b := tetest.Placeholder("b", 4, 8)
	k := te.ReduceAxis("k", 8)
	q := te.Compute("q", []int{4}, func(axis []*te.IterVar) te.Expr {
		i := axis[0].Var()
		return te.Sum(te.Mul(p.At(i), b.At(i, k.Var())), k)
	})
	g = must.M1(MakeInference([]te.Tensor{a, b}, []te.Tensor{q}, nil))
	inlined = must.M1(InlineGraph(g))
	require.Len(t, inlined.Ops(), 1)
	assert.Len(t, inlined.Ops()[0].ReduceAxis(), 2)

	// Training graph: DH (element-wise) is inlined into G1, DA (a reduction) is not.
	m := tetest.BuildMLP(2, 3, 4, 1)
	tg := must.M1(trainingGraph(m))
	inlined = must.M1(InlineGraph(tg))
	assert.Nil(t, inlined.Op(m.DH.Op().ID()))
	assert.NotNil(t, inlined.Op(m.DA.Op().ID()))
	assert.Len(t, inlined.Ops(), len(tg.Ops())-1)
	for ii, grad := range inlined.Gradients() {
		assert.True(t, grad.Same(tg.Gradients()[ii]))
	}
	assert.Equal(t, inlined.Tag(), must.M1(InlineGraph(inlined)).Tag())
}

func TestInlineGraphSharedReductionAxis(t *testing.T) {
	// p and c reduce over the same axis k: once p is inlined, its sum must run over its own axis.
	k := te.ReduceAxis("k", 4)
	a := tetest.Placeholder("a", 4, 4)
	b := tetest.Placeholder("b", 4, 3)
	p := te.Compute("p", []int{4}, func(axis []*te.IterVar) te.Expr {
		return te.Sum(a.At(axis[0].Var(), k.Var()), k)
	})
	c := te.Compute("c", []int{3}, func(axis []*te.IterVar) te.Expr {
		return te.Sum(te.Mul(p.At(k.Var()), b.At(k.Var(), axis[0].Var())), k)
	})
	g := must.M1(MakeInference([]te.Tensor{a, b}, []te.Tensor{c}, nil))
	inlined := must.M1(InlineGraph(g))
	require.Len(t, inlined.Ops(), 1)
	op := inlined.Ops()[0]
	reduceAxis := op.ReduceAxis()
	require.Len(t, reduceAxis, 2)
	assert.Equal(t, k.ID(), reduceAxis[0].ID())
	assert.NotEqual(t, k.ID(), reduceAxis[1].ID())
	assert.Equal(t, 4, reduceAxis[1].Extent())

	var loadA *te.Load
	te.Walk(op.Body()[0], func(e te.Expr) bool {
		if load, ok := e.(*te.Load); ok && load.Tensor.Same(a) {
			loadA = load
		}
		return true
	})
	require.NotNil(t, loadA)
	require.Len(t, loadA.Indices, 2)
	outer, ok := loadA.Indices[0].(*te.Var)
	require.True(t, ok)
	inner, ok := loadA.Indices[1].(*te.Var)
	require.True(t, ok)
	assert.Equal(t, k.ID(), outer.IterVar.ID())
	assert.Equal(t, reduceAxis[1].ID(), inner.IterVar.ID())

	// Each copy of a reduction gets its own axes.
	twice := te.Compute("twice", []int{3}, func(axis []*te.IterVar) te.Expr {
		return te.Sum(te.Add(p.At(k.Var()), p.At(k.Var())), k)
	})
	g = must.M1(MakeInference([]te.Tensor{a}, []te.Tensor{twice}, nil))
	inlined = must.M1(InlineGraph(g))
	require.Len(t, inlined.Ops(), 1)
	assert.Len(t, inlined.Ops()[0].ReduceAxis(), 3)
}
