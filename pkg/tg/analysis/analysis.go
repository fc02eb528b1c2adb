// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package analysis answers structural questions about tensors and their axes.
//
// All functions are pure: they only read the expression trees of the producers of the given
// tensors. "Not found" results are a normal outcome and are returned as (-1, false), except
// for FindAxisIn, whose callers usually want the reason.
package analysis

import (
	"github.com/gomlx/tgraph/pkg/core/shapes"
	"github.com/gomlx/tgraph/pkg/core/te"
	"github.com/gomlx/tgraph/pkg/tg/tgerrors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// loadsOf returns all Load expressions in the bodies of op, in pre-order.
func loadsOf(op *te.Operation) []*te.Load {
	var loads []*te.Load
	for _, expr := range op.Body() {
		te.Walk(expr, func(e te.Expr) bool {
			if load, ok := e.(*te.Load); ok {
				loads = append(loads, load)
			}
			return true
		})
	}
	return loads
}

// varsIn returns the ids of the variables referenced in expr.
func varsIn(expr te.Expr) map[te.VarID]*te.IterVar {
	vars := make(map[te.VarID]*te.IterVar)
	te.Walk(expr, func(e te.Expr) bool {
		if v, ok := e.(*te.Var); ok {
			vars[v.IterVar.ID()] = v.IterVar
		}
		return true
	})
	return vars
}

// bareVar returns the IterVar if expr is a plain variable reference.
func bareVar(expr te.Expr) (*te.IterVar, bool) {
	if v, ok := expr.(*te.Var); ok {
		return v.IterVar, true
	}
	return nil, false
}

// BatchLikeDim returns the dimension of t that behaves like a "batch" dimension: one whose extent
// may vary across invocations without changing the fusion legality of its producer.
//
// A dimension qualifies if its axis variable is never combined with other variables in an index
// expression of the producer's body (so its extent is not constrained by a sibling dimension or
// a reduction), and it doesn't appear in a reduction condition. The first qualifying dimension
// is returned.
//
// Placeholders have no body to analyze: by convention their leading dimension is returned.
// Scalars have no batch-like dimension.
func BatchLikeDim(t te.Tensor) (dim int, found bool) {
	if !t.Ok() || t.Rank() == 0 {
		return -1, false
	}
	op := t.Op()
	if op.IsPlaceholder() {
		return 0, true
	}
	loads := loadsOf(op)
	conditionVars := make(map[te.VarID]bool)
	for _, expr := range op.Body() {
		te.Walk(expr, func(e te.Expr) bool {
			if r, ok := e.(*te.Reduce); ok && r.Condition != nil {
				for id := range varsIn(r.Condition) {
					conditionVars[id] = true
				}
			}
			return true
		})
	}

	for d, axis := range op.Axis() {
		if conditionVars[axis.ID()] {
			continue
		}
		qualifies := true
	loadsLoop:
		for _, load := range loads {
			for _, index := range load.Indices {
				vars := varsIn(index)
				if _, uses := vars[axis.ID()]; uses && len(vars) > 1 {
					qualifies = false
					break loadsLoop
				}
			}
		}
		if qualifies {
			return d, true
		}
	}
	klog.V(2).Infof("BatchLikeDim(%s): no batch-like dimension", t)
	return -1, false
}

// correspondingAxis returns the axis of weight that is iterated jointly with the axis `dim` of t.
//
// If the producer of t reads weight directly, it is the position where weight is indexed by the
// bare variable of axis `dim` (not found if there is no such position). Otherwise, the axes are
// aligned from the right, as in broadcasting.
func correspondingAxis(t te.Tensor, dim int, weight te.Tensor) (int, bool) {
	op := t.Op()
	if !op.IsPlaceholder() {
		axisID := op.Axis()[dim].ID()
		readsWeight := false
		for _, load := range loadsOf(op) {
			if !load.Tensor.Same(weight) {
				continue
			}
			readsWeight = true
			for pos, index := range load.Indices {
				if v, ok := bareVar(index); ok && v.ID() == axisID {
					return pos, true
				}
			}
		}
		if readsWeight {
			return -1, false
		}
	}
	pos := dim - (t.Rank() - weight.Rank())
	if pos < 0 || pos >= weight.Rank() {
		return -1, false
	}
	return pos, true
}

// FindFusibleDim returns the axis of t that can be tiled/fused jointly with an axis of every
// one of the weights without changing the result: the corresponding axis of each weight must
// have the same extent, or be broadcastable (extent 1).
//
// It returns the first such axis, or (-1, false) if none fits all weights. With no weights,
// the leading axis of a non-scalar t is returned.
func FindFusibleDim(t te.Tensor, weights []te.Tensor) (dim int, found bool) {
	if !t.Ok() || t.Rank() == 0 {
		return -1, false
	}
	if len(weights) == 0 {
		return 0, true
	}
	for d := range t.Rank() {
		fits := true
		for _, weight := range weights {
			pos, ok := correspondingAxis(t, d, weight)
			if !ok || !shapes.BroadcastCompatible(t.Shape().Dim(d), weight.Shape().Dim(pos)) {
				fits = false
				break
			}
		}
		if fits {
			return d, true
		}
	}
	return -1, false
}

// FindAxisIn returns the position in output of the given axis of t, following the producer chain
// from t to output.
//
// The axis survives a step of the chain when the consumer reads the tensor with the bare
// variable of one of its own output axes of the same extent at the axis position. It doesn't
// survive if it is reduced away, used in a compound index, or changes extent. The error wraps
// tgerrors.ErrAxisNotFound in those cases, or if t is not an ancestor of output.
func FindAxisIn(axis *te.IterVar, t, output te.Tensor) (int, error) {
	if !t.Ok() || !output.Ok() || axis == nil {
		return -1, errors.Wrapf(tgerrors.ErrAxisNotFound, "FindAxisIn() with invalid arguments (axis=%s, tensor=%s, output=%s)", axis, t, output)
	}
	start := -1
	for ii, a := range t.Op().Axis() {
		if a.ID() == axis.ID() {
			start = ii
			break
		}
	}
	if start < 0 {
		return -1, errors.Wrapf(tgerrors.ErrAxisNotFound, "axis %s is not an axis of %s", axis, t)
	}

	type result struct {
		pos int
		ok  bool
	}
	memo := make(map[te.TensorKey]result)
	var locate func(cur te.Tensor) (int, bool)
	locate = func(cur te.Tensor) (int, bool) {
		if cur.Same(t) {
			return start, true
		}
		if r, found := memo[cur.Key()]; found {
			return r.pos, r.ok
		}
		memo[cur.Key()] = result{pos: -1}
		for _, input := range cur.Op().InputTensors() {
			pos, ok := locate(input)
			if !ok {
				continue
			}
			if newPos, ok := mapAxisThroughConsumer(cur.Op(), input, pos, axis.Extent()); ok {
				memo[cur.Key()] = result{pos: newPos, ok: true}
				return newPos, true
			}
		}
		return -1, false
	}
	pos, ok := locate(output)
	if !ok {
		return -1, errors.Wrapf(tgerrors.ErrAxisNotFound, "axis %s of %s does not survive into %s", axis, t, output)
	}
	return pos, nil
}

// mapAxisThroughConsumer returns the output axis position of consumer that iterates over the
// axis `pos` of the input tensor.
func mapAxisThroughConsumer(consumer *te.Operation, input te.Tensor, pos, extent int) (int, bool) {
	for _, load := range loadsOf(consumer) {
		if !load.Tensor.Same(input) {
			continue
		}
		v, ok := bareVar(load.Indices[pos])
		if !ok || v.IsReduce() {
			continue
		}
		for r, a := range consumer.Axis() {
			if a.ID() == v.ID() && a.Extent() == extent {
				return r, true
			}
		}
	}
	return -1, false
}
