// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package schedule

import (
	"github.com/gomlx/tgraph/pkg/core/te"
	"github.com/gomlx/tgraph/pkg/tg/multigraph"
	"github.com/gomlx/tgraph/pkg/tg/tag"
	"github.com/gomlx/tgraph/pkg/tg/tgerrors"
	"github.com/gomlx/tgraph/pkg/tg/tir"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Replay rewrites the body of each operation of rep with the tensors and axes of the operation in
// the same position of target. The returned bodies are indexed by the target operations' ids.
//
// rep and target must have the same tag, otherwise it fails with an error wrapping
// tgerrors.ErrTagMismatch.
func Replay(rep, target *tir.Graph) (map[te.OpID][]te.Expr, error) {
	if rep.Tag() != target.Tag() {
		return nil, errors.Wrapf(tgerrors.ErrTagMismatch, "replaying graph of %d ops onto graph of %d ops",
			len(rep.Ops()), len(target.Ops()))
	}
	bodies := make(map[te.OpID][]te.Expr, len(target.Ops()))
	for ii, targetOp := range target.Ops() {
		repOp := rep.Ops()[ii]
		repBody, targetBody := repOp.Body(), targetOp.Body()
		s, err := tag.NewSubstitution(
			tag.Tensors(repBody), tag.Tensors(targetBody),
			repOp.Axis(), targetOp.Axis(),
			tag.ReduceAxes(repBody), tag.ReduceAxes(targetBody))
		if err != nil {
			return nil, errors.WithMessagef(err, "replaying operation #%d (%q onto %q)", ii, repOp.Name(), targetOp.Name())
		}
		body := make([]te.Expr, len(repBody))
		for jj, expr := range repBody {
			body[jj] = s.Apply(expr)
		}
		bodies[targetOp.ID()] = body
	}
	return bodies, nil
}

// Fragment is the schedule assigned to one fragment of a MultiGraph.
type Fragment[T any] struct {
	Key multigraph.Key

	// Rep is the graph the schedule was computed for. It is the fragment itself on a cache miss.
	Rep *tir.Graph

	Schedule T

	// Bodies of the representative replayed onto the fragment (see Replay). Nil if Rep is the
	// fragment itself.
	Bodies map[te.OpID][]te.Expr
}

// ForMultiGraph assigns a schedule to every fragment of mg, in execution order, computing it with
// compute only for tags not yet in cache.
func ForMultiGraph[T any](mg *multigraph.MultiGraph, cache *Cache[T], compute func(g *tir.Graph) (T, error)) ([]Fragment[T], error) {
	results := make([]Fragment[T], 0, mg.Len())
	hits := 0
	for _, key := range mg.Order() {
		g := mg.Graph(key)
		rep, value, err := cache.GetOrCompute(mg.Attrs(key).Tag, g, compute)
		if err != nil {
			return nil, errors.WithMessagef(err, "scheduling fragment %d of multigraph %s", key, mg.ID())
		}
		frag := Fragment[T]{Key: key, Rep: rep, Schedule: value}
		if rep != g {
			hits++
			frag.Bodies, err = Replay(rep, g)
			if err != nil {
				return nil, errors.WithMessagef(err, "fragment %d of multigraph %s", key, mg.ID())
			}
		}
		results = append(results, frag)
	}
	klog.V(1).Infof("multigraph %s: %d fragments scheduled, %d reused a cached schedule", mg.ID(), mg.Len(), hits)
	return results, nil
}
