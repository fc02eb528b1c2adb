// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tir

import (
	"slices"

	"github.com/emirpasic/gods/v2/queues/linkedlistqueue"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/tgraph/pkg/core/te"
	"github.com/gomlx/tgraph/pkg/support/sets"
	"github.com/gomlx/tgraph/pkg/support/xslices"
	"github.com/gomlx/tgraph/pkg/tg/tag"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// inliner holds the state of InlineGraph: an arena with the latest version of each operation and
// a reference count table, both keyed by the operation id.
type inliner struct {
	g         *Graph
	protected sets.Set[te.OpID]
	arena     map[te.OpID]*te.Operation
	consumers map[te.OpID][]te.OpID
	inlined   sets.Set[te.OpID]
	worklist  *linkedlistqueue.Queue[te.OpID]
}

// InlineGraph returns a graph where each operation with a single consumer is fused into it: the
// consumer reads the producer's body directly instead of the intermediate tensor.
//
// An operation is inlined if it:
//
//   - is referenced only once (see Graph.CountOperation);
//   - produces none of the declared tensors (outputs, weights, loss, gradients, updates, ...);
//   - has a single output;
//   - has no reductions, or its consumer's reduction axes cover the extents of its own.
//
// It is applied until no further operation qualifies. The tensors of the new graph keep their
// identities, even if the bodies of their operations are rewritten. InlineGraph is idempotent.
func InlineGraph(g *Graph) (*Graph, error) {
	in := &inliner{
		g:         g,
		protected: g.ProtectedOps(),
		arena:     make(map[te.OpID]*te.Operation, len(g.Ops())),
		consumers: make(map[te.OpID][]te.OpID, len(g.Ops())),
		inlined:   sets.Make[te.OpID](),
		worklist:  linkedlistqueue.New[te.OpID](),
	}
	for _, op := range g.Ops() {
		in.arena[op.ID()] = op
		in.consumers[op.ID()] = g.counter.ConsumerIDs(op.ID())
	}
	for _, op := range g.Ops() {
		if in.eligible(op.ID()) {
			in.worklist.Enqueue(op.ID())
		}
	}

	err := exceptions.TryCatch[error](func() {
		for !in.worklist.Empty() {
			id, _ := in.worklist.Dequeue()
			if in.inlined.Has(id) || !in.eligible(id) {
				continue
			}
			in.inline(id)
		}
	})
	if err != nil {
		return nil, errors.WithMessage(err, "tir.InlineGraph()")
	}
	if len(in.inlined) == 0 {
		klog.V(1).Infof("tir.InlineGraph: nothing to inline in %d ops", len(g.Ops()))
		return g, nil
	}
	klog.V(1).Infof("tir.InlineGraph: inlined %d of %d ops", len(in.inlined), len(g.Ops()))
	return in.relink()
}

// refs is the current reference count of the operation.
func (in *inliner) refs(id te.OpID) int {
	return len(in.consumers[id]) + in.g.counter.RootUses(in.arena[id])
}

func (in *inliner) eligible(id te.OpID) bool {
	op, found := in.arena[id]
	if !found || in.inlined.Has(id) || in.protected.Has(id) {
		return false
	}
	if op.IsPlaceholder() || op.NumOutputs() != 1 || in.refs(id) != 1 || len(in.consumers[id]) != 1 {
		return false
	}
	consumer := in.arena[in.consumers[id][0]]
	if consumer == nil || consumer.IsPlaceholder() {
		return false
	}
	if !coversReduction(consumer.ReduceAxis(), op.ReduceAxis()) {
		klog.V(2).Infof("tir.InlineGraph: %q not inlined into %q: its reduction is not covered", op.Name(), consumer.Name())
		return false
	}
	return true
}

// coversReduction returns whether the extents of the consumer's reduction axes include (as a
// multiset) the extents of the producer's reduction axes.
func coversReduction(consumer, producer []*te.IterVar) bool {
	if len(producer) == 0 {
		return true
	}
	available := make(map[int]int, len(consumer))
	for _, axis := range consumer {
		available[axis.Extent()]++
	}
	for _, axis := range producer {
		if available[axis.Extent()] == 0 {
			return false
		}
		available[axis.Extent()]--
	}
	return true
}

// inline fuses the operation into its sole consumer, and updates the reference counts.
func (in *inliner) inline(id te.OpID) {
	producer := in.arena[id]
	consumerID := in.consumers[id][0]
	consumer := in.arena[consumerID]
	body := make([]te.Expr, len(consumer.Body()))
	for ii, expr := range consumer.Body() {
		body[ii] = replaceLoads(expr, producer)
	}
	in.arena[consumerID] = consumer.WithBody(body)
	delete(in.arena, id)
	in.inlined.Insert(id)
	klog.V(2).Infof("tir.InlineGraph: %q inlined into %q", producer.Name(), consumer.Name())

	// The producer's inputs are now read by the consumer.
	for _, input := range producer.InputTensors() {
		inputID := input.Op().ID()
		if _, found := in.arena[inputID]; !found {
			continue
		}
		consumers := in.consumers[inputID]
		consumers = slices.DeleteFunc(consumers, func(c te.OpID) bool { return c == id })
		if !slices.Contains(consumers, consumerID) {
			consumers = append(consumers, consumerID)
		}
		in.consumers[inputID] = consumers
	}
	// Producers of the new consumer may have become eligible.
	for _, input := range in.arena[consumerID].InputTensors() {
		if inputID := input.Op().ID(); in.eligible(inputID) {
			in.worklist.Enqueue(inputID)
		}
	}
}

// replaceLoads replaces every load of producer's output in expr by the producer's body, with the
// producer's axes substituted by the load indices.
//
// Each copy of the body gets its own fresh reduction axes, so it never captures a reduction axis
// of the consumer, or of another copy.
func replaceLoads(expr te.Expr, producer *te.Operation) te.Expr {
	return te.Rewrite(expr, func(e te.Expr) (te.Expr, bool) {
		load, ok := e.(*te.Load)
		if !ok || load.Tensor.Op().ID() != producer.ID() {
			return nil, false
		}
		body := producer.Body()[load.Tensor.Index()]
		if reduceAxis := producer.ReduceAxis(); len(reduceAxis) > 0 {
			fresh := xslices.Map(reduceAxis, func(axis *te.IterVar) *te.IterVar {
				return te.ReduceAxis(axis.Name(), axis.Extent())
			})
			s, err := tag.NewSubstitution(nil, nil, nil, nil, reduceAxis, fresh)
			if err != nil {
				exceptions.Panicf("renaming reduction axes of %q: %+v", producer.Name(), err)
			}
			body = s.Apply(body)
		}
		vars := make(map[te.VarID]te.Expr, len(load.Indices))
		for ii, index := range load.Indices {
			vars[producer.Axis()[ii].ID()] = replaceLoads(index, producer)
		}
		return te.SubstituteVars(body, vars), true
	})
}

// relink rebuilds the operations, in topological order, so every load points to the final
// version of its producer, and creates the new graph.
func (in *inliner) relink() (*Graph, error) {
	for _, op := range in.g.Ops() {
		current, found := in.arena[op.ID()]
		if !found {
			continue
		}
		changed := false
		body := make([]te.Expr, len(current.Body()))
		for ii, expr := range current.Body() {
			body[ii] = in.relinkExpr(expr)
			changed = changed || body[ii] != expr
		}
		if changed {
			in.arena[op.ID()] = current.WithBody(body)
		}
	}

	g := in.g
	newG := &Graph{
		inputs:    in.latest(g.inputs),
		outputs:   in.latest(g.outputs),
		weights:   in.latest(g.weights),
		training:  g.training,
		labels:    in.latest(g.labels),
		gradients: in.latest(g.gradients),
		updates:   in.latest(g.updates),
	}
	if g.training {
		newG.loss = in.latest([]te.Tensor{g.loss})[0]
		newG.lr = in.latest([]te.Tensor{g.lr})[0]
	}
	if err := newG.build(); err != nil {
		return nil, errors.WithMessage(err, "tir.InlineGraph() failed to rebuild the graph")
	}
	return newG, nil
}

// relinkExpr replaces loads of outdated versions of operations by loads of their latest version.
func (in *inliner) relinkExpr(expr te.Expr) te.Expr {
	return te.Rewrite(expr, func(e te.Expr) (te.Expr, bool) {
		load, ok := e.(*te.Load)
		if !ok {
			return nil, false
		}
		latest, found := in.arena[load.Tensor.Op().ID()]
		if !found || latest == load.Tensor.Op() {
			return nil, false
		}
		indices := make([]te.Expr, len(load.Indices))
		for jj, index := range load.Indices {
			indices[jj] = in.relinkExpr(index)
		}
		return &te.Load{Tensor: latest.Output(load.Tensor.Index()), Indices: indices}, true
	})
}

// latest returns the tensors pointing to the final version of their operations.
func (in *inliner) latest(tensors []te.Tensor) []te.Tensor {
	if tensors == nil {
		return nil
	}
	result := make([]te.Tensor, len(tensors))
	for ii, t := range tensors {
		result[ii] = t
		if op, found := in.arena[t.Op().ID()]; found {
			result[ii] = op.Output(t.Index())
		}
	}
	return result
}
