// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package multigraph

import (
	"github.com/gomlx/tgraph/pkg/core/te"
	"github.com/gomlx/tgraph/pkg/support/sets"
	"github.com/gomlx/tgraph/pkg/support/xslices"
	"github.com/gomlx/tgraph/pkg/tg/partition"
	"github.com/gomlx/tgraph/pkg/tg/tgerrors"
	"github.com/gomlx/tgraph/pkg/tg/tir"
	"github.com/gomlx/tgraph/pkg/tg/usage"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// splitter assigns the operations of a graph to fragments.
type splitter struct {
	g        *tir.Graph
	roots    sets.Set[te.TensorKey]
	weights  sets.Set[te.TensorKey]
	readers  map[te.TensorKey][]te.OpID
	assigned sets.Set[te.OpID]
	frags    []fragment
}

func newSplitter(g *tir.Graph) *splitter {
	s := &splitter{
		g:        g,
		roots:    sets.MakeWith(te.Keys(g.Roots())...),
		weights:  sets.MakeWith(te.Keys(g.Weights())...),
		readers:  make(map[te.TensorKey][]te.OpID),
		assigned: sets.Make[te.OpID](),
	}
	for _, op := range g.Ops() {
		for _, input := range op.InputTensors() {
			s.readers[input.Key()] = append(s.readers[input.Key()], op.ID())
		}
	}
	return s
}

// ancestry returns the ids of the operations of the graph the roots depend on.
func (s *splitter) ancestry(roots ...te.Tensor) sets.Set[te.OpID] {
	ids := sets.Make[te.OpID]()
	for _, op := range usage.NewBoundedCounter(roots, s.g.Boundary()).Ops() {
		ids.Insert(op.ID())
	}
	return ids
}

// claim creates a fragment with the operations of members not yet assigned to another fragment.
// Nothing is created if all of them are already assigned.
func (s *splitter) claim(kind Kind, members sets.Set[te.OpID]) error {
	if taken := members.Intersect(s.assigned); len(taken) > 0 {
		klog.V(2).Infof("multigraph: %d ops of %s fragment #%d already claimed by earlier fragments: %v",
			len(taken), kind, len(s.frags), sets.Sorted(taken))
		members = members.Sub(taken)
	}
	if len(members) == 0 {
		return nil
	}
	s.assigned.Insert(sets.Sorted(members)...)
	frag, err := s.build(members)
	if err != nil {
		return errors.WithMessagef(err, "building %s fragment #%d", kind, len(s.frags))
	}
	s.frags = append(s.frags, fragment{kind: kind, graph: frag})
	return nil
}

// build creates the graph of a fragment with the given operations: its inputs are the tensors
// its operations read from outside, and its outputs the tensors read by other fragments or
// declared as roots of the whole graph.
func (s *splitter) build(members sets.Set[te.OpID]) (*tir.Graph, error) {
	var inputs, weights, outputs []te.Tensor
	seen := sets.Make[te.TensorKey]()
	for _, op := range s.g.Ops() {
		if !members.Has(op.ID()) {
			continue
		}
		for _, input := range op.InputTensors() {
			if members.Has(input.Op().ID()) || seen.Has(input.Key()) {
				continue
			}
			seen.Insert(input.Key())
			if s.weights.Has(input.Key()) {
				weights = append(weights, input)
			} else {
				inputs = append(inputs, input)
			}
		}
		for _, output := range op.Outputs() {
			if s.roots.Has(output.Key()) || s.readOutside(output, members) {
				outputs = append(outputs, output)
			}
		}
	}
	return tir.MakeInference(inputs, outputs, weights)
}

func (s *splitter) readOutside(t te.Tensor, members sets.Set[te.OpID]) bool {
	for _, reader := range s.readers[t.Key()] {
		if !members.Has(reader) {
			return true
		}
	}
	return false
}

// sharedRatio returns the fraction of the operations in the union of the ancestries that are
// needed by more than one of them.
func sharedRatio(ancestries []sets.Set[te.OpID]) float64 {
	uses := make(map[te.OpID]int)
	for _, ancestry := range ancestries {
		for id := range ancestry {
			uses[id]++
		}
	}
	if len(uses) == 0 {
		return 0
	}
	shared := 0
	for _, count := range uses {
		if count > 1 {
			shared++
		}
	}
	return float64(shared) / float64(len(uses))
}

// splitTraining splits a training graph into the forward fragment, the backward fragments and
// one update fragment per weight. Empty fragments are not created.
func splitTraining(g *tir.Graph, cfg *config) ([]fragment, GradientPolicy, error) {
	s := newSplitter(g)
	forwardRoots := append([]te.Tensor{}, g.Outputs()...)
	forwardRoots = append(forwardRoots, g.Loss())
	forward := s.ancestry(forwardRoots...)

	ancestries := make([]sets.Set[te.OpID], len(g.Gradients()))
	for ii, grad := range g.Gradients() {
		ancestries[ii] = s.ancestry(grad).Sub(forward)
	}
	policy := cfg.policy
	if policy == Auto {
		ratio := sharedRatio(ancestries)
		policy = PerGradient
		if ratio > cfg.threshold {
			policy = Merged
		}
		klog.V(1).Infof("multigraph: gradients share %.1f%% of the backward ops, policy %s", 100*ratio, policy)
	}

	if err := s.claim(Forward, forward); err != nil {
		return nil, policy, err
	}
	if policy == Merged {
		backward := sets.Make[te.OpID]()
		for _, ancestry := range ancestries {
			backward = backward.Union(ancestry)
		}
		if err := s.claim(Backward, backward); err != nil {
			return nil, policy, err
		}
	} else {
		for _, ancestry := range ancestries {
			if err := s.claim(Backward, ancestry); err != nil {
				return nil, policy, err
			}
		}
	}
	for _, update := range g.Updates() {
		if err := s.claim(Update, s.ancestry(update)); err != nil {
			return nil, policy, err
		}
	}
	if len(s.assigned) != len(g.Ops()) {
		return nil, policy, errors.Wrapf(tgerrors.ErrInvalidGraph,
			"%d operations not assigned to any fragment", len(g.Ops())-len(s.assigned))
	}
	return s.frags, policy, nil
}

// splitInference splits an inference graph with partition.Partition, using cfg.marker.
func splitInference(g *tir.Graph, cfg *config) ([]fragment, error) {
	marks := make(partition.GraphMark)
	for _, op := range usage.NewCounter(g.Outputs()...).Ops() {
		if !op.IsPlaceholder() {
			marks[op.ID()] = cfg.marker(op)
		}
	}
	subgraphs, err := partition.Partition(marks, g.Outputs())
	if err != nil {
		return nil, err
	}
	s := newSplitter(g)
	for _, subgraph := range subgraphs {
		members := sets.MakeWith(xslices.Map(xslices.Filter(subgraph.Ops, g.Contains), (*te.Operation).ID)...)
		if err := s.claim(Inference, members); err != nil {
			return nil, err
		}
	}
	return s.frags, nil
}
