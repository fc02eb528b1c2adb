// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package partition segments a graph into subgraphs, grouping operations by a mark given by an
// upstream analysis.
package partition

import (
	"fmt"
	"slices"
	"strings"

	"github.com/emirpasic/gods/v2/queues/priorityqueue"
	"github.com/gomlx/tgraph/pkg/core/te"
	"github.com/gomlx/tgraph/pkg/support/sets"
	"github.com/gomlx/tgraph/pkg/tg/tgerrors"
	"github.com/gomlx/tgraph/pkg/tg/usage"
	"github.com/pkg/errors"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/multierr"
	"k8s.io/klog/v2"
)

// Mark is an opaque label of an operation: operations with the same mark go to the same subgraph.
type Mark int

// GraphMark maps every compute operation of a graph to its Mark.
type GraphMark map[te.OpID]Mark

// Subgraph is one partition of the graph.
type Subgraph struct {
	// Mark shared by all operations of the subgraph.
	Mark Mark

	// Ops of the subgraph, in topological order.
	Ops []*te.Operation

	// Inputs are the tensors read by the subgraph that are produced outside of it:
	// placeholders or outputs of other subgraphs. In order of first use.
	Inputs []te.Tensor

	// Outputs are the tensors produced by the subgraph that are read by other subgraphs or are
	// declared outputs of the graph.
	Outputs []te.Tensor

	// Predecessors and Successors are the positions, in the slice returned by Partition, of the
	// subgraphs this one depends on, and of those depending on it.
	Predecessors, Successors []int
}

// String implements fmt.Stringer.
func (s *Subgraph) String() string {
	names := make([]string, len(s.Ops))
	for ii, op := range s.Ops {
		names[ii] = op.Name()
	}
	return fmt.Sprintf("Subgraph(mark=%d, ops=[%s], #inputs=%d, #outputs=%d)",
		s.Mark, strings.Join(names, ", "), len(s.Inputs), len(s.Outputs))
}

// group is a Subgraph under construction.
type group struct {
	*Subgraph
	rank         int
	inputSet     sets.Set[te.TensorKey]
	outputSet    sets.Set[te.TensorKey]
	predecessors sets.Set[int]
	successors   sets.Set[int]
}

// Partition groups the compute operations reachable from outputs by their mark.
//
// Operations are visited backwards from each output, in declaration order, and each mark seen
// creates a new subgraph. Placeholders are never part of a subgraph: they are inputs.
//
// The subgraphs are returned in topological order of their dependencies, ties broken by the
// order in which their marks were first seen.
//
// It fails with tgerrors.ErrMissingMark if a reachable compute operation has no mark, and with
// tgerrors.ErrCyclicPartition if the marks induce a cycle among subgraphs.
func Partition(marks GraphMark, outputs []te.Tensor) ([]*Subgraph, error) {
	groups := orderedmap.New[Mark, *group]()
	opMark := make(map[te.OpID]Mark)
	var err error

	// Reverse traversal: marks are created in order of first sight.
	visited := sets.Make[te.OpID]()
	var visit func(op *te.Operation)
	visit = func(op *te.Operation) {
		if visited.Has(op.ID()) {
			return
		}
		visited.Insert(op.ID())
		if op.IsPlaceholder() {
			return
		}
		mark, found := marks[op.ID()]
		if !found {
			err = multierr.Append(err, errors.Wrapf(tgerrors.ErrMissingMark, "operation %q (#%d)", op.Name(), op.ID()))
		} else {
			opMark[op.ID()] = mark
			if _, exists := groups.Get(mark); !exists {
				groups.Set(mark, &group{
					Subgraph:     &Subgraph{Mark: mark},
					rank:         groups.Len(),
					inputSet:     sets.Make[te.TensorKey](),
					outputSet:    sets.Make[te.TensorKey](),
					predecessors: sets.Make[int](),
					successors:   sets.Make[int](),
				})
			}
		}
		for _, input := range op.InputTensors() {
			visit(input.Op())
		}
	}
	for _, output := range outputs {
		if !output.Ok() {
			return nil, errors.Wrapf(tgerrors.ErrInvalidGraph, "invalid (zero value) output tensor given to Partition")
		}
		visit(output.Op())
	}
	if err != nil {
		return nil, err
	}

	byRank := make([]*group, 0, groups.Len())
	for pair := groups.Oldest(); pair != nil; pair = pair.Next() {
		byRank = append(byRank, pair.Value)
	}
	groupOf := func(op *te.Operation) *group {
		if op.IsPlaceholder() {
			return nil
		}
		g, _ := groups.Get(opMark[op.ID()])
		return g
	}
	addOutput := func(g *group, t te.Tensor) {
		if !g.outputSet.Has(t.Key()) {
			g.outputSet.Insert(t.Key())
			g.Outputs = append(g.Outputs, t)
		}
	}

	// Ops in topological order, and boundaries.
	counter := usage.NewCounter(outputs...)
	for _, op := range counter.Ops() {
		g := groupOf(op)
		if g == nil {
			continue
		}
		g.Ops = append(g.Ops, op)
		for _, input := range op.InputTensors() {
			producer := groupOf(input.Op())
			if producer == g {
				continue
			}
			if !g.inputSet.Has(input.Key()) {
				g.inputSet.Insert(input.Key())
				g.Inputs = append(g.Inputs, input)
			}
			if producer != nil {
				addOutput(producer, input)
				producer.successors.Insert(g.rank)
				g.predecessors.Insert(producer.rank)
			}
		}
	}
	for _, output := range outputs {
		if g := groupOf(output.Op()); g != nil {
			addOutput(g, output)
		}
	}

	order, err := topologicalOrder(byRank)
	if err != nil {
		return nil, err
	}
	position := make([]int, len(byRank))
	for pos, rank := range order {
		position[rank] = pos
	}
	subgraphs := make([]*Subgraph, len(order))
	for pos, rank := range order {
		g := byRank[rank]
		for pred := range g.predecessors {
			g.Predecessors = append(g.Predecessors, position[pred])
		}
		for succ := range g.successors {
			g.Successors = append(g.Successors, position[succ])
		}
		slices.Sort(g.Predecessors)
		slices.Sort(g.Successors)
		subgraphs[pos] = g.Subgraph
	}
	klog.V(1).Infof("Partition: %d operations in %d subgraphs", len(counter.Ops()), len(subgraphs))
	return subgraphs, nil
}

// topologicalOrder sorts the groups (Kahn's algorithm), breaking ties by rank. It returns the
// ranks in order.
func topologicalOrder(byRank []*group) ([]int, error) {
	pending := make([]int, len(byRank))
	ready := priorityqueue.NewWith[int](func(a, b int) int { return a - b })
	for rank, g := range byRank {
		pending[rank] = len(g.predecessors)
		if pending[rank] == 0 {
			ready.Enqueue(rank)
		}
	}
	order := make([]int, 0, len(byRank))
	for !ready.Empty() {
		rank, _ := ready.Dequeue()
		order = append(order, rank)
		for succ := range byRank[rank].successors {
			pending[succ]--
			if pending[succ] == 0 {
				ready.Enqueue(succ)
			}
		}
	}
	if len(order) != len(byRank) {
		var cyclic []string
		for rank, g := range byRank {
			if pending[rank] > 0 {
				cyclic = append(cyclic, fmt.Sprintf("%d", g.Mark))
			}
		}
		return nil, errors.Wrapf(tgerrors.ErrCyclicPartition, "subgraphs with marks [%s] depend on each other",
			strings.Join(cyclic, ", "))
	}
	return order, nil
}
