// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package usage counts how operations and tensors are referenced within a region of a graph.
//
// The region is given by its roots (the tensors consumed from outside, typically the outputs of a
// graph) and, optionally, a boundary: tensors fed from outside the region, whose producers are not
// part of it even if they are compute operations.
package usage

import (
	"github.com/gomlx/tgraph/pkg/core/te"
	"github.com/gomlx/tgraph/pkg/support/sets"
)

// Counter holds the consumer relationships of the operations of a region.
//
// It is built once (NewCounter or NewBoundedCounter) and read-only thereafter, so it can be
// shared among goroutines.
type Counter struct {
	roots    []te.Tensor
	boundary sets.Set[te.TensorKey]

	// ops in topological order: producers come before their consumers.
	ops  []*te.Operation
	byID map[te.OpID]*te.Operation

	// consumers of each operation, distinct and in discovery order.
	consumers map[te.OpID][]te.OpID

	// rootUses counts how many times an output of the operation is listed as a root.
	rootUses map[te.OpID]int
}

// NewCounter walks the graph backwards from roots, through all producers.
func NewCounter(roots ...te.Tensor) *Counter {
	return NewBoundedCounter(roots, nil)
}

// NewBoundedCounter walks the graph backwards from roots, without crossing the boundary tensors:
// a Load of a boundary tensor is not an edge of the region.
func NewBoundedCounter(roots []te.Tensor, boundary []te.Tensor) *Counter {
	c := &Counter{
		roots:     roots,
		boundary:  sets.MakeWith(te.Keys(boundary)...),
		byID:      make(map[te.OpID]*te.Operation),
		consumers: make(map[te.OpID][]te.OpID),
		rootUses:  make(map[te.OpID]int),
	}
	for _, root := range roots {
		if !root.Ok() || c.boundary.Has(root.Key()) {
			continue
		}
		c.rootUses[root.Op().ID()]++
		c.visit(root.Op())
	}
	return c
}

// visit does a post-order traversal, so ops are appended after all their producers.
func (c *Counter) visit(op *te.Operation) {
	if _, found := c.byID[op.ID()]; found {
		return
	}
	c.byID[op.ID()] = op
	for _, input := range op.InputTensors() {
		if c.boundary.Has(input.Key()) {
			continue
		}
		producer := input.Op()
		c.addConsumer(producer.ID(), op.ID())
		c.visit(producer)
	}
	c.ops = append(c.ops, op)
}

func (c *Counter) addConsumer(producer, consumer te.OpID) {
	for _, existing := range c.consumers[producer] {
		if existing == consumer {
			return
		}
	}
	c.consumers[producer] = append(c.consumers[producer], consumer)
}

// Roots of the region.
func (c *Counter) Roots() []te.Tensor { return c.roots }

// IsBoundary returns whether the tensor is fed from outside the region.
func (c *Counter) IsBoundary(t te.Tensor) bool { return c.boundary.Has(t.Key()) }

// Ops returns the operations of the region in topological order (producers first).
// The returned slice must not be modified.
func (c *Counter) Ops() []*te.Operation { return c.ops }

// Op returns the operation with the given id, or nil if it is not in the region.
func (c *Counter) Op(id te.OpID) *te.Operation { return c.byID[id] }

// Contains returns whether op is part of the region.
func (c *Counter) Contains(op *te.Operation) bool {
	_, found := c.byID[op.ID()]
	return found
}

// CountOperation returns how many distinct places reference op: the number of distinct consumer
// operations reading any of its outputs, plus the number of times its outputs are listed as
// roots of the region.
//
// An operation with a count above 1 is a fusion hazard: inlining it would duplicate its
// computation.
func (c *Counter) CountOperation(op *te.Operation) int {
	return len(c.consumers[op.ID()]) + c.rootUses[op.ID()]
}

// RootUses returns how many times outputs of op are listed as roots.
func (c *Counter) RootUses(op *te.Operation) int { return c.rootUses[op.ID()] }

// Consumers returns the distinct consumers of op within the region, in discovery order.
func (c *Counter) Consumers(op *te.Operation) []*te.Operation {
	ids := c.consumers[op.ID()]
	consumers := make([]*te.Operation, len(ids))
	for ii, id := range ids {
		consumers[ii] = c.byID[id]
	}
	return consumers
}

// ConsumerIDs returns a copy of the ids of the distinct consumers of the operation with the given id.
func (c *Counter) ConsumerIDs(id te.OpID) []te.OpID {
	return append([]te.OpID(nil), c.consumers[id]...)
}

// CountInputOccur counts how many times any tensor in inputs is read (each Load site counts)
// by the body of op.
func CountInputOccur(inputs []te.Tensor, op *te.Operation) int {
	keys := sets.MakeWith(te.Keys(inputs)...)
	count := 0
	for _, expr := range op.Body() {
		te.Walk(expr, func(e te.Expr) bool {
			if load, ok := e.(*te.Load); ok && keys.Has(load.Tensor.Key()) {
				count++
			}
			return true
		})
	}
	return count
}

// Ancestors returns the keys of all tensors the roots depend on, including the roots
// themselves, without crossing boundary tensors (boundary tensors reached are included).
func Ancestors(roots []te.Tensor, boundary []te.Tensor) sets.Set[te.TensorKey] {
	stop := sets.MakeWith(te.Keys(boundary)...)
	found := sets.Make[te.TensorKey]()
	visitedOps := sets.Make[te.OpID]()
	var visit func(t te.Tensor)
	visit = func(t te.Tensor) {
		found.Insert(t.Key())
		if stop.Has(t.Key()) || visitedOps.Has(t.Op().ID()) {
			return
		}
		visitedOps.Insert(t.Op().ID())
		for _, input := range t.Op().InputTensors() {
			visit(input)
		}
	}
	for _, root := range roots {
		if root.Ok() {
			visit(root)
		}
	}
	return found
}
