// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package tir holds the TIR graph: one logical computation (inference or training) given by
// its declared input, output and weight tensors (and, for training, labels, loss, gradients,
// learning rate and updates).
//
// A Graph references the operations of the tensor-expression graph, it doesn't copy them. It is
// immutable once built: transformations like InlineGraph return a new Graph, where the tensors
// keep their identities (te.TensorKey).
package tir

import (
	"fmt"
	"strings"

	"github.com/gomlx/tgraph/pkg/core/te"
	"github.com/gomlx/tgraph/pkg/support/sets"
	"github.com/gomlx/tgraph/pkg/tg/tgerrors"
	"github.com/gomlx/tgraph/pkg/tg/usage"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"k8s.io/klog/v2"
)

// Graph is a TIR graph. Create it with MakeInference or MakeTraining.
type Graph struct {
	inputs, outputs, weights []te.Tensor

	// Training only.
	training           bool
	labels             []te.Tensor
	loss, lr           te.Tensor
	gradients, updates []te.Tensor

	// counter of the region between the boundary and the roots. Its ops are the compute
	// operations of the graph, in topological order.
	counter *usage.Counter
}

// MakeInference creates an inference graph computing outputs from inputs and weights.
//
// Every tensor outputs depend on must be rooted in inputs or weights: a placeholder reached that
// is not declared makes it fail with an error wrapping tgerrors.ErrDanglingReference, listing
// all the dangling tensors.
func MakeInference(inputs, outputs, weights []te.Tensor) (*Graph, error) {
	g := &Graph{
		inputs:  inputs,
		outputs: outputs,
		weights: weights,
	}
	if err := g.build(); err != nil {
		return nil, err
	}
	klog.V(1).Infof("tir.MakeInference: %d ops, %d inputs, %d weights, %d outputs",
		len(g.Ops()), len(inputs), len(weights), len(outputs))
	return g, nil
}

// MakeTraining creates a training graph.
//
// weights, gradients and updates are parallel lists: gradients[i] is the gradient of the loss
// with respect to weights[i] and updates[i] its new value. They must have the same length and
// shapes, otherwise it fails with an error wrapping tgerrors.ErrArityMismatch.
//
// lr must be a scalar, otherwise it fails with an error wrapping tgerrors.ErrInvalidGraph.
//
// Rooting is validated as with MakeInference, with labels and lr as additional roots. Also, the
// loss must depend on every label and on at least one of the outputs (or be an output itself),
// otherwise it fails with an error wrapping tgerrors.ErrDanglingReference.
func MakeTraining(inputs, labels, outputs, weights []te.Tensor, loss te.Tensor, gradients []te.Tensor, lr te.Tensor, updates []te.Tensor) (*Graph, error) {
	if len(weights) != len(gradients) || len(weights) != len(updates) {
		return nil, errors.Wrapf(tgerrors.ErrArityMismatch,
			"training graph with %d weights, %d gradients and %d updates", len(weights), len(gradients), len(updates))
	}
	g := &Graph{
		inputs:    inputs,
		outputs:   outputs,
		weights:   weights,
		training:  true,
		labels:    labels,
		loss:      loss,
		lr:        lr,
		gradients: gradients,
		updates:   updates,
	}
	if !loss.Ok() || !lr.Ok() {
		return nil, errors.Wrapf(tgerrors.ErrInvalidGraph, "training graph requires a loss and a learning rate")
	}
	if lr.Rank() != 0 {
		return nil, errors.Wrapf(tgerrors.ErrInvalidGraph, "learning rate %s must be a scalar, got shape %s", lr.Name(), lr.Shape())
	}
	for ii, w := range weights {
		if !w.Ok() || !gradients[ii].Ok() || !updates[ii].Ok() {
			continue // Reported by build.
		}
		if !gradients[ii].Shape().Equal(w.Shape()) || !updates[ii].Shape().Equal(w.Shape()) {
			return nil, errors.Wrapf(tgerrors.ErrArityMismatch,
				"weight #%d %s has shape %s, but its gradient is shaped %s and its update %s",
				ii, w.Name(), w.Shape(), gradients[ii].Shape(), updates[ii].Shape())
		}
	}
	if err := g.build(); err != nil {
		return nil, err
	}
	if err := g.validateLoss(); err != nil {
		return nil, err
	}
	klog.V(1).Infof("tir.MakeTraining: %d ops, %d inputs, %d labels, %d weights, %d outputs",
		len(g.Ops()), len(inputs), len(labels), len(weights), len(outputs))
	return g, nil
}

// build validates the declared tensors and the rooting of the graph, and creates the counter.
func (g *Graph) build() error {
	var err error
	for _, t := range append(g.Roots(), g.Boundary()...) {
		if !t.Ok() {
			return errors.Wrapf(tgerrors.ErrInvalidGraph, "invalid (zero value) tensor declared in graph")
		}
	}
	g.counter = usage.NewBoundedCounter(g.Roots(), g.Boundary())
	for _, op := range g.counter.Ops() {
		if op.IsPlaceholder() {
			err = multierr.Append(err, errors.Wrapf(tgerrors.ErrDanglingReference,
				"placeholder %q (#%d) is used but not declared as an input or weight", op.Name(), op.ID()))
		}
	}
	return err
}

func (g *Graph) validateLoss() error {
	if g.isOutput(g.loss) {
		return nil
	}
	ancestors := usage.Ancestors([]te.Tensor{g.loss}, g.Boundary())
	var err error
	for _, label := range g.labels {
		if !ancestors.Has(label.Key()) {
			err = multierr.Append(err, errors.Wrapf(tgerrors.ErrDanglingReference,
				"loss %s doesn't depend on label %s", g.loss, label))
		}
	}
	if len(g.outputs) > 0 {
		found := false
		for _, output := range g.outputs {
			if ancestors.Has(output.Key()) {
				found = true
				break
			}
		}
		if !found {
			err = multierr.Append(err, errors.Wrapf(tgerrors.ErrDanglingReference,
				"loss %s doesn't depend on any of the outputs", g.loss))
		}
	}
	return err
}

func (g *Graph) isOutput(t te.Tensor) bool {
	for _, output := range g.outputs {
		if output.Same(t) {
			return true
		}
	}
	return false
}

// Inputs of the graph.
func (g *Graph) Inputs() []te.Tensor { return g.inputs }

// Outputs of the graph.
func (g *Graph) Outputs() []te.Tensor { return g.outputs }

// Weights of the graph.
func (g *Graph) Weights() []te.Tensor { return g.weights }

// Labels of a training graph.
func (g *Graph) Labels() []te.Tensor { return g.labels }

// Loss of a training graph, or an invalid tensor.
func (g *Graph) Loss() te.Tensor { return g.loss }

// LR is the learning rate of a training graph, or an invalid tensor.
func (g *Graph) LR() te.Tensor { return g.lr }

// Gradients of a training graph, one per weight.
func (g *Graph) Gradients() []te.Tensor { return g.gradients }

// Updates of a training graph, one per weight.
func (g *Graph) Updates() []te.Tensor { return g.updates }

// IsTraining returns whether this is a training graph.
func (g *Graph) IsTraining() bool { return g.training }

// Roots returns the tensors computed by the graph: outputs, then loss, gradients and updates for
// training graphs.
func (g *Graph) Roots() []te.Tensor {
	roots := append([]te.Tensor(nil), g.outputs...)
	if g.training {
		roots = append(roots, g.loss)
		roots = append(roots, g.gradients...)
		roots = append(roots, g.updates...)
	}
	return roots
}

// Boundary returns the tensors fed to the graph: inputs and weights, then labels and learning
// rate for training graphs.
func (g *Graph) Boundary() []te.Tensor {
	boundary := append([]te.Tensor(nil), g.inputs...)
	boundary = append(boundary, g.weights...)
	if g.training {
		boundary = append(boundary, g.labels...)
		boundary = append(boundary, g.lr)
	}
	return boundary
}

// Ops returns the compute operations of the graph in topological order.
// The returned slice must not be modified.
func (g *Graph) Ops() []*te.Operation { return g.counter.Ops() }

// Op returns the operation with the given id, or nil if it is not part of the graph.
func (g *Graph) Op(id te.OpID) *te.Operation { return g.counter.Op(id) }

// Contains returns whether op is computed by the graph.
func (g *Graph) Contains(op *te.Operation) bool { return g.counter.Contains(op) }

// IsBoundary returns whether t is fed to the graph.
func (g *Graph) IsBoundary(t te.Tensor) bool { return g.counter.IsBoundary(t) }

// CountOperation returns how many distinct consumers within the graph read an output of op,
// plus how many times its outputs are declared as roots of the graph.
func (g *Graph) CountOperation(op *te.Operation) int { return g.counter.CountOperation(op) }

// Consumers returns the distinct operations of the graph reading an output of op.
func (g *Graph) Consumers(op *te.Operation) []*te.Operation { return g.counter.Consumers(op) }

// Counter returns the usage counter of the graph.
func (g *Graph) Counter() *usage.Counter { return g.counter }

// ProtectedOps returns the ids of the operations producing a root or boundary tensor: their
// outputs are referenced from outside the graph.
func (g *Graph) ProtectedOps() sets.Set[te.OpID] {
	protected := sets.Make[te.OpID]()
	for _, t := range g.Roots() {
		protected.Insert(t.Op().ID())
	}
	for _, t := range g.Boundary() {
		protected.Insert(t.Op().ID())
	}
	return protected
}

// Memory returns the number of bytes of all tensors produced by the graph's operations.
func (g *Graph) Memory() uintptr {
	var total uintptr
	for _, op := range g.Ops() {
		for _, output := range op.Outputs() {
			total += output.Shape().Memory()
		}
	}
	return total
}

func writeTensors(sb *strings.Builder, name string, tensors []te.Tensor) {
	if len(tensors) == 0 {
		return
	}
	names := make([]string, len(tensors))
	for ii, t := range tensors {
		names[ii] = t.String()
	}
	fmt.Fprintf(sb, "\t%s: %s\n", name, strings.Join(names, ", "))
}

// String implements fmt.Stringer.
func (g *Graph) String() string {
	var sb strings.Builder
	kind := "Inference"
	if g.training {
		kind = "Training"
	}
	fmt.Fprintf(&sb, "%sGraph {\n", kind)
	writeTensors(&sb, "inputs", g.inputs)
	writeTensors(&sb, "weights", g.weights)
	writeTensors(&sb, "labels", g.labels)
	if g.training {
		writeTensors(&sb, "lr", []te.Tensor{g.lr})
	}
	for _, op := range g.Ops() {
		fmt.Fprintf(&sb, "\t%s\n", op)
	}
	writeTensors(&sb, "outputs", g.outputs)
	if g.training {
		writeTensors(&sb, "loss", []te.Tensor{g.loss})
	}
	writeTensors(&sb, "gradients", g.gradients)
	writeTensors(&sb, "updates", g.updates)
	sb.WriteString("}")
	return sb.String()
}
