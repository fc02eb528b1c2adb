// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tir

import (
	"fmt"
	"strings"

	"github.com/gomlx/tgraph/pkg/core/te"
	"github.com/gomlx/tgraph/pkg/support/xslices"
	"github.com/gomlx/tgraph/pkg/tg/tag"
)

// Tag returns the structural signature of the whole graph: the tag of each operation, in
// topological order, how they are wired to each other and to the declared tensors.
//
// Two graphs with the same tag have their operations in the same positions of Ops(), with the
// same tags, and with their inputs (in the order returned by tag.Tensors) in the same positions.
func (g *Graph) Tag() string {
	local := make(map[te.OpID]int, len(g.Ops()))
	for ii, op := range g.Ops() {
		local[op.ID()] = ii
	}
	boundary := make(map[te.TensorKey]string)
	nameBoundary := func(prefix string, tensors []te.Tensor) {
		for ii, t := range tensors {
			if _, found := boundary[t.Key()]; !found {
				boundary[t.Key()] = fmt.Sprintf("%s%d", prefix, ii)
			}
		}
	}
	nameBoundary("in", g.inputs)
	nameBoundary("w", g.weights)
	if g.training {
		nameBoundary("l", g.labels)
		nameBoundary("lr", []te.Tensor{g.lr})
	}
	ref := func(t te.Tensor) string {
		if name, found := boundary[t.Key()]; found {
			return name
		}
		if pos, found := local[t.Op().ID()]; found {
			return fmt.Sprintf("op%d.%d", pos, t.Index())
		}
		return "?"
	}
	refs := func(tensors []te.Tensor) string {
		return strings.Join(xslices.Map(tensors, ref), ",")
	}

	var sb strings.Builder
	if g.training {
		sb.WriteString("training")
	} else {
		sb.WriteString("inference")
	}
	for _, list := range [][]te.Tensor{g.inputs, g.weights, g.labels} {
		sb.WriteByte('|')
		for ii, t := range list {
			if ii > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(t.Shape().String())
		}
	}
	for ii, op := range g.Ops() {
		fmt.Fprintf(&sb, "\nop%d{%s}<-(%s)", ii, tag.FromOperation(op), refs(tag.Tensors(op.Body())))
	}
	fmt.Fprintf(&sb, "\noutputs(%s)", refs(g.outputs))
	if g.training {
		fmt.Fprintf(&sb, " loss(%s) gradients(%s) updates(%s)", ref(g.loss), refs(g.gradients), refs(g.updates))
	}
	return sb.String()
}
