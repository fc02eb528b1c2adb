// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package multigraph splits a TIR graph into dependency-ordered fragments, each one a tir.Graph,
// and tags each fragment so fragments with the same structure can share one schedule.
//
// Training graphs are split along the phases of a training step: a forward fragment (outputs and
// loss), backward fragments (gradients, see GradientPolicy) and one update fragment per weight.
// Inference graphs are kept whole, unless a marker is given (see WithMarker).
package multigraph

import (
	"slices"

	"github.com/emirpasic/gods/v2/queues/priorityqueue"
	"github.com/gomlx/tgraph/internal/workerspool"
	"github.com/gomlx/tgraph/pkg/core/te"
	"github.com/gomlx/tgraph/pkg/tg/tgerrors"
	"github.com/gomlx/tgraph/pkg/tg/tir"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Key identifies a fragment within a MultiGraph.
type Key int

// Kind of fragment.
//
//go:generate go tool enumer -type=Kind -transform=lower -output=gen_kind_enumer.go multigraph.go
type Kind int

const (
	// Inference fragments hold (part of) an inference graph.
	Inference Kind = iota

	// Forward fragment computes the outputs and the loss of a training graph.
	Forward

	// Backward fragments compute gradients.
	Backward

	// Update fragments compute the new value of a weight.
	Update
)

// Attrs are the attributes of a fragment.
type Attrs struct {
	Kind Kind

	// Predecessors are the fragments producing inputs of this one, Successors those consuming its
	// outputs. Both sorted by key.
	Predecessors, Successors []Key

	// NumPredecessors is len(Predecessors).
	NumPredecessors int

	// Tag is the structural signature of the fragment (tir.Graph.Tag).
	Tag string
}

// MultiGraph is a set of tir.Graph fragments, linked by the tensors produced by one fragment and
// consumed by others. The links form a directed acyclic graph.
type MultiGraph struct {
	id     uuid.UUID
	source *tir.Graph
	policy GradientPolicy

	graphs []*tir.Graph
	attrs  []*Attrs
	order  []Key
}

// ID is a unique identifier of the MultiGraph, used in logs.
func (mg *MultiGraph) ID() uuid.UUID { return mg.id }

// Source returns the graph that was split.
func (mg *MultiGraph) Source() *tir.Graph { return mg.source }

// Policy returns the gradient policy used, after resolving Auto. It is Merged or PerGradient for
// training graphs, and Auto for inference graphs.
func (mg *MultiGraph) Policy() GradientPolicy { return mg.policy }

// Len returns the number of fragments.
func (mg *MultiGraph) Len() int { return len(mg.graphs) }

// Keys of all fragments, in order of creation.
func (mg *MultiGraph) Keys() []Key {
	keys := make([]Key, len(mg.graphs))
	for ii := range keys {
		keys[ii] = Key(ii)
	}
	return keys
}

// Graph returns the fragment with the given key, or nil if there is no such fragment.
func (mg *MultiGraph) Graph(key Key) *tir.Graph {
	if int(key) < 0 || int(key) >= len(mg.graphs) {
		return nil
	}
	return mg.graphs[key]
}

// Attrs returns the attributes of the fragment with the given key, or nil if there is no such fragment.
func (mg *MultiGraph) Attrs(key Key) *Attrs {
	if int(key) < 0 || int(key) >= len(mg.attrs) {
		return nil
	}
	return mg.attrs[key]
}

// Order returns the keys of the fragments in a valid execution order: every fragment comes after
// the fragments it depends on. Ties are broken by key, so forward fragments come first.
func (mg *MultiGraph) Order() []Key { return slices.Clone(mg.order) }

// CallOrder returns the fragments grouped in levels: fragments of one level only depend on
// fragments of previous levels, and can be called concurrently.
func (mg *MultiGraph) CallOrder() [][]Key {
	level := make([]int, len(mg.graphs))
	var levels [][]Key
	for _, key := range mg.order {
		for _, pred := range mg.attrs[key].Predecessors {
			level[key] = max(level[key], level[pred]+1)
		}
		if level[key] == len(levels) {
			levels = append(levels, nil)
		}
		levels[level[key]] = append(levels[level[key]], key)
	}
	for _, keys := range levels {
		slices.Sort(keys)
	}
	return levels
}

// Representatives maps each fragment to the first fragment (in execution order) with the same tag.
// A schedule computed for the representative can be replayed on the fragment.
func (mg *MultiGraph) Representatives() map[Key]Key {
	firstByTag := make(map[string]Key, len(mg.graphs))
	reps := make(map[Key]Key, len(mg.graphs))
	for _, key := range mg.order {
		tag := mg.attrs[key].Tag
		if rep, found := firstByTag[tag]; found {
			reps[key] = rep
		} else {
			firstByTag[tag] = key
			reps[key] = key
		}
	}
	return reps
}

// Make splits the graph into fragments.
//
// It fails if the graph can't be split: e.g. a marker (see WithMarker) inconsistent with the
// graph dependencies makes it fail with an error wrapping tgerrors.ErrCyclicPartition.
func Make(g *tir.Graph, opts ...Option) (*MultiGraph, error) {
	if g == nil {
		return nil, errors.Wrapf(tgerrors.ErrInvalidGraph, "multigraph.Make(nil)")
	}
	cfg := newConfig(opts)
	mg := &MultiGraph{
		id:     uuid.New(),
		source: g,
	}
	var (
		frags []fragment
		err   error
	)
	switch {
	case g.IsTraining():
		frags, mg.policy, err = splitTraining(g, cfg)
	case cfg.marker != nil:
		frags, err = splitInference(g, cfg)
	default:
		frags = []fragment{{kind: Inference, graph: g}}
	}
	if err != nil {
		return nil, errors.WithMessagef(err, "multigraph.Make() of %d ops", len(g.Ops()))
	}
	if err = mg.link(frags); err != nil {
		return nil, err
	}
	mg.tagFragments(cfg)
	klog.V(1).Infof("multigraph %s: %d ops split into %d fragments (policy %s)", mg.id, len(g.Ops()), mg.Len(), mg.policy)
	return mg, nil
}

// fragment is a graph under construction, before it gets a key.
type fragment struct {
	kind  Kind
	graph *tir.Graph
}

// link creates the edges between fragments, over the tensors one fragment produces and others
// consume, and sorts them.
func (mg *MultiGraph) link(frags []fragment) error {
	mg.graphs = make([]*tir.Graph, len(frags))
	mg.attrs = make([]*Attrs, len(frags))
	producer := make(map[te.OpID]Key)
	for ii, frag := range frags {
		mg.graphs[ii] = frag.graph
		mg.attrs[ii] = &Attrs{Kind: frag.kind}
		for _, op := range frag.graph.Ops() {
			producer[op.ID()] = Key(ii)
		}
	}
	for ii, graph := range mg.graphs {
		key := Key(ii)
		for _, t := range graph.Boundary() {
			from, found := producer[t.Op().ID()]
			if !found || from == key || slices.Contains(mg.attrs[key].Predecessors, from) {
				continue
			}
			mg.attrs[key].Predecessors = append(mg.attrs[key].Predecessors, from)
			mg.attrs[from].Successors = append(mg.attrs[from].Successors, key)
		}
	}
	for _, attrs := range mg.attrs {
		slices.Sort(attrs.Predecessors)
		slices.Sort(attrs.Successors)
		attrs.NumPredecessors = len(attrs.Predecessors)
	}

	// Kahn's algorithm, ties broken by key.
	pending := make([]int, len(mg.attrs))
	ready := priorityqueue.NewWith[Key](func(a, b Key) int { return int(a) - int(b) })
	for ii, attrs := range mg.attrs {
		pending[ii] = attrs.NumPredecessors
		if pending[ii] == 0 {
			ready.Enqueue(Key(ii))
		}
	}
	for !ready.Empty() {
		key, _ := ready.Dequeue()
		mg.order = append(mg.order, key)
		for _, succ := range mg.attrs[key].Successors {
			pending[succ]--
			if pending[succ] == 0 {
				ready.Enqueue(succ)
			}
		}
	}
	if len(mg.order) != len(mg.graphs) {
		return errors.Wrapf(tgerrors.ErrCyclicPartition, "multigraph %s: fragments depend on each other", mg.id)
	}
	return nil
}

// tagFragments computes the tag of every fragment, in parallel.
func (mg *MultiGraph) tagFragments(cfg *config) {
	var pool *workerspool.Pool
	if cfg.parallelism == 1 || len(mg.graphs) == 1 {
		pool = workerspool.NewSequential()
	} else {
		pool = workerspool.New(cfg.parallelism)
	}
	pool.Map(len(mg.graphs), func(i int) {
		mg.attrs[i].Tag = mg.graphs[i].Tag()
	})
}
