// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package schedule reuses the schedule of a fragment for every other fragment with the same tag.
//
// The schedules themselves are opaque (type parameter T): this package only stores them, keyed by
// tag, and replays the representative's bodies onto the tensors and axes of a matching fragment
// (see Replay), so the schedule found for one can be applied to the other.
package schedule

import (
	"sync"

	"github.com/gomlx/tgraph/pkg/tg/tir"
	"k8s.io/klog/v2"
)

type entry[T any] struct {
	rep   *tir.Graph
	value T
}

// Cache maps fragment tags to the representative fragment of the tag and its schedule.
// It is safe for concurrent use.
type Cache[T any] struct {
	mu      sync.RWMutex
	entries map[string]entry[T]
}

// NewCache returns an empty Cache.
func NewCache[T any]() *Cache[T] {
	return &Cache[T]{entries: make(map[string]entry[T])}
}

// Len returns the number of tags stored.
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Lookup returns the representative and the schedule stored for tag.
func (c *Cache[T]) Lookup(tag string) (rep *tir.Graph, value T, found bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, found := c.entries[tag]
	return e.rep, e.value, found
}

// Store stores the schedule of g under tag, unless there is already one: the first store wins.
// It returns the representative and schedule stored for the tag after the call.
func (c *Cache[T]) Store(tag string, g *tir.Graph, value T) (rep *tir.Graph, stored T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, found := c.entries[tag]; found {
		return e.rep, e.value
	}
	c.entries[tag] = entry[T]{rep: g, value: value}
	return g, value
}

// GetOrCompute returns the schedule stored for tag, or computes it for g with compute and stores it.
//
// compute is called without holding any lock: concurrent calls for the same tag may compute it more
// than once, but only the first one stored is returned.
func (c *Cache[T]) GetOrCompute(tag string, g *tir.Graph, compute func(g *tir.Graph) (T, error)) (rep *tir.Graph, value T, err error) {
	if rep, value, found := c.Lookup(tag); found {
		klog.V(2).Infof("schedule cache hit for a graph of %d ops", len(g.Ops()))
		return rep, value, nil
	}
	value, err = compute(g)
	if err != nil {
		var zero T
		return nil, zero, err
	}
	rep, value = c.Store(tag, g, value)
	return rep, value, nil
}
