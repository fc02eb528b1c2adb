// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package multigraph

import (
	"context"
	"runtime"

	"github.com/gomlx/tgraph/pkg/tg/tir"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// MakeAll splits each of the graphs with Make, concurrently. Results are returned in the same
// order as graphs.
//
// It stops at the first error, or when ctx is cancelled.
func MakeAll(ctx context.Context, graphs []*tir.Graph, opts ...Option) ([]*MultiGraph, error) {
	cfg := newConfig(opts)
	limit := cfg.parallelism
	if limit == 0 {
		limit = runtime.NumCPU()
	}
	results := make([]*MultiGraph, len(graphs))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(limit)
	for ii, g := range graphs {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			mg, err := Make(g, opts...)
			if err != nil {
				return errors.WithMessagef(err, "graph #%d", ii)
			}
			results[ii] = mg
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
