// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package multigraph

import (
	"strings"

	"github.com/gomlx/tgraph/pkg/core/te"
	"github.com/gomlx/tgraph/pkg/tg/partition"
	"github.com/pkg/errors"
)

// GradientPolicy defines how the backward pass of a training graph is split.
//
//go:generate go tool enumer -type=GradientPolicy -transform=snake -text -output=gen_gradientpolicy_enumer.go options.go
type GradientPolicy int

const (
	// Auto merges the backward pass into one fragment if the gradients share too much of their
	// computation (see WithMergeThreshold), and splits it per gradient otherwise.
	Auto GradientPolicy = iota

	// PerGradient creates one backward fragment per gradient. Operations shared by more than
	// one gradient go to the fragment of the first gradient (in declaration order) that needs them.
	PerGradient

	// Merged creates one backward fragment for all the gradients.
	Merged
)

// ParseGradientPolicy converts a policy name ("auto", "per_gradient" or "merged", case-insensitive,
// surrounding spaces ignored) to a GradientPolicy.
func ParseGradientPolicy(name string) (GradientPolicy, error) {
	policy, err := GradientPolicyString(strings.TrimSpace(name))
	if err != nil {
		return Auto, errors.Wrapf(err, "valid gradient policies are %q", GradientPolicyStrings())
	}
	return policy, nil
}

// DefaultMergeThreshold is the default shared computation ratio above which the Auto policy
// merges the backward fragments.
const DefaultMergeThreshold = 0.5

type config struct {
	policy      GradientPolicy
	threshold   float64
	marker      func(op *te.Operation) partition.Mark
	parallelism int
}

func newConfig(opts []Option) *config {
	cfg := &config{
		policy:    Auto,
		threshold: DefaultMergeThreshold,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Option configures Make and MakeAll.
type Option func(cfg *config)

// WithGradientPolicy sets how the backward pass of training graphs is split. Default is Auto.
func WithGradientPolicy(policy GradientPolicy) Option {
	return func(cfg *config) { cfg.policy = policy }
}

// WithMergeThreshold sets the ratio of the backward operations shared among gradients above which
// the Auto policy merges the backward pass into one fragment. Default is DefaultMergeThreshold.
func WithMergeThreshold(threshold float64) Option {
	return func(cfg *config) { cfg.threshold = threshold }
}

// WithMarker splits inference graphs using partition.Partition, with the marks given by marker for
// each compute operation. Without a marker, inference graphs are kept in one fragment.
//
// It is ignored for training graphs.
func WithMarker(marker func(op *te.Operation) partition.Mark) Option {
	return func(cfg *config) { cfg.marker = marker }
}

// WithParallelism limits the number of goroutines used to tag the fragments, and by MakeAll to
// process graphs concurrently. 0 (default) uses runtime.NumCPU(), 1 does everything
// sequentially.
func WithParallelism(parallelism int) Option {
	return func(cfg *config) { cfg.parallelism = parallelism }
}
