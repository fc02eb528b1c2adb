// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package tgerrors defines the error kinds returned by the graph transformation passes.
//
// Errors are always returned wrapped (with github.com/pkg/errors) with a description and a
// stack trace, so test for the kind with errors.Is:
//
//	g, err := tir.MakeTraining(...)
//	if errors.Is(err, tgerrors.ErrArityMismatch) { ... }
//
// All of these are deterministic logic errors, never transient: retrying the same call fails
// the same way.
package tgerrors

import "github.com/pkg/errors"

var (
	// ErrDanglingReference is returned when a tensor reachable from the declared outputs is not
	// rooted in the declared inputs, weights (or labels/learning-rate for training graphs).
	ErrDanglingReference = errors.New("dangling reference")

	// ErrArityMismatch is returned when lists that must be parallel have different lengths:
	// weights/gradients/updates of a training graph, or the argument lists of a substitution.
	ErrArityMismatch = errors.New("arity mismatch")

	// ErrCyclicPartition is returned when the graph marks induce a cycle among subgraphs.
	ErrCyclicPartition = errors.New("cyclic partition")

	// ErrAxisNotFound is returned when an axis does not survive into the requested output.
	// It is a "not found" result, callers may choose to treat it as non-fatal.
	ErrAxisNotFound = errors.New("axis not found")

	// ErrMissingMark is returned when a computed operation reachable from the outputs has no mark.
	ErrMissingMark = errors.New("missing graph mark")

	// ErrInvalidGraph is returned for malformed graph arguments (e.g. an invalid tensor).
	ErrInvalidGraph = errors.New("invalid graph")

	// ErrTagMismatch is returned when replaying a schedule between graphs with different tags.
	ErrTagMismatch = errors.New("tag mismatch")
)
