// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package workerspool

import (
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_Limit(t *testing.T) {
	const limit = 3
	pool := New(limit)
	require.Equal(t, limit, pool.MaxParallelism())

	var running, maxRunning, count atomic.Int32
	pool.Map(20, func(int) {
		current := running.Add(1)
		for {
			old := maxRunning.Load()
			if current <= old || maxRunning.CompareAndSwap(old, current) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		runtime.Gosched()
		running.Add(-1)
		count.Add(1)
	})
	assert.Equal(t, int32(20), count.Load())
	assert.LessOrEqual(t, int(maxRunning.Load()), limit)
}

func TestPool_Map(t *testing.T) {
	for _, pool := range []*Pool{New(0), New(2), New(-1), NewSequential()} {
		results := make([]int, 100)
		pool.Map(len(results), func(i int) { results[i] = i * i })
		for i, r := range results {
			require.Equal(t, i*i, r)
		}
	}
	assert.Equal(t, runtime.NumCPU(), New(0).MaxParallelism())
	assert.True(t, New(-1).IsUnlimited())

	// Sequential pools run the tasks inline.
	var ran bool
	NewSequential().WaitToStart(func() { ran = true })
	assert.True(t, ran)
}
