/*
Copyright 2025 The Kubernetes Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package movingaverage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RejectsNonPositiveWindow(t *testing.T) {
	t.Parallel()

	for _, windowSize := range []int{0, -1, -100} {
		_, err := New(windowSize)
		require.Error(t, err, "window size %d must be rejected", windowSize)
	}
}

func TestMovingAverage_PartialWindow(t *testing.T) {
	t.Parallel()

	m, err := New(5)
	require.NoError(t, err)

	assert.False(t, m.IsReady(), "a fresh average must not be ready")
	assert.Zero(t, m.Average())

	assert.InDelta(t, 10.0, m.Record(10), 1e-9)
	assert.InDelta(t, 15.0, m.Record(20), 1e-9)
	assert.InDelta(t, 20.0, m.Record(30), 1e-9)

	assert.False(t, m.IsReady(), "three observations must not fill a window of five")
	assert.Equal(t, int64(3), m.Count())
	assert.InDelta(t, 20.0, m.Average(), 1e-9)
}

func TestMovingAverage_FullWindowEvictsOldest(t *testing.T) {
	t.Parallel()

	m, err := New(3)
	require.NoError(t, err)

	m.Record(10)
	m.Record(20)
	m.Record(30)
	require.True(t, m.IsReady(), "the window is full after three observations")
	assert.InDelta(t, 20.0, m.Average(), 1e-9)

	// Evicts 10; the window is now {20, 30, 40}.
	assert.InDelta(t, 30.0, m.Record(40), 1e-9)
	// Evicts 20; the window is now {30, 40, 50}.
	assert.InDelta(t, 40.0, m.Record(50), 1e-9)

	assert.Equal(t, int64(5), m.Count(), "Count tracks all observations ever recorded")
	assert.True(t, m.IsReady(), "IsReady must stay true once the window has filled")
}

func TestMovingAverage_ReadyExactlyAtWindowSize(t *testing.T) {
	t.Parallel()

	const windowSize = 100
	m, err := New(windowSize)
	require.NoError(t, err)

	for i := 0; i < windowSize-1; i++ {
		m.Record(100)
		assert.False(t, m.IsReady(), "must not be ready at %d observations", i+1)
	}
	m.Record(100)
	assert.True(t, m.IsReady(), "must be ready at exactly %d observations", windowSize)
	assert.InDelta(t, 100.0, m.Average(), 1e-9)
}
