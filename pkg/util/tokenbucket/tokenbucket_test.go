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

package tokenbucket

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualClock is a settable monotonic clock.
type manualClock struct {
	now atomic.Int64
}

func (c *manualClock) Now() int64 {
	return c.now.Load()
}

func (c *manualClock) Advance(delta int64) {
	c.now.Add(delta)
}

func TestNew_RejectsInvalidParameters(t *testing.T) {
	t.Parallel()

	clock := &manualClock{}
	testCases := []struct {
		name  string
		rate  float64
		burst float64
	}{
		{name: "ZeroRate", rate: 0, burst: 10},
		{name: "NegativeRate", rate: -1, burst: 10},
		{name: "ZeroBurst", rate: 1, burst: 0},
		{name: "NegativeBurst", rate: 1, burst: -10},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(clock.Now, tc.rate, tc.burst)
			require.Error(t, err)
		})
	}
}

func TestTokenBucket_StartsFull(t *testing.T) {
	t.Parallel()

	clock := &manualClock{}
	bucket, err := New(clock.Now, 0.001, 3)
	require.NoError(t, err)

	// The initial burst allows exactly three requests without any clock
	// movement.
	assert.True(t, bucket.Request())
	assert.True(t, bucket.Request())
	assert.True(t, bucket.Request())
	assert.False(t, bucket.Request())
}

func TestTokenBucket_RefillsAtRate(t *testing.T) {
	t.Parallel()

	clock := &manualClock{}
	bucket, err := New(clock.Now, 0.5, 10)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.True(t, bucket.Request(), "initial burst request %d must be granted", i)
	}
	require.False(t, bucket.Request())

	// Two clock units at rate 0.5 accrue exactly one token.
	clock.Advance(2)
	assert.True(t, bucket.Request())
	assert.False(t, bucket.Request())

	// A single clock unit accrues half a token: not enough.
	clock.Advance(1)
	assert.False(t, bucket.Request())
	// Fractions accumulate across refills.
	clock.Advance(1)
	assert.True(t, bucket.Request())
}

func TestTokenBucket_RefillClampsAtBurst(t *testing.T) {
	t.Parallel()

	clock := &manualClock{}
	bucket, err := New(clock.Now, 1, 5)
	require.NoError(t, err)

	// A huge idle window must not accumulate more than `burst` tokens.
	clock.Advance(1_000_000)
	for i := 0; i < 5; i++ {
		require.True(t, bucket.Request(), "request %d within burst must be granted", i)
	}
	assert.False(t, bucket.Request())
}

func TestTokenBucket_DeniedRequestDoesNotDeduct(t *testing.T) {
	t.Parallel()

	clock := &manualClock{}
	bucket, err := New(clock.Now, 0.25, 1)
	require.NoError(t, err)

	require.True(t, bucket.Request())
	for i := 0; i < 3; i++ {
		require.False(t, bucket.Request(), "denied request %d must not consume partial tokens", i)
	}

	// Four clock units at rate 0.25 accrue one token, proving the denials
	// above left the fractional balance untouched.
	clock.Advance(4)
	assert.True(t, bucket.Request())
}

func TestTokenBucket_CompletionCounterClock(t *testing.T) {
	t.Parallel()

	// The clock does not have to be wall time; here it ticks once per task
	// completion.
	var completions atomic.Int64
	bucket, err := New(completions.Load, 0.1, 2)
	require.NoError(t, err)

	require.True(t, bucket.Request())
	require.True(t, bucket.Request())
	require.False(t, bucket.Request())

	// Ten completions at 0.1 tokens per completion accrue one token.
	completions.Add(10)
	assert.True(t, bucket.Request())
	assert.False(t, bucket.Request())
}
