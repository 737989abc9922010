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

package trackers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zetxqx/search-backpressure/pkg/backpressure/contracts"
	"github.com/zetxqx/search-backpressure/pkg/backpressure/contracts/mocks"
)

func newHeapTracker(t *testing.T, floorBytes int64, variance float64, windowSize int) *HeapUsageTracker {
	t.Helper()
	tracker, err := NewHeapUsageTracker(
		func() int64 { return floorBytes },
		func() float64 { return variance },
		windowSize,
	)
	require.NoError(t, err)
	return tracker
}

func TestNewHeapUsageTracker_RejectsInvalidWindow(t *testing.T) {
	t.Parallel()

	_, err := NewHeapUsageTracker(func() int64 { return 0 }, func() float64 { return 2.0 }, 0)
	require.Error(t, err)
}

func TestHeapUsageTracker_WarmUp(t *testing.T) {
	t.Parallel()

	const windowSize = 100
	tracker := newHeapTracker(t, 10, 2.0, windowSize)
	probe := &mocks.MockTask{IDValue: "probe", HeapBytesValue: 10_000}

	// 99 samples at 100 bytes: the window is one observation short, so the
	// tracker must withhold any opinion even for an extreme outlier.
	for i := 0; i < windowSize-1; i++ {
		require.NoError(t, tracker.Update(&mocks.MockTask{IDValue: "w", HeapBytesValue: 100}))
	}
	verdict, err := tracker.CancellationReason(probe)
	require.NoError(t, err)
	assert.Nil(t, verdict, "tracker must have no opinion before the window fills")

	// The 100th sample completes the warm-up.
	require.NoError(t, tracker.Update(&mocks.MockTask{IDValue: "w", HeapBytesValue: 100}))
	verdict, err = tracker.CancellationReason(probe)
	require.NoError(t, err)
	require.NotNil(t, verdict)
	assert.Equal(t, "heap usage exceeded", verdict.Message)
	assert.Equal(t, 100, verdict.Score, "score is the task's heap in units of the rolling average")
}

func TestHeapUsageTracker_CancellationReason(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name          string
		floorBytes    int64
		variance      float64
		taskHeapBytes int64
		expectVerdict bool
		expectedScore int
	}{
		{
			name:          "BelowPerTaskFloor_NoOpinion",
			floorBytes:    500,
			variance:      2.0,
			taskHeapBytes: 400,
			expectVerdict: false,
		},
		{
			name:          "WithinVarianceOfAverage_NoOpinion",
			floorBytes:    10,
			variance:      3.0,
			taskHeapBytes: 250, // average is 100, allowed is 300
			expectVerdict: false,
		},
		{
			name:          "OutlierAboveFloorAndVariance_Verdict",
			floorBytes:    10,
			variance:      2.0,
			taskHeapBytes: 350, // 3.5x the average, floored to 3
			expectVerdict: true,
			expectedScore: 3,
		},
		{
			name:          "SubUnityVariance_ScoreFlooredToOne",
			floorBytes:    10,
			variance:      0.5,
			taskHeapBytes: 90, // below the average but above allowed = 50
			expectVerdict: true,
			expectedScore: 1,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			tracker := newHeapTracker(t, tc.floorBytes, tc.variance, 10)
			for i := 0; i < 10; i++ {
				require.NoError(t, tracker.Update(&mocks.MockTask{IDValue: "w", HeapBytesValue: 100}))
			}

			verdict, err := tracker.CancellationReason(&mocks.MockTask{IDValue: "probe", HeapBytesValue: tc.taskHeapBytes})
			require.NoError(t, err)

			if !tc.expectVerdict {
				assert.Nil(t, verdict)
				return
			}
			require.NotNil(t, verdict)
			assert.Equal(t, tc.expectedScore, verdict.Score)
		})
	}
}

func TestHeapUsageTracker_CurrentStats(t *testing.T) {
	t.Parallel()

	tracker := newHeapTracker(t, 10, 2.0, 4)
	for _, heap := range []int64{100, 200, 300, 400} {
		require.NoError(t, tracker.Update(&mocks.MockTask{IDValue: "w", HeapBytesValue: heap}))
	}

	tasks := []contracts.Task{
		&mocks.MockTask{IDValue: "t1", HeapBytesValue: 1000},
		&mocks.MockTask{IDValue: "t2", HeapBytesValue: 3000},
	}
	stats := tracker.CurrentStats(tasks).(HeapUsageStats)
	assert.Equal(t, int64(3000), stats.CurrentMaxBytes)
	assert.InDelta(t, 2000.0, stats.CurrentAvgBytes, 1e-9)
	assert.InDelta(t, 250.0, stats.RollingAvgBytes, 1e-9)

	t.Run("NoActiveTasks_KeepsRollingAverage", func(t *testing.T) {
		stats := tracker.CurrentStats(nil).(HeapUsageStats)
		assert.Zero(t, stats.CurrentMaxBytes)
		assert.Zero(t, stats.CurrentAvgBytes)
		assert.InDelta(t, 250.0, stats.RollingAvgBytes, 1e-9)
	})
}
