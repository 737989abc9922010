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
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zetxqx/search-backpressure/pkg/backpressure/contracts"
	"github.com/zetxqx/search-backpressure/pkg/backpressure/contracts/mocks"
)

func TestElapsedTimeTracker_CancellationReason(t *testing.T) {
	t.Parallel()

	now := (100 * time.Second).Nanoseconds()
	threshold := 30 * time.Second
	tracker := NewElapsedTimeTracker(
		func() int64 { return now },
		func() time.Duration { return threshold },
	)

	testCases := []struct {
		name          string
		startNanos    int64
		expectVerdict bool
	}{
		{name: "YoungTask_NoOpinion", startNanos: now - threshold.Nanoseconds() + 1, expectVerdict: false},
		{name: "ExactlyAtThreshold_Verdict", startNanos: now - threshold.Nanoseconds(), expectVerdict: true},
		{name: "OldTask_Verdict", startNanos: 0, expectVerdict: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			task := &mocks.MockTask{IDValue: "t1", StartNanos: tc.startNanos}
			verdict, err := tracker.CancellationReason(task)
			require.NoError(t, err)

			if !tc.expectVerdict {
				assert.Nil(t, verdict)
				return
			}
			require.NotNil(t, verdict)
			assert.Equal(t, "elapsed time exceeded", verdict.Message)
			assert.Equal(t, 1, verdict.Score)
		})
	}
}

func TestElapsedTimeTracker_CurrentStats(t *testing.T) {
	t.Parallel()

	now := int64(1_000_000)
	tracker := NewElapsedTimeTracker(
		func() int64 { return now },
		func() time.Duration { return time.Second },
	)

	t.Run("NoActiveTasks_ZeroStats", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, ElapsedTimeStats{}, tracker.CurrentStats(nil))
	})

	t.Run("AggregatesMaxAndAverage", func(t *testing.T) {
		t.Parallel()
		tasks := []contracts.Task{
			&mocks.MockTask{IDValue: "t1", StartNanos: now - 100},
			&mocks.MockTask{IDValue: "t2", StartNanos: now - 500},
		}
		stats := tracker.CurrentStats(tasks).(ElapsedTimeStats)
		assert.Equal(t, int64(500), stats.CurrentMaxNanos)
		assert.InDelta(t, 300.0, stats.CurrentAvgNanos, 1e-9)
	})
}
