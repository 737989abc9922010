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
	"time"

	"github.com/zetxqx/search-backpressure/pkg/backpressure/contracts"
)

// ElapsedTimeTrackerName is the stats and metrics key of the elapsed time
// tracker.
const ElapsedTimeTrackerName = "elapsed_time_tracker"

// ElapsedTimeTracker votes to cancel tasks that have been running longer than
// the configured threshold, regardless of how much work they have done.
type ElapsedTimeTracker struct {
	cancellationCounter

	nowNanos             func() int64
	elapsedTimeThreshold func() time.Duration
}

var _ ResourceUsageTracker = &ElapsedTimeTracker{}

// NewElapsedTimeTracker creates an elapsed time tracker using the given clock
// and threshold supplier.
func NewElapsedTimeTracker(nowNanos func() int64, elapsedTimeThreshold func() time.Duration) *ElapsedTimeTracker {
	return &ElapsedTimeTracker{nowNanos: nowNanos, elapsedTimeThreshold: elapsedTimeThreshold}
}

// Name returns the tracker's stable identifier.
func (t *ElapsedTimeTracker) Name() string {
	return ElapsedTimeTrackerName
}

// Update is a no-op; the tracker is stateless.
func (t *ElapsedTimeTracker) Update(task contracts.Task) error {
	return nil
}

// CancellationReason votes to cancel iff the task's wall-clock age is at or
// above the threshold. The score is always 1.
func (t *ElapsedTimeTracker) CancellationReason(task contracts.Task) (*Verdict, error) {
	if t.nowNanos()-task.StartTimeNanos() < t.elapsedTimeThreshold().Nanoseconds() {
		return nil, nil
	}
	return &Verdict{Tracker: t, Message: "elapsed time exceeded", Score: 1}, nil
}

// CurrentStats aggregates the active tasks' wall-clock age.
func (t *ElapsedTimeTracker) CurrentStats(activeTasks []contracts.Task) Stats {
	var stats ElapsedTimeStats
	if len(activeTasks) == 0 {
		return stats
	}

	now := t.nowNanos()
	var sum int64
	for _, task := range activeTasks {
		elapsed := now - task.StartTimeNanos()
		stats.CurrentMaxNanos = max(stats.CurrentMaxNanos, elapsed)
		sum += elapsed
	}
	stats.CurrentAvgNanos = float64(sum) / float64(len(activeTasks))
	return stats
}
