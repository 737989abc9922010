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

// CPUUsageTrackerName is the stats and metrics key of the CPU usage tracker.
const CPUUsageTrackerName = "cpu_usage_tracker"

// CPUUsageTracker votes to cancel tasks whose cumulative CPU time crossed the
// configured threshold. It keeps no per-task state.
type CPUUsageTracker struct {
	cancellationCounter

	// cpuTimeThreshold supplies the current threshold so dynamic settings
	// updates take effect without rebuilding the tracker.
	cpuTimeThreshold func() time.Duration
}

var _ ResourceUsageTracker = &CPUUsageTracker{}

// NewCPUUsageTracker creates a CPU usage tracker reading its threshold from
// the given supplier.
func NewCPUUsageTracker(cpuTimeThreshold func() time.Duration) *CPUUsageTracker {
	return &CPUUsageTracker{cpuTimeThreshold: cpuTimeThreshold}
}

// Name returns the tracker's stable identifier.
func (t *CPUUsageTracker) Name() string {
	return CPUUsageTrackerName
}

// Update is a no-op; the tracker is stateless.
func (t *CPUUsageTracker) Update(task contracts.Task) error {
	return nil
}

// CancellationReason votes to cancel iff the task's cumulative CPU time is at
// or above the threshold. The score is always 1.
func (t *CPUUsageTracker) CancellationReason(task contracts.Task) (*Verdict, error) {
	if task.CPUTimeNanos() < t.cpuTimeThreshold().Nanoseconds() {
		return nil, nil
	}
	return &Verdict{Tracker: t, Message: "cpu usage exceeded", Score: 1}, nil
}

// CurrentStats aggregates the active tasks' cumulative CPU time.
func (t *CPUUsageTracker) CurrentStats(activeTasks []contracts.Task) Stats {
	var stats CPUUsageStats
	if len(activeTasks) == 0 {
		return stats
	}

	var sum int64
	for _, task := range activeTasks {
		cpu := task.CPUTimeNanos()
		stats.CurrentMaxNanos = max(stats.CurrentMaxNanos, cpu)
		sum += cpu
	}
	stats.CurrentAvgNanos = float64(sum) / float64(len(activeTasks))
	return stats
}
