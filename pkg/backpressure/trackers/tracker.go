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

// Package trackers contains the per-task resource usage trackers consulted by
// the backpressure controller.
//
// Each tracker watches one resource dimension (CPU time, heap memory, elapsed
// wall time). On every tick the controller asks each tracker for a per-task
// cancellation verdict; verdict scores are additive across trackers, so a task
// breaching several dimensions ranks ahead of one breaching a single
// dimension.
package trackers

import (
	"sync/atomic"

	"github.com/zetxqx/search-backpressure/pkg/backpressure/contracts"
)

// Verdict is a single tracker's opinion that a task should be cancelled.
//
// Score is the tracker's intensity estimate, at least 1: binary-threshold
// trackers always report 1, while the heap tracker reports how many "typical"
// tasks' worth of heap cancelling this task would reclaim.
type Verdict struct {
	// Tracker is the tracker that produced this verdict; its cancellation
	// counter is incremented if the verdict contributes to an actual
	// cancellation.
	Tracker ResourceUsageTracker

	// Message is the human-readable breach description joined into the task's
	// cancellation reason.
	Message string

	// Score is the expected relief from cancelling the task, in units of
	// typical tasks.
	Score int
}

// ResourceUsageTracker is the minimal capability the controller needs from a
// tracker.
//
// Update and CancellationReason must tolerate concurrent invocation: Update is
// called from completing worker goroutines while CancellationReason runs on
// the control loop.
type ResourceUsageTracker interface {
	// Name returns the tracker's stable identifier, used as the stats and
	// metrics key.
	Name() string

	// Update feeds one completed task into the tracker's internal statistics.
	// Most trackers are stateless and ignore it.
	Update(task contracts.Task) error

	// CancellationReason returns the tracker's verdict for the given task, or
	// nil if the tracker has no opinion.
	CancellationReason(task contracts.Task) (*Verdict, error)

	// CurrentStats aggregates this tracker's view of the currently running
	// tasks.
	CurrentStats(activeTasks []contracts.Task) Stats

	// Cancellations returns the number of cancellations this tracker has
	// contributed to. Monotonic.
	Cancellations() int64

	// IncrementCancellations records that a verdict from this tracker
	// contributed to a cancellation.
	IncrementCancellations()
}

// Stats is the per-tracker statistics snapshot. It is a closed sum over the
// three concrete tracker kinds rather than a generic map so consumers keep
// field-level type safety.
type Stats interface {
	isTrackerStats()
}

// CPUUsageStats aggregates the active tasks' cumulative CPU time.
type CPUUsageStats struct {
	CurrentMaxNanos int64   `json:"current_max"`
	CurrentAvgNanos float64 `json:"current_avg"`
}

func (CPUUsageStats) isTrackerStats() {}

// HeapUsageStats aggregates the active tasks' heap usage alongside the rolling
// average of heap usage at task completion.
type HeapUsageStats struct {
	CurrentMaxBytes int64   `json:"current_max"`
	CurrentAvgBytes float64 `json:"current_avg"`
	RollingAvgBytes float64 `json:"rolling_avg"`
}

func (HeapUsageStats) isTrackerStats() {}

// ElapsedTimeStats aggregates the active tasks' wall-clock age.
type ElapsedTimeStats struct {
	CurrentMaxNanos int64   `json:"current_max"`
	CurrentAvgNanos float64 `json:"current_avg"`
}

func (ElapsedTimeStats) isTrackerStats() {}

// cancellationCounter provides the shared cancellations counter; concrete
// trackers embed it.
type cancellationCounter struct {
	cancellations atomic.Int64
}

func (c *cancellationCounter) Cancellations() int64 {
	return c.cancellations.Load()
}

func (c *cancellationCounter) IncrementCancellations() {
	c.cancellations.Add(1)
}
