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
	"fmt"

	"github.com/zetxqx/search-backpressure/pkg/backpressure/contracts"
	"github.com/zetxqx/search-backpressure/pkg/util/movingaverage"
)

// HeapUsageTrackerName is the stats and metrics key of the heap usage tracker.
const HeapUsageTrackerName = "heap_usage_tracker"

// DefaultHeapMovingAverageWindowSize is the number of completed-task heap
// observations the tracker averages over before it starts producing verdicts.
const DefaultHeapMovingAverageWindowSize = 100

// HeapUsageTracker votes to cancel tasks using disproportionately more heap
// than the typical completed task.
//
// The tracker is stateful: it maintains a moving average of heap usage at task
// completion and withholds any opinion until the window has filled, so a cold
// node never cancels on a handful of unrepresentative samples.
type HeapUsageTracker struct {
	cancellationCounter

	heapBytesThreshold func() int64
	variance           func() float64
	movingAverage      *movingaverage.MovingAverage
}

var _ ResourceUsageTracker = &HeapUsageTracker{}

// NewHeapUsageTracker creates a heap usage tracker.
//
// heapBytesThreshold supplies the per-task floor in bytes below which a task
// is never cancelled for heap usage; variance supplies the multiplier over the
// rolling average above which a task becomes an outlier.
func NewHeapUsageTracker(heapBytesThreshold func() int64, variance func() float64, windowSize int) (*HeapUsageTracker, error) {
	movingAverage, err := movingaverage.New(windowSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create heap usage moving average: %w", err)
	}
	return &HeapUsageTracker{
		heapBytesThreshold: heapBytesThreshold,
		variance:           variance,
		movingAverage:      movingAverage,
	}, nil
}

// Name returns the tracker's stable identifier.
func (t *HeapUsageTracker) Name() string {
	return HeapUsageTrackerName
}

// Update records the completed task's heap usage into the moving average.
func (t *HeapUsageTracker) Update(task contracts.Task) error {
	t.movingAverage.Record(task.HeapBytes())
	return nil
}

// CancellationReason votes to cancel iff enough completions have been observed
// and the task's heap usage is both above the per-task floor and an outlier
// against the rolling average. The score is the number of typical tasks' worth
// of heap that cancelling this task would reclaim.
func (t *HeapUsageTracker) CancellationReason(task contracts.Task) (*Verdict, error) {
	// There haven't been enough measurements.
	if !t.movingAverage.IsReady() {
		return nil, nil
	}

	taskHeap := float64(task.HeapBytes())
	averageHeap := t.movingAverage.Average()
	allowedHeap := averageHeap * t.variance()

	if taskHeap < float64(t.heapBytesThreshold()) || taskHeap < allowedHeap {
		return nil, nil
	}

	return &Verdict{Tracker: t, Message: "heap usage exceeded", Score: max(1, int(taskHeap/averageHeap))}, nil
}

// CurrentStats aggregates the active tasks' heap usage and reports the rolling
// average of heap usage at completion.
func (t *HeapUsageTracker) CurrentStats(activeTasks []contracts.Task) Stats {
	stats := HeapUsageStats{RollingAvgBytes: t.movingAverage.Average()}
	if len(activeTasks) == 0 {
		return stats
	}

	var sum int64
	for _, task := range activeTasks {
		heap := task.HeapBytes()
		stats.CurrentMaxBytes = max(stats.CurrentMaxBytes, heap)
		sum += heap
	}
	stats.CurrentAvgBytes = float64(sum) / float64(len(activeTasks))
	return stats
}
