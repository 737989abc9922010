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

package backpressure

import (
	"fmt"
	"strings"

	"github.com/zetxqx/search-backpressure/pkg/backpressure/contracts"
	"github.com/zetxqx/search-backpressure/pkg/backpressure/trackers"
)

// TaskCancellation bundles one task with the tracker verdicts against it.
//
// Verdict scores are additive: a task breaching several resource dimensions
// outranks a task breaching one, and for the heap tracker the score further
// scales with the amount of heap a cancellation would reclaim.
type TaskCancellation struct {
	task     contracts.Task
	verdicts []*trackers.Verdict
	nowNanos func() int64
}

// NewTaskCancellation bundles the given verdicts for a task. The clock is used
// to compute the task's elapsed time at the moment of cancellation.
func NewTaskCancellation(task contracts.Task, verdicts []*trackers.Verdict, nowNanos func() int64) *TaskCancellation {
	return &TaskCancellation{task: task, verdicts: verdicts, nowNanos: nowNanos}
}

// Task returns the wrapped task.
func (tc *TaskCancellation) Task() contracts.Task {
	return tc.task
}

// Verdicts returns the tracker verdicts against the task.
func (tc *TaskCancellation) Verdicts() []*trackers.Verdict {
	return tc.verdicts
}

// TotalScore returns the sum of all verdict scores. A task with a higher
// score has a better chance of relieving the node when cancelled.
func (tc *TaskCancellation) TotalScore() int {
	total := 0
	for _, verdict := range tc.verdicts {
		total += verdict.Score
	}
	return total
}

// IsEligible reports whether the task should be cancelled: it has at least
// one verdict and has not been cancelled already.
func (tc *TaskCancellation) IsEligible() bool {
	return !tc.task.IsCancelled() && len(tc.verdicts) > 0
}

// Cancel signals the task to abort, citing all verdict messages, and
// increments the contributing trackers' cancellation counters.
//
// If the task rejects the cancellation, no counter is incremented and no
// snapshot is produced; the caller may still proceed with other candidates.
func (tc *TaskCancellation) Cancel() (*CancelledTaskStats, error) {
	messages := make([]string, len(tc.verdicts))
	for i, verdict := range tc.verdicts {
		messages[i] = verdict.Message
	}

	reason := fmt.Sprintf("resource consumption exceeded [%s]", strings.Join(messages, ", "))
	if err := tc.task.Cancel(reason); err != nil {
		return nil, fmt.Errorf("failed to cancel task %q: %w", tc.task.ID(), err)
	}

	for _, verdict := range tc.verdicts {
		verdict.Tracker.IncrementCancellations()
	}

	return &CancelledTaskStats{
		HeapUsageBytes:   tc.task.HeapBytes(),
		CPUUsageNanos:    tc.task.CPUTimeNanos(),
		ElapsedTimeNanos: tc.nowNanos() - tc.task.StartTimeNanos(),
	}, nil
}
