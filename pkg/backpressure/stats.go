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

import "github.com/zetxqx/search-backpressure/pkg/backpressure/trackers"

// SearchBackpressureStats is the observability snapshot of the controller.
// Field names are stable; external consumers serialize this snapshot under a
// `search_backpressure` key.
type SearchBackpressureStats struct {
	CurrentStats      CurrentStats      `json:"current_stats"`
	CancellationStats CancellationStats `json:"cancellation_stats"`
	Enabled           bool              `json:"enabled"`
	Enforced          bool              `json:"enforced"`
}

// CurrentStats holds each tracker's aggregate view of the live search shard
// tasks, keyed by tracker name.
type CurrentStats struct {
	SearchShardTask map[string]trackers.Stats `json:"search_shard_task"`
}

// CancellationStats holds the cumulative cancellation counters.
type CancellationStats struct {
	SearchShardTask SearchShardTaskCancellationStats `json:"search_shard_task"`
}

// SearchShardTaskCancellationStats breaks down the cancellations of search
// shard tasks.
type SearchShardTaskCancellationStats struct {
	// CancellationCount is the total number of tasks cancelled so far.
	CancellationCount int64 `json:"cancellation_count"`

	// CancellationBreakup counts, per tracker, how many cancellations that
	// tracker contributed a verdict to. A task cancelled on two verdicts is
	// counted once for each tracker, so the breakup may sum to more than
	// CancellationCount.
	CancellationBreakup map[string]int64 `json:"cancellation_breakup"`

	// CancellationLimitReachedCount is the number of ticks that ran out of
	// cancellation budget with eligible tasks remaining.
	CancellationLimitReachedCount int64 `json:"cancellation_limit_reached_count"`

	// LastCancelledTask is the resource snapshot of the most recently
	// cancelled task, or nil if nothing has been cancelled yet.
	LastCancelledTask *CancelledTaskStats `json:"last_cancelled_task,omitempty"`
}

// CancelledTaskStats is the resource usage of a task at the moment it was
// cancelled.
type CancelledTaskStats struct {
	HeapUsageBytes   int64 `json:"heap_usage_bytes"`
	CPUUsageNanos    int64 `json:"cpu_usage_nanos"`
	ElapsedTimeNanos int64 `json:"elapsed_time_nanos"`
}
