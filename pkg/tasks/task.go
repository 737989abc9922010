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

package tasks

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// SearchShardTask is a cancellable, resource-aware task executing one search
// phase against one shard.
//
// Worker goroutines publish cumulative resource usage through AddCPUTimeNanos
// and AddHeapBytes; both counters are monotonic. Cancellation is a one-shot
// signal: the first Cancel wins and later calls are no-ops.
type SearchShardTask struct {
	id         string
	action     string
	startNanos int64

	cpuNanos  atomic.Int64
	heapBytes atomic.Int64

	mu           sync.Mutex
	cancelled    bool
	cancelReason string
	onCancel     func(reason string)
}

// NewSearchShardTask creates a task with a generated ID, started at the given
// wall-clock time. onCancel, if non-nil, runs once on the first successful
// Cancel; the execution engine uses it to interrupt the running worker.
func NewSearchShardTask(action string, startNanos int64, onCancel func(reason string)) *SearchShardTask {
	return &SearchShardTask{
		id:         uuid.NewString(),
		action:     action,
		startNanos: startNanos,
		onCancel:   onCancel,
	}
}

// ID returns the task's unique identifier.
func (t *SearchShardTask) ID() string { return t.id }

// Action returns the name of the action this task executes.
func (t *SearchShardTask) Action() string { return t.action }

// StartTimeNanos returns the task's start time in wall-clock nanoseconds.
func (t *SearchShardTask) StartTimeNanos() int64 { return t.startNanos }

// CPUTimeNanos returns the cumulative CPU time consumed so far.
func (t *SearchShardTask) CPUTimeNanos() int64 { return t.cpuNanos.Load() }

// HeapBytes returns the cumulative heap bytes allocated so far.
func (t *SearchShardTask) HeapBytes() int64 { return t.heapBytes.Load() }

// AddCPUTimeNanos accumulates CPU time consumed by a worker thread.
func (t *SearchShardTask) AddCPUTimeNanos(delta int64) {
	t.cpuNanos.Add(delta)
}

// AddHeapBytes accumulates heap memory allocated by a worker thread.
func (t *SearchShardTask) AddHeapBytes(delta int64) {
	t.heapBytes.Add(delta)
}

// IsSearchShardTask marks this task as belonging to the search shard
// execution path.
func (t *SearchShardTask) IsSearchShardTask() {}

// IsCancelled reports whether the task has been cancelled.
func (t *SearchShardTask) IsCancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// CancelReason returns the reason of the first successful Cancel, or the
// empty string if the task is not cancelled.
func (t *SearchShardTask) CancelReason() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelReason
}

// Cancel signals the task to abort. The reason must be non-empty. Only the
// first call has any effect.
func (t *SearchShardTask) Cancel(reason string) error {
	if reason == "" {
		return errors.New("cancellation reason cannot be empty")
	}

	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		return nil
	}
	t.cancelled = true
	t.cancelReason = reason
	onCancel := t.onCancel
	t.mu.Unlock()

	if onCancel != nil {
		onCancel(reason)
	}
	return nil
}
