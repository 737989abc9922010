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

// Package contracts defines the service interfaces the backpressure controller
// consumes from the surrounding process: the task execution engine's registry,
// the node resource sensors, and the periodic scheduler.
//
// The controller does not own any of these collaborators. Defining them here,
// on the consumer side, keeps the controller testable with the mocks in the
// `mocks` subpackage and keeps the execution engine free to evolve
// independently.
package contracts

import "time"

// Task is the read-and-signal handle to a unit of work running on this node.
// The execution engine owns the task's lifetime; the controller only observes
// its cumulative resource statistics and, at most once, signals cancellation.
type Task interface {
	// ID returns the task's unique identifier.
	ID() string

	// Action returns the name of the action this task executes.
	Action() string

	// StartTimeNanos returns the task's start time on the wall clock, in
	// nanoseconds.
	StartTimeNanos() int64

	// CPUTimeNanos returns the cumulative CPU time consumed by the task so
	// far, in nanoseconds.
	CPUTimeNanos() int64

	// HeapBytes returns a monotonic estimate of the cumulative heap memory
	// allocated by the task so far, in bytes.
	HeapBytes() int64

	// IsCancelled reports whether the task has already been cancelled.
	IsCancelled() bool

	// Cancel signals the task to abort with the given human-readable reason.
	// The reason must be non-empty. Cancellation is not propagated beyond the
	// local task object.
	Cancel(reason string) error
}

// SearchShardTask marks the class of cancellable task the backpressure
// controller is authorized to act on. Tasks of any other kind are ignored.
type SearchShardTask interface {
	Task

	// IsSearchShardTask is a marker method; it has no behavior.
	IsSearchShardTask()
}

// TaskCompletionListener receives a callback for every task completion,
// including cancelled tasks. Callbacks run on the completing worker's
// goroutine and must not block.
type TaskCompletionListener interface {
	OnTaskCompleted(task Task)
}

// TaskRegistry enumerates the live cancellable tasks on this node and fans
// out completion callbacks.
type TaskRegistry interface {
	// LiveTasks returns a snapshot of the currently running tasks, keyed by
	// task ID.
	LiveTasks() map[string]Task

	// RefreshStats force-refreshes the resource statistics of the given tasks
	// so a cancellation decision is not made on stale numbers. It is
	// best-effort; a partial refresh returns an error and leaves the
	// remaining tasks with their previous statistics.
	RefreshStats(tasks []Task) error

	// AddCompletionListener registers a listener for task completions.
	// Listeners are notified in registration order.
	AddCompletionListener(listener TaskCompletionListener)
}

// ResourceSensors reports node-wide resource pressure. Implementations may
// fail transiently (e.g. the OS stats file is briefly unreadable); callers
// must treat an error as a non-breaching observation, not as a breach.
type ResourceSensors interface {
	// CPULoad returns the recent process CPU utilization in [0, 1].
	CPULoad() (float64, error)

	// HeapUsedFraction returns the used fraction of the maximum heap in
	// [0, 1].
	HeapUsedFraction() (float64, error)
}

// Handle cancels a scheduled callback. Cancel is idempotent; an in-flight
// invocation of the callback is allowed to complete.
type Handle interface {
	Cancel()
}

// Scheduler runs a callback repeatedly with a fixed delay between the end of
// one invocation and the start of the next.
type Scheduler interface {
	ScheduleWithFixedDelay(interval time.Duration, fn func()) Handle
}
