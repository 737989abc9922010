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

// Package mocks provides mocks for the interfaces defined in the `contracts` package.
//
// The mocks are "stub-style": behavior is injected by setting function fields
// (e.g. `CPULoadFunc`), and a nil func yields a zero value. `MockTask` is the
// exception; it is a small stateful fake because cancellation state
// (`IsCancelled` flipping after `Cancel`) is load-bearing for eligibility and
// ranking tests.
package mocks

import (
	"sync"
	"time"

	"github.com/zetxqx/search-backpressure/pkg/backpressure/contracts"
)

// --- Task Mocks ---

// MockTask is a stateful fake of a search shard task. Resource statistics are
// plain fields; cancellation state is guarded for concurrent use.
type MockTask struct {
	IDValue        string
	ActionValue    string
	StartNanos     int64
	CPUNanos       int64
	HeapBytesValue int64
	CancelFunc     func(reason string) error

	mu           sync.Mutex
	cancelled    bool
	cancelReason string
}

var _ contracts.SearchShardTask = &MockTask{}

func (m *MockTask) ID() string            { return m.IDValue }
func (m *MockTask) Action() string        { return m.ActionValue }
func (m *MockTask) StartTimeNanos() int64 { return m.StartNanos }
func (m *MockTask) CPUTimeNanos() int64   { return m.CPUNanos }
func (m *MockTask) HeapBytes() int64      { return m.HeapBytesValue }

// IsSearchShardTask marks MockTask as a search shard task.
func (m *MockTask) IsSearchShardTask() {}

func (m *MockTask) IsCancelled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelled
}

// CancelReason returns the reason passed to the last successful Cancel call.
func (m *MockTask) CancelReason() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelReason
}

func (m *MockTask) Cancel(reason string) error {
	if m.CancelFunc != nil {
		if err := m.CancelFunc(reason); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = true
	m.cancelReason = reason
	return nil
}

// MockPlainTask is a task that is NOT a search shard task; the controller must
// ignore it. It deliberately does not embed MockTask: embedding would promote
// the `IsSearchShardTask` marker method.
type MockPlainTask struct {
	IDValue        string
	ActionValue    string
	StartNanos     int64
	CPUNanos       int64
	HeapBytesValue int64
	Cancelled      bool
}

var _ contracts.Task = &MockPlainTask{}

func (m *MockPlainTask) ID() string            { return m.IDValue }
func (m *MockPlainTask) Action() string        { return m.ActionValue }
func (m *MockPlainTask) StartTimeNanos() int64 { return m.StartNanos }
func (m *MockPlainTask) CPUTimeNanos() int64   { return m.CPUNanos }
func (m *MockPlainTask) HeapBytes() int64      { return m.HeapBytesValue }
func (m *MockPlainTask) IsCancelled() bool     { return m.Cancelled }
func (m *MockPlainTask) Cancel(reason string) error {
	m.Cancelled = true
	return nil
}

// --- TaskRegistry Mocks ---

// MockTaskRegistry is a stub-style mock for the task registry.
type MockTaskRegistry struct {
	LiveTasksFunc             func() map[string]contracts.Task
	RefreshStatsFunc          func(tasks []contracts.Task) error
	AddCompletionListenerFunc func(listener contracts.TaskCompletionListener)
}

var _ contracts.TaskRegistry = &MockTaskRegistry{}

func (m *MockTaskRegistry) LiveTasks() map[string]contracts.Task {
	if m.LiveTasksFunc != nil {
		return m.LiveTasksFunc()
	}
	return nil
}

func (m *MockTaskRegistry) RefreshStats(tasks []contracts.Task) error {
	if m.RefreshStatsFunc != nil {
		return m.RefreshStatsFunc(tasks)
	}
	return nil
}

func (m *MockTaskRegistry) AddCompletionListener(listener contracts.TaskCompletionListener) {
	if m.AddCompletionListenerFunc != nil {
		m.AddCompletionListenerFunc(listener)
	}
}

// --- ResourceSensors Mocks ---

// MockResourceSensors is a stub-style mock for the node resource sensors.
type MockResourceSensors struct {
	CPULoadFunc          func() (float64, error)
	HeapUsedFractionFunc func() (float64, error)
}

var _ contracts.ResourceSensors = &MockResourceSensors{}

func (m *MockResourceSensors) CPULoad() (float64, error) {
	if m.CPULoadFunc != nil {
		return m.CPULoadFunc()
	}
	return 0, nil
}

func (m *MockResourceSensors) HeapUsedFraction() (float64, error) {
	if m.HeapUsedFractionFunc != nil {
		return m.HeapUsedFractionFunc()
	}
	return 0, nil
}

// --- Scheduler Mocks ---

// MockHandle records whether Cancel was called.
type MockHandle struct {
	mu        sync.Mutex
	cancelled bool
}

var _ contracts.Handle = &MockHandle{}

func (m *MockHandle) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = true
}

// IsCancelled reports whether Cancel has been called at least once.
func (m *MockHandle) IsCancelled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelled
}

// MockScheduler captures the scheduled callback so tests can drive ticks
// manually instead of waiting on a real clock.
type MockScheduler struct {
	Handle *MockHandle

	mu       sync.Mutex
	interval time.Duration
	fn       func()
}

var _ contracts.Scheduler = &MockScheduler{}

func (m *MockScheduler) ScheduleWithFixedDelay(interval time.Duration, fn func()) contracts.Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interval = interval
	m.fn = fn
	if m.Handle == nil {
		m.Handle = &MockHandle{}
	}
	return m.Handle
}

// Interval returns the interval the callback was scheduled with.
func (m *MockScheduler) Interval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interval
}

// Tick invokes the scheduled callback once, if one has been registered.
func (m *MockScheduler) Tick() {
	m.mu.Lock()
	fn := m.fn
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}
