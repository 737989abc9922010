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

// Package tasks provides an in-memory, resource-aware task registry.
//
// The registry is the execution engine's source of truth for live cancellable
// tasks. The backpressure controller consumes it through
// `contracts.TaskRegistry`: enumerating live tasks, force-refreshing their
// resource statistics ahead of a cancellation decision, and subscribing to
// task completion callbacks.
package tasks

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-logr/logr"

	"github.com/zetxqx/search-backpressure/pkg/backpressure/contracts"
	logutil "github.com/zetxqx/search-backpressure/pkg/util/logging"
)

// StatsRefresher is implemented by tasks whose resource statistics are pulled
// from worker-thread state on demand rather than pushed continuously.
type StatsRefresher interface {
	RefreshStats() error
}

// Registry tracks the live tasks on this node and fans out completion
// callbacks.
//
// All methods are safe for concurrent use. Completion listeners are invoked
// in registration order, on the goroutine that reported the completion.
type Registry struct {
	logger logr.Logger

	mu    sync.RWMutex
	tasks map[string]contracts.Task

	listenersMu sync.Mutex
	listeners   []contracts.TaskCompletionListener
}

var _ contracts.TaskRegistry = &Registry{}

// NewRegistry creates an empty task registry.
func NewRegistry(logger logr.Logger) *Registry {
	return &Registry{
		logger: logger.WithName("task-registry"),
		tasks:  make(map[string]contracts.Task),
	}
}

// Register adds a started task to the live set.
func (r *Registry) Register(task contracts.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tasks[task.ID()]; exists {
		return fmt.Errorf("task %q is already registered", task.ID())
	}
	r.tasks[task.ID()] = task
	r.logger.V(logutil.TRACE).Info("Task started", "taskID", task.ID(), "action", task.Action())
	return nil
}

// Complete removes the task from the live set and notifies the completion
// listeners. Cancelled tasks complete too; listeners distinguish them via
// `IsCancelled`.
func (r *Registry) Complete(task contracts.Task) {
	r.mu.Lock()
	_, exists := r.tasks[task.ID()]
	delete(r.tasks, task.ID())
	r.mu.Unlock()

	if !exists {
		r.logger.V(logutil.DEBUG).Info("Ignoring completion of unknown task", "taskID", task.ID())
		return
	}
	r.logger.V(logutil.TRACE).Info("Task completed", "taskID", task.ID(), "cancelled", task.IsCancelled())

	r.listenersMu.Lock()
	listeners := append([]contracts.TaskCompletionListener{}, r.listeners...)
	r.listenersMu.Unlock()
	for _, listener := range listeners {
		listener.OnTaskCompleted(task)
	}
}

// LiveTasks returns a snapshot of the currently running tasks, keyed by task
// ID.
func (r *Registry) LiveTasks() map[string]contracts.Task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tasks := make(map[string]contracts.Task, len(r.tasks))
	for id, task := range r.tasks {
		tasks[id] = task
	}
	return tasks
}

// RefreshStats force-refreshes the resource statistics of the given tasks.
// Tasks that do not support on-demand refresh are skipped. Partial failures
// are joined into a single error; the remaining tasks keep their previous
// statistics.
func (r *Registry) RefreshStats(tasks []contracts.Task) error {
	var errs []error
	for _, task := range tasks {
		refresher, ok := task.(StatsRefresher)
		if !ok {
			continue
		}
		if err := refresher.RefreshStats(); err != nil {
			errs = append(errs, fmt.Errorf("failed to refresh stats of task %q: %w", task.ID(), err))
		}
	}
	return errors.Join(errs...)
}

// AddCompletionListener registers a listener for task completions.
func (r *Registry) AddCompletionListener(listener contracts.TaskCompletionListener) {
	r.listenersMu.Lock()
	defer r.listenersMu.Unlock()
	r.listeners = append(r.listeners, listener)
}
