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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zetxqx/search-backpressure/pkg/backpressure/contracts"
	logutil "github.com/zetxqx/search-backpressure/pkg/util/logging"
)

type recordingListener struct {
	name      string
	completed []string
	order     *[]string
}

func (l *recordingListener) OnTaskCompleted(task contracts.Task) {
	l.completed = append(l.completed, task.ID())
	if l.order != nil {
		*l.order = append(*l.order, l.name)
	}
}

// refreshableTask wraps SearchShardTask with an injectable refresh outcome.
type refreshableTask struct {
	*SearchShardTask
	refreshErr error
	refreshed  int
}

func (t *refreshableTask) RefreshStats() error {
	t.refreshed++
	return t.refreshErr
}

func TestRegistry_RegisterAndComplete(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(logutil.NewTestLogger())
	task := NewSearchShardTask("indices:data/read/search[phase/query]", 0, nil)

	require.NoError(t, registry.Register(task))
	require.Error(t, registry.Register(task), "duplicate registration must be rejected")

	live := registry.LiveTasks()
	require.Len(t, live, 1)
	assert.Contains(t, live, task.ID())

	listener := &recordingListener{}
	registry.AddCompletionListener(listener)

	registry.Complete(task)
	assert.Empty(t, registry.LiveTasks())
	assert.Equal(t, []string{task.ID()}, listener.completed)

	// Completing an unknown task is ignored without a second notification.
	registry.Complete(task)
	assert.Len(t, listener.completed, 1)
}

func TestRegistry_ListenersFireInRegistrationOrder(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(logutil.NewTestLogger())
	task := NewSearchShardTask("test", 0, nil)
	require.NoError(t, registry.Register(task))

	var order []string
	registry.AddCompletionListener(&recordingListener{name: "first", order: &order})
	registry.AddCompletionListener(&recordingListener{name: "second", order: &order})

	registry.Complete(task)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestRegistry_LiveTasksReturnsASnapshot(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(logutil.NewTestLogger())
	task := NewSearchShardTask("test", 0, nil)
	require.NoError(t, registry.Register(task))

	snapshot := registry.LiveTasks()
	delete(snapshot, task.ID())
	assert.Len(t, registry.LiveTasks(), 1, "mutating the snapshot must not affect the registry")
}

func TestRegistry_RefreshStats(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(logutil.NewTestLogger())
	healthy := &refreshableTask{SearchShardTask: NewSearchShardTask("test", 0, nil)}
	broken := &refreshableTask{
		SearchShardTask: NewSearchShardTask("test", 0, nil),
		refreshErr:      errors.New("worker thread state unavailable"),
	}
	plain := NewSearchShardTask("test", 0, nil)

	err := registry.RefreshStats([]contracts.Task{healthy, broken, plain})
	require.Error(t, err, "partial refresh failures surface as an error")
	assert.Equal(t, 1, healthy.refreshed, "healthy tasks refresh despite sibling failures")
	assert.Equal(t, 1, broken.refreshed)
}

func TestSearchShardTask_ResourceAccounting(t *testing.T) {
	t.Parallel()

	task := NewSearchShardTask("indices:data/read/search[phase/fetch]", 12345, nil)
	assert.NotEmpty(t, task.ID())
	assert.Equal(t, int64(12345), task.StartTimeNanos())

	task.AddCPUTimeNanos(100)
	task.AddCPUTimeNanos(200)
	task.AddHeapBytes(1024)
	assert.Equal(t, int64(300), task.CPUTimeNanos())
	assert.Equal(t, int64(1024), task.HeapBytes())
}

func TestSearchShardTask_Cancel(t *testing.T) {
	t.Parallel()

	var signalled []string
	task := NewSearchShardTask("test", 0, func(reason string) { signalled = append(signalled, reason) })

	require.Error(t, task.Cancel(""), "an empty reason is rejected")
	assert.False(t, task.IsCancelled())

	require.NoError(t, task.Cancel("resource consumption exceeded [cpu usage exceeded]"))
	assert.True(t, task.IsCancelled())
	assert.Equal(t, "resource consumption exceeded [cpu usage exceeded]", task.CancelReason())

	// Only the first cancellation signals the worker.
	require.NoError(t, task.Cancel("second reason"))
	assert.Equal(t, []string{"resource consumption exceeded [cpu usage exceeded]"}, signalled)
	assert.Equal(t, "resource consumption exceeded [cpu usage exceeded]", task.CancelReason())
}
