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
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"
	"k8s.io/utils/clock"

	"github.com/zetxqx/search-backpressure/pkg/backpressure/contracts"
	"github.com/zetxqx/search-backpressure/pkg/backpressure/metrics"
	"github.com/zetxqx/search-backpressure/pkg/backpressure/trackers"
	logutil "github.com/zetxqx/search-backpressure/pkg/util/logging"
	"github.com/zetxqx/search-backpressure/pkg/util/streak"
	"github.com/zetxqx/search-backpressure/pkg/util/tokenbucket"
)

const (
	// loggerName is the name to use for loggers created by this package.
	loggerName = "SearchBackpressureController"
)

// Controller is the node-local search backpressure controller.
//
// It is driven from three directions concurrently: the scheduler fires `tick`
// on a single worker at the configured cadence, the execution engine calls
// `OnTaskCompleted` from many worker goroutines, and an observability endpoint
// may call `Stats` at any time. All cross-goroutine state is either atomic or
// owned by a single component with its own locking; the tick itself holds no
// lock across the registry refresh or a cancellation.
type Controller struct {
	settings *Settings
	registry contracts.TaskRegistry
	sensors  contracts.ResourceSensors
	trackers []trackers.ResourceUsageTracker
	clock    clock.Clock
	logger   logr.Logger

	cpuBreachesStreak  streak.Streak
	heapBreachesStreak streak.Streak

	// completedTaskCount is monotonic; it doubles as the completion bucket's
	// clock, so resetting it would revoke earned budget.
	completedTaskCount atomic.Int64
	cancellationCount  atomic.Int64
	limitReachedCount  atomic.Int64
	lastCancelledTask  atomic.Pointer[CancelledTaskStats]

	// timeBucket ticks on wall-clock nanoseconds, completionBucket on the
	// completion counter. Cancellation stops only when both decline.
	timeBucket       *tokenbucket.TokenBucket
	completionBucket *tokenbucket.TokenBucket

	handle       contracts.Handle
	shutdownOnce sync.Once
}

var _ contracts.TaskCompletionListener = &Controller{}

// controllerOptions collects the optional constructor inputs.
type controllerOptions struct {
	clock    clock.Clock
	trackers []trackers.ResourceUsageTracker
}

// ControllerOption overrides an optional constructor input.
type ControllerOption func(*controllerOptions)

// WithClock overrides the wall clock; tests inject a fake clock here.
func WithClock(c clock.Clock) ControllerOption {
	return func(o *controllerOptions) { o.clock = c }
}

// WithTrackers overrides the default tracker set.
func WithTrackers(t []trackers.ResourceUsageTracker) ControllerOption {
	return func(o *controllerOptions) { o.trackers = t }
}

// NewController creates a controller, registers it for task completion
// callbacks, and, if a scheduler is provided, starts the periodic control
// loop. Passing a nil scheduler starts no loop; the controller has no exported
// method that runs a tick.
func NewController(
	settings *Settings,
	registry contracts.TaskRegistry,
	sensors contracts.ResourceSensors,
	scheduler contracts.Scheduler,
	logger logr.Logger,
	opts ...ControllerOption,
) (*Controller, error) {
	if settings == nil {
		return nil, errors.New("settings must not be nil")
	}
	if registry == nil {
		return nil, errors.New("task registry must not be nil")
	}
	if sensors == nil {
		return nil, errors.New("resource sensors must not be nil")
	}

	options := &controllerOptions{clock: clock.RealClock{}}
	for _, opt := range opts {
		opt(options)
	}

	c := &Controller{
		settings: settings,
		registry: registry,
		sensors:  sensors,
		clock:    options.clock,
		logger:   logger.WithName(loggerName),
	}

	c.trackers = options.trackers
	if c.trackers == nil {
		heapTracker, err := trackers.NewHeapUsageTracker(
			settings.SearchTaskHeapBytes,
			settings.SearchTaskHeapUsageVariance,
			trackers.DefaultHeapMovingAverageWindowSize,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create heap usage tracker: %w", err)
		}
		c.trackers = []trackers.ResourceUsageTracker{
			trackers.NewCPUUsageTracker(settings.SearchTaskCPUTimeThreshold),
			heapTracker,
			trackers.NewElapsedTimeTracker(c.nowNanos, settings.SearchTaskElapsedTimeThreshold),
		}
	}

	var err error
	if c.timeBucket, err = tokenbucket.New(c.nowNanos, settings.CancellationRate(), settings.CancellationBurst()); err != nil {
		return nil, fmt.Errorf("failed to create time-based cancellation budget: %w", err)
	}
	if c.completionBucket, err = tokenbucket.New(c.completedTaskCount.Load, settings.CancellationRatio(), settings.CancellationBurst()); err != nil {
		return nil, fmt.Errorf("failed to create completion-based cancellation budget: %w", err)
	}

	registry.AddCompletionListener(c)

	if scheduler != nil {
		c.handle = scheduler.ScheduleWithFixedDelay(settings.Interval(), c.tick)
	}

	c.logger.V(logutil.DEFAULT).Info("Created search backpressure controller",
		"interval", settings.Interval().String(),
		"enabled", settings.Enabled(),
		"enforced", settings.Enforced())
	return c, nil
}

// nowNanos reads the wall clock in nanoseconds.
func (c *Controller) nowNanos() int64 {
	return c.clock.Now().UnixNano()
}

// OnTaskCompleted implements `contracts.TaskCompletionListener`. The execution
// engine invokes it for every completed task; non search shard tasks are
// ignored.
func (c *Controller) OnTaskCompleted(task contracts.Task) {
	if _, ok := task.(contracts.SearchShardTask); !ok {
		return
	}

	if !task.IsCancelled() {
		c.completedTaskCount.Add(1)
		metrics.RecordTaskCompletion()
	}

	for _, tracker := range c.trackers {
		if err := tracker.Update(task); err != nil {
			c.logger.V(logutil.DEBUG).Error(err, "Tracker failed to observe completed task",
				"tracker", tracker.Name(), "taskID", task.ID())
		}
	}
}

// tick runs one iteration of the control loop. Every failure inside a tick is
// contained within it; the periodic schedule is never disrupted.
func (c *Controller) tick() {
	if !c.settings.Enabled() {
		return
	}

	if !c.isNodeInDuress() {
		return
	}

	tasks := c.liveSearchShardTasks()

	// Force-refresh usage stats of these tasks before making a cancellation
	// decision. Best-effort: stale stats are at most one interval old.
	if err := c.registry.RefreshStats(tasks); err != nil {
		c.logger.V(logutil.DEFAULT).Error(err, "Failed to refresh task resource stats, proceeding with stale stats")
	}

	// Skip cancellation if the heap pressure is not search-driven.
	var totalHeapBytes int64
	for _, task := range tasks {
		totalHeapBytes += task.HeapBytes()
	}
	if totalHeapBytes < c.settings.SearchHeapBytes() {
		c.logger.V(logutil.VERBOSE).Info("Node in duress but search tasks are below the heap guard, not cancelling",
			"searchHeapBytes", totalHeapBytes, "thresholdBytes", c.settings.SearchHeapBytes())
		return
	}

	for _, taskCancellation := range c.taskCancellations(tasks) {
		c.logger.V(logutil.DEFAULT).Info("Cancelling task due to high resource consumption",
			"taskID", taskCancellation.Task().ID(),
			"action", taskCancellation.Task().Action(),
			"score", taskCancellation.TotalScore())

		// Observe-only mode: the decision is logged but never executed.
		if !c.settings.Enforced() {
			continue
		}

		okTime := c.timeBucket.Request()
		okCompletion := c.completionBucket.Request()
		if !okTime && !okCompletion {
			c.limitReachedCount.Add(1)
			metrics.RecordCancellationLimitReached()
			break
		}

		stats, err := taskCancellation.Cancel()
		if err != nil {
			c.logger.Error(err, "Failed to cancel task", "taskID", taskCancellation.Task().ID())
			continue
		}
		c.lastCancelledTask.Store(stats)
		c.cancellationCount.Add(1)

		trackerNames := make([]string, 0, len(taskCancellation.Verdicts()))
		for _, verdict := range taskCancellation.Verdicts() {
			trackerNames = append(trackerNames, verdict.Tracker.Name())
		}
		metrics.RecordTaskCancellation(trackerNames...)
	}
}

// isNodeInDuress records one observation of both node resources and reports
// whether either breach streak has reached the configured length.
func (c *Controller) isNodeInDuress() bool {
	cpuBreached := c.observeSensor(c.sensors.CPULoad, c.settings.CPUThreshold(), "cpu")
	heapBreached := c.observeSensor(c.sensors.HeapUsedFraction, c.settings.HeapThreshold(), "heap")

	cpuStreak := c.cpuBreachesStreak.Record(cpuBreached)
	heapStreak := c.heapBreachesStreak.Record(heapBreached)
	metrics.RecordNodeDuressStreak(cpuStreak, heapStreak)

	numConsecutiveBreaches := c.settings.NumConsecutiveBreaches()
	return cpuStreak >= numConsecutiveBreaches || heapStreak >= numConsecutiveBreaches
}

// observeSensor reads one resource sensor and compares it against its breach
// threshold. A sensor failure counts as a non-breaching observation, which
// resets that resource's streak; it never counts as a breach.
func (c *Controller) observeSensor(read func() (float64, error), threshold float64, resource string) bool {
	value, err := read()
	if err != nil {
		c.logger.V(logutil.DEBUG).Error(err, "Resource sensor unavailable, treating observation as not breached",
			"resource", resource)
		return false
	}
	return value >= threshold
}

// liveSearchShardTasks returns the currently running search shard tasks.
func (c *Controller) liveSearchShardTasks() []contracts.Task {
	liveTasks := c.registry.LiveTasks()
	tasks := make([]contracts.Task, 0, len(liveTasks))
	for _, task := range liveTasks {
		if _, ok := task.(contracts.SearchShardTask); ok {
			tasks = append(tasks, task)
		}
	}
	return tasks
}

// taskCancellations returns the eligible cancellation bundles sorted by
// descending total score, ties broken on task ID for determinism.
func (c *Controller) taskCancellations(tasks []contracts.Task) []*TaskCancellation {
	taskCancellations := make([]*TaskCancellation, 0, len(tasks))
	for _, task := range tasks {
		taskCancellation := c.taskCancellation(task)
		if taskCancellation.IsEligible() {
			taskCancellations = append(taskCancellations, taskCancellation)
		}
	}

	slices.SortFunc(taskCancellations, func(a, b *TaskCancellation) int {
		if scoreOrder := cmp.Compare(b.TotalScore(), a.TotalScore()); scoreOrder != 0 {
			return scoreOrder
		}
		return cmp.Compare(a.Task().ID(), b.Task().ID())
	})
	return taskCancellations
}

// taskCancellation collects all tracker verdicts against one task. A tracker
// failure forfeits only that tracker's opinion for this tick.
func (c *Controller) taskCancellation(task contracts.Task) *TaskCancellation {
	verdicts := make([]*trackers.Verdict, 0, len(c.trackers))
	for _, tracker := range c.trackers {
		verdict, err := tracker.CancellationReason(task)
		if err != nil {
			c.logger.V(logutil.DEBUG).Error(err, "Tracker failed to produce a verdict, skipping it for this task",
				"tracker", tracker.Name(), "taskID", task.ID())
			continue
		}
		if verdict != nil {
			verdicts = append(verdicts, verdict)
		}
	}
	return NewTaskCancellation(task, verdicts, c.nowNanos)
}

// Stats returns the current observability snapshot. It has no side effects
// and may be called from any goroutine.
func (c *Controller) Stats() SearchBackpressureStats {
	tasks := c.liveSearchShardTasks()

	currentStats := make(map[string]trackers.Stats, len(c.trackers))
	cancellationBreakup := make(map[string]int64, len(c.trackers))
	for _, tracker := range c.trackers {
		currentStats[tracker.Name()] = tracker.CurrentStats(tasks)
		cancellationBreakup[tracker.Name()] = tracker.Cancellations()
	}

	return SearchBackpressureStats{
		CurrentStats: CurrentStats{SearchShardTask: currentStats},
		CancellationStats: CancellationStats{
			SearchShardTask: SearchShardTaskCancellationStats{
				CancellationCount:             c.cancellationCount.Load(),
				CancellationBreakup:           cancellationBreakup,
				CancellationLimitReachedCount: c.limitReachedCount.Load(),
				LastCancelledTask:             c.lastCancelledTask.Load(),
			},
		},
		Enabled:  c.settings.Enabled(),
		Enforced: c.settings.Enforced(),
	}
}

// Shutdown cancels the scheduled control loop. Idempotent; an in-flight tick
// completes.
func (c *Controller) Shutdown() {
	c.shutdownOnce.Do(func() {
		if c.handle != nil {
			c.handle.Cancel()
		}
		c.logger.V(logutil.DEFAULT).Info("Search backpressure controller shut down")
	})
}
