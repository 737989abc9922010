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

// Package metrics exposes the backpressure controller's Prometheus metrics.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	compbasemetrics "k8s.io/component-base/metrics"
	crmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"

	metricsutil "github.com/zetxqx/search-backpressure/pkg/util/metrics"
)

const (
	// SearchBackpressureComponent is the metrics subsystem of the controller.
	SearchBackpressureComponent = "search_backpressure"
)

var (
	taskCompletions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Subsystem: SearchBackpressureComponent,
			Name:      "task_completions_total",
			Help:      metricsutil.HelpMsgWithStability("Counter of successfully completed search shard tasks.", compbasemetrics.ALPHA),
		},
	)

	taskCancellations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Subsystem: SearchBackpressureComponent,
			Name:      "task_cancellations_total",
			Help:      metricsutil.HelpMsgWithStability("Counter of search shard tasks cancelled to relieve node pressure.", compbasemetrics.ALPHA),
		},
	)

	taskCancellationBreakup = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: SearchBackpressureComponent,
			Name:      "task_cancellation_breakup_total",
			Help:      metricsutil.HelpMsgWithStability("Counter of cancellation verdicts that contributed to an actual cancellation, broken out by tracker.", compbasemetrics.ALPHA),
		},
		[]string{"tracker"},
	)

	cancellationLimitReached = prometheus.NewCounter(
		prometheus.CounterOpts{
			Subsystem: SearchBackpressureComponent,
			Name:      "cancellation_limit_reached_total",
			Help:      metricsutil.HelpMsgWithStability("Counter of control loop iterations that exhausted the cancellation budget with eligible tasks remaining.", compbasemetrics.ALPHA),
		},
	)

	nodeDuressStreak = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Subsystem: SearchBackpressureComponent,
			Name:      "node_duress_streak",
			Help:      metricsutil.HelpMsgWithStability("Current run of consecutive node resource threshold breaches, broken out by resource.", compbasemetrics.ALPHA),
		},
		[]string{"resource"},
	)
)

var registerMetrics sync.Once

// Register registers the controller metrics on the controller-runtime
// registry. Safe to call more than once.
func Register(customCollectors ...prometheus.Collector) {
	registerMetrics.Do(func() {
		crmetrics.Registry.MustRegister(taskCompletions)
		crmetrics.Registry.MustRegister(taskCancellations)
		crmetrics.Registry.MustRegister(taskCancellationBreakup)
		crmetrics.Registry.MustRegister(cancellationLimitReached)
		crmetrics.Registry.MustRegister(nodeDuressStreak)
		for _, collector := range customCollectors {
			crmetrics.Registry.MustRegister(collector)
		}
	})
}

// RecordTaskCompletion records one successful search shard task completion.
func RecordTaskCompletion() {
	taskCompletions.Inc()
}

// RecordTaskCancellation records one cancelled task along with the trackers
// whose verdicts contributed to it.
func RecordTaskCancellation(trackerNames ...string) {
	taskCancellations.Inc()
	for _, name := range trackerNames {
		taskCancellationBreakup.WithLabelValues(name).Inc()
	}
}

// RecordCancellationLimitReached records one budget-exhausted control loop
// iteration.
func RecordCancellationLimitReached() {
	cancellationLimitReached.Inc()
}

// RecordNodeDuressStreak publishes the current breach streaks of both node
// resources.
func RecordNodeDuressStreak(cpuStreak, heapStreak int) {
	nodeDuressStreak.WithLabelValues("cpu").Set(float64(cpuStreak))
	nodeDuressStreak.WithLabelValues("heap").Set(float64(heapStreak))
}
