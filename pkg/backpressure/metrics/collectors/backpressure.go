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

// Package collectors exposes the controller's live stats snapshot as
// Prometheus metrics.
package collectors

import (
	"github.com/prometheus/client_golang/prometheus"
	compbasemetrics "k8s.io/component-base/metrics"

	"github.com/zetxqx/search-backpressure/pkg/backpressure"
	"github.com/zetxqx/search-backpressure/pkg/backpressure/trackers"
	metricsutil "github.com/zetxqx/search-backpressure/pkg/util/metrics"
)

var (
	descTrackerCurrentMax = prometheus.NewDesc(
		"search_backpressure_tracker_current_max",
		metricsutil.HelpMsgWithStability("Maximum per-task resource usage among the live search shard tasks, by tracker (nanoseconds for cpu/elapsed time, bytes for heap).", compbasemetrics.ALPHA),
		[]string{"tracker"}, nil,
	)
	descTrackerCurrentAvg = prometheus.NewDesc(
		"search_backpressure_tracker_current_avg",
		metricsutil.HelpMsgWithStability("Average per-task resource usage among the live search shard tasks, by tracker (nanoseconds for cpu/elapsed time, bytes for heap).", compbasemetrics.ALPHA),
		[]string{"tracker"}, nil,
	)
	descHeapRollingAvg = prometheus.NewDesc(
		"search_backpressure_heap_rolling_avg_bytes",
		metricsutil.HelpMsgWithStability("Rolling average of heap usage at search shard task completion.", compbasemetrics.ALPHA),
		nil, nil,
	)
)

// StatsProvider supplies the live stats snapshot; `*backpressure.Controller`
// implements it.
type StatsProvider interface {
	Stats() backpressure.SearchBackpressureStats
}

type backpressureStatsCollector struct {
	provider StatsProvider
}

var _ prometheus.Collector = &backpressureStatsCollector{}

// NewBackpressureStatsCollector creates a collector reading the controller's
// snapshot on every scrape.
func NewBackpressureStatsCollector(provider StatsProvider) prometheus.Collector {
	return &backpressureStatsCollector{provider: provider}
}

// Describe implements the prometheus.Collector interface.
func (c *backpressureStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descTrackerCurrentMax
	ch <- descTrackerCurrentAvg
	ch <- descHeapRollingAvg
}

// Collect implements the prometheus.Collector interface.
func (c *backpressureStatsCollector) Collect(ch chan<- prometheus.Metric) {
	snapshot := c.provider.Stats()
	for name, stats := range snapshot.CurrentStats.SearchShardTask {
		switch s := stats.(type) {
		case trackers.CPUUsageStats:
			ch <- prometheus.MustNewConstMetric(descTrackerCurrentMax, prometheus.GaugeValue, float64(s.CurrentMaxNanos), name)
			ch <- prometheus.MustNewConstMetric(descTrackerCurrentAvg, prometheus.GaugeValue, s.CurrentAvgNanos, name)
		case trackers.ElapsedTimeStats:
			ch <- prometheus.MustNewConstMetric(descTrackerCurrentMax, prometheus.GaugeValue, float64(s.CurrentMaxNanos), name)
			ch <- prometheus.MustNewConstMetric(descTrackerCurrentAvg, prometheus.GaugeValue, s.CurrentAvgNanos, name)
		case trackers.HeapUsageStats:
			ch <- prometheus.MustNewConstMetric(descTrackerCurrentMax, prometheus.GaugeValue, float64(s.CurrentMaxBytes), name)
			ch <- prometheus.MustNewConstMetric(descTrackerCurrentAvg, prometheus.GaugeValue, s.CurrentAvgBytes, name)
			ch <- prometheus.MustNewConstMetric(descHeapRollingAvg, prometheus.GaugeValue, s.RollingAvgBytes)
		}
	}
}
