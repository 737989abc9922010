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

// backpressure-sim drives the search backpressure controller against a
// synthetic workload: a pool of workers runs fake search shard tasks that
// consume CPU time and heap on paper, while the node sensors report pressure
// proportional to the live task population. Useful for watching the duress
// detector, ranking, and dual-bucket throttling interact end to end.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	uberzap "go.uber.org/zap"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	crmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"

	"github.com/zetxqx/search-backpressure/pkg/backpressure"
	"github.com/zetxqx/search-backpressure/pkg/backpressure/config"
	"github.com/zetxqx/search-backpressure/pkg/backpressure/metrics"
	"github.com/zetxqx/search-backpressure/pkg/backpressure/metrics/collectors"
	"github.com/zetxqx/search-backpressure/pkg/tasks"
	"github.com/zetxqx/search-backpressure/version"
)

var (
	configFile = flag.String("config", "",
		"Optional YAML settings file; absent knobs fall back to environment variables and defaults")
	maxHeapBytes = flag.Int64("max-heap-bytes", 1<<30,
		"Simulated maximum heap size of the process")
	workers = flag.Int("workers", 8,
		"Number of concurrent workload workers")
	taskInterval = flag.Duration("task-interval", 50*time.Millisecond,
		"Delay between tasks started by each worker")
	runFor = flag.Duration("run-for", 30*time.Second,
		"How long to run the simulation")
	metricsAddr = flag.String("metrics-addr", ":9090",
		"Address of the Prometheus metrics endpoint")
)

func main() {
	flag.Parse()

	logger := zap.New(zap.UseDevMode(true), zap.RawZapOpts(uberzap.AddCaller()))
	ctrl.SetLogger(logger)
	logger.Info("Starting backpressure simulator", "commitSHA", version.CommitSHA, "buildRef", version.BuildRef)

	settingsOpts := append(config.OptionsFromEnv(logger), backpressure.WithMaxHeapBytes(*maxHeapBytes))
	var settings *backpressure.Settings
	var err error
	if *configFile != "" {
		settings, err = config.LoadSettingsFromFile(*configFile, logger, settingsOpts...)
	} else {
		settings, err = backpressure.NewSettings(settingsOpts...)
	}
	if err != nil {
		logger.Error(err, "Failed to load settings")
		os.Exit(1)
	}

	registry := tasks.NewRegistry(logger)
	sensors := &simulatedSensors{registry: registry, maxHeapBytes: *maxHeapBytes}
	scheduler := backpressure.NewFixedDelayScheduler(nil)

	controller, err := backpressure.NewController(settings, registry, sensors, scheduler, logger)
	if err != nil {
		logger.Error(err, "Failed to create backpressure controller")
		os.Exit(1)
	}
	defer controller.Shutdown()

	metrics.Register(collectors.NewBackpressureStatsCollector(controller))
	go serveMetrics(*metricsAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *runFor)
	defer cancel()

	logger.Info("Starting workload", "workers", *workers, "taskInterval", taskInterval.String(), "runFor", runFor.String())
	var wg sync.WaitGroup
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runWorker(ctx, registry)
		}()
	}
	wg.Wait()

	snapshot, err := json.MarshalIndent(controller.Stats(), "", "  ")
	if err != nil {
		logger.Error(err, "Failed to serialize final stats")
		os.Exit(1)
	}
	fmt.Println(string(snapshot))
}

// runWorker starts one fake search shard task after another, accruing CPU and
// heap in small steps until the task either finishes its budget or gets
// cancelled. Roughly one task in twenty is a heap hog, giving the heap
// tracker outliers to vote on.
func runWorker(ctx context.Context, registry *tasks.Registry) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(*taskInterval):
		}

		cancelled := make(chan struct{})
		task := tasks.NewSearchShardTask(
			"indices:data/read/search[phase/query]",
			time.Now().UnixNano(),
			func(string) { close(cancelled) },
		)
		if err := registry.Register(task); err != nil {
			continue
		}

		heapStep := int64(64 << 10)
		if rand.Intn(20) == 0 {
			heapStep *= 64
		}
		steps := 5 + rand.Intn(20)
		for i := 0; i < steps; i++ {
			select {
			case <-ctx.Done():
				registry.Complete(task)
				return
			case <-cancelled:
				steps = 0
			case <-time.After(10 * time.Millisecond):
				task.AddCPUTimeNanos((8 * time.Millisecond).Nanoseconds())
				task.AddHeapBytes(heapStep)
			}
		}
		registry.Complete(task)
	}
}

// simulatedSensors derives node pressure from the live task population: each
// live task contributes CPU load, and heap pressure is the tasks' summed heap
// against the configured maximum.
type simulatedSensors struct {
	registry     *tasks.Registry
	maxHeapBytes int64
}

func (s *simulatedSensors) CPULoad() (float64, error) {
	return min(1.0, float64(len(s.registry.LiveTasks()))*0.1), nil
}

func (s *simulatedSensors) HeapUsedFraction() (float64, error) {
	var total int64
	for _, task := range s.registry.LiveTasks() {
		total += task.HeapBytes()
	}
	return min(1.0, float64(total)/float64(s.maxHeapBytes)), nil
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(crmetrics.Registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		ctrl.Log.Error(err, "Metrics server failed")
	}
}
