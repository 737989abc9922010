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

// Package backpressure implements a node-local backpressure controller for
// search shard tasks.
//
// The controller runs a periodic control loop on a single scheduled worker.
// Each tick it reads the node's CPU and heap sensors and records them into
// hysteretic breach streaks; only a sustained run of breaches (duress) arms
// the controller. Once armed, it scans the live search shard tasks, collects
// per-task verdicts from the resource usage trackers, ranks the resulting
// cancellation bundles by total score, and cancels from the top under a dual
// token bucket budget: one bucket ticks on wall time, the other on task
// completions, so cancellation stays bounded both in absolute rate and
// relative to the node's useful throughput.
//
// The controller only signals the local task object; it does not own task
// lifetimes, perform admission control, or coordinate across nodes.
package backpressure
