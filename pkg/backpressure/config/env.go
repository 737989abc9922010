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

package config

import (
	"github.com/go-logr/logr"

	"github.com/zetxqx/search-backpressure/pkg/backpressure"
	"github.com/zetxqx/search-backpressure/pkg/util/env"
)

// Environment variable names for the settings overridable at process start.
const (
	EnvInterval                   = "SEARCH_BACKPRESSURE_INTERVAL"
	EnvEnabled                    = "SEARCH_BACKPRESSURE_ENABLED"
	EnvEnforced                   = "SEARCH_BACKPRESSURE_ENFORCED"
	EnvNumConsecutiveBreaches     = "SEARCH_BACKPRESSURE_NODE_DURESS_NUM_CONSECUTIVE_BREACHES"
	EnvCPUThreshold               = "SEARCH_BACKPRESSURE_NODE_DURESS_CPU_THRESHOLD"
	EnvHeapThreshold              = "SEARCH_BACKPRESSURE_NODE_DURESS_HEAP_THRESHOLD"
	EnvSearchHeapUsageThreshold   = "SEARCH_BACKPRESSURE_SEARCH_HEAP_USAGE_THRESHOLD"
	EnvSearchTaskHeapThreshold    = "SEARCH_BACKPRESSURE_SEARCH_TASK_HEAP_USAGE_THRESHOLD"
	EnvSearchTaskHeapVariance     = "SEARCH_BACKPRESSURE_SEARCH_TASK_HEAP_USAGE_VARIANCE"
	EnvSearchTaskCPUThreshold     = "SEARCH_BACKPRESSURE_SEARCH_TASK_CPU_TIME_THRESHOLD"
	EnvSearchTaskElapsedThreshold = "SEARCH_BACKPRESSURE_SEARCH_TASK_ELAPSED_TIME_THRESHOLD"
	EnvCancellationRatio          = "SEARCH_BACKPRESSURE_CANCELLATION_RATIO"
	EnvCancellationRate           = "SEARCH_BACKPRESSURE_CANCELLATION_RATE"
	EnvCancellationBurst          = "SEARCH_BACKPRESSURE_CANCELLATION_BURST"
)

// OptionsFromEnv reads setting overrides from the environment. Unset or
// malformed variables fall back to the defaults of `NewSettings`.
func OptionsFromEnv(logger logr.Logger) []backpressure.SettingsOption {
	return []backpressure.SettingsOption{
		backpressure.WithInterval(env.GetEnvDuration(EnvInterval, backpressure.DefaultInterval, logger)),
		backpressure.WithEnabled(env.GetEnvBool(EnvEnabled, backpressure.DefaultEnabled, logger)),
		backpressure.WithEnforced(env.GetEnvBool(EnvEnforced, backpressure.DefaultEnforced, logger)),
		backpressure.WithNumConsecutiveBreaches(
			env.GetEnvInt(EnvNumConsecutiveBreaches, backpressure.DefaultNumConsecutiveBreaches, logger)),
		backpressure.WithCPUThreshold(env.GetEnvFloat(EnvCPUThreshold, backpressure.DefaultCPUThreshold, logger)),
		backpressure.WithHeapThreshold(env.GetEnvFloat(EnvHeapThreshold, backpressure.DefaultHeapThreshold, logger)),
		backpressure.WithSearchHeapUsageThreshold(
			env.GetEnvFloat(EnvSearchHeapUsageThreshold, backpressure.DefaultSearchHeapUsageThreshold, logger)),
		backpressure.WithSearchTaskHeapUsageThreshold(
			env.GetEnvFloat(EnvSearchTaskHeapThreshold, backpressure.DefaultSearchTaskHeapUsageThreshold, logger)),
		backpressure.WithSearchTaskHeapUsageVariance(
			env.GetEnvFloat(EnvSearchTaskHeapVariance, backpressure.DefaultSearchTaskHeapUsageVariance, logger)),
		backpressure.WithSearchTaskCPUTimeThreshold(
			env.GetEnvDuration(EnvSearchTaskCPUThreshold, backpressure.DefaultSearchTaskCPUTimeThreshold, logger)),
		backpressure.WithSearchTaskElapsedTimeThreshold(
			env.GetEnvDuration(EnvSearchTaskElapsedThreshold, backpressure.DefaultSearchTaskElapsedTimeThreshold, logger)),
		backpressure.WithCancellationRatio(
			env.GetEnvFloat(EnvCancellationRatio, backpressure.DefaultCancellationRatio, logger)),
		backpressure.WithCancellationRate(
			env.GetEnvFloat(EnvCancellationRate, backpressure.DefaultCancellationRate, logger)),
		backpressure.WithCancellationBurst(
			env.GetEnvFloat(EnvCancellationBurst, backpressure.DefaultCancellationBurst, logger)),
	}
}
