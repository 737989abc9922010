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

// Package config loads backpressure settings from YAML documents and
// environment variables.
//
// A malformed YAML document is rejected at load time, before a `Settings` is
// ever constructed, so the controller never observes an invalid configuration.
// A malformed environment variable is not rejected: `OptionsFromEnv` falls
// back to that knob's default.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-logr/logr"
	"sigs.k8s.io/yaml"

	"github.com/zetxqx/search-backpressure/pkg/backpressure"
	logutil "github.com/zetxqx/search-backpressure/pkg/util/logging"
)

// settingsSpec is the YAML schema of the controller settings. All fields are
// optional; absent fields keep their defaults.
type settingsSpec struct {
	Interval     *string `json:"interval,omitempty"`
	Enabled      *bool   `json:"enabled,omitempty"`
	Enforced     *bool   `json:"enforced,omitempty"`
	MaxHeapBytes *int64  `json:"maxHeapBytes,omitempty"`

	NodeDuress   *nodeDuressSpec   `json:"nodeDuress,omitempty"`
	SearchTask   *searchTaskSpec   `json:"searchTask,omitempty"`
	Cancellation *cancellationSpec `json:"cancellation,omitempty"`

	SearchHeapUsageThreshold *float64 `json:"searchHeapUsageThreshold,omitempty"`
}

type nodeDuressSpec struct {
	NumConsecutiveBreaches *int     `json:"numConsecutiveBreaches,omitempty"`
	CPUThreshold           *float64 `json:"cpuThreshold,omitempty"`
	HeapThreshold          *float64 `json:"heapThreshold,omitempty"`
}

type searchTaskSpec struct {
	HeapUsageThreshold   *float64 `json:"heapUsageThreshold,omitempty"`
	HeapUsageVariance    *float64 `json:"heapUsageVariance,omitempty"`
	CPUTimeThreshold     *string  `json:"cpuTimeThreshold,omitempty"`
	ElapsedTimeThreshold *string  `json:"elapsedTimeThreshold,omitempty"`
}

type cancellationSpec struct {
	Ratio *float64 `json:"ratio,omitempty"`
	Rate  *float64 `json:"rate,omitempty"`
	Burst *float64 `json:"burst,omitempty"`
}

// LoadSettings parses a YAML document into validated controller settings.
// Additional options (typically `WithMaxHeapBytes` probed at startup) are
// applied before the document's values, so the document wins on conflict.
func LoadSettings(configBytes []byte, logger logr.Logger, extraOpts ...backpressure.SettingsOption) (*backpressure.Settings, error) {
	spec := &settingsSpec{}
	if err := yaml.UnmarshalStrict(configBytes, spec); err != nil {
		return nil, fmt.Errorf("failed to parse settings document: %w", err)
	}

	opts, err := spec.options()
	if err != nil {
		return nil, err
	}

	settings, err := backpressure.NewSettings(append(extraOpts, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("invalid settings document: %w", err)
	}
	logger.V(logutil.DEFAULT).Info("Loaded backpressure settings",
		"interval", settings.Interval().String(),
		"enabled", settings.Enabled(),
		"enforced", settings.Enforced())
	return settings, nil
}

// LoadSettingsFromFile reads and parses a YAML settings file.
func LoadSettingsFromFile(path string, logger logr.Logger, extraOpts ...backpressure.SettingsOption) (*backpressure.Settings, error) {
	configBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file %q: %w", path, err)
	}
	return LoadSettings(configBytes, logger, extraOpts...)
}

func (s *settingsSpec) options() ([]backpressure.SettingsOption, error) {
	var opts []backpressure.SettingsOption

	if s.Interval != nil {
		interval, err := time.ParseDuration(*s.Interval)
		if err != nil {
			return nil, fmt.Errorf("invalid interval: %w", err)
		}
		opts = append(opts, backpressure.WithInterval(interval))
	}
	if s.Enabled != nil {
		opts = append(opts, backpressure.WithEnabled(*s.Enabled))
	}
	if s.Enforced != nil {
		opts = append(opts, backpressure.WithEnforced(*s.Enforced))
	}
	if s.MaxHeapBytes != nil {
		opts = append(opts, backpressure.WithMaxHeapBytes(*s.MaxHeapBytes))
	}
	if s.SearchHeapUsageThreshold != nil {
		opts = append(opts, backpressure.WithSearchHeapUsageThreshold(*s.SearchHeapUsageThreshold))
	}

	if duress := s.NodeDuress; duress != nil {
		if duress.NumConsecutiveBreaches != nil {
			opts = append(opts, backpressure.WithNumConsecutiveBreaches(*duress.NumConsecutiveBreaches))
		}
		if duress.CPUThreshold != nil {
			opts = append(opts, backpressure.WithCPUThreshold(*duress.CPUThreshold))
		}
		if duress.HeapThreshold != nil {
			opts = append(opts, backpressure.WithHeapThreshold(*duress.HeapThreshold))
		}
	}

	if task := s.SearchTask; task != nil {
		if task.HeapUsageThreshold != nil {
			opts = append(opts, backpressure.WithSearchTaskHeapUsageThreshold(*task.HeapUsageThreshold))
		}
		if task.HeapUsageVariance != nil {
			opts = append(opts, backpressure.WithSearchTaskHeapUsageVariance(*task.HeapUsageVariance))
		}
		if task.CPUTimeThreshold != nil {
			threshold, err := time.ParseDuration(*task.CPUTimeThreshold)
			if err != nil {
				return nil, fmt.Errorf("invalid search task cpu time threshold: %w", err)
			}
			opts = append(opts, backpressure.WithSearchTaskCPUTimeThreshold(threshold))
		}
		if task.ElapsedTimeThreshold != nil {
			threshold, err := time.ParseDuration(*task.ElapsedTimeThreshold)
			if err != nil {
				return nil, fmt.Errorf("invalid search task elapsed time threshold: %w", err)
			}
			opts = append(opts, backpressure.WithSearchTaskElapsedTimeThreshold(threshold))
		}
	}

	if cancellation := s.Cancellation; cancellation != nil {
		if cancellation.Ratio != nil {
			opts = append(opts, backpressure.WithCancellationRatio(*cancellation.Ratio))
		}
		if cancellation.Rate != nil {
			opts = append(opts, backpressure.WithCancellationRate(*cancellation.Rate))
		}
		if cancellation.Burst != nil {
			opts = append(opts, backpressure.WithCancellationBurst(*cancellation.Burst))
		}
	}

	return opts, nil
}
