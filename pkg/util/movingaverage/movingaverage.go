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

// Package movingaverage provides a fixed-window rolling average over int64
// observations.
package movingaverage

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
)

// MovingAverage maintains the rolling average of the last `windowSize`
// observations.
//
// `Record` is serialized under a mutex; it is the only mutator. `Average`,
// `Count` and `IsReady` are wait-free reads and may observe a value that is at
// most one `Record` call behind.
type MovingAverage struct {
	windowSize int

	mu           sync.Mutex
	observations []int64
	sum          int64

	count   atomic.Int64
	average atomic.Uint64 // float64 bits
}

// New creates a `MovingAverage` over the given window size.
func New(windowSize int) (*MovingAverage, error) {
	if windowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive, but got %d", windowSize)
	}
	return &MovingAverage{
		windowSize:   windowSize,
		observations: make([]int64, windowSize),
	}, nil
}

// Record adds one observation, evicting the oldest one once the window is
// full, and returns the resulting average.
func (m *MovingAverage) Record(value int64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := m.count.Load()
	slot := int(count % int64(m.windowSize))
	m.sum += value - m.observations[slot]
	m.observations[slot] = value

	count++
	average := float64(m.sum) / float64(min(count, int64(m.windowSize)))
	m.average.Store(math.Float64bits(average))
	m.count.Store(count)
	return average
}

// Average returns the rolling average over the current window. It returns zero
// before the first observation.
func (m *MovingAverage) Average() float64 {
	return math.Float64frombits(m.average.Load())
}

// Count returns the total number of observations ever recorded.
func (m *MovingAverage) Count() int64 {
	return m.count.Load()
}

// IsReady reports whether enough observations have been recorded to fill the
// window. Once true, it stays true.
func (m *MovingAverage) IsReady() bool {
	return m.count.Load() >= int64(m.windowSize)
}
