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
	"sync"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/utils/clock"

	"github.com/zetxqx/search-backpressure/pkg/backpressure/contracts"
)

// FixedDelayScheduler runs callbacks on dedicated goroutines with a fixed
// delay between the end of one invocation and the start of the next.
type FixedDelayScheduler struct {
	clock clock.Clock
}

var _ contracts.Scheduler = &FixedDelayScheduler{}

// NewFixedDelayScheduler creates a scheduler over the given clock.
func NewFixedDelayScheduler(c clock.Clock) *FixedDelayScheduler {
	if c == nil {
		c = clock.RealClock{}
	}
	return &FixedDelayScheduler{clock: c}
}

// ScheduleWithFixedDelay starts running fn periodically until the returned
// handle is cancelled. The first invocation happens immediately.
func (s *FixedDelayScheduler) ScheduleWithFixedDelay(interval time.Duration, fn func()) contracts.Handle {
	stopCh := make(chan struct{})
	handle := &fixedDelayHandle{stopCh: stopCh}

	backoff := wait.NewJitteredBackoffManager(interval, 0.0, s.clock)
	go func() {
		// Sliding: the delay is measured from the end of the previous
		// invocation, so a slow tick does not pile up further ticks.
		wait.BackoffUntil(fn, backoff, true, stopCh)
	}()
	return handle
}

type fixedDelayHandle struct {
	once   sync.Once
	stopCh chan struct{}
}

func (h *fixedDelayHandle) Cancel() {
	h.once.Do(func() { close(h.stopCh) })
}
