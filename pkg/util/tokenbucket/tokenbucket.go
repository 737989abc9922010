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

// Package tokenbucket provides a rate limiter over an arbitrary monotonic
// clock.
//
// The clock is a parameter rather than hard-wired wall time: one bucket in the
// backpressure controller ticks on wall-clock nanoseconds while another ticks
// on a task completion counter, so "rate" can equally mean tokens per second
// or tokens per completed task.
package tokenbucket

import (
	"fmt"
	"sync"
)

// Clock returns the current reading of a monotonic counter. The unit of
// `rate` must match the unit of this clock by contract.
type Clock func() int64

// TokenBucket grants at most `burst` tokens immediately and refills at `rate`
// tokens per clock unit.
type TokenBucket struct {
	clock Clock
	rate  float64
	burst float64

	mu           sync.Mutex
	tokens       float64
	lastRefillAt int64
}

// New creates a `TokenBucket` filled to capacity.
func New(clock Clock, rate float64, burst float64) (*TokenBucket, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("rate must be positive, but got %f", rate)
	}
	if burst <= 0 {
		return nil, fmt.Errorf("burst must be positive, but got %f", burst)
	}
	return &TokenBucket{
		clock:        clock,
		rate:         rate,
		burst:        burst,
		tokens:       burst,
		lastRefillAt: clock(),
	}, nil
}

// Request attempts to consume one token. It refills the bucket from the
// elapsed clock units first, then deducts one token if at least one is
// available. A denied request does not deduct tokens.
func (t *TokenBucket) Request() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.refill()
	if t.tokens >= 1 {
		t.tokens--
		return true
	}
	return false
}

func (t *TokenBucket) refill() {
	now := t.clock()
	if now <= t.lastRefillAt {
		return
	}
	t.tokens = min(t.tokens+float64(now-t.lastRefillAt)*t.rate, t.burst)
	t.lastRefillAt = now
}
