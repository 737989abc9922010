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

// Package streak provides a counter for consecutive boolean observations.
package streak

import "sync/atomic"

// Streak counts the number of consecutive `true` observations.
// A `false` observation resets the count to zero.
//
// `Record` is safe for concurrent use, although the intended caller is a single
// periodic control loop.
type Streak struct {
	length atomic.Int64
}

// Record registers one observation and returns the resulting run length.
// Recording `false` always returns zero.
func (s *Streak) Record(hit bool) int {
	if !hit {
		s.length.Store(0)
		return 0
	}
	return int(s.length.Add(1))
}

// Length returns the current run length without recording an observation.
func (s *Streak) Length() int {
	return int(s.length.Load())
}
