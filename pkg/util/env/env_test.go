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

package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	logutil "github.com/zetxqx/search-backpressure/pkg/util/logging"
)

func TestGetEnvFloat(t *testing.T) {
	logger := logutil.NewTestLogger()

	t.Run("ParsesValidValue", func(t *testing.T) {
		t.Setenv("TEST_FLOAT", "0.75")
		assert.Equal(t, 0.75, GetEnvFloat("TEST_FLOAT", 0.1, logger))
	})
	t.Run("FallsBackOnMalformedValue", func(t *testing.T) {
		t.Setenv("TEST_FLOAT", "not-a-float")
		assert.Equal(t, 0.1, GetEnvFloat("TEST_FLOAT", 0.1, logger))
	})
	t.Run("FallsBackOnMissingValue", func(t *testing.T) {
		assert.Equal(t, 0.1, GetEnvFloat("TEST_FLOAT_MISSING", 0.1, logger))
	})
}

func TestGetEnvInt(t *testing.T) {
	logger := logutil.NewTestLogger()

	t.Run("ParsesValidValue", func(t *testing.T) {
		t.Setenv("TEST_INT", "42")
		assert.Equal(t, 42, GetEnvInt("TEST_INT", 3, logger))
	})
	t.Run("FallsBackOnMalformedValue", func(t *testing.T) {
		t.Setenv("TEST_INT", "4.2")
		assert.Equal(t, 3, GetEnvInt("TEST_INT", 3, logger))
	})
}

func TestGetEnvBool(t *testing.T) {
	logger := logutil.NewTestLogger()

	t.Run("ParsesValidValue", func(t *testing.T) {
		t.Setenv("TEST_BOOL", "false")
		assert.False(t, GetEnvBool("TEST_BOOL", true, logger))
	})
	t.Run("FallsBackOnMalformedValue", func(t *testing.T) {
		t.Setenv("TEST_BOOL", "yes-please")
		assert.True(t, GetEnvBool("TEST_BOOL", true, logger))
	})
}

func TestGetEnvDuration(t *testing.T) {
	logger := logutil.NewTestLogger()

	t.Run("ParsesValidValue", func(t *testing.T) {
		t.Setenv("TEST_DURATION", "1500ms")
		assert.Equal(t, 1500*time.Millisecond, GetEnvDuration("TEST_DURATION", time.Second, logger))
	})
	t.Run("FallsBackOnMalformedValue", func(t *testing.T) {
		t.Setenv("TEST_DURATION", "1500")
		assert.Equal(t, time.Second, GetEnvDuration("TEST_DURATION", time.Second, logger))
	})
}
