/*
Copyright (c) Facebook, Inc. and its affiliates.

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

package jitter

import (
	"errors"
	"fmt"

	"github.com/pida/rtjitter/tsop"
)

// ErrNotEnoughSamples is returned when statistics are requested for less than one interval
var ErrNotEnoughSamples = errors.New("not enough samples")

// ConfigError is returned for invalid run configuration, before any timestamps are taken
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("bad config: '%s' %s", e.Field, e.Reason)
}

// InterruptedError is returned when waiting for a deadline was interrupted.
// The run is aborted and collected samples are discarded.
type InterruptedError struct {
	Iteration int
	Deadline  tsop.Timespec
	Err       error
}

func (e *InterruptedError) Error() string {
	return fmt.Sprintf("iteration %d, waiting for %v: %v", e.Iteration, e.Deadline, e.Err)
}

func (e *InterruptedError) Unwrap() error {
	return e.Err
}
