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
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v2"

	"github.com/pida/rtjitter/sched"
	"github.com/pida/rtjitter/tsop"
)

// DefaultIterations is a number of wakeups per measurement
const DefaultIterations = 1000

// DefaultPeriods are the periods we sweep through, from 10Hz to 10kHz
var DefaultPeriods = []tsop.Timespec{
	tsop.New(0, 100*tsop.NSPerMS), // 10 Hz
	tsop.New(0, 50*tsop.NSPerMS),  // 20 Hz
	tsop.New(0, 20*tsop.NSPerMS),  // 50 Hz
	tsop.New(0, 10*tsop.NSPerMS),  // 100 Hz
	tsop.New(0, 5*tsop.NSPerMS),   // 200 Hz
	tsop.New(0, 2*tsop.NSPerMS),   // 500 Hz
	tsop.New(0, 1*tsop.NSPerMS),   // 1 kHz
	tsop.New(0, 500*tsop.NSPerUS), // 2 kHz
	tsop.New(0, 200*tsop.NSPerUS), // 5 kHz
	tsop.New(0, 100*tsop.NSPerUS), // 10 kHz
}

// Config describes a single measurement
type Config struct {
	Period     tsop.Timespec
	Iterations int
	// Realtime requests real-time scheduling and memory locking
	Realtime bool
	Policy   sched.Policy
	// Relative derives every deadline from the previous wakeup instead of the start,
	// so lateness accumulates. Only useful for comparison with the default.
	Relative bool
}

// Validate checks config before anything is measured
func (c *Config) Validate() error {
	if c.Iterations <= 0 {
		return &ConfigError{Field: "iterations", Reason: "must be >0"}
	}
	if !c.Period.IsNormalized() {
		return &ConfigError{Field: "period", Reason: "nanoseconds must be within [0, 1s)"}
	}
	if c.Period.Compare(tsop.Zero) <= 0 {
		return &ConfigError{Field: "period", Reason: "must be >0"}
	}
	if c.Realtime && !c.Policy.IsRealtime() {
		return &ConfigError{Field: "policy", Reason: fmt.Sprintf("must be fifo or rr for real-time runs, got %s", c.Policy)}
	}
	return nil
}

// SweepConfig describes a series of measurements sharing scheduling setup
type SweepConfig struct {
	Periods    []tsop.Timespec
	Iterations int
	Realtime   bool
	Policy     sched.Policy
	Relative   bool
}

// Validate checks every measurement of the sweep
func (c *SweepConfig) Validate() error {
	if len(c.Periods) == 0 {
		return &ConfigError{Field: "periods", Reason: "must not be empty"}
	}
	for _, p := range c.Periods {
		if err := c.config(p).Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *SweepConfig) config(period tsop.Timespec) *Config {
	return &Config{
		Period:     period,
		Iterations: c.Iterations,
		Realtime:   c.Realtime,
		Policy:     c.Policy,
		Relative:   c.Relative,
	}
}

// FileConfig represents sweep configuration we expect to read from file
type FileConfig struct {
	Periods    []time.Duration // periods to measure, in order
	Iterations int             // wakeups per period
	Realtime   bool            // switch to real-time scheduling and lock memory
	Policy     sched.Policy    // fifo or rr
	Relative   bool            // sleep for period after every wakeup instead of using absolute deadlines
	Assert     string          // expression every run must satisfy
	check      *Check
}

// EvalAndValidate makes sure config is valid and prepares the assert expression
func (c *FileConfig) EvalAndValidate() error {
	if len(c.Periods) == 0 {
		return fmt.Errorf("bad config: 'periods' must not be empty")
	}
	if c.Iterations <= 0 {
		return fmt.Errorf("bad config: 'iterations' must be >0")
	}
	for _, p := range c.Periods {
		if p <= 0 {
			return fmt.Errorf("bad config: 'periods' must be >0, got %v", p)
		}
	}
	if c.Realtime && !c.Policy.IsRealtime() {
		return fmt.Errorf("bad config: 'policy' must be fifo or rr for real-time runs")
	}
	if c.Assert != "" {
		check, err := NewCheck(c.Assert)
		if err != nil {
			return fmt.Errorf("evaluating assert: %w", err)
		}
		c.check = check
	}
	return nil
}

// Check returns prepared assert expression, nil if there is none
func (c *FileConfig) Check() *Check {
	return c.check
}

// SweepConfig converts file config into SweepConfig
func (c *FileConfig) SweepConfig() SweepConfig {
	periods := make([]tsop.Timespec, 0, len(c.Periods))
	for _, p := range c.Periods {
		periods = append(periods, tsop.FromDuration(p))
	}
	return SweepConfig{
		Periods:    periods,
		Iterations: c.Iterations,
		Realtime:   c.Realtime,
		Policy:     c.Policy,
		Relative:   c.Relative,
	}
}

// ReadConfig reads config and unmarshals it from yaml into FileConfig
func ReadConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := FileConfig{
		Iterations: DefaultIterations,
		Policy:     sched.PolicyFIFO,
	}
	err = yaml.UnmarshalStrict(data, &c)
	return &c, err
}
