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
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	log "github.com/sirupsen/logrus"

	"github.com/pida/rtjitter/clock"
	"github.com/pida/rtjitter/sched"
	"github.com/pida/rtjitter/tsop"
)

//go:generate mockgen -source=harness.go -destination=mock_harness_test.go -package=jitter

// Clock is a monotonic clock we can sleep on
type Clock interface {
	Now() (tsop.Timespec, error)
	// SleepUntil blocks until absolute deadline
	SleepUntil(ctx context.Context, deadline tsop.Timespec) error
}

// Scheduler switches calling thread to real-time scheduling
type Scheduler interface {
	Acquire(p sched.Policy) (*sched.Handle, error)
}

// Result of a single measurement
type Result struct {
	Config  Config
	Samples []tsop.Timespec
	Stats   *Stats
	// Handle is nil for non real-time runs
	Handle *sched.Handle
}

// Harness wakes up periodically and records when it actually woke up
type Harness struct {
	clock     Clock
	scheduler Scheduler
}

// New returns Harness. Scheduler may be nil if real-time runs are never requested.
func New(c Clock, s Scheduler) *Harness {
	return &Harness{clock: c, scheduler: s}
}

// Run performs a single measurement.
// On success real-time scheduling, if requested, stays in effect and
// it's up to the caller to release Result.Handle once done with reporting.
// On failure nothing is returned and scheduling is restored.
func (h *Harness) Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	handle, err := h.setup(cfg.Realtime, cfg.Policy)
	if err != nil {
		return nil, err
	}
	res, err := h.run(ctx, cfg)
	if err != nil {
		h.release(handle)
		return nil, err
	}
	res.Handle = handle
	return res, nil
}

// Sweep performs measurement for each period in order, switching to real-time scheduling once.
// All results share the same Handle.
func (h *Harness) Sweep(ctx context.Context, cfg SweepConfig) ([]*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	handle, err := h.setup(cfg.Realtime, cfg.Policy)
	if err != nil {
		return nil, err
	}
	results := make([]*Result, 0, len(cfg.Periods))
	for _, period := range cfg.Periods {
		res, err := h.run(ctx, *cfg.config(period))
		if err != nil {
			h.release(handle)
			return nil, fmt.Errorf("period %v: %w", period, err)
		}
		res.Handle = handle
		results = append(results, res)
	}
	return results, nil
}

func (h *Harness) setup(realtime bool, p sched.Policy) (*sched.Handle, error) {
	if !realtime {
		return nil, nil
	}
	if h.scheduler == nil {
		return nil, &sched.SchedulingError{Op: "acquire", Policy: p, Err: errors.New("no scheduler configured")}
	}
	handle, err := h.scheduler.Acquire(p)
	if err != nil {
		var serr *sched.SchedulingError
		if !errors.As(err, &serr) {
			err = &sched.SchedulingError{Op: "acquire", Policy: p, Err: err}
		}
		return nil, err
	}
	log.Infof("running with %s scheduling at priority %d, memory locked: %v", handle.Policy(), handle.Priority(), handle.MemoryLocked())
	return handle, nil
}

func (h *Harness) release(handle *sched.Handle) {
	if handle == nil {
		return
	}
	if err := handle.Release(); err != nil {
		log.Errorf("failed to release scheduling: %v", err)
	}
}

func (h *Harness) run(ctx context.Context, cfg Config) (*Result, error) {
	log.Debugf("measuring %d wakeups every %v, relative: %v", cfg.Iterations, cfg.Period, cfg.Relative)
	samples, err := h.measure(ctx, cfg)
	if err != nil {
		return nil, err
	}
	stats, err := ComputeStats(samples, cfg.Period)
	if err != nil {
		return nil, err
	}
	log.Debugf("period %v: mean %.3fus, stddev %.3fus, max %.3fus", cfg.Period, stats.MeanUS, stats.StddevUS, stats.MaxUS)
	return &Result{
		Config:  cfg,
		Samples: samples,
		Stats:   stats,
	}, nil
}

// measure records iterations+1 samples. Deadlines are derived from the first sample,
// so late wakeups never push following deadlines. In relative mode every deadline
// is a period after the previous wakeup.
func (h *Harness) measure(ctx context.Context, cfg Config) ([]tsop.Timespec, error) {
	period := cfg.Period
	samples := make([]tsop.Timespec, cfg.Iterations+1)
	// no GC pauses while we measure
	defer debug.SetGCPercent(debug.SetGCPercent(-1))

	t0, err := h.clock.Now()
	if err != nil {
		return nil, fmt.Errorf("reading clock: %w", err)
	}
	samples[0] = t0
	deadline := t0.Add(period)
	for i := 1; i <= cfg.Iterations; i++ {
		now, err := h.wait(ctx, deadline)
		if err != nil {
			if errors.Is(err, clock.ErrInterrupted) {
				return nil, &InterruptedError{Iteration: i, Deadline: deadline, Err: err}
			}
			return nil, fmt.Errorf("iteration %d: %w", i, err)
		}
		samples[i] = now
		if cfg.Relative {
			deadline = now.Add(period)
		} else {
			deadline = deadline.Add(period)
		}
	}
	return samples, nil
}

// wait sleeps until deadline and returns time we woke up at
func (h *Harness) wait(ctx context.Context, deadline tsop.Timespec) (tsop.Timespec, error) {
	for {
		if err := ctx.Err(); err != nil {
			return tsop.Zero, fmt.Errorf("%w: %w", clock.ErrInterrupted, err)
		}
		if err := h.clock.SleepUntil(ctx, deadline); err != nil {
			return tsop.Zero, err
		}
		now, err := h.clock.Now()
		if err != nil {
			return tsop.Zero, fmt.Errorf("reading clock: %w", err)
		}
		if !now.Less(deadline) {
			return now, nil
		}
		log.Debugf("woke up %v early, going back to sleep", deadline.Sub(now))
	}
}
