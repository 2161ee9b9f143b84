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
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/sys/unix"

	"github.com/pida/rtjitter/clock"
	"github.com/pida/rtjitter/sched"
	"github.com/pida/rtjitter/tsop"
)

var tenMS = tsop.New(0, 10*tsop.NSPerMS)

// stepClock advances by step on every sleep, no matter the deadline
type stepClock struct {
	now  tsop.Timespec
	step tsop.Timespec
}

func (c *stepClock) Now() (tsop.Timespec, error) {
	return c.now, nil
}

func (c *stepClock) SleepUntil(_ context.Context, _ tsop.Timespec) error {
	c.now = c.now.Add(c.step)
	return nil
}

// lateClock wakes up late after every deadline, and optionally too early every other time
type lateClock struct {
	now    tsop.Timespec
	late   tsop.Timespec
	early  bool
	sleeps int
}

func (c *lateClock) Now() (tsop.Timespec, error) {
	return c.now, nil
}

func (c *lateClock) SleepUntil(_ context.Context, deadline tsop.Timespec) error {
	c.sleeps++
	if c.early && c.sleeps%2 == 1 {
		c.now = deadline.Sub(tsop.New(0, tsop.NSPerUS))
		return nil
	}
	c.now = deadline.Add(c.late)
	return nil
}

func TestRunNoJitter(t *testing.T) {
	c := &stepClock{now: tsop.New(100, 0), step: tenMS}
	h := New(c, nil)
	res, err := h.Run(context.Background(), Config{Period: tenMS, Iterations: 1000})
	require.NoError(t, err)
	require.Nil(t, res.Handle)
	require.Len(t, res.Samples, 1001)
	require.Equal(t, tsop.New(100, 0), res.Samples[0])
	require.Equal(t, tsop.New(110, 0), res.Samples[1000])

	s := res.Stats
	require.Equal(t, 1000, s.Intervals)
	require.Equal(t, tsop.New(10, 0), s.Expected)
	require.Equal(t, tsop.New(10, 0), s.Observed)
	require.Equal(t, tsop.Zero, s.TotalDeviation)
	require.Equal(t, 0.0, s.TotalErrorPct)
	require.Equal(t, 0.0, s.MinUS)
	require.Equal(t, 0.0, s.MaxUS)
	require.Equal(t, 0.0, s.MeanUS)
	require.Equal(t, 0.0, s.VarianceUS2)
	require.Equal(t, 0.0, s.MinPct)
	require.Equal(t, 0.0, s.MaxPct)
	require.InDelta(t, 100.0, s.RateHz(), 1e-9)
}

func TestRunConstantOvershoot(t *testing.T) {
	c := &stepClock{now: tsop.New(5, 0), step: tsop.New(0, 10*tsop.NSPerMS+50*tsop.NSPerUS)}
	h := New(c, nil)
	res, err := h.Run(context.Background(), Config{Period: tenMS, Iterations: 1000})
	require.NoError(t, err)

	s := res.Stats
	require.Equal(t, 50.0, s.MinUS)
	require.Equal(t, 50.0, s.MaxUS)
	require.InDelta(t, 50.0, s.MeanUS, 1e-9)
	require.InDelta(t, 0.0, s.VarianceUS2, 1e-9)
	require.InDelta(t, 0.0, s.StddevUS, 1e-4)
	require.Equal(t, tsop.New(0, 50*tsop.NSPerMS), s.TotalDeviation)
	require.InDelta(t, 0.5, s.TotalErrorPct, 1e-9)
	require.InDelta(t, 0.5, s.MinPct, 1e-9)
	require.InDelta(t, 0.5, s.MaxPct, 1e-9)
}

func TestRunLatenessDoesNotAccumulate(t *testing.T) {
	c := &lateClock{now: tsop.New(1, 0), late: tsop.New(0, 50*tsop.NSPerUS)}
	h := New(c, nil)
	res, err := h.Run(context.Background(), Config{Period: tenMS, Iterations: 100})
	require.NoError(t, err)
	for i := 1; i <= 100; i++ {
		want := tsop.New(1, 0).Add(tenMS.Mul(i)).Add(c.late)
		require.Equal(t, want, res.Samples[i], "sample %d", i)
	}

	s := res.Stats
	// only the first interval is stretched
	require.Equal(t, 0.0, s.MinUS)
	require.Equal(t, 50.0, s.MaxUS)
	require.InDelta(t, 0.5, s.MeanUS, 1e-9)
	require.Equal(t, tsop.New(0, 50*tsop.NSPerUS), s.TotalDeviation)
}

func TestRunRelativeLatenessAccumulates(t *testing.T) {
	c := &lateClock{now: tsop.New(1, 0), late: tsop.New(0, 50*tsop.NSPerUS)}
	h := New(c, nil)
	res, err := h.Run(context.Background(), Config{Period: tenMS, Iterations: 100, Relative: true})
	require.NoError(t, err)
	for i := 1; i <= 100; i++ {
		want := tsop.New(1, 0).Add(tenMS.Add(c.late).Mul(i))
		require.Equal(t, want, res.Samples[i], "sample %d", i)
	}

	s := res.Stats
	// every interval is stretched
	require.Equal(t, 50.0, s.MinUS)
	require.Equal(t, 50.0, s.MaxUS)
	require.InDelta(t, 50.0, s.MeanUS, 1e-9)
	require.Equal(t, tsop.New(0, 5*tsop.NSPerMS), s.TotalDeviation)
}

func TestRunEarlyWakeup(t *testing.T) {
	c := &lateClock{now: tsop.New(1, 0), early: true}
	h := New(c, nil)
	res, err := h.Run(context.Background(), Config{Period: tenMS, Iterations: 10})
	require.NoError(t, err)
	require.Equal(t, 20, c.sleeps)
	for i := 1; i <= 10; i++ {
		require.Equal(t, tsop.New(1, 0).Add(tenMS.Mul(i)), res.Samples[i])
	}
	require.Equal(t, 0.0, res.Stats.MaxUS)
}

func TestRunInterrupted(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := NewMockClock(ctrl)
	now := tsop.New(42, 0)
	sleeps := 0
	c.EXPECT().Now().DoAndReturn(func() (tsop.Timespec, error) { return now, nil }).Times(500)
	c.EXPECT().SleepUntil(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, deadline tsop.Timespec) error {
		sleeps++
		if sleeps == 500 {
			return fmt.Errorf("%w: %w", clock.ErrInterrupted, unix.EINTR)
		}
		now = deadline
		return nil
	}).Times(500)

	h := New(c, nil)
	res, err := h.Run(context.Background(), Config{Period: tenMS, Iterations: 1000})
	require.Nil(t, res)
	var ierr *InterruptedError
	require.ErrorAs(t, err, &ierr)
	require.Equal(t, 500, ierr.Iteration)
	require.Equal(t, tsop.New(42, 0).Add(tenMS.Mul(500)), ierr.Deadline)
	require.ErrorIs(t, err, clock.ErrInterrupted)
	require.ErrorIs(t, err, unix.EINTR)
}

func TestRunCancelled(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := NewMockClock(ctrl)
	c.EXPECT().Now().Return(tsop.New(1, 0), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h := New(c, nil)
	_, err := h.Run(ctx, Config{Period: tenMS, Iterations: 10})
	var ierr *InterruptedError
	require.ErrorAs(t, err, &ierr)
	require.Equal(t, 1, ierr.Iteration)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunClockError(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := NewMockClock(ctrl)
	c.EXPECT().Now().Return(tsop.Zero, unix.EINVAL)

	h := New(c, nil)
	_, err := h.Run(context.Background(), Config{Period: tenMS, Iterations: 10})
	require.ErrorIs(t, err, unix.EINVAL)
	var ierr *InterruptedError
	require.False(t, errors.As(err, &ierr))
}

func TestRunSchedulingError(t *testing.T) {
	ctrl := gomock.NewController(t)
	// no calls to clock are expected
	c := NewMockClock(ctrl)
	s := NewMockScheduler(ctrl)
	s.EXPECT().Acquire(sched.PolicyFIFO).Return(nil, &sched.SchedulingError{Op: "setting policy", Policy: sched.PolicyFIFO, Err: unix.EPERM})

	h := New(c, s)
	res, err := h.Run(context.Background(), Config{Period: tenMS, Iterations: 10, Realtime: true, Policy: sched.PolicyFIFO})
	require.Nil(t, res)
	var serr *sched.SchedulingError
	require.ErrorAs(t, err, &serr)
	require.True(t, serr.IsPermission())
}

func TestRunSchedulingErrorWrapped(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := NewMockScheduler(ctrl)
	s.EXPECT().Acquire(sched.PolicyRR).Return(nil, unix.EPERM)

	h := New(NewMockClock(ctrl), s)
	_, err := h.Run(context.Background(), Config{Period: tenMS, Iterations: 10, Realtime: true, Policy: sched.PolicyRR})
	var serr *sched.SchedulingError
	require.ErrorAs(t, err, &serr)
	require.Equal(t, sched.PolicyRR, serr.Policy)
	require.ErrorIs(t, err, unix.EPERM)
}

func TestRunRealtimeWithoutScheduler(t *testing.T) {
	h := New(&stepClock{step: tenMS}, nil)
	_, err := h.Run(context.Background(), Config{Period: tenMS, Iterations: 10, Realtime: true, Policy: sched.PolicyFIFO})
	var serr *sched.SchedulingError
	require.ErrorAs(t, err, &serr)
}

func TestRunRealtime(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := NewMockScheduler(ctrl)
	handle := &sched.Handle{}
	s.EXPECT().Acquire(sched.PolicyFIFO).Return(handle, nil)

	h := New(&stepClock{step: tenMS}, s)
	res, err := h.Run(context.Background(), Config{Period: tenMS, Iterations: 10, Realtime: true, Policy: sched.PolicyFIFO})
	require.NoError(t, err)
	require.Same(t, handle, res.Handle)
}

func TestRunInvalidConfig(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := New(NewMockClock(ctrl), NewMockScheduler(ctrl))
	_, err := h.Run(context.Background(), Config{Period: tenMS})
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, "iterations", cerr.Field)
}

func TestSweep(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := NewMockScheduler(ctrl)
	handle := &sched.Handle{}
	// scheduling is set up once for the whole sweep
	s.EXPECT().Acquire(sched.PolicyRR).Return(handle, nil).Times(1)

	c := &lateClock{now: tsop.New(1, 0)}
	h := New(c, s)
	periods := []tsop.Timespec{tenMS, tsop.New(0, tsop.NSPerMS), tsop.New(0, 100*tsop.NSPerUS)}
	results, err := h.Sweep(context.Background(), SweepConfig{
		Periods:    periods,
		Iterations: 20,
		Realtime:   true,
		Policy:     sched.PolicyRR,
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, res := range results {
		require.Equal(t, periods[i], res.Config.Period)
		require.Equal(t, periods[i], res.Stats.Period)
		require.Len(t, res.Samples, 21)
		require.Same(t, handle, res.Handle)
	}
}

func TestSweepInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &cancelClock{stepClock: stepClock{step: tenMS}, cancel: cancel, after: 30}
	h := New(c, nil)
	results, err := h.Sweep(ctx, SweepConfig{Periods: []tsop.Timespec{tenMS, tenMS}, Iterations: 20})
	require.Nil(t, results)
	var ierr *InterruptedError
	require.ErrorAs(t, err, &ierr)
	// 20 iterations of the first period, then 10 of the second one
	require.Equal(t, 11, ierr.Iteration)
}

func TestSweepInvalidConfig(t *testing.T) {
	h := New(&stepClock{}, nil)
	_, err := h.Sweep(context.Background(), SweepConfig{Iterations: 20})
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, "periods", cerr.Field)

	_, err = h.Sweep(context.Background(), SweepConfig{Periods: []tsop.Timespec{tenMS, tsop.Zero}, Iterations: 20})
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, "period", cerr.Field)
}

// cancelClock cancels context after given number of sleeps
type cancelClock struct {
	stepClock
	cancel context.CancelFunc
	after  int
	sleeps int
}

func (c *cancelClock) SleepUntil(ctx context.Context, deadline tsop.Timespec) error {
	c.sleeps++
	if c.sleeps == c.after {
		c.cancel()
	}
	return c.stepClock.SleepUntil(ctx, deadline)
}
