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

package clock

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/pida/rtjitter/tsop"
)

// ErrInterrupted is returned when a wait was interrupted before reaching its deadline
var ErrInterrupted = errors.New("wait interrupted")

// Reader is something we can read time from
type Reader interface {
	Now() (tsop.Timespec, error)
}

// Monotonic is a clock backed by clock_gettime/clock_nanosleep on a POSIX clock id,
// CLOCK_MONOTONIC unless specified otherwise
type Monotonic struct {
	ID int32
}

// clocks clock_nanosleep accepts
var sleepableClocks = map[string]int32{
	"monotonic": unix.CLOCK_MONOTONIC,
	"realtime":  unix.CLOCK_REALTIME,
	"boottime":  unix.CLOCK_BOOTTIME,
	"tai":       unix.CLOCK_TAI,
}

// ParseClockID returns id of a clock we can sleep on by its name, like "monotonic"
func ParseClockID(name string) (int32, error) {
	id, ok := sleepableClocks[strings.TrimPrefix(strings.ToLower(name), "clock_")]
	if !ok {
		return 0, fmt.Errorf("unsupported clock %q, must be one of monotonic, realtime, boottime, tai", name)
	}
	return id, nil
}

// NewMonotonic returns CLOCK_MONOTONIC clock
func NewMonotonic() *Monotonic {
	return &Monotonic{ID: unix.CLOCK_MONOTONIC}
}

// FromUnix converts unix.Timespec to tsop.Timespec
func FromUnix(ts unix.Timespec) tsop.Timespec {
	sec, nsec := ts.Unix()
	return tsop.New(sec, nsec)
}

// ToUnix converts tsop.Timespec to unix.Timespec
func ToUnix(ts tsop.Timespec) unix.Timespec {
	return unix.NsecToTimespec(ts.Sec*tsop.NSPerSec + ts.Nsec)
}

// Now returns current time of the clock
func (c *Monotonic) Now() (tsop.Timespec, error) {
	var ts unix.Timespec
	if err := unix.ClockGettime(c.ID, &ts); err != nil {
		return tsop.Zero, fmt.Errorf("clock_gettime on clock %d: %w", c.ID, err)
	}
	return FromUnix(ts), nil
}

// SleepUntil blocks until the clock reaches deadline.
// EINTR is retried against the same deadline, unless ctx is done, in which case
// ErrInterrupted is returned.
func (c *Monotonic) SleepUntil(ctx context.Context, deadline tsop.Timespec) error {
	req := ToUnix(deadline)
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrInterrupted, err)
		}
		err := unix.ClockNanosleep(c.ID, unix.TIMER_ABSTIME, &req, nil)
		if err == nil {
			return nil
		}
		if !errors.Is(err, unix.EINTR) {
			return fmt.Errorf("clock_nanosleep on clock %d: %w", c.ID, err)
		}
	}
}

// Resolution returns clock resolution as reported by clock_getres
func Resolution(clockid int32) (tsop.Timespec, error) {
	var ts unix.Timespec
	if err := unix.ClockGetres(clockid, &ts); err != nil {
		return tsop.Zero, fmt.Errorf("clock_getres on clock %d: %w", clockid, err)
	}
	return FromUnix(ts), nil
}

// EstimateResolution reads the clock n times back to back
// and returns the smallest non-zero difference between two consecutive readings
func EstimateResolution(r Reader, n int) (tsop.Timespec, error) {
	if n < 2 {
		return tsop.Zero, fmt.Errorf("need at least 2 readings, got %d", n)
	}
	readings := make([]tsop.Timespec, n)
	for i := range readings {
		t, err := r.Now()
		if err != nil {
			return tsop.Zero, err
		}
		readings[i] = t
	}
	best := tsop.New(math.MaxInt64, 0)
	for i := 1; i < n; i++ {
		d := readings[i].Sub(readings[i-1])
		if !d.IsZero() && d.Less(best) {
			best = d
		}
	}
	if best.Sec == math.MaxInt64 {
		return tsop.Zero, fmt.Errorf("clock didn't advance over %d readings", n)
	}
	return best, nil
}
