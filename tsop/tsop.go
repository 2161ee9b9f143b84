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

package tsop

import (
	"fmt"
	"math"
	"time"
)

// unit sizes in nanoseconds
const (
	NSPerSec = 1000000000
	NSPerMS  = 1000000
	NSPerUS  = 1000
)

// Timespec is a (seconds, nanoseconds) pair. It is used both for instants on a
// monotonic clock and for durations, callers keep track of which is which.
// Every value returned by arithmetic has Nsec in [0, 1e9).
type Timespec struct {
	Sec  int64
	Nsec int64
}

// Zero is the zero Timespec
var Zero = Timespec{}

// New returns a Timespec with fields stored as given. It doesn't normalize,
// nsec is expected to already be in [0, 1e9).
func New(sec, nsec int64) Timespec {
	return Timespec{Sec: sec, Nsec: nsec}
}

// FromSeconds converts a non-negative number of seconds into a Timespec.
// Fractional part is rounded to the nearest nanosecond.
func FromSeconds(t float64) Timespec {
	sec := math.Floor(t)
	nsec := int64(math.Round((t - sec) * NSPerSec))
	ts := Timespec{Sec: int64(sec), Nsec: nsec}
	if ts.Nsec >= NSPerSec {
		ts.Sec++
		ts.Nsec -= NSPerSec
	}
	return ts
}

// FromDuration converts time.Duration into a normalized Timespec
func FromDuration(d time.Duration) Timespec {
	sec := int64(d / time.Second)
	nsec := int64(d % time.Second)
	if nsec < 0 {
		sec--
		nsec += NSPerSec
	}
	return Timespec{Sec: sec, Nsec: nsec}
}

// Duration returns Timespec as time.Duration
func (ts Timespec) Duration() time.Duration {
	return time.Duration(ts.Sec)*time.Second + time.Duration(ts.Nsec)
}

// Nanoseconds returns value in nanoseconds
func (ts Timespec) Nanoseconds() float64 {
	return float64(ts.Sec)*float64(NSPerSec) + float64(ts.Nsec)
}

// Microseconds returns value in microseconds
func (ts Timespec) Microseconds() float64 {
	return ts.Nanoseconds() / NSPerUS
}

// Milliseconds returns value in milliseconds
func (ts Timespec) Milliseconds() float64 {
	return ts.Nanoseconds() / NSPerMS
}

// Seconds returns value in seconds
func (ts Timespec) Seconds() float64 {
	return ts.Nanoseconds() / NSPerSec
}

// Add returns ts+o. Both are expected to be normalized, so a single carry is enough.
func (ts Timespec) Add(o Timespec) Timespec {
	r := Timespec{
		Sec:  ts.Sec + o.Sec,
		Nsec: ts.Nsec + o.Nsec,
	}
	if r.Nsec >= NSPerSec {
		r.Sec++
		r.Nsec -= NSPerSec
	}
	return r
}

// Sub returns ts-o, or Zero if ts <= o.
// Negative differences are clamped, callers that need signed deltas must order operands themselves.
func (ts Timespec) Sub(o Timespec) Timespec {
	if ts.Compare(o) <= 0 {
		return Zero
	}
	r := Timespec{Sec: ts.Sec - o.Sec}
	if ts.Nsec < o.Nsec {
		// borrow a second
		r.Nsec = ts.Nsec + NSPerSec - o.Nsec
		r.Sec--
	} else {
		r.Nsec = ts.Nsec - o.Nsec
	}
	return r
}

// Mul returns ts added to itself factor times. Non-positive factor gives Zero.
// Result is the same as repeated Add, computed without the loop.
func (ts Timespec) Mul(factor int) Timespec {
	if factor <= 0 {
		return Zero
	}
	f := int64(factor)
	nsec := ts.Nsec * f
	return Timespec{
		Sec:  ts.Sec*f + nsec/NSPerSec,
		Nsec: nsec % NSPerSec,
	}
}

// Compare returns -1, 0 or +1 ordering by seconds first, then nanoseconds
func (ts Timespec) Compare(o Timespec) int {
	switch {
	case ts.Sec < o.Sec:
		return -1
	case ts.Sec > o.Sec:
		return 1
	case ts.Nsec < o.Nsec:
		return -1
	case ts.Nsec > o.Nsec:
		return 1
	}
	return 0
}

// Less reports whether ts is before o
func (ts Timespec) Less(o Timespec) bool {
	return ts.Compare(o) < 0
}

// IsZero reports whether ts is Zero
func (ts Timespec) IsZero() bool {
	return ts == Zero
}

// IsNormalized reports whether Nsec is within [0, 1e9)
func (ts Timespec) IsNormalized() bool {
	return ts.Nsec >= 0 && ts.Nsec < NSPerSec
}

func (ts Timespec) String() string {
	return fmt.Sprintf("%d.%09ds", ts.Sec, ts.Nsec)
}
