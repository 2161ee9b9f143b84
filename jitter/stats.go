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
	"math"

	"github.com/eclesh/welford"
	"golang.org/x/exp/constraints"

	"github.com/pida/rtjitter/tsop"
)

// Stats summarizes a single measurement
type Stats struct {
	Period    tsop.Timespec
	Intervals int

	Expected       tsop.Timespec // Period * Intervals
	Observed       tsop.Timespec // last sample - first sample
	TotalDeviation tsop.Timespec // Observed - Expected, zero if we finished early
	TotalErrorPct  float64

	// per interval deviation from Period, in microseconds
	MinUS       float64
	MaxUS       float64
	MeanUS      float64
	VarianceUS2 float64
	StddevUS    float64

	// MinUS and MaxUS relative to Period
	MinPct float64
	MaxPct float64
}

// RateHz is the wakeup rate we asked for
func (s *Stats) RateHz() float64 {
	return 1 / s.Period.Seconds()
}

// Deviations returns deviation of each interval between consecutive samples from the period, in microseconds.
// Intervals shorter than period yield zero.
func Deviations(samples []tsop.Timespec, period tsop.Timespec) []float64 {
	if len(samples) < 2 {
		return nil
	}
	devs := make([]float64, len(samples)-1)
	for i := 1; i < len(samples); i++ {
		devs[i-1] = samples[i].Sub(samples[i-1]).Sub(period).Microseconds()
	}
	return devs
}

// ComputeStats calculates Stats for samples taken every period.
// samples[0] is the starting point, each following sample closes one interval.
func ComputeStats(samples []tsop.Timespec, period tsop.Timespec) (*Stats, error) {
	if len(samples) < 2 {
		return nil, ErrNotEnoughSamples
	}
	n := len(samples) - 1
	s := &Stats{
		Period:    period,
		Intervals: n,
		Expected:  period.Mul(n),
		Observed:  samples[n].Sub(samples[0]),
	}
	s.TotalDeviation = s.Observed.Sub(s.Expected)
	if expected := s.Expected.Nanoseconds(); expected > 0 {
		s.TotalErrorPct = s.TotalDeviation.Nanoseconds() / expected * 100
	}

	devs := Deviations(samples, period)
	s.MinUS, s.MaxUS = extrema(devs)
	s.MeanUS = mean(devs)
	s.VarianceUS2 = variance(devs, s.MeanUS)
	s.StddevUS = math.Sqrt(s.VarianceUS2)
	if periodUS := period.Microseconds(); periodUS > 0 {
		s.MinPct = s.MinUS / periodUS * 100
		s.MaxPct = s.MaxUS / periodUS * 100
	}
	return s, nil
}

func extrema[T constraints.Ordered](input []T) (lo, hi T) {
	if len(input) == 0 {
		return lo, hi
	}
	lo, hi = input[0], input[0]
	for _, v := range input[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

func mean(input []float64) float64 {
	s := welford.New()
	for _, v := range input {
		s.Add(v)
	}
	return s.Mean()
}

// variance is a population variance, welford gives us sample one
func variance(input []float64, m float64) float64 {
	if len(input) == 0 {
		return 0
	}
	var sum float64
	for _, v := range input {
		d := v - m
		sum += d * d
	}
	return sum / float64(len(input))
}
