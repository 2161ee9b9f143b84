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

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/pida/rtjitter/jitter"
	"github.com/pida/rtjitter/report"
	"github.com/pida/rtjitter/sched"
	"github.com/pida/rtjitter/sysinfo"
)

var okString = color.GreenString("[ OK ]")
var failString = color.RedString("[FAIL]")

// errCheckFailed is returned when results don't satisfy the assert expression
var errCheckFailed = errors.New("check failed")

// outputFormat picks table for humans and tsv for pipes, unless asked otherwise
func outputFormat(f report.Format, out *os.File) report.Format {
	if f != "" {
		return f
	}
	if term.IsTerminal(int(out.Fd())) {
		return report.FormatTable
	}
	return report.FormatTSV
}

// withFallback runs measure and, if real-time scheduling can't be set up and fallback is allowed, runs it again without it
func withFallback[T any](realtime, fallback bool, measure func(realtime bool) (T, error)) (T, error) {
	res, err := measure(realtime)
	var serr *sched.SchedulingError
	if err != nil && realtime && fallback && errors.As(err, &serr) {
		log.Warningf("%v, continuing without real-time scheduling", err)
		return measure(false)
	}
	if err != nil && errors.As(err, &serr) && serr.IsPermission() {
		log.Error("real-time scheduling needs root or CAP_SYS_NICE and CAP_IPC_LOCK, use --fallback to measure anyway")
	}
	return res, err
}

// releaseHandle releases scheduling handle shared by results, if any
func releaseHandle(results []*jitter.Result) {
	if len(results) == 0 || results[0].Handle == nil {
		return
	}
	if err := results[0].Handle.Release(); err != nil {
		log.Errorf("failed to release real-time scheduling: %v", err)
	}
}

// evaluateCheck prints check result for every run and tells if all of them passed
func evaluateCheck(w io.Writer, check *jitter.Check, results []*jitter.Result) (bool, error) {
	passed := true
	for _, r := range results {
		ok, err := check.Evaluate(r.Stats)
		if err != nil {
			return false, err
		}
		status := okString
		if !ok {
			status = failString
			passed = false
		}
		fmt.Fprintf(w, "%s %v: %s\n", status, r.Stats.Period.Duration(), check.Expr)
	}
	return passed, nil
}

// counterSampler wraps sysinfo.ProcessSampler so failing to read counters never fails a run
type counterSampler struct {
	sampler *sysinfo.ProcessSampler
	before  *sysinfo.Counters
}

func newCounterSampler() *counterSampler {
	s, err := sysinfo.NewProcessSampler()
	if err != nil {
		log.Warningf("can't read process counters: %v", err)
		return &counterSampler{}
	}
	c := &counterSampler{sampler: s}
	if c.before, err = s.Counters(); err != nil {
		log.Warningf("can't read process counters: %v", err)
	}
	return c
}

// delta returns counters since the sampler was created, nil if they are unavailable
func (c *counterSampler) delta() *sysinfo.Counters {
	if c.sampler == nil || c.before == nil {
		return nil
	}
	after, err := c.sampler.Counters()
	if err != nil {
		log.Warningf("can't read process counters: %v", err)
		return nil
	}
	return after.Sub(c.before)
}

func printHostInfo(w io.Writer, counters *sysinfo.Counters) {
	h, err := sysinfo.CollectHost()
	if err != nil {
		log.Warningf("can't collect host info: %v", err)
	} else {
		h.Print(w)
	}
	if counters != nil {
		counters.Print(w)
	}
}
