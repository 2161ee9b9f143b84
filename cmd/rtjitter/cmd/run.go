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
	"context"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pida/rtjitter/clock"
	"github.com/pida/rtjitter/jitter"
	"github.com/pida/rtjitter/report"
	"github.com/pida/rtjitter/sched"
	"github.com/pida/rtjitter/tsop"
)

// flags
var (
	runPeriodFlag       time.Duration
	runIterationsFlag   int
	runRealtimeFlag     bool
	runPolicyFlag       = sched.PolicyFIFO
	runFormatFlag       report.Format
	runSamplesFlag      bool
	runAssertFlag       string
	runPromTextfileFlag string
	runHostInfoFlag     bool
	runFallbackFlag     bool
	runClockFlag        string
	runNoMlockFlag      bool
	runRelativeFlag     bool
)

func init() {
	RootCmd.AddCommand(runCmd)
	runCmd.Flags().DurationVarP(&runPeriodFlag, "period", "p", 10*time.Millisecond, "wakeup period")
	runCmd.Flags().IntVarP(&runIterationsFlag, "iterations", "n", jitter.DefaultIterations, "number of wakeups")
	runCmd.Flags().BoolVarP(&runRealtimeFlag, "realtime", "r", false, "switch to real-time scheduling and lock memory")
	runCmd.Flags().Var(&runPolicyFlag, "policy", "real-time scheduling policy, fifo or rr")
	runCmd.Flags().VarP(&runFormatFlag, "format", "f", "report format: table, tsv, latex, csv or json. Table on a terminal, tsv otherwise")
	runCmd.Flags().BoolVar(&runSamplesFlag, "samples", false, "dump raw samples after the report")
	runCmd.Flags().StringVar(&runAssertFlag, "assert", "", jitter.CheckHelp)
	runCmd.Flags().StringVar(&runPromTextfileFlag, "prom-textfile", "", "write results to this file in prometheus text format")
	runCmd.Flags().BoolVar(&runHostInfoFlag, "host-info", false, "print host info and process counters collected during the run")
	runCmd.Flags().BoolVar(&runFallbackFlag, "fallback", false, "measure without real-time scheduling if it can't be set up")
	runCmd.Flags().StringVar(&runClockFlag, "clock", "monotonic", "clock to sleep on: monotonic, realtime, boottime or tai")
	runCmd.Flags().BoolVar(&runNoMlockFlag, "no-mlock", false, "don't lock memory in real-time mode")
	runCmd.Flags().BoolVar(&runRelativeFlag, "relative", false, "sleep for period after every wakeup instead of until absolute deadlines, lateness accumulates")
}

func runRun(ctx context.Context) error {
	clockID, err := clock.ParseClockID(runClockFlag)
	if err != nil {
		return err
	}
	var check *jitter.Check
	if runAssertFlag != "" {
		if check, err = jitter.NewCheck(runAssertFlag); err != nil {
			return fmt.Errorf("evaluating assert: %w", err)
		}
	}
	cfg := jitter.Config{
		Period:     tsop.FromDuration(runPeriodFlag),
		Iterations: runIterationsFlag,
		Realtime:   runRealtimeFlag,
		Policy:     runPolicyFlag,
		Relative:   runRelativeFlag,
	}
	h := jitter.New(&clock.Monotonic{ID: clockID}, &sched.Manager{SkipMemoryLock: runNoMlockFlag})

	counters := newCounterSampler()
	res, err := withFallback(cfg.Realtime, runFallbackFlag, func(realtime bool) (*jitter.Result, error) {
		cfg.Realtime = realtime
		return h.Run(ctx, cfg)
	})
	if err != nil {
		return err
	}
	results := []*jitter.Result{res}
	defer releaseHandle(results)
	delta := counters.delta()

	if err := report.Write(os.Stdout, outputFormat(runFormatFlag, os.Stdout), report.Rows(results), report.Options{}); err != nil {
		return err
	}
	if runSamplesFlag {
		if err := report.WriteSamples(os.Stdout, res.Samples); err != nil {
			return err
		}
	}
	if runHostInfoFlag {
		printHostInfo(os.Stdout, delta)
	}
	if runPromTextfileFlag != "" {
		if err := report.WritePromTextfile(runPromTextfileFlag, results); err != nil {
			return fmt.Errorf("writing prometheus textfile: %w", err)
		}
	}
	if check != nil {
		passed, err := evaluateCheck(os.Stdout, check, results)
		if err != nil {
			return err
		}
		if !passed {
			return errCheckFailed
		}
	}
	return nil
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Wake up every period and report how late the wakeups were",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		ctx, cancel := signalContext()
		defer cancel()

		if err := runRun(ctx); err != nil {
			log.Fatal(err)
		}
	},
}
