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
)

// flags
var (
	sweepConfigFlag       string
	sweepPeriodsFlag      []time.Duration
	sweepIterationsFlag   int
	sweepRealtimeFlag     bool
	sweepPolicyFlag       = sched.PolicyFIFO
	sweepFormatFlag       report.Format
	sweepOutputFlag       string
	sweepCaptionFlag      string
	sweepLabelFlag        string
	sweepAssertFlag       string
	sweepPromTextfileFlag string
	sweepHostInfoFlag     bool
	sweepFallbackFlag     bool
	sweepClockFlag        string
	sweepNoMlockFlag      bool
	sweepRelativeFlag     bool
)

func defaultSweepPeriods() []time.Duration {
	periods := make([]time.Duration, 0, len(jitter.DefaultPeriods))
	for _, p := range jitter.DefaultPeriods {
		periods = append(periods, p.Duration())
	}
	return periods
}

func init() {
	RootCmd.AddCommand(sweepCmd)
	sweepCmd.Flags().StringVarP(&sweepConfigFlag, "config", "c", "", "path to yaml config. Measurement flags are ignored when it's set")
	sweepCmd.Flags().DurationSliceVar(&sweepPeriodsFlag, "periods", defaultSweepPeriods(), "wakeup periods to measure, in order")
	sweepCmd.Flags().IntVarP(&sweepIterationsFlag, "iterations", "n", jitter.DefaultIterations, "number of wakeups per period")
	sweepCmd.Flags().BoolVarP(&sweepRealtimeFlag, "realtime", "r", false, "switch to real-time scheduling and lock memory")
	sweepCmd.Flags().Var(&sweepPolicyFlag, "policy", "real-time scheduling policy, fifo or rr")
	sweepCmd.Flags().StringVar(&sweepAssertFlag, "assert", "", "expression every period must satisfy, see 'rtjitter run --help'")
	sweepCmd.Flags().VarP(&sweepFormatFlag, "format", "f", "report format: table, tsv, latex, csv or json. Table on a terminal, tsv otherwise")
	sweepCmd.Flags().StringVarP(&sweepOutputFlag, "output", "o", "", "write report to this file instead of stdout")
	sweepCmd.Flags().StringVar(&sweepCaptionFlag, "caption", "", "latex table caption")
	sweepCmd.Flags().StringVar(&sweepLabelFlag, "label", report.DefaultLabel, "latex table label, tab: prefix is added")
	sweepCmd.Flags().StringVar(&sweepPromTextfileFlag, "prom-textfile", "", "write results to this file in prometheus text format")
	sweepCmd.Flags().BoolVar(&sweepHostInfoFlag, "host-info", false, "print host info and process counters collected during the sweep")
	sweepCmd.Flags().BoolVar(&sweepFallbackFlag, "fallback", false, "measure without real-time scheduling if it can't be set up")
	sweepCmd.Flags().StringVar(&sweepClockFlag, "clock", "monotonic", "clock to sleep on: monotonic, realtime, boottime or tai")
	sweepCmd.Flags().BoolVar(&sweepNoMlockFlag, "no-mlock", false, "don't lock memory in real-time mode")
	sweepCmd.Flags().BoolVar(&sweepRelativeFlag, "relative", false, "sleep for period after every wakeup instead of until absolute deadlines, lateness accumulates")
}

// sweepConfig builds sweep config either from file or from flags
func sweepConfig(cmd *cobra.Command) (*jitter.FileConfig, error) {
	if sweepConfigFlag == "" {
		c := &jitter.FileConfig{
			Periods:    sweepPeriodsFlag,
			Iterations: sweepIterationsFlag,
			Realtime:   sweepRealtimeFlag,
			Policy:     sweepPolicyFlag,
			Relative:   sweepRelativeFlag,
			Assert:     sweepAssertFlag,
		}
		return c, c.EvalAndValidate()
	}
	for _, name := range []string{"periods", "iterations", "realtime", "policy", "relative", "assert"} {
		if cmd.Flags().Changed(name) {
			log.Warningf("config file %s is used, ignoring --%s", sweepConfigFlag, name)
		}
	}
	c, err := jitter.ReadConfig(sweepConfigFlag)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", sweepConfigFlag, err)
	}
	return c, c.EvalAndValidate()
}

// sweepHarness builds clock and scheduler from flags
func sweepHarness() (*clock.Monotonic, *sched.Manager, error) {
	clockID, err := clock.ParseClockID(sweepClockFlag)
	if err != nil {
		return nil, nil, err
	}
	return &clock.Monotonic{ID: clockID}, &sched.Manager{SkipMemoryLock: sweepNoMlockFlag}, nil
}

func runSweep(ctx context.Context, cmd *cobra.Command) error {
	fc, err := sweepConfig(cmd)
	if err != nil {
		return err
	}
	c, m, err := sweepHarness()
	if err != nil {
		return err
	}
	cfg := fc.SweepConfig()

	out := os.Stdout
	if sweepOutputFlag != "" {
		f, err := os.Create(sweepOutputFlag)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	h := jitter.New(c, m)
	counters := newCounterSampler()
	results, err := withFallback(cfg.Realtime, sweepFallbackFlag, func(realtime bool) ([]*jitter.Result, error) {
		cfg.Realtime = realtime
		return h.Sweep(ctx, cfg)
	})
	if err != nil {
		return err
	}
	defer releaseHandle(results)
	delta := counters.delta()

	opts := report.Options{Caption: sweepCaptionFlag, Label: sweepLabelFlag}
	if err := report.Write(out, outputFormat(sweepFormatFlag, out), report.Rows(results), opts); err != nil {
		return err
	}
	if sweepHostInfoFlag {
		printHostInfo(os.Stdout, delta)
	}
	if sweepPromTextfileFlag != "" {
		if err := report.WritePromTextfile(sweepPromTextfileFlag, results); err != nil {
			return fmt.Errorf("writing prometheus textfile: %w", err)
		}
	}
	if check := fc.Check(); check != nil {
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

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Measure wakeup jitter for a series of periods, from 10Hz to 10kHz by default",
	Run: func(cmd *cobra.Command, _ []string) {
		ConfigureVerbosity()
		ctx, cancel := signalContext()
		defer cancel()

		if err := runSweep(ctx, cmd); err != nil {
			log.Fatal(err)
		}
	},
}
