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
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pida/rtjitter/clock"
)

// flags
var (
	resolutionSamplesFlag int
	resolutionClockFlag   string
)

func init() {
	RootCmd.AddCommand(resolutionCmd)
	resolutionCmd.Flags().IntVarP(&resolutionSamplesFlag, "samples", "n", 100000, "number of back to back clock reads")
	resolutionCmd.Flags().StringVar(&resolutionClockFlag, "clock", "monotonic", "clock to check: monotonic, realtime, boottime or tai")
}

func runResolution() error {
	id, err := clock.ParseClockID(resolutionClockFlag)
	if err != nil {
		return err
	}
	res, err := clock.Resolution(id)
	if err != nil {
		return err
	}
	fmt.Printf("clock_getres:       %v\n", res.Duration())
	estimated, err := clock.EstimateResolution(&clock.Monotonic{ID: id}, resolutionSamplesFlag)
	if err != nil {
		return err
	}
	fmt.Printf("smallest increment: %v over %d reads\n", estimated.Duration(), resolutionSamplesFlag)
	return nil
}

var resolutionCmd = &cobra.Command{
	Use:   "resolution",
	Short: "Print clock resolution, both reported and observed",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		if err := runResolution(); err != nil {
			log.Fatal(err)
		}
	},
}
