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
	"runtime"
	"strconv"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pida/rtjitter/sched"
)

func init() {
	RootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyGetCmd)
	policyCmd.AddCommand(policySetCmd)
	policyCmd.AddCommand(policyRangeCmd)
}

func runPolicyGet() error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	p, prio, err := sched.GetPolicy()
	if err != nil {
		return err
	}
	fmt.Printf("policy: %s, priority: %d\n", p, prio)
	return nil
}

// runPolicySet switches a thread to the policy and back, which tells if we are allowed to do so
func runPolicySet(name, prioStr string) error {
	p, err := sched.ParsePolicy(name)
	if err != nil {
		return err
	}
	prio, err := strconv.Atoi(prioStr)
	if err != nil {
		return fmt.Errorf("parsing priority %q: %w", prioStr, err)
	}
	minPrio, maxPrio, err := sched.PriorityRange(p)
	if err != nil {
		return err
	}
	if prio < minPrio || prio > maxPrio {
		return fmt.Errorf("priority %d is out of [%d, %d] range for %s", prio, minPrio, maxPrio, p)
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	prevPolicy, prevPrio, err := sched.GetPolicy()
	if err != nil {
		return err
	}
	if err := sched.SetPolicy(p, prio); err != nil {
		return &sched.SchedulingError{Op: "setting policy", Policy: p, Err: err}
	}
	got, gotPrio, err := sched.GetPolicy()
	if err != nil {
		return err
	}
	fmt.Printf("%s policy: %s, priority: %d\n", okString, got, gotPrio)
	if err := sched.SetPolicy(prevPolicy, prevPrio); err != nil {
		return &sched.SchedulingError{Op: "restoring policy", Policy: prevPolicy, Err: err}
	}
	return nil
}

func runPolicyRange(name string) error {
	p, err := sched.ParsePolicy(name)
	if err != nil {
		return err
	}
	minPrio, maxPrio, err := sched.PriorityRange(p)
	if err != nil {
		return err
	}
	fmt.Printf("%s: min priority %d, max priority %d\n", p, minPrio, maxPrio)
	return nil
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect thread scheduling policies",
}

var policyGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print scheduling policy and priority we run with",
	Args:  cobra.NoArgs,
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		if err := runPolicyGet(); err != nil {
			log.Fatal(err)
		}
	},
}

var policySetCmd = &cobra.Command{
	Use:   "set <policy> <priority>",
	Short: "Check we can switch to the policy. The change only lasts while the command runs",
	Args:  cobra.ExactArgs(2),
	Run: func(_ *cobra.Command, args []string) {
		ConfigureVerbosity()
		if err := runPolicySet(args[0], args[1]); err != nil {
			log.Fatal(err)
		}
	},
}

var policyRangeCmd = &cobra.Command{
	Use:   "range <policy>",
	Short: "Print priority range of the policy",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		ConfigureVerbosity()
		if err := runPolicyRange(args[0]); err != nil {
			log.Fatal(err)
		}
	},
}
