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

package sched

import (
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

// Policy is a Linux scheduling policy
type Policy int

// Supported scheduling policies, values match SCHED_* constants from linux/sched.h
const (
	PolicyOther Policy = unix.SCHED_NORMAL
	PolicyFIFO  Policy = unix.SCHED_FIFO
	PolicyRR    Policy = unix.SCHED_RR
	PolicyBatch Policy = unix.SCHED_BATCH
	PolicyIdle  Policy = unix.SCHED_IDLE
)

var policyToString = map[Policy]string{
	PolicyOther: "other",
	PolicyFIFO:  "fifo",
	PolicyRR:    "rr",
	PolicyBatch: "batch",
	PolicyIdle:  "idle",
}

// Policies lists all supported policies
var Policies = []Policy{PolicyOther, PolicyFIFO, PolicyRR, PolicyBatch, PolicyIdle}

// ParsePolicy returns Policy by its name. SCHED_ prefix and case are ignored.
func ParsePolicy(s string) (Policy, error) {
	name := strings.TrimPrefix(strings.ToLower(s), "sched_")
	if name == "normal" {
		return PolicyOther, nil
	}
	for p, n := range policyToString {
		if n == name {
			return p, nil
		}
	}
	return PolicyOther, fmt.Errorf("unknown scheduling policy %q", s)
}

// IsRealtime returns true for policies with static priorities
func (p Policy) IsRealtime() bool {
	return p == PolicyFIFO || p == PolicyRR
}

func (p Policy) String() string {
	if s, found := policyToString[p]; found {
		return s
	}
	return fmt.Sprintf("unsupported(%d)", int(p))
}

// Type is needed to implement the pflag.Value interface
func (p *Policy) Type() string {
	return "policy"
}

// Set is needed to implement the pflag.Value interface
func (p *Policy) Set(s string) error {
	v, err := ParsePolicy(s)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// MarshalText is used for json output
func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses policy name
func (p *Policy) UnmarshalText(text []byte) error {
	return p.Set(string(text))
}

// UnmarshalYAML parses policy name from yaml config
func (p *Policy) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return p.Set(s)
}
