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

// Package sysinfo collects host context which helps to interpret jitter measurements
package sysinfo

import (
	"fmt"
	"io"
	"os"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/load"
	"github.com/shirou/gopsutil/process"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/pida/rtjitter/clock"
)

// Host describes the machine we run on
type Host struct {
	Hostname        string
	Platform        string
	PlatformVersion string
	KernelVersion   string
	KernelArch      string
	CPUs            int
	Load1           float64
	Load5           float64
	Load15          float64
	// NTP frequency correction applied to CLOCK_REALTIME, CLOCK_MONOTONIC is slewed by it as well
	ClockFreqPPB    float64
	ClockMaxFreqPPB float64
	ClockState      string
}

// CollectHost gathers host information. Parts that can't be read are logged and left empty.
func CollectHost() (*Host, error) {
	info, err := host.Info()
	if err != nil {
		return nil, fmt.Errorf("reading host info: %w", err)
	}
	h := &Host{
		Hostname:        info.Hostname,
		Platform:        info.Platform,
		PlatformVersion: info.PlatformVersion,
		KernelVersion:   info.KernelVersion,
		KernelArch:      info.KernelArch,
	}
	if n, err := cpu.Counts(true); err == nil {
		h.CPUs = n
	} else {
		log.Warningf("failed to count CPUs: %v", err)
	}
	if avg, err := load.Avg(); err == nil {
		h.Load1, h.Load5, h.Load15 = avg.Load1, avg.Load5, avg.Load15
	} else {
		log.Warningf("failed to read load average: %v", err)
	}
	freq, state, err := clock.FrequencyPPB(unix.CLOCK_REALTIME)
	if err == nil {
		h.ClockFreqPPB = freq
		h.ClockState = clock.StateString(state)
	} else {
		log.Warningf("failed to read clock frequency: %v", err)
	}
	if maxFreq, _, err := clock.MaxFreqPPB(unix.CLOCK_REALTIME); err == nil {
		h.ClockMaxFreqPPB = maxFreq
	}
	return h, nil
}

// Print writes host information in a human readable way
func (h *Host) Print(w io.Writer) {
	fmt.Fprintf(w, "host:        %s\n", h.Hostname)
	fmt.Fprintf(w, "platform:    %s %s\n", h.Platform, h.PlatformVersion)
	fmt.Fprintf(w, "kernel:      %s %s\n", h.KernelVersion, h.KernelArch)
	fmt.Fprintf(w, "cpus:        %d\n", h.CPUs)
	fmt.Fprintf(w, "load:        %.2f %.2f %.2f\n", h.Load1, h.Load5, h.Load15)
	fmt.Fprintf(w, "clock freq:  %.3f PPB of max %.0f PPB (%s)\n", h.ClockFreqPPB, h.ClockMaxFreqPPB, h.ClockState)
}

// Counters are process counters which explain most of the outliers
type Counters struct {
	VoluntaryCtxSwitches   int64
	InvoluntaryCtxSwitches int64
	MinorFaults            uint64
	MajorFaults            uint64
}

// Sub returns c-prev, counters that went backwards yield zero
func (c *Counters) Sub(prev *Counters) *Counters {
	return &Counters{
		VoluntaryCtxSwitches:   max(c.VoluntaryCtxSwitches-prev.VoluntaryCtxSwitches, 0),
		InvoluntaryCtxSwitches: max(c.InvoluntaryCtxSwitches-prev.InvoluntaryCtxSwitches, 0),
		MinorFaults:            subUint(c.MinorFaults, prev.MinorFaults),
		MajorFaults:            subUint(c.MajorFaults, prev.MajorFaults),
	}
}

func subUint(cur, prev uint64) uint64 {
	if prev > cur {
		return 0
	}
	return cur - prev
}

// Print writes counters in a human readable way
func (c *Counters) Print(w io.Writer) {
	fmt.Fprintf(w, "context switches: %d voluntary, %d involuntary\n", c.VoluntaryCtxSwitches, c.InvoluntaryCtxSwitches)
	fmt.Fprintf(w, "page faults:      %d minor, %d major\n", c.MinorFaults, c.MajorFaults)
}

// ProcessSampler reads counters of a process
type ProcessSampler struct {
	proc *process.Process
}

// NewProcessSampler returns ProcessSampler for the current process
func NewProcessSampler() (*ProcessSampler, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &ProcessSampler{proc: proc}, nil
}

// Counters returns current values of process counters
func (p *ProcessSampler) Counters() (*Counters, error) {
	sw, err := p.proc.NumCtxSwitches()
	if err != nil {
		return nil, fmt.Errorf("reading context switches: %w", err)
	}
	faults, err := p.proc.PageFaults()
	if err != nil {
		return nil, fmt.Errorf("reading page faults: %w", err)
	}
	return &Counters{
		VoluntaryCtxSwitches:   sw.Voluntary,
		InvoluntaryCtxSwitches: sw.Involuntary,
		MinorFaults:            faults.MinorFaults,
		MajorFaults:            faults.MajorFaults,
	}, nil
}
