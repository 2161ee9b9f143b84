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
	"errors"
	"fmt"
	"runtime"
	"unsafe"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// SchedulingError is returned when scheduling policy or memory locking could not be changed
type SchedulingError struct {
	Op     string
	Policy Policy
	Err    error
}

func (e *SchedulingError) Error() string {
	return fmt.Sprintf("%s (policy %s): %v", e.Op, e.Policy, e.Err)
}

func (e *SchedulingError) Unwrap() error {
	return e.Err
}

// IsPermission tells if the error was caused by lack of privileges
func (e *SchedulingError) IsPermission() bool {
	return errors.Is(e.Err, unix.EPERM) || errors.Is(e.Err, unix.EACCES)
}

// struct sched_param from linux/sched/types.h
type schedParam struct {
	priority int32
}

// PriorityRange returns min and max static priority for the policy
func PriorityRange(p Policy) (minPrio, maxPrio int, err error) {
	r0, _, e1 := unix.Syscall(unix.SYS_SCHED_GET_PRIORITY_MIN, uintptr(p), 0, 0)
	if e1 != 0 {
		return 0, 0, fmt.Errorf("sched_get_priority_min: %w", e1)
	}
	r1, _, e1 := unix.Syscall(unix.SYS_SCHED_GET_PRIORITY_MAX, uintptr(p), 0, 0)
	if e1 != 0 {
		return 0, 0, fmt.Errorf("sched_get_priority_max: %w", e1)
	}
	return int(r0), int(r1), nil
}

// threadState is scheduling state of the calling thread as reported by the kernel
type threadState struct {
	// attr is set on kernels with sched_getattr, it includes nice and sched_flags
	attr *unix.SchedAttr
	// raw sched_getscheduler result, may carry SCHED_RESET_ON_FORK
	legacyPolicy uintptr
	legacyParam  schedParam
}

func saveThreadState() (*threadState, error) {
	if useSchedAttr() {
		attr, err := unix.SchedGetAttr(0, 0)
		if err != nil {
			return nil, fmt.Errorf("sched_getattr: %w", err)
		}
		return &threadState{attr: attr}, nil
	}
	r0, _, e1 := unix.Syscall(unix.SYS_SCHED_GETSCHEDULER, 0, 0, 0)
	if e1 != 0 {
		return nil, fmt.Errorf("sched_getscheduler: %w", e1)
	}
	s := &threadState{legacyPolicy: r0}
	if _, _, e1 := unix.Syscall(unix.SYS_SCHED_GETPARAM, 0, uintptr(unsafe.Pointer(&s.legacyParam)), 0); e1 != 0 {
		return nil, fmt.Errorf("sched_getparam: %w", e1)
	}
	return s, nil
}

// legacyPolicy converts sched_getscheduler result to Policy
func legacyPolicy(raw uintptr) Policy {
	return Policy(raw &^ unix.SCHED_RESET_ON_FORK)
}

func (s *threadState) policy() Policy {
	if s.attr != nil {
		return Policy(s.attr.Policy)
	}
	return legacyPolicy(s.legacyPolicy)
}

func (s *threadState) priority() int {
	if s.attr != nil {
		return int(s.attr.Priority)
	}
	return int(s.legacyParam.priority)
}

// restore applies saved state to the calling thread as is
func (s *threadState) restore() error {
	if s.attr != nil {
		attr := *s.attr
		if err := unix.SchedSetAttr(0, &attr, 0); err != nil {
			return fmt.Errorf("sched_setattr: %w", err)
		}
		return nil
	}
	// sched_setscheduler keeps nice and accepts SCHED_RESET_ON_FORK in policy
	param := s.legacyParam
	if _, _, e1 := unix.Syscall(unix.SYS_SCHED_SETSCHEDULER, 0, s.legacyPolicy, uintptr(unsafe.Pointer(&param))); e1 != 0 {
		return fmt.Errorf("sched_setscheduler: %w", e1)
	}
	return nil
}

// GetPolicy returns scheduling policy and static priority of the calling thread
func GetPolicy() (Policy, int, error) {
	s, err := saveThreadState()
	if err != nil {
		return PolicyOther, 0, err
	}
	return s.policy(), s.priority(), nil
}

// SetPolicy sets scheduling policy and static priority of the calling thread.
// Priority must be 0 for non real-time policies.
func SetPolicy(p Policy, priority int) error {
	if useSchedAttr() {
		attr := &unix.SchedAttr{
			Policy:   uint32(p),
			Priority: uint32(priority),
		}
		if err := unix.SchedSetAttr(0, attr, 0); err != nil {
			return fmt.Errorf("sched_setattr: %w", err)
		}
		return nil
	}
	param := schedParam{priority: int32(priority)}
	if _, _, e1 := unix.Syscall(unix.SYS_SCHED_SETSCHEDULER, 0, uintptr(p), uintptr(unsafe.Pointer(&param))); e1 != 0 {
		return fmt.Errorf("sched_setscheduler: %w", e1)
	}
	return nil
}

// Handle represents elevated scheduling state of the calling thread.
// It is returned by Acquire and must be released on the same goroutine.
type Handle struct {
	policy    Policy
	priority  int
	prev      *threadState
	memLocked bool
	active    bool
}

// Policy returns policy the thread runs with
func (h *Handle) Policy() Policy {
	return h.policy
}

// Priority returns static priority the thread runs with
func (h *Handle) Priority() int {
	return h.priority
}

// MemoryLocked tells if all current and future pages were locked
func (h *Handle) MemoryLocked() bool {
	return h.memLocked
}

// Release restores previous scheduling attributes including nice value, unlocks memory and unpins the goroutine from its thread
func (h *Handle) Release() error {
	if !h.active {
		return nil
	}
	h.active = false
	defer runtime.UnlockOSThread()
	var errs []error
	if h.memLocked {
		if err := unix.Munlockall(); err != nil {
			errs = append(errs, &SchedulingError{Op: "munlockall", Policy: h.policy, Err: err})
		}
		h.memLocked = false
	}
	if err := h.prev.restore(); err != nil {
		errs = append(errs, &SchedulingError{Op: "restoring policy", Policy: h.prev.policy(), Err: err})
	}
	log.Debugf("released %s scheduling, back to %s:%d", h.policy, h.prev.policy(), h.prev.priority())
	return errors.Join(errs...)
}

// Manager elevates scheduling of the calling thread
type Manager struct {
	// SkipMemoryLock disables mlockall, useful for environments with low RLIMIT_MEMLOCK
	SkipMemoryLock bool
}

// Acquire pins calling goroutine to its OS thread, switches the thread to real-time
// policy p at the maximum priority of that policy and locks all current and future memory pages.
// Nothing is changed if any step fails.
func (m *Manager) Acquire(p Policy) (*Handle, error) {
	if !p.IsRealtime() {
		return nil, &SchedulingError{Op: "acquire", Policy: p, Err: fmt.Errorf("not a real-time policy")}
	}
	_, maxPrio, err := PriorityRange(p)
	if err != nil {
		return nil, &SchedulingError{Op: "priority range", Policy: p, Err: err}
	}

	runtime.LockOSThread()
	prev, err := saveThreadState()
	if err != nil {
		runtime.UnlockOSThread()
		return nil, &SchedulingError{Op: "reading current policy", Policy: p, Err: err}
	}
	if err := SetPolicy(p, maxPrio); err != nil {
		runtime.UnlockOSThread()
		return nil, &SchedulingError{Op: "setting policy", Policy: p, Err: err}
	}
	h := &Handle{
		policy:   p,
		priority: maxPrio,
		prev:     prev,
		active:   true,
	}
	if !m.SkipMemoryLock {
		if err := unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE); err != nil {
			if rerr := prev.restore(); rerr != nil {
				log.Errorf("failed to restore %s scheduling: %v", prev.policy(), rerr)
			}
			runtime.UnlockOSThread()
			return nil, &SchedulingError{Op: "mlockall", Policy: p, Err: err}
		}
		h.memLocked = true
	}
	log.Debugf("switched from %s:%d to %s:%d, memory locked: %v", prev.policy(), prev.priority(), p, maxPrio, h.memLocked)
	return h, nil
}
