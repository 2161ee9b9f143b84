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

/*
Package clock contains wrappers around POSIX clock syscalls used for periodic wakeups.

Supported methods include
  - reading a clock through Monotonic.Now (CLOCK_GETTIME)
  - blocking until an absolute deadline through Monotonic.SleepUntil (CLOCK_NANOSLEEP with TIMER_ABSTIME)
  - reporting clock resolution, both as advertised by CLOCK_GETRES and as estimated from back-to-back reads
  - reading the frequency offset applied to the clock by NTP discipline through CLOCK_ADJTIME

Sleeping until an absolute deadline, rather than for a relative interval, keeps
scheduling overhead between reading the clock and going to sleep out of the next deadline.
*/
package clock
