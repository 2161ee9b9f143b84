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
Package tsop implements arithmetic on timespec-like (seconds, nanoseconds) values.

Supported operations include
  - construction through New (as is) and FromSeconds / FromDuration (normalized)
  - conversion into nanoseconds, microseconds, milliseconds and seconds as float64
  - addition with carry
  - saturating subtraction, which returns zero instead of a negative value
  - multiplication by a non-negative integer

Conversions go through float64, so values beyond 2^53 nanoseconds (about 104 days)
lose precision. The package targets sub-day durations and monotonic clock readings.
*/
package tsop
