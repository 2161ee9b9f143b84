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
Package jitter measures how late a thread wakes up when it sleeps until absolute deadlines.

Run takes a timestamp, then sleeps until every multiple of the period after it and
records when it actually woke up. Deadlines are derived from the first timestamp, so
a late wakeup never shifts the following ones. Samples are then summarized into Stats:
deviation of every interval from the period, total error and their distribution.
*/
package jitter
