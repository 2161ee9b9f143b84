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
Package sched controls how the calling thread is allocated CPU time by the kernel.

Linux scheduling attributes belong to threads, not processes, so everything here
applies to the calling OS thread. Acquire pins the calling goroutine to its thread
before changing anything and the returned Handle keeps it pinned until Release.
*/
package sched
