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
	"strings"
	"sync"

	version "github.com/hashicorp/go-version"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// sched_setattr(2) and sched_getattr(2) first appeared in Linux 3.14
var schedAttrMinKernel = version.Must(version.NewVersion("3.14"))

// KernelRelease returns kernel release as reported by uname(2)
func KernelRelease() (string, error) {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return "", err
	}
	return unix.ByteSliceToString(u.Release[:]), nil
}

// SupportsSchedAttr tells if kernel with given release supports sched_setattr(2).
// Vendor suffixes like "-generic" or "+" are ignored.
// Unparsable releases are assumed to be recent.
func SupportsSchedAttr(release string) bool {
	if i := strings.IndexAny(release, "-+_ "); i >= 0 {
		release = release[:i]
	}
	v, err := version.NewVersion(release)
	if err != nil {
		log.Debugf("failed to parse kernel release %q: %v", release, err)
		return true
	}
	return v.Core().GreaterThanOrEqual(schedAttrMinKernel)
}

var useSchedAttr = sync.OnceValue(func() bool {
	release, err := KernelRelease()
	if err != nil {
		log.Debugf("uname failed: %v", err)
		return true
	}
	supported := SupportsSchedAttr(release)
	log.Debugf("kernel %s, sched_setattr supported: %v", release, supported)
	return supported
})
