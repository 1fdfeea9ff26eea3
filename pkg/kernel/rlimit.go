// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of cubpf

package kernel

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// RaiseMemlockUnlimited raises RLIMIT_MEMLOCK to infinity if it isn't
// already unlimited. The kernel charges locked-memory accounting against
// this limit for every map and program page created by this process; on
// kernels old enough to require it, any BPF syscall before this call can
// fail with EPERM on an otherwise-correct object file.
func RaiseMemlockUnlimited() error {
	var rlim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_MEMLOCK, &rlim); err != nil {
		return errors.Wrap(err, "getrlimit(RLIMIT_MEMLOCK)")
	}

	if rlim.Cur == unix.RLIM_INFINITY && rlim.Max == unix.RLIM_INFINITY {
		return nil
	}

	rlim.Cur = unix.RLIM_INFINITY
	rlim.Max = unix.RLIM_INFINITY
	if err := unix.Setrlimit(unix.RLIMIT_MEMLOCK, &rlim); err != nil {
		return errors.Wrap(err, "setrlimit(RLIMIT_MEMLOCK)")
	}
	return nil
}
