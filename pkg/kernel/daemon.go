// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of cubpf

package kernel

import (
	"os"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// SetThreadName sets the calling thread's comm field (as seen in
// /proc/self/status and process listings) via prctl(PR_SET_NAME, ...).
// Mirrors CU::SetThreadName in the original attacher.
func SetThreadName(name string) error {
	b := append([]byte(name), 0)
	if err := unix.Prctl(unix.PR_SET_NAME, uintptr(unsafe.Pointer(&b[0])), 0, 0, 0); err != nil {
		return errors.Wrap(err, "prctl(PR_SET_NAME)")
	}
	return nil
}

// SetSchedPriority sets the scheduling policy/nice-equivalent priority for
// pid (0 meaning the calling process) via setpriority(2). Mirrors
// CU::SetTaskSchedPrio(0, 120) in the original attacher, which on Android's
// bionic libc maps onto a nice-value style priority rather than POSIX
// SCHED_* policy numbers; here it is a direct setpriority(PRIO_PROCESS, ...) call.
func SetSchedPriority(pid, priority int) error {
	if err := unix.Setpriority(unix.PRIO_PROCESS, pid, priority); err != nil {
		return errors.Wrap(err, "setpriority")
	}
	return nil
}

// OverwriteArgv blanks out argv and writes name into argv[0]'s backing
// storage, so process listings (ps, /proc/<pid>/cmdline) show name instead
// of the original invocation. Purely cosmetic — SPEC_FULL.md §9 notes an
// implementation may omit this without changing semantics. Best-effort: any
// failure to locate a writable argv backing array is silently ignored.
func OverwriteArgv(name string) {
	args := os.Args
	total := 0
	for _, a := range args {
		total += len(a) + 1
	}
	if total == 0 || len(args) == 0 || len(args[0]) == 0 {
		return
	}
	// []byte(args[0]) is a fresh copy; clearing it and copying name into it
	// does not touch the original argv bytes.
	buf := []byte(args[0])
	for i := range buf {
		buf[i] = 0
	}
	copy(buf, name)
}
