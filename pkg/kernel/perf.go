// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of cubpf

package kernel

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// perfTypeTracepoint is PERF_TYPE_TRACEPOINT.
const perfTypeTracepoint = 2

// ioctl request numbers for PERF_EVENT_IOC_SET_BPF / PERF_EVENT_IOC_ENABLE,
// computed from the _IOW/_IO macros in linux/perf_event.h. Hand-rolled here
// rather than imported, for the same reason the rest of this package avoids
// a general-purpose BPF/perf library.
const (
	perfEventIocEnable = 0x2400
	perfEventIocSetBPF = 0x40042408
)

// tracingEventsRoot is the tracefs directory this package reads tracepoint
// ids from.
const tracingEventsRoot = "/sys/kernel/tracing/events"

// AttachTracepoint opens a tracepoint-type performance event for
// "<category>/<event>", binds progFd to it via PERF_EVENT_IOC_SET_BPF, and
// enables the event. The returned file descriptor is the perf event fd the
// caller must keep open for the attachment to remain live — the kernel tears
// the attachment down when the fd is closed (or the owning process exits).
func AttachTracepoint(progFd int, category, event string) (int, error) {
	id, err := readTracepointID(category, event)
	if err != nil {
		return -1, err
	}

	attr := unix.PerfEventAttr{
		Type:   perfTypeTracepoint,
		Config: id,
		Sample: 1, // sample_period
		Wakeup: 1, // wakeup_events
	}

	perfFd, err := unix.PerfEventOpen(&attr, -1, 0, -1, 0)
	if err != nil {
		return -1, classifyPerfEventOpenError(err)
	}

	if err := unix.IoctlSetInt(perfFd, perfEventIocSetBPF, progFd); err != nil {
		unix.Close(perfFd)
		return -1, errors.Wrap(err, "PERF_EVENT_IOC_SET_BPF")
	}

	if err := unix.IoctlSetInt(perfFd, perfEventIocEnable, 0); err != nil {
		unix.Close(perfFd)
		return -1, errors.Wrap(err, "PERF_EVENT_IOC_ENABLE")
	}

	return perfFd, nil
}

// readTracepointID reads the numeric tracepoint id from tracefs for
// "<category>/<event>".
func readTracepointID(category, event string) (uint64, error) {
	path := fmt.Sprintf("%s/%s/%s/id", tracingEventsRoot, category, event)
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, errors.Wrapf(err, "read tracepoint id for %s/%s", category, event)
	}
	id, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parse tracepoint id for %s/%s", category, event)
	}
	return id, nil
}

// classifyPerfEventOpenError turns the documented perf_event_open(2) errnos
// into an operator-readable message. Grounded on the errno table used by
// nathanjsweet-ebpf/perf.go for the same syscall.
func classifyPerfEventOpenError(err error) error {
	errno, ok := err.(unix.Errno)
	if !ok {
		return errors.Wrap(err, "perf_event_open")
	}

	var msg string
	switch errno {
	case unix.E2BIG:
		msg = "perf_event_attr size is incorrect"
	case unix.EACCES:
		msg = "insufficient capabilities to create this event"
	case unix.EBADF:
		msg = "group_fd is invalid"
	case unix.EBUSY:
		msg = "another event already has exclusive access to the PMU"
	case unix.EFAULT:
		msg = "attr points to an invalid address"
	case unix.EINVAL:
		msg = "the specified event is invalid"
	case unix.EMFILE:
		msg = "this process has reached its limit of open events"
	case unix.ENODEV:
		msg = "this processor does not support this event type"
	case unix.ENOENT:
		msg = "the type setting is not valid"
	case unix.ENOSPC:
		msg = "the hardware limit for breakpoints has been reached"
	case unix.ENOSYS:
		msg = "sample type not supported by the hardware"
	case unix.EOPNOTSUPP:
		msg = "this event is not supported by the hardware"
	case unix.EOVERFLOW:
		msg = "sample_max_stack is larger than the kernel supports"
	case unix.EPERM:
		msg = "insufficient capability to request exclusive access"
	case unix.ESRCH:
		msg = "pid does not exist"
	default:
		return errors.Wrap(err, "perf_event_open")
	}
	return errors.Wrap(errno, "perf_event_open: "+msg)
}
