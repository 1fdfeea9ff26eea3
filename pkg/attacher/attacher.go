// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of cubpf

// Package attacher implements the long-running daemon that opens pinned BPF
// programs and binds them to kernel tracepoints. Grounded on DaemonMain /
// attachToTracePoint in original_source/bpfAttacher/src/main.cpp.
package attacher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/chenzyadb/cubpf/pkg/kernel"
	"github.com/chenzyadb/cubpf/pkg/metrics"
)

// bpfRoot is a var rather than a const so tests can redirect it at a
// scratch directory.
var bpfRoot = "/sys/fs/bpf"

// daemonName is set as the thread comm field for process listings,
// matching the original's DAEMON_NAME. It is also passed to
// kernel.OverwriteArgv, which leaves argv itself unchanged.
const daemonName = "bpfDaemon"

// Tracepoint is a single "<category>/<event>" attachment request.
type Tracepoint struct {
	Category string
	Event    string
}

// ParseTracepoint splits "category/event" into its two components. Returns
// false if the input has no '/'.
func ParseTracepoint(s string) (Tracepoint, bool) {
	idx := strings.IndexByte(s, '/')
	if idx < 0 {
		return Tracepoint{}, false
	}
	return Tracepoint{Category: s[:idx], Event: s[idx+1:]}, true
}

func (t Tracepoint) String() string {
	return t.Category + "/" + t.Event
}

// pinnedObjectName returns the expected pinned filename for this tracepoint
// under programName, per the naming law in SPEC_FULL.md §8:
// prog_<program>_tracepoint_<category>_<event>.
func (t Tracepoint) pinnedObjectName(programName string) string {
	return fmt.Sprintf("prog_%s_tracepoint_%s_%s", programName, t.Category, t.Event)
}

// Config carries everything Run needs to attach a program's tracepoints.
type Config struct {
	ProgramName string
	Tracepoints []Tracepoint
}

// Run attaches every requested tracepoint, logs the outcome of each, logs
// the process id, and then blocks forever. It never returns under normal
// operation — termination is external (SIGTERM/SIGKILL).
func Run(cfg Config, log *logrus.Entry, m *metrics.Attacher) {
	kernel.OverwriteArgv(daemonName)
	if err := kernel.SetThreadName(daemonName); err != nil {
		log.WithError(err).Warn("failed to set thread name")
	}
	if err := kernel.SetSchedPriority(0, 120); err != nil {
		log.WithError(err).Warn("failed to set scheduling priority")
	}

	for _, tp := range cfg.Tracepoints {
		entry := log.WithField("tracepoint", tp.String())
		if err := attachOne(cfg.ProgramName, tp); err != nil {
			entry.Warnf(`The attachment of program "%s" to tracepoint "%s" failed: %v`, cfg.ProgramName, tp, err)
			if m != nil {
				m.ObserveAttach(tp.String(), false)
			}
			continue
		}
		entry.Infof(`The attachment of program "%s" to tracepoint "%s" succeeded.`, cfg.ProgramName, tp)
		if m != nil {
			m.ObserveAttach(tp.String(), true)
		}
	}

	log.Infof("Daemon Running (pid=%d).", os.Getpid())

	select {} // block forever; terminated only by signal delivery.
}

// attachOne walks the four-state pipeline Requested -> Found -> Opened ->
// Attached for a single tracepoint, returning the first error encountered.
func attachOne(programName string, tp Tracepoint) error {
	objectName := tp.pinnedObjectName(programName)

	found, err := findPinnedObject(objectName)
	if err != nil {
		return fmt.Errorf("enumerate %s: %w", bpfRoot, err)
	}
	if !found {
		return fmt.Errorf("pinned object %q not found under %s", objectName, bpfRoot)
	}

	progFd, err := kernel.OpenPinned(filepath.Join(bpfRoot, objectName))
	if err != nil {
		return fmt.Errorf("open pinned object: %w", err)
	}

	if _, err := kernel.AttachTracepoint(progFd, tp.Category, tp.Event); err != nil {
		return fmt.Errorf("attach tracepoint: %w", err)
	}

	return nil
}

// findPinnedObject reports whether a regular file named objectName exists
// directly under the BPF pseudo-filesystem root.
func findPinnedObject(objectName string) (bool, error) {
	entries, err := os.ReadDir(bpfRoot)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.Type().IsRegular() && e.Name() == objectName {
			return true, nil
		}
	}
	return false, nil
}
