// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of cubpf

package attacher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTracepoint(t *testing.T) {
	tp, ok := ParseTracepoint("sched/sched_switch")
	require.True(t, ok)
	assert.Equal(t, Tracepoint{Category: "sched", Event: "sched_switch"}, tp)
	assert.Equal(t, "sched/sched_switch", tp.String())
}

func TestParseTracepoint_NoSlash(t *testing.T) {
	_, ok := ParseTracepoint("sched_switch")
	assert.False(t, ok)
}

func TestPinnedObjectName(t *testing.T) {
	tp := Tracepoint{Category: "sched", Event: "sched_switch"}
	assert.Equal(t, "prog_util_monitor_tracepoint_sched_sched_switch", tp.pinnedObjectName("util_monitor"))
}

func overrideBpfRootForTest(dir string) func() {
	prev := bpfRoot
	bpfRoot = dir
	return func() { bpfRoot = prev }
}

func TestFindPinnedObject(t *testing.T) {
	dir := t.TempDir()
	restore := overrideBpfRootForTest(dir)
	defer restore()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "prog_a_tracepoint_sched_sched_switch"), []byte{}, 0o644))

	found, err := findPinnedObject("prog_a_tracepoint_sched_sched_switch")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = findPinnedObject("prog_a_tracepoint_sched_sched_wakeup")
	require.NoError(t, err)
	assert.False(t, found)
}
