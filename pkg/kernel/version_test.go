// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of cubpf

package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeKernelVersion(t *testing.T) {
	assert.Equal(t, uint32(0x050a002b), EncodeKernelVersion(5, 10, 43))
	assert.Equal(t, uint32(0), EncodeKernelVersion(0, 0, 0))
}

func TestParseKernelVersion(t *testing.T) {
	v, err := ParseKernelVersion("Linux version 5.10.43-android12-something\n")
	require.NoError(t, err)
	assert.Equal(t, EncodeKernelVersion(5, 10, 43), v)
}

func TestParseKernelVersion_NoSuffix(t *testing.T) {
	v, err := ParseKernelVersion("Linux version 4.19.113")
	require.NoError(t, err)
	assert.Equal(t, EncodeKernelVersion(4, 19, 113), v)
}

func TestParseKernelVersion_WrongPrefix(t *testing.T) {
	_, err := ParseKernelVersion("not a version string")
	assert.Error(t, err)
}

func TestParseKernelVersion_WrongComponentCount(t *testing.T) {
	_, err := ParseKernelVersion("Linux version 5.10")
	assert.Error(t, err)
}

func TestParseKernelVersion_Monotonic(t *testing.T) {
	lower, err := ParseKernelVersion("Linux version 5.4.0")
	require.NoError(t, err)
	higher, err := ParseKernelVersion("Linux version 5.10.0")
	require.NoError(t, err)
	assert.Less(t, lower, higher)
}
