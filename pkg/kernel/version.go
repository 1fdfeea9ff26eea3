// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of cubpf

package kernel

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const versionFile = "/proc/version"

const versionPrefix = "Linux version "

// EncodeKernelVersion packs a major.minor.sub triple the way the kernel's
// KERNEL_VERSION() macro does: (major<<24)|(minor<<16)|sub. The result is
// monotonic in the lexicographic triple (major, minor, sub).
func EncodeKernelVersion(major, minor, sub uint32) uint32 {
	return (major << 24) | (minor << 16) | sub
}

// ParseKernelVersion extracts (major<<24)|(minor<<16)|sub from the contents
// of /proc/version, e.g. "Linux version 5.10.43-android12-...". Returns an
// error if the input doesn't start with the expected prefix or doesn't
// decompose into exactly three dot-separated integers (ignoring anything
// from the first '-' or the first space onward).
func ParseKernelVersion(contents string) (uint32, error) {
	if !strings.HasPrefix(contents, versionPrefix) {
		return 0, errors.Errorf("%q does not start with %q", contents, versionPrefix)
	}

	rest := strings.TrimPrefix(contents, versionPrefix)
	if idx := strings.IndexByte(rest, '-'); idx >= 0 {
		rest = rest[:idx]
	}
	if idx := strings.IndexByte(rest, ' '); idx >= 0 {
		rest = rest[:idx]
	}

	parts := strings.Split(rest, ".")
	if len(parts) != 3 {
		return 0, errors.Errorf("version string %q does not have exactly 3 dot-separated components", rest)
	}

	nums := make([]uint32, 3)
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return 0, errors.Wrapf(err, "parsing version component %q", p)
		}
		nums[i] = uint32(n)
	}

	return EncodeKernelVersion(nums[0], nums[1], nums[2]), nil
}

// CurrentKernelVersion reads and parses /proc/version on this host.
func CurrentKernelVersion() (uint32, error) {
	data, err := os.ReadFile(versionFile)
	if err != nil {
		return 0, errors.Wrapf(err, "read %s", versionFile)
	}
	return ParseKernelVersion(string(data))
}
