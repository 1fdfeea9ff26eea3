// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of cubpf

package loader

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/chenzyadb/cubpf/pkg/kernel"
)

// mapDescSize is the fixed width of a map-declaration section's payload:
// five contiguous native-endian uint32 fields with no padding.
const mapDescSize = 20

// mapDescriptor is the in-object declaration of a map's kind and dimensions,
// distinct from the kernel-side map object the loader creates from it.
type mapDescriptor struct {
	kind       kernel.MapType
	keySize    uint32
	valueSize  uint32
	maxEntries uint32
	flags      uint32
}

// parseMapDescriptor decodes a map-declaration section's payload.
func parseMapDescriptor(data []byte) (mapDescriptor, error) {
	if len(data) < mapDescSize {
		return mapDescriptor{}, errors.Errorf("map descriptor payload is %d bytes, want at least %d", len(data), mapDescSize)
	}
	return mapDescriptor{
		kind:       kernel.MapType(binary.LittleEndian.Uint32(data[0:4])),
		keySize:    binary.LittleEndian.Uint32(data[4:8]),
		valueSize:  binary.LittleEndian.Uint32(data[8:12]),
		maxEntries: binary.LittleEndian.Uint32(data[12:16]),
		flags:      binary.LittleEndian.Uint32(data[16:20]),
	}, nil
}
