// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of cubpf

package objreader

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildELF assembles a minimal, well-formed 64-bit little-endian ELF
// relocatable with the given sections. sections[0] is implicitly preceded by
// the mandatory null section; a shstrtab section is appended automatically.
func buildELF(t *testing.T, sections []Section) []byte {
	t.Helper()

	// Section name string table, starting with the mandatory leading NUL.
	var shstrtab bytes.Buffer
	shstrtab.WriteByte(0)
	nameOffsets := make([]uint32, len(sections))
	for i, s := range sections {
		nameOffsets[i] = uint32(shstrtab.Len())
		shstrtab.WriteString(s.Name)
		shstrtab.WriteByte(0)
	}
	shstrtabNameOff := uint32(shstrtab.Len())
	shstrtab.WriteString(".shstrtab")
	shstrtab.WriteByte(0)

	allSections := append([]Section{{}}, sections...) // null section first
	allSections = append(allSections, Section{Name: ".shstrtab", Type: SHT_STRTAB, Data: shstrtab.Bytes()})

	const ehdrSize = 64
	const shdrSize = 64

	// Lay out section payloads after the header.
	offsets := make([]uint64, len(allSections))
	cursor := uint64(ehdrSize)
	var body bytes.Buffer
	for i, s := range allSections {
		if len(s.Data) == 0 {
			offsets[i] = 0
			continue
		}
		offsets[i] = cursor
		body.Write(s.Data)
		cursor += uint64(len(s.Data))
	}
	shoff := cursor

	var buf bytes.Buffer
	buf.Write(make([]byte, ehdrSize))
	buf.Write(body.Bytes())

	for i, s := range allSections {
		var nameOff uint32
		if i == 0 {
			nameOff = 0
		} else if i == len(allSections)-1 {
			nameOff = shstrtabNameOff
		} else {
			nameOff = nameOffsets[i-1]
		}

		shdr := struct {
			Name      uint32
			Type      uint32
			Flags     uint64
			Addr      uint64
			Offset    uint64
			Size      uint64
			Link      uint32
			Info      uint32
			Addralign uint64
			Entsize   uint64
		}{
			Name:   nameOff,
			Type:   s.Type,
			Offset: offsets[i],
			Size:   uint64(len(s.Data)),
		}
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, shdr))
	}

	out := buf.Bytes()

	ehdr := struct {
		Ident     [16]byte
		Type      uint16
		Machine   uint16
		Version   uint32
		Entry     uint64
		Phoff     uint64
		Shoff     uint64
		Flags     uint32
		Ehsize    uint16
		Phentsize uint16
		Phnum     uint16
		Shentsize uint16
		Shnum     uint16
		Shstrndx  uint16
	}{
		Ehsize:    ehdrSize,
		Shoff:     shoff,
		Shentsize: shdrSize,
		Shnum:     uint16(len(allSections)),
		Shstrndx:  uint16(len(allSections) - 1),
	}
	var hbuf bytes.Buffer
	require.NoError(t, binary.Write(&hbuf, binary.LittleEndian, ehdr))
	copy(out[:ehdrSize], hbuf.Bytes())

	return out
}

func writeTemp(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prog.o")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestRead_RoundTrip(t *testing.T) {
	raw := buildELF(t, []Section{
		{Name: "bpf_map_counts", Type: SHT_PROGBITS, Data: []byte{1, 2, 3, 4}},
		{Name: "license", Type: SHT_PROGBITS, Data: []byte("GPL\x00")},
	})

	sections := Read(writeTemp(t, raw))
	require.NotEmpty(t, sections)

	for _, s := range sections {
		assert.Equal(t, s, ByName(sections, s.Name))
	}

	got := ByName(sections, "bpf_map_counts")
	assert.Equal(t, []byte{1, 2, 3, 4}, got.Data)
}

func TestRead_EmptyFile(t *testing.T) {
	path := writeTemp(t, nil)
	assert.Empty(t, Read(path))
}

func TestRead_MissingFile(t *testing.T) {
	assert.Empty(t, Read(filepath.Join(t.TempDir(), "does-not-exist.o")))
}

func TestRead_TruncatedHeader(t *testing.T) {
	assert.Empty(t, Read(writeTemp(t, []byte{0x7f, 'E', 'L', 'F'})))
}

func TestByType(t *testing.T) {
	raw := buildELF(t, []Section{
		{Name: "bpf_prog_tracepoint/sched/sched_switch", Type: SHT_PROGBITS, Data: []byte{0, 0, 0, 0, 0, 0, 0, 0}},
	})
	sections := Read(writeTemp(t, raw))
	got := ByType(sections, SHT_STRTAB)
	assert.Equal(t, ".shstrtab", got.Name)
}

func TestByName_NoMatch(t *testing.T) {
	assert.Equal(t, Section{}, ByName(nil, "missing"))
}
