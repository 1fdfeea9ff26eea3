// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of cubpf

// Package objreader parses a 64-bit little-endian ELF relocatable into a
// flat sequence of named, typed sections. It is deliberately not built on
// the standard library's debug/elf package: that package validates ELF
// class/endianness and rejects what it considers malformed input, whereas
// this reader's contract (SPEC_FULL.md §4.2) is to silently return an empty
// section list for anything that doesn't look like a well-formed 64-bit LE
// object, and to never consult the e_ident class/data bytes at all. Callers
// must only pass 64-bit little-endian ELF relocatables; behavior on other
// inputs is "empty list", not "error", and is not meant to be a validator.
package objreader

import (
	"bytes"
	"encoding/binary"
	"os"
)

// ELF section type codes this package cares about (see elf(5)).
const (
	SHT_PROGBITS uint32 = 1
	SHT_SYMTAB   uint32 = 2
	SHT_STRTAB   uint32 = 3
	SHT_REL      uint32 = 9
)

// Section is a named, typed byte payload parsed out of one ELF section
// header. Sections are produced once by Read and treated as immutable by
// every consumer; Loader takes an owned copy of Data before mutating it
// during relocation.
type Section struct {
	Name string
	Type uint32
	Data []byte
}

// elf64Ehdr mirrors the fixed 64-byte ELF64 file header, e_ident omitted as
// a raw 16-byte block since this reader never inspects it.
type elf64Ehdr struct {
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
}

// elf64Shdr mirrors the fixed 64-byte ELF64 section header.
type elf64Shdr struct {
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
}

const ehdrSize = 64
const shdrSize = 64

// Read loads path fully into memory and parses its ELF section headers into
// a flat []Section, per the algorithm in SPEC_FULL.md §4.2. A zero-length or
// unreadable file, a header with a zero e_ehsize, or the absence of any
// string-table section with a nonzero file offset all yield a nil slice —
// never an error — matching the original reader's "empty means malformed"
// contract.
func Read(path string) []Section {
	raw, err := os.ReadFile(path)
	if err != nil || len(raw) == 0 {
		return nil
	}
	return parse(raw)
}

func parse(raw []byte) []Section {
	if len(raw) < ehdrSize {
		return nil
	}

	var ehdr elf64Ehdr
	if err := decodeLE(raw[:ehdrSize], &ehdr); err != nil {
		return nil
	}
	if ehdr.Ehsize == 0 {
		return nil
	}

	strtabBase, ok := findStrtab(raw, ehdr)
	if !ok {
		return nil
	}

	sections := make([]Section, 0, ehdr.Shnum)
	for idx := uint16(0); idx < ehdr.Shnum; idx++ {
		off := ehdr.Shoff + uint64(ehdr.Shentsize)*uint64(idx)
		if off+shdrSize > uint64(len(raw)) {
			break
		}

		var shdr elf64Shdr
		if err := decodeLE(raw[off:off+shdrSize], &shdr); err != nil {
			break
		}

		sections = append(sections, Section{
			Name: cString(raw, strtabBase+uint64(shdr.Name)),
			Type: shdr.Type,
			Data: sliceSection(raw, shdr),
		})
	}

	return sections
}

// findStrtab returns the file offset of the first SHT_STRTAB section with a
// nonzero sh_offset.
func findStrtab(raw []byte, ehdr elf64Ehdr) (uint64, bool) {
	for idx := uint16(0); idx < ehdr.Shnum; idx++ {
		off := ehdr.Shoff + uint64(ehdr.Shentsize)*uint64(idx)
		if off+shdrSize > uint64(len(raw)) {
			break
		}

		var shdr elf64Shdr
		if err := decodeLE(raw[off:off+shdrSize], &shdr); err != nil {
			break
		}

		if shdr.Type == SHT_STRTAB && shdr.Offset > 0 {
			return shdr.Offset, true
		}
	}
	return 0, false
}

// sliceSection returns the exact byte range a section header describes, or
// nil if the section has no backing bytes in the file (sh_offset or sh_size
// is zero) or the range is out of bounds.
func sliceSection(raw []byte, shdr elf64Shdr) []byte {
	if shdr.Offset == 0 || shdr.Size == 0 {
		return nil
	}
	end := shdr.Offset + shdr.Size
	if end > uint64(len(raw)) {
		return nil
	}
	data := make([]byte, shdr.Size)
	copy(data, raw[shdr.Offset:end])
	return data
}

// cString reads a NUL-terminated string starting at offset in raw. Returns
// the empty string if offset is out of bounds.
func cString(raw []byte, offset uint64) string {
	if offset >= uint64(len(raw)) {
		return ""
	}
	end := offset
	for end < uint64(len(raw)) && raw[end] != 0 {
		end++
	}
	return string(raw[offset:end])
}

func decodeLE(b []byte, v interface{}) error {
	return binary.Read(bytes.NewReader(b), binary.LittleEndian, v)
}

// ByName returns the first section whose name equals name, or the zero
// Section (empty sentinel) if none matches.
func ByName(sections []Section, name string) Section {
	for _, s := range sections {
		if s.Name == name {
			return s
		}
	}
	return Section{}
}

// ByType returns the first section whose type equals typ, or the zero
// Section (empty sentinel) if none matches.
func ByType(sections []Section, typ uint32) Section {
	for _, s := range sections {
		if s.Type == typ {
			return s
		}
	}
	return Section{}
}
