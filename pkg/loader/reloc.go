// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of cubpf

package loader

import (
	"encoding/binary"

	"github.com/chenzyadb/cubpf/pkg/objreader"
)

// insnSize is the fixed width of a BPF instruction record: {opcode,
// dst_reg:4|src_reg:4, offset int16, immediate int32}.
const insnSize = 8

// relSize is the fixed width of an Elf64_Rel relocation record: {target
// offset uint64, packed info uint64}.
const relSize = 16

// ldImmDWOpcode is BPF_LD | BPF_IMM | BPF_DW (0x18): the only instruction
// form this loader knows how to relocate a map fd into.
const ldImmDWOpcode = 0x18

// pseudoMapFD is BPF_PSEUDO_MAP_FD, the src_reg sentinel telling the
// verifier that a double-word immediate load's value is a map fd to be
// resolved, not an arbitrary constant.
const pseudoMapFD = 1

// relocate returns a mutated copy of the program section's instruction
// bytes with every applicable BPF_LD|BPF_IMM|BPF_DW instruction's immediate
// field rewritten to the bound map's file descriptor and its src_reg set to
// BPF_PSEUDO_MAP_FD. sections is the full section list (used to resolve the
// relocation section's string/symbol tables); progSection is the program
// section being relocated; binds is the map bindings built so far.
//
// Grounded on getProgInsns in the original bpfLoader/src/main.cpp: resolve
// each relocation's symbol name, and only touch instructions whose opcode
// exactly matches. Relocations whose symbol isn't a bound map name, or whose
// target instruction isn't a double-word immediate load, are left alone —
// this is a deliberate, narrow, single relocation-form contract (SPEC_FULL.md
// §9 Open Question), not an omission.
func relocate(sections []objreader.Section, progSection objreader.Section, binds mapBindings) []byte {
	insns := make([]byte, len(progSection.Data))
	copy(insns, progSection.Data)

	rel := objreader.ByName(sections, ".rel"+progSection.Name)
	if len(rel.Data) == 0 {
		return insns
	}

	strtab := objreader.ByType(sections, objreader.SHT_STRTAB)
	symtab := objreader.ByType(sections, objreader.SHT_SYMTAB)
	if len(strtab.Data) == 0 || len(symtab.Data) == 0 {
		return insns
	}

	for off := 0; off+relSize <= len(rel.Data); off += relSize {
		targetOffset := binary.LittleEndian.Uint64(rel.Data[off : off+8])
		info := binary.LittleEndian.Uint64(rel.Data[off+8 : off+16])
		symIdx := info >> 32

		name, ok := symbolName(symtab.Data, strtab.Data, symIdx)
		if !ok {
			continue
		}

		fd, bound := binds.fdByName(name)
		if !bound {
			continue
		}

		to := int(targetOffset)
		if to+insnSize > len(insns) {
			continue
		}
		if insns[to] != ldImmDWOpcode {
			continue
		}

		// Immediate occupies bytes [4:8) of the 8-byte instruction record;
		// src_reg is the high nibble of byte 1 (dst_reg is the low nibble).
		binary.LittleEndian.PutUint32(insns[to+4:to+8], uint32(fd))
		insns[to+1] = (insns[to+1] & 0x0f) | (pseudoMapFD << 4)
	}

	return insns
}

// elf64SymSize is the fixed width of an Elf64_Sym symbol table entry.
const elf64SymSize = 24

// symbolName resolves the idx'th entry of symtab's st_name field into a
// NUL-terminated string from strtab.
func symbolName(symtab, strtab []byte, idx uint64) (string, bool) {
	off := idx * elf64SymSize
	if off+elf64SymSize > uint64(len(symtab)) {
		return "", false
	}
	nameOff := uint64(binary.LittleEndian.Uint32(symtab[off : off+4]))
	if nameOff >= uint64(len(strtab)) {
		return "", false
	}
	end := nameOff
	for end < uint64(len(strtab)) && strtab[end] != 0 {
		end++
	}
	return string(strtab[nameOff:end]), true
}
