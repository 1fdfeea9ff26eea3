// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of cubpf

package loader

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chenzyadb/cubpf/pkg/objreader"
)

// buildSymtabStrtab returns a symbol table with one entry per name (plus the
// mandatory leading null symbol) and its backing string table.
func buildSymtabStrtab(names []string) (symtab, strtab []byte) {
	var str []byte
	str = append(str, 0) // null string at offset 0

	// null symbol (index 0)
	sym := make([]byte, elf64SymSize)
	var symtabBuf []byte
	symtabBuf = append(symtabBuf, sym...)

	for _, name := range names {
		nameOff := uint32(len(str))
		str = append(str, []byte(name)...)
		str = append(str, 0)

		entry := make([]byte, elf64SymSize)
		binary.LittleEndian.PutUint32(entry[0:4], nameOff)
		symtabBuf = append(symtabBuf, entry...)
	}

	return symtabBuf, str
}

func relRecord(targetOffset, symIdx uint64, relType uint32) []byte {
	rec := make([]byte, relSize)
	binary.LittleEndian.PutUint64(rec[0:8], targetOffset)
	info := (symIdx << 32) | uint64(relType)
	binary.LittleEndian.PutUint64(rec[8:16], info)
	return rec
}

func ldImmDWInsn(immediate uint32) []byte {
	insn := make([]byte, insnSize)
	insn[0] = ldImmDWOpcode
	binary.LittleEndian.PutUint32(insn[4:8], immediate)
	return insn
}

func TestRelocate_RewritesMatchingInstruction(t *testing.T) {
	symtab, strtab := buildSymtabStrtab([]string{"counts"})

	insns := ldImmDWInsn(0xdeadbeef)
	rel := relRecord(0, 1, 0)

	sections := []objreader.Section{
		{Name: "bpf_prog_tracepoint/sched/sched_switch", Type: objreader.SHT_PROGBITS, Data: insns},
		{Name: ".relbpf_prog_tracepoint/sched/sched_switch", Type: objreader.SHT_REL, Data: rel},
		{Name: ".symtab", Type: objreader.SHT_SYMTAB, Data: symtab},
		{Name: ".strtab", Type: objreader.SHT_STRTAB, Data: strtab},
	}

	var binds mapBindings
	binds.add(42, "counts")

	out := relocate(sections, sections[0], binds)

	assert.Equal(t, uint32(42), binary.LittleEndian.Uint32(out[4:8]))
	assert.Equal(t, byte(pseudoMapFD), out[1]>>4)
}

func TestRelocate_UnmatchedSymbolLeavesInstructionUntouched(t *testing.T) {
	symtab, strtab := buildSymtabStrtab([]string{"other_map"})

	insns := ldImmDWInsn(0xdeadbeef)
	rel := relRecord(0, 1, 0)

	sections := []objreader.Section{
		{Name: "bpf_prog_tracepoint/sched/sched_switch", Type: objreader.SHT_PROGBITS, Data: insns},
		{Name: ".relbpf_prog_tracepoint/sched/sched_switch", Type: objreader.SHT_REL, Data: rel},
		{Name: ".symtab", Type: objreader.SHT_SYMTAB, Data: symtab},
		{Name: ".strtab", Type: objreader.SHT_STRTAB, Data: strtab},
	}

	var binds mapBindings
	binds.add(42, "counts")

	out := relocate(sections, sections[0], binds)
	assert.Equal(t, insns, out)
}

func TestRelocate_WrongOpcodeLeftUntouched(t *testing.T) {
	symtab, strtab := buildSymtabStrtab([]string{"counts"})

	insns := make([]byte, insnSize)
	insns[0] = 0x61 // unrelated opcode (BPF_LDX|BPF_MEM|BPF_W)
	original := append([]byte(nil), insns...)

	rel := relRecord(0, 1, 0)

	sections := []objreader.Section{
		{Name: "bpf_prog_x", Type: objreader.SHT_PROGBITS, Data: insns},
		{Name: ".relbpf_prog_x", Type: objreader.SHT_REL, Data: rel},
		{Name: ".symtab", Type: objreader.SHT_SYMTAB, Data: symtab},
		{Name: ".strtab", Type: objreader.SHT_STRTAB, Data: strtab},
	}

	var binds mapBindings
	binds.add(42, "counts")

	out := relocate(sections, sections[0], binds)
	assert.Equal(t, original, out)
}

func TestRelocate_NoRelSectionReturnsVerbatim(t *testing.T) {
	insns := ldImmDWInsn(0x1234)
	sections := []objreader.Section{
		{Name: "bpf_prog_x", Type: objreader.SHT_PROGBITS, Data: insns},
	}
	out := relocate(sections, sections[0], nil)
	assert.Equal(t, insns, out)
}

func TestSymbolName(t *testing.T) {
	symtab, strtab := buildSymtabStrtab([]string{"counts", "events"})

	name, ok := symbolName(symtab, strtab, 1)
	assert.True(t, ok)
	assert.Equal(t, "counts", name)

	name, ok = symbolName(symtab, strtab, 2)
	assert.True(t, ok)
	assert.Equal(t, "events", name)

	_, ok = symbolName(symtab, strtab, 99)
	assert.False(t, ok)
}
