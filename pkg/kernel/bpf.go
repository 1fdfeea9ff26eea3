// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of cubpf

// Package kernel is the thin wrapper over the BPF and performance-event
// syscall families (the "Kernel Interface" in the design). Every syscall
// wrapper here is a single syscall invocation using a zero-initialized,
// kernel-ABI-shaped attr struct passed through unsafe.Pointer — there is no
// general-purpose BPF library underneath this package, by design.
package kernel

import (
	"fmt"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// bpf(2) commands used by this loader. Only the subset this package needs.
const (
	cmdMapCreate     = 0
	cmdMapLookupElem = 1
	cmdMapUpdateElem = 2
	cmdMapDeleteElem = 3
	cmdProgLoad      = 5
	cmdObjPin        = 6
	cmdObjGet        = 7
)

// objNameLen is BPF_OBJ_NAME_LEN: the fixed width of the kernel's map/prog
// name field, including the trailing NUL.
const objNameLen = 16

// maxInsns is BPF_MAXINSNS, the verifier's hard cap on instruction count.
const maxInsns = 4096

// MapType mirrors the kernel's enum bpf_map_type. The loader never
// interprets this value itself — it is read verbatim out of the object
// file's map descriptor and handed to the kernel.
type MapType uint32

// ProgType mirrors the kernel's enum bpf_prog_type, as determined by the
// loader's program-section prefix table.
type ProgType uint32

// Recognized program types, matching the section-prefix table in SPEC_FULL.md §6.
const (
	ProgTypeUnspec         ProgType = 0
	ProgTypeSocketFilter   ProgType = 1
	ProgTypeKprobe         ProgType = 2
	ProgTypeSchedCLS       ProgType = 3
	ProgTypeTracepoint     ProgType = 5
	ProgTypeXDP            ProgType = 6
	ProgTypePerfEvent      ProgType = 7
	ProgTypeCgroupSKB      ProgType = 8
	ProgTypeCgroupSockAddr ProgType = 9
)

type objName [objNameLen]byte

// newObjName copies name into the kernel's fixed-width object-name field.
// Returns an error if name does not fit alongside its NUL terminator,
// matching CreateMap's precondition in SPEC_FULL.md §4.1.
func newObjName(name string) (objName, error) {
	var out objName
	if len(name) >= objNameLen {
		return out, errors.Errorf("object name %q exceeds kernel limit of %d bytes", name, objNameLen-1)
	}
	copy(out[:], name)
	return out, nil
}

// bpfMapCreateAttr mirrors the portion of union bpf_attr used by BPF_MAP_CREATE.
type bpfMapCreateAttr struct {
	mapType    uint32
	keySize    uint32
	valueSize  uint32
	maxEntries uint32
	mapFlags   uint32
	innerMapFd uint32
	numaNode   uint32
	mapName    objName
}

// bpfProgLoadAttr mirrors the portion of union bpf_attr used by BPF_PROG_LOAD.
type bpfProgLoadAttr struct {
	progType      uint32
	insnCnt       uint32
	insns         uint64
	license       uint64
	logLevel      uint32
	logSize       uint32
	logBuf        uint64
	kernVersion   uint32
	progFlags     uint32
	progName      objName
	progIfIndex   uint32
	_             uint32 // padding to match kernel layout
}

// bpfObjAttr mirrors the portion of union bpf_attr used by BPF_OBJ_PIN / BPF_OBJ_GET.
type bpfObjAttr struct {
	pathname uint64
	bpfFd    uint32
	fileFlags uint32
}

func bpfSyscall(cmd int, attr unsafe.Pointer, size uintptr) (uintptr, error) {
	r1, _, errno := unix.Syscall(unix.SYS_BPF, uintptr(cmd), uintptr(attr), size)
	if errno != 0 {
		return 0, errno
	}
	return r1, nil
}

// CreateMap issues BPF_MAP_CREATE and returns the kernel file descriptor for
// the new map.
func CreateMap(kind MapType, name string, keySize, valueSize, maxEntries, flags uint32) (int, error) {
	mapName, err := newObjName(name)
	if err != nil {
		return -1, err
	}

	attr := bpfMapCreateAttr{
		mapType:    uint32(kind),
		keySize:    keySize,
		valueSize:  valueSize,
		maxEntries: maxEntries,
		mapFlags:   flags,
		mapName:    mapName,
	}

	fd, err := bpfSyscall(cmdMapCreate, unsafe.Pointer(&attr), unsafe.Sizeof(attr))
	if err != nil {
		return -1, errors.Wrapf(err, "create map %q", name)
	}
	return int(fd), nil
}

// LoadProgram issues BPF_PROG_LOAD and returns the kernel file descriptor for
// the newly verified program. instructions must be a byte-exact encoding of
// the BPF instruction stream (8 bytes per instruction, post-relocation).
func LoadProgram(kind ProgType, name string, instructions []byte, license string) (int, error) {
	// Program names derived from tracepoint paths are usually longer than
	// the kernel's name field; they are truncated to fit rather than refused.
	fieldName := name
	if len(fieldName) >= objNameLen {
		fieldName = fieldName[:objNameLen-1]
	}
	progName, err := newObjName(fieldName)
	if err != nil {
		return -1, err
	}

	if len(instructions) == 0 {
		return -1, errors.Errorf("program %q: empty instruction stream", name)
	}
	if len(instructions)%8 != 0 {
		return -1, errors.Errorf("program %q: instruction stream length %d is not a multiple of 8", name, len(instructions))
	}
	insnCount := uint32(len(instructions) / 8)
	if insnCount > maxInsns {
		return -1, errors.Errorf("program %q: %d instructions exceeds kernel limit of %d", name, insnCount, maxInsns)
	}

	kernVersion, err := CurrentKernelVersion()
	if err != nil {
		// Kernel-version lookup failure isn't fatal: older kernels that
		// ignore kern_version will still accept a zero value.
		kernVersion = 0
	}

	licenseBytes := append([]byte(license), 0)

	attr := bpfProgLoadAttr{
		progType:    uint32(kind),
		insnCnt:     insnCount,
		insns:       uint64(uintptr(unsafe.Pointer(&instructions[0]))),
		license:     uint64(uintptr(unsafe.Pointer(&licenseBytes[0]))),
		kernVersion: kernVersion,
		progName:    progName,
	}

	fd, err := bpfSyscall(cmdProgLoad, unsafe.Pointer(&attr), unsafe.Sizeof(attr))
	if err != nil {
		return -1, errors.Wrapf(err, "load program %q", name)
	}
	return int(fd), nil
}

// PinObject pins fd at path on the BPF pseudo-filesystem.
func PinObject(fd int, path string) error {
	pathBytes := append([]byte(path), 0)
	attr := bpfObjAttr{
		pathname: uint64(uintptr(unsafe.Pointer(&pathBytes[0]))),
		bpfFd:    uint32(fd),
	}
	_, err := bpfSyscall(cmdObjPin, unsafe.Pointer(&attr), unsafe.Sizeof(attr))
	if err != nil {
		return errors.Wrapf(err, "pin object at %q", path)
	}
	return nil
}

// OpenPinned opens a previously pinned object and returns its file descriptor.
func OpenPinned(path string) (int, error) {
	pathBytes := append([]byte(path), 0)
	attr := bpfObjAttr{
		pathname: uint64(uintptr(unsafe.Pointer(&pathBytes[0]))),
	}
	fd, err := bpfSyscall(cmdObjGet, unsafe.Pointer(&attr), unsafe.Sizeof(attr))
	if err != nil {
		return -1, errors.Wrapf(err, "open pinned object %q", path)
	}
	return int(fd), nil
}

// ProgTypeForPrefix resolves a program-section name to its kernel program
// type via the fixed prefix table in SPEC_FULL.md §6. Unrecognized prefixes
// return ProgTypeUnspec, which the kernel verifier will reject — matching
// the original implementation's policy of letting the kernel be the source
// of truth for "this isn't a real program type".
func ProgTypeForPrefix(sectionName string) ProgType {
	for _, e := range progPrefixTable {
		if hasPrefix(sectionName, e.prefix) {
			return e.kind
		}
	}
	return ProgTypeUnspec
}

var progPrefixTable = []struct {
	prefix string
	kind   ProgType
}{
	{"bpf_prog_skfilter", ProgTypeSocketFilter},
	{"bpf_prog_kprobe", ProgTypeKprobe},
	{"bpf_prog_uprobe", ProgTypeKprobe},
	{"bpf_prog_schedcls", ProgTypeSchedCLS},
	{"bpf_prog_tracepoint", ProgTypeTracepoint},
	{"bpf_prog_xdp", ProgTypeXDP},
	{"bpf_prog_perf_event", ProgTypePerfEvent},
	{"bpf_prog_cgroupskb", ProgTypeCgroupSKB},
	{"bpf_prog_cgroupsock", ProgTypeCgroupSockAddr},
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func (t ProgType) String() string {
	switch t {
	case ProgTypeSocketFilter:
		return "socket_filter"
	case ProgTypeKprobe:
		return "kprobe"
	case ProgTypeSchedCLS:
		return "sched_cls"
	case ProgTypeTracepoint:
		return "tracepoint"
	case ProgTypeXDP:
		return "xdp"
	case ProgTypePerfEvent:
		return "perf_event"
	case ProgTypeCgroupSKB:
		return "cgroup_skb"
	case ProgTypeCgroupSockAddr:
		return "cgroup_sock"
	default:
		return fmt.Sprintf("unspec(%d)", uint32(t))
	}
}
