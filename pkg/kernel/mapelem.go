// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of cubpf

package kernel

import (
	"unsafe"

	"github.com/pkg/errors"
)

// bpfMapElemAttr mirrors the portion of union bpf_attr shared by
// BPF_MAP_LOOKUP_ELEM, BPF_MAP_UPDATE_ELEM and BPF_MAP_DELETE_ELEM.
type bpfMapElemAttr struct {
	mapFd uint32
	_     uint32
	key   uint64
	value uint64 // also used as the next_key output field, unused here
	flags uint64
}

// GetElement looks up key in the map referenced by fd and decodes the value
// into a zero value of V. The caller is responsible for K and V matching the
// map's declared key_size/value_size exactly — this is a parametric
// operation over byte shapes, not a type-checked one (SPEC_FULL.md §9).
func GetElement[K any, V any](fd int, key K) (V, error) {
	var value V
	attr := bpfMapElemAttr{
		mapFd: uint32(fd),
		key:   uint64(uintptr(unsafe.Pointer(&key))),
		value: uint64(uintptr(unsafe.Pointer(&value))),
	}
	_, err := bpfSyscall(cmdMapLookupElem, unsafe.Pointer(&attr), unsafe.Sizeof(attr))
	if err != nil {
		return value, errors.Wrap(err, "map lookup element")
	}
	return value, nil
}

// SetElement writes key/value into the map referenced by fd. flags is the
// raw BPF_ANY/BPF_NOEXIST/BPF_EXIST update flag.
func SetElement[K any, V any](fd int, key K, value V, flags uint64) error {
	attr := bpfMapElemAttr{
		mapFd: uint32(fd),
		key:   uint64(uintptr(unsafe.Pointer(&key))),
		value: uint64(uintptr(unsafe.Pointer(&value))),
		flags: flags,
	}
	_, err := bpfSyscall(cmdMapUpdateElem, unsafe.Pointer(&attr), unsafe.Sizeof(attr))
	if err != nil {
		return errors.Wrap(err, "map update element")
	}
	return nil
}

// DeleteElement removes key from the map referenced by fd.
func DeleteElement[K any](fd int, key K) error {
	attr := bpfMapElemAttr{
		mapFd: uint32(fd),
		key:   uint64(uintptr(unsafe.Pointer(&key))),
	}
	_, err := bpfSyscall(cmdMapDeleteElem, unsafe.Pointer(&attr), unsafe.Sizeof(attr))
	if err != nil {
		return errors.Wrap(err, "map delete element")
	}
	return nil
}
