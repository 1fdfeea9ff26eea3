// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of cubpf

// Package loader orchestrates objreader and kernel to turn a compiled BPF
// object file into a set of pinned kernel objects: it creates the declared
// maps, rewrites program bytecode to reference them, submits the rewritten
// programs to the verifier, and pins everything under the BPF
// pseudo-filesystem. Grounded end to end on LoadProg in
// original_source/bpfLoader/src/main.cpp.
package loader

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/chenzyadb/cubpf/pkg/kernel"
	"github.com/chenzyadb/cubpf/pkg/objreader"
)

const (
	bpfRoot            = "/sys/fs/bpf"
	objectFileExt      = ".o"
	mapSectionPrefix   = "bpf_map_"
	progSectionPrefix  = "bpf_prog_"
	licenseSectionName = "license"
	defaultLicense     = "GPL"
)

// Result summarizes a successful load: the pinned paths of every map and
// program created, in the order they were processed.
type Result struct {
	ProgramName string
	MapPaths    []string
	ProgPaths   []string
}

// LoadObject reads the object file at path, creates its declared maps,
// relocates and loads its declared programs, and pins all of it under
// /sys/fs/bpf. Every error is fatal and aborts the whole load; no partial
// rollback is attempted (SPEC_FULL.md §4.3, §7) — pinned objects created
// before a later failure remain pinned, by design, for the operator to
// inspect or clean up.
func LoadObject(path string, log *logrus.Entry) (*Result, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	if _, err := os.Stat(bpfRoot); err != nil {
		return nil, errors.New("Bpf path not exists")
	}

	if !strings.HasSuffix(path, objectFileExt) {
		return nil, errors.New("Invalid bpf program file")
	}

	programName := strings.TrimSuffix(filepath.Base(path), objectFileExt)
	if programName == "" {
		return nil, errors.New("Failed to get bpf program name")
	}
	log = log.WithField("programName", programName)

	if err := kernel.RaiseMemlockUnlimited(); err != nil {
		return nil, errors.Wrap(err, "raise memlock limit")
	}

	sections := objreader.Read(path)
	if len(sections) == 0 {
		return nil, errors.New("failed to read sections")
	}

	license := defaultLicense
	if ls := objreader.ByName(sections, licenseSectionName); len(ls.Data) > 0 {
		license = trimNUL(ls.Data)
	}
	log.Infof(`[+] Bpf program license: "%s".`, license)

	result := &Result{ProgramName: programName}

	var binds mapBindings
	for _, sec := range sections {
		if sec.Type != objreader.SHT_PROGBITS || !strings.HasPrefix(sec.Name, mapSectionPrefix) {
			continue
		}

		mapName := strings.TrimPrefix(sec.Name, mapSectionPrefix)
		desc, err := parseMapDescriptor(sec.Data)
		if err != nil {
			return nil, errors.Wrapf(err, "map %q", mapName)
		}

		fd, err := kernel.CreateMap(desc.kind, mapName, desc.keySize, desc.valueSize, desc.maxEntries, desc.flags)
		if err != nil {
			log.Errorf(`[-] Failed to create map "%s".`, mapName)
			return nil, errors.Wrapf(err, "create map %q", mapName)
		}

		mapPath := filepath.Join(bpfRoot, "map_"+programName+"_"+mapName)
		if pathExists(mapPath) {
			return nil, errors.Errorf(`Map "%s" already exists`, mapPath)
		}

		if err := kernel.PinObject(fd, mapPath); err != nil {
			return nil, errors.Wrapf(err, "pin map %q", mapPath)
		}
		log.Infof(`[+] Successfully created map "%s".`, mapName)

		binds.add(fd, mapName)
		result.MapPaths = append(result.MapPaths, mapPath)
	}

	for _, sec := range sections {
		if sec.Type != objreader.SHT_PROGBITS || !strings.HasPrefix(sec.Name, progSectionPrefix) {
			continue
		}

		progType := kernel.ProgTypeForPrefix(sec.Name)
		progName := strings.ReplaceAll(strings.TrimPrefix(sec.Name, progSectionPrefix), "/", "_")

		insns := relocate(sections, sec, binds)

		fd, err := kernel.LoadProgram(progType, progName, insns, license)
		if err != nil {
			log.Errorf(`[-] Failed to load program "%s".`, progName)
			return nil, errors.Wrapf(err, "load program %q", progName)
		}

		progPath := filepath.Join(bpfRoot, "prog_"+programName+"_"+progName)
		if pathExists(progPath) {
			return nil, errors.Errorf(`Program "%s" already exists`, progPath)
		}

		if err := kernel.PinObject(fd, progPath); err != nil {
			return nil, errors.Wrapf(err, "pin program %q", progPath)
		}
		log.Infof(`[+] Successfully loaded program "%s".`, progName)

		result.ProgPaths = append(result.ProgPaths, progPath)
	}

	return result, nil
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func trimNUL(data []byte) string {
	if i := bytes.IndexByte(data, 0); i >= 0 {
		return string(data[:i])
	}
	return string(data)
}
