// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of cubpf

// Command bpfloader reads a compiled BPF object file, creates its declared
// maps, relocates and loads its declared programs, and pins all of it under
// /sys/fs/bpf. See SPEC_FULL.md §6 for the CLI contract.
package main

import (
	"fmt"
	"os"

	"github.com/chenzyadb/cubpf/pkg/loader"
	"github.com/chenzyadb/cubpf/pkg/logging"
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	if len(args) != 2 {
		fmt.Println("[-] Invaild Arguments.")
		return 1
	}

	path := args[1]
	if _, err := os.Stat(path); err != nil {
		fmt.Println("[-] Invaild Arguments.")
		return 1
	}

	fmt.Printf("[+] Loading bpf program \"%s\".\n", path)

	log := logging.New("loader")
	if _, err := loader.LoadObject(path, log); err != nil {
		fmt.Printf("[-] %s\n", err)
		return 1
	}

	return 0
}
