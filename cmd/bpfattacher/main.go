// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of cubpf

// Command bpfattacher is the long-running daemon that opens programs
// previously pinned by bpfloader and attaches them to kernel tracepoints.
// See SPEC_FULL.md §6 for its flag surface.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/chenzyadb/cubpf/pkg/attacher"
	"github.com/chenzyadb/cubpf/pkg/attacherflags"
	"github.com/chenzyadb/cubpf/pkg/logging"
	"github.com/chenzyadb/cubpf/pkg/metrics"
)

func main() {
	v := viper.New()
	root := &cobra.Command{
		Use:   "bpfattacher",
		Short: "Attach pinned bpf programs to kernel tracepoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAttacher(attacherflags.Resolve(v))
		},
	}

	attacherflags.Register(root.Flags(), v)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runAttacher mirrors ParseArgs in original_source/bpfAttacher/src/main.cpp:
// a missing program name or an empty tracepoint list is a silent no-op, not
// an argument error.
func runAttacher(cfg attacherflags.Config) error {
	if cfg.ProgramName == "" || len(cfg.Tracepoints) == 0 {
		return nil
	}

	tracepoints := make([]attacher.Tracepoint, 0, len(cfg.Tracepoints))
	for _, raw := range cfg.Tracepoints {
		tp, ok := attacher.ParseTracepoint(raw)
		if !ok {
			return fmt.Errorf("invalid --%s value %q, want category/event", attacherflags.FlagAddTracepoint, raw)
		}
		tracepoints = append(tracepoints, tp)
	}

	log := logging.NewFileLogger("attacher", cfg.LogPath)

	var m *metrics.Attacher
	if cfg.MetricsListen != "" {
		registry := prometheus.NewRegistry()
		m = metrics.NewAttacher(registry)
		metrics.Serve(context.Background(), cfg.MetricsListen, registry, log)
	}

	attacher.Run(attacher.Config{
		ProgramName: cfg.ProgramName,
		Tracepoints: tracepoints,
	}, log, m)

	return nil
}
