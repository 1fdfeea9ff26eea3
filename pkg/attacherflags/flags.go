// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of cubpf

// Package attacherflags binds the attacher daemon's CLI flag surface to a
// viper-backed config, the way operator/cmd registers cobra/pflag flags and
// binds them into the environment via regOpts.BindEnv + Vp.BindPFlags. The
// loader's CLI is deliberately not run through this layer — see
// SPEC_FULL.md §4.5.
package attacherflags

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Flag names, mirroring SPEC_FULL.md §6.
const (
	FlagLog           = "log"
	FlagProgram       = "program"
	FlagAddTracepoint = "add-tracepoint"
	FlagMetricsListen = "metrics-listen"
)

// DefaultLogPath is the attacher's default --log target.
const DefaultLogPath = "/data/bpf_daemon.log"

// envPrefix namespaces bound environment variables, e.g. CUBPF_PROGRAM.
const envPrefix = "CUBPF"

// Config is the fully resolved attacher configuration, after flags, env
// vars and (if present) a config file have all been merged by viper.
type Config struct {
	LogPath       string
	ProgramName   string
	Tracepoints   []string
	MetricsListen string
}

// Register adds the attacher's flags to fs and binds each one through v so
// that CUBPF_<FLAG> environment variables can override it, following the
// same flags-then-BindEnv-then-BindPFlags sequence operator/cmd uses for
// every provider-specific flag group.
func Register(fs *pflag.FlagSet, v *viper.Viper) {
	fs.String(FlagLog, DefaultLogPath, "log file path")
	fs.String(FlagProgram, "", "program name previously used by the loader to derive pinned paths")
	fs.StringArray(FlagAddTracepoint, nil, "tracepoint to attach to, in category/event form; may be repeated")
	fs.String(FlagMetricsListen, "", "optional host:port to serve Prometheus metrics on; unset disables it")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	for _, name := range []string{FlagLog, FlagProgram, FlagAddTracepoint, FlagMetricsListen} {
		bindEnv(v, name)
	}

	_ = v.BindPFlags(fs)
}

func bindEnv(v *viper.Viper, flagName string) {
	_ = v.BindEnv(flagName, fmt.Sprintf("%s_%s", envPrefix, strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))))
}

// Resolve reads the bound values out of v into a Config.
func Resolve(v *viper.Viper) Config {
	return Config{
		LogPath:       v.GetString(FlagLog),
		ProgramName:   v.GetString(FlagProgram),
		Tracepoints:   v.GetStringSlice(FlagAddTracepoint),
		MetricsListen: v.GetString(FlagMetricsListen),
	}
}
