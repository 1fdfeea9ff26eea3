// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of cubpf

// Package logging wires up the structured logger shared by the loader and
// attacher binaries: a logrus logger, optionally backed by a rotating file
// writer for the attacher's long-lived --log target. Grounded on the
// teacher's go.mod inclusion of sirupsen/logrus and cilium/lumberjack/v2 for
// exactly this purpose (long-running daemon log files that must not grow
// unbounded).
package logging

import (
	"io"
	"os"

	"github.com/cilium/lumberjack/v2"
	"github.com/sirupsen/logrus"
)

// Subsys field keys, mirroring the reference codebase's logfields
// convention of tagging every logger with the subsystem that owns it.
const (
	FieldSubsys      = "subsys"
	FieldProgramName = "programName"
	FieldTracepoint  = "tracepoint"
	FieldPath        = "path"
)

// rotation bounds for the attacher's daemon log file.
const (
	maxSizeMB    = 10
	maxBackups   = 3
	maxAgeDays   = 28
	compressLogs = true
)

// New returns a logrus.Entry tagged with subsys, writing to stderr. Intended
// for the loader, whose `[+]`/`[-]` prefixed stdout lines are a separate,
// contractual channel (SPEC_FULL.md §4.5) that this logger must not collide
// with — structured diagnostics go to stderr, leaving stdout exclusively for
// that one scriptable summary line.
func New(subsys string) *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	return logger.WithField(FieldSubsys, subsys)
}

// NewFileLogger returns a logrus.Entry tagged with subsys, writing to path
// through a size/age-bounded rotating writer. Intended for the attacher
// daemon's --log target.
func NewFileLogger(subsys, path string) *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(rotatingWriter(path))
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return logger.WithField(FieldSubsys, subsys)
}

func rotatingWriter(path string) io.Writer {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   compressLogs,
	}
}
