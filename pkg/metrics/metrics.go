// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of cubpf

// Package metrics exposes an optional Prometheus metrics endpoint for the
// attacher daemon: per-tracepoint attach attempt/success/failure counters.
// It is purely additive instrumentation — the attach algorithm in
// pkg/attacher runs identically whether or not an Attacher is constructed, and
// this package exposes no control surface (SPEC_FULL.md §4.5).
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Attacher holds the daemon's attach-outcome counters.
type Attacher struct {
	attempts *prometheus.CounterVec
	successes *prometheus.CounterVec
	failures *prometheus.CounterVec
	startTime time.Time
}

// NewAttacher registers and returns a fresh set of attach-outcome counters.
func NewAttacher(registry *prometheus.Registry) *Attacher {
	a := &Attacher{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cubpf_attacher_attach_attempts_total",
			Help: "Total number of tracepoint attach attempts, by tracepoint.",
		}, []string{"tracepoint"}),
		successes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cubpf_attacher_attach_success_total",
			Help: "Total number of successful tracepoint attaches, by tracepoint.",
		}, []string{"tracepoint"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cubpf_attacher_attach_failure_total",
			Help: "Total number of failed tracepoint attaches, by tracepoint.",
		}, []string{"tracepoint"}),
		startTime: time.Now(),
	}

	registry.MustRegister(a.attempts, a.successes, a.failures)
	return a
}

// ObserveAttach records the outcome of one attach attempt for tracepoint.
func (a *Attacher) ObserveAttach(tracepoint string, ok bool) {
	a.attempts.WithLabelValues(tracepoint).Inc()
	if ok {
		a.successes.WithLabelValues(tracepoint).Inc()
	} else {
		a.failures.WithLabelValues(tracepoint).Inc()
	}
}

// Uptime returns how long this Attacher has existed.
func (a *Attacher) Uptime() time.Duration {
	return time.Since(a.startTime)
}

// Serve starts a background HTTP server exposing /metrics on listenAddr,
// backed by registry. It returns immediately; the server runs until ctx is
// canceled. A nil/empty listenAddr disables the endpoint entirely, matching
// the attacher's --metrics-listen flag semantics (unset == no listener).
func Serve(ctx context.Context, listenAddr string, registry *prometheus.Registry, log *logrus.Entry) {
	if listenAddr == "" {
		return
	}

	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: listenAddr, Handler: router}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		log.WithField("addr", listenAddr).Info("serving metrics")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Warn("metrics server stopped")
		}
	}()
}
