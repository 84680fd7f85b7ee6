// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package health reports the state of the node's dependencies over HTTP.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/luxfi/log"
	"github.com/luxfi/metric"
)

const defaultCheckTimeout = 5 * time.Second

var errDuplicateCheck = errors.New("duplicated check")

// Checker can have its health checked
type Checker interface {
	// HealthCheck returns health check results and, if not healthy, a non-nil
	// error
	//
	// It is expected that the results are json marshallable.
	HealthCheck(context.Context) (interface{}, error)
}

type CheckerFunc func(context.Context) (interface{}, error)

func (f CheckerFunc) HealthCheck(ctx context.Context) (interface{}, error) {
	return f(ctx)
}

// Result is the outcome of a single check.
type Result struct {
	Details   interface{}   `json:"message,omitempty"`
	Error     string        `json:"error,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
}

type Report struct {
	Checks  map[string]Result `json:"checks"`
	Healthy bool              `json:"healthy"`
}

// Health runs named checks on demand.
type Health struct {
	log     log.Logger
	metrics *healthMetrics
	timeout time.Duration

	lock   sync.RWMutex
	checks map[string]Checker
}

func New(logger log.Logger, registerer metric.Registerer) (*Health, error) {
	m, err := newMetrics(registerer)
	if err != nil {
		return nil, err
	}
	return &Health{
		log:     logger,
		metrics: m,
		timeout: defaultCheckTimeout,
		checks:  make(map[string]Checker),
	}, nil
}

func (h *Health) RegisterCheck(name string, checker Checker) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	if _, ok := h.checks[name]; ok {
		return fmt.Errorf("%w: %q", errDuplicateCheck, name)
	}
	h.checks[name] = checker
	h.metrics.failingChecks.With(metric.Labels{"check": name}).Set(0)
	return nil
}

// Check runs every registered check.
func (h *Health) Check(ctx context.Context) Report {
	h.lock.RLock()
	names := make([]string, 0, len(h.checks))
	checks := make(map[string]Checker, len(h.checks))
	for name, checker := range h.checks {
		names = append(names, name)
		checks[name] = checker
	}
	h.lock.RUnlock()
	sort.Strings(names)

	report := Report{
		Checks:  make(map[string]Result, len(names)),
		Healthy: true,
	}
	for _, name := range names {
		result := h.run(ctx, name, checks[name])
		report.Checks[name] = result
		report.Healthy = report.Healthy && result.Error == ""
	}
	return report
}

func (h *Health) run(ctx context.Context, name string, checker Checker) Result {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := time.Now()
	details, err := checker.HealthCheck(ctx)
	result := Result{
		Details:   details,
		Timestamp: start,
		Duration:  time.Since(start),
	}

	failing := h.metrics.failingChecks.With(metric.Labels{"check": name})
	if err != nil {
		result.Error = err.Error()
		failing.Set(1)
		h.log.Warn("health check failed",
			log.String("check", name),
			log.Err(err),
		)
		return result
	}
	failing.Set(0)
	return result
}

// ServeHTTP writes the report, with a 503 status if any check failed.
func (h *Health) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	report := h.Check(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if !report.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(report); err != nil {
		h.log.Debug("failed to write health report",
			log.Err(err),
		)
	}
}
