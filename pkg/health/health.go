// Package health serves liveness and readiness probes.
//
// Registered checks run together in one background loop. A check turns
// unhealthy after FailureThreshold consecutive failures and healthy again on
// the first success.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// FailureThreshold is the number of consecutive failures before a check is
// reported unhealthy.
const FailureThreshold = 3

// CheckFunc returns nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

type kind uint8

const (
	liveness kind = iota
	readiness
)

type check struct {
	name    string
	kind    kind
	timeout time.Duration
	fn      CheckFunc

	mu       sync.Mutex
	healthy  bool
	failures int
	lastErr  error
}

func (c *check) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	err := c.fn(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = err
	if err == nil {
		c.failures = 0
		c.healthy = true
		return
	}
	c.failures++
	if c.failures >= FailureThreshold {
		c.healthy = false
	}
}

func (c *check) status() (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.healthy {
		return true, ""
	}
	if c.lastErr != nil {
		return false, c.lastErr.Error()
	}
	return false, "check is unhealthy"
}

// Health holds the probes of one process. It starts not ready.
type Health struct {
	ready atomic.Bool

	mu     sync.Mutex
	checks []*check
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Health with no checks.
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a check that tells whether the process works.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.add(&check{name: name, kind: liveness, timeout: timeout, fn: fn, healthy: true})
}

// AddReadinessCheck registers a check that tells whether a dependency the
// API needs is reachable.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.add(&check{name: name, kind: readiness, timeout: timeout, fn: fn, healthy: true})
}

func (h *Health) add(c *check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, c)
}

func (h *Health) snapshot() []*check {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*check(nil), h.checks...)
}

// RunOnce runs every check concurrently and waits for all of them.
func (h *Health) RunOnce(ctx context.Context) {
	g, ctx := errgroup.WithContext(ctx)
	for _, c := range h.snapshot() {
		g.Go(func() error {
			c.run(ctx)
			return nil
		})
	}
	_ = g.Wait()
}

// Start runs the checks now and then every interval until Stop.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	h.cancel, h.done = cancel, done

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			h.RunOnce(ctx)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop ends the background loop and waits for it. It is safe to call more
// than once.
func (h *Health) Stop() {
	h.mu.Lock()
	cancel, done := h.cancel, h.done
	h.cancel, h.done = nil, nil
	h.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// SetReady flips the manual readiness flag, e.g. false while draining.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the process is marked ready and every readiness
// check passes.
func (h *Health) IsReady() bool {
	return h.ready.Load() && len(h.failures(readiness)) == 0
}

func (h *Health) failures(k kind) map[string]string {
	out := make(map[string]string)
	for _, c := range h.snapshot() {
		if c.kind != k {
			continue
		}
		if ok, msg := c.status(); !ok {
			out[c.name] = msg
		}
	}
	return out
}

type statusResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, h.failures(liveness))
}

// ReadyEndpoint serves /readyz.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	failures := h.failures(readiness)
	if !h.ready.Load() {
		failures["_readiness"] = "service is not ready"
	}
	writeStatus(w, failures)
}

func writeStatus(w http.ResponseWriter, failures map[string]string) {
	resp := statusResponse{Status: "ok"}
	code := http.StatusOK
	if len(failures) > 0 {
		resp = statusResponse{Status: "unhealthy", Checks: failures}
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
