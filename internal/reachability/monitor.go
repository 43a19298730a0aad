// Package reachability answers whether the remote record store can be reached.
package reachability

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Monitor reports current connectivity. Implementations must be safe for
// concurrent use.
type Monitor interface {
	IsConnected(ctx context.Context) bool
}

// Static always reports the same answer.
type Static bool

// IsConnected implements Monitor.
func (s Static) IsConnected(context.Context) bool { return bool(s) }

// Func adapts a function to Monitor.
type Func func(ctx context.Context) bool

// IsConnected implements Monitor.
func (f Func) IsConnected(ctx context.Context) bool { return f(ctx) }

// Toggle is a switchable Monitor, useful when connectivity is pushed by the platform.
type Toggle struct {
	online atomic.Bool
}

// NewToggle returns a Toggle starting in the given state.
func NewToggle(online bool) *Toggle {
	t := &Toggle{}
	t.online.Store(online)
	return t
}

// Set records the connectivity state.
func (t *Toggle) Set(online bool) { t.online.Store(online) }

// IsConnected implements Monitor.
func (t *Toggle) IsConnected(context.Context) bool { return t.online.Load() }

// DefaultProbeTimeout bounds a single HTTP probe.
const DefaultProbeTimeout = 3 * time.Second

// HTTPProbe reports connected when a GET on URL answers 2xx.
type HTTPProbe struct {
	url     string
	client  *http.Client
	timeout time.Duration
}

// ProbeOption customises an HTTPProbe.
type ProbeOption func(*HTTPProbe)

// WithHTTPClient overrides the client used for probes.
func WithHTTPClient(c *http.Client) ProbeOption {
	return func(p *HTTPProbe) {
		if c != nil {
			p.client = c
		}
	}
}

// WithTimeout overrides the per-probe timeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) ProbeOption {
	return func(p *HTTPProbe) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// NewHTTPProbe builds a probe against url.
func NewHTTPProbe(url string, opts ...ProbeOption) *HTTPProbe {
	p := &HTTPProbe{url: url, client: http.DefaultClient, timeout: DefaultProbeTimeout}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Check performs one probe and returns the reason for a failure.
func (p *HTTPProbe) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("build probe: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe %s: %w", p.url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("probe %s: status %d", p.url, resp.StatusCode)
	}
	return nil
}

// IsConnected implements Monitor.
func (p *HTTPProbe) IsConnected(ctx context.Context) bool {
	return p.Check(ctx) == nil
}
