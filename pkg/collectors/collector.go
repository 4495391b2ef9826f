// Package collectors defines the source collectors polled by the
// sysmon-agent coordinator. Each collector wraps one metric source
// (disk usage, memory, swap, network, CPU, load, processes), knows how
// to fetch a typed reading from the metrics provider, and normalizes
// provider failures to FetchError.
package collectors

import (
	"context"
	"fmt"
	"time"

	"gitlab.com/tinyland/lab/sysmon-agent/pkg/metrics"
)

// Collector is the interface all metric sources implement. Collectors
// are immutable after construction and safe for concurrent use.
type Collector interface {
	// SourceID returns the unique identifier for this source
	// (e.g. "disk_use:/", "memory", "network_io:eth0").
	SourceID() string

	// Collect performs one fetch and returns the typed value. Failures
	// are returned as *FetchError; a fetch that exceeds its context
	// deadline reports a FetchError wrapping context.DeadlineExceeded.
	Collect(ctx context.Context) (metrics.Value, error)

	// Interval returns how often this source should be polled.
	Interval() time.Duration

	// Healthy reports whether the last fetch succeeded. A collector that
	// has never run is considered healthy.
	Healthy() bool
}

// FetchError is the normalized failure for any source fetch, whatever
// the provider-specific cause (path not found, permission denied,
// sensor unavailable, timeout).
type FetchError struct {
	SourceID string
	Cause    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.SourceID, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// Status tracks the runtime state of a single collector. The
// coordinator updates this after every poll.
type Status struct {
	SourceID    string
	Healthy     bool
	LastRun     time.Time
	LastError   error
	RunCount    int64
	ErrorCount  int64
	LastLatency time.Duration
}
