package collectors

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"gitlab.com/tinyland/lab/sysmon-agent/pkg/metrics"
)

// MockCollector implements Collector for testing. All fields are
// configurable and it tracks how many times Collect has been called.
type MockCollector struct {
	sourceID string
	interval time.Duration

	mu        sync.RWMutex
	value     metrics.Value
	err       error
	healthy   bool
	callCount atomic.Int64

	// CollectFunc, if set, overrides the default Collect behavior. This
	// allows tests to inject dynamic behavior (e.g. different values per
	// call, or blocking until a signal).
	CollectFunc func(ctx context.Context) (metrics.Value, error)
}

// MockOption configures a MockCollector.
type MockOption func(*MockCollector)

// WithValue sets the value returned by Collect.
func WithValue(v metrics.Value) MockOption {
	return func(m *MockCollector) { m.value = v }
}

// WithError sets the error returned by Collect.
func WithError(err error) MockOption {
	return func(m *MockCollector) { m.err = err }
}

// WithHealthy sets the Healthy() return value.
func WithHealthy(healthy bool) MockOption {
	return func(m *MockCollector) { m.healthy = healthy }
}

// WithCollectFunc sets a custom function for Collect.
func WithCollectFunc(fn func(ctx context.Context) (metrics.Value, error)) MockOption {
	return func(m *MockCollector) { m.CollectFunc = fn }
}

// NewMockCollector creates a mock collector with the given source ID,
// interval, and options.
func NewMockCollector(sourceID string, interval time.Duration, opts ...MockOption) *MockCollector {
	m := &MockCollector{
		sourceID: sourceID,
		interval: interval,
		healthy:  true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SourceID returns the mock's source ID.
func (m *MockCollector) SourceID() string { return m.sourceID }

// Interval returns the configured collection interval.
func (m *MockCollector) Interval() time.Duration { return m.interval }

// Healthy returns the configured health status.
func (m *MockCollector) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.healthy
}

// SetHealthy updates the health status (thread-safe).
func (m *MockCollector) SetHealthy(h bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthy = h
}

// SetValue updates the returned value (thread-safe).
func (m *MockCollector) SetValue(v metrics.Value) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = v
}

// SetError updates the returned error (thread-safe).
func (m *MockCollector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Collect performs a mock collection. It increments the call counter
// and returns the configured value and error, or delegates to
// CollectFunc if set.
func (m *MockCollector) Collect(ctx context.Context) (metrics.Value, error) {
	m.callCount.Add(1)

	if m.CollectFunc != nil {
		return m.CollectFunc(ctx)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.value, m.err
}

// CallCount returns how many times Collect has been called.
func (m *MockCollector) CallCount() int64 {
	return m.callCount.Load()
}
