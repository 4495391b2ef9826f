package collectors

import (
	"context"
	"sync/atomic"
	"time"

	"gitlab.com/tinyland/lab/sysmon-agent/pkg/metrics"
	"gitlab.com/tinyland/lab/sysmon-agent/pkg/provider"
)

// sourceCollector is the shared implementation behind every concrete
// source. The fetch closure binds the provider call and any per-source
// arguments (mount path, interface name, watch list) at construction.
type sourceCollector struct {
	sourceID string
	interval time.Duration
	fetch    func(ctx context.Context) (metrics.Value, error)
	degraded atomic.Bool
}

func newSource(sourceID string, interval time.Duration, fetch func(ctx context.Context) (metrics.Value, error)) *sourceCollector {
	return &sourceCollector{
		sourceID: sourceID,
		interval: interval,
		fetch:    fetch,
	}
}

// SourceID returns the unique identifier for this source.
func (s *sourceCollector) SourceID() string { return s.sourceID }

// Interval returns the configured polling interval.
func (s *sourceCollector) Interval() time.Duration { return s.interval }

// Healthy reports whether the last fetch succeeded.
func (s *sourceCollector) Healthy() bool { return !s.degraded.Load() }

// Collect performs one fetch, normalizing any failure to *FetchError.
func (s *sourceCollector) Collect(ctx context.Context) (metrics.Value, error) {
	v, err := s.fetch(ctx)
	if err != nil {
		s.degraded.Store(true)
		return nil, &FetchError{SourceID: s.sourceID, Cause: err}
	}
	s.degraded.Store(false)
	return v, nil
}

// NewDiskUsage collects usage for a single mount path. The source ID is
// "disk_use:<path>" so multiple paths can be monitored side by side.
func NewDiskUsage(p provider.Provider, path string, interval time.Duration) Collector {
	return newSource("disk_use:"+path, interval, func(ctx context.Context) (metrics.Value, error) {
		return p.DiskUsage(ctx, path)
	})
}

// NewMemory collects physical memory statistics.
func NewMemory(p provider.Provider, interval time.Duration) Collector {
	return newSource("memory", interval, func(ctx context.Context) (metrics.Value, error) {
		return p.Memory(ctx)
	})
}

// NewSwap collects swap space statistics.
func NewSwap(p provider.Provider, interval time.Duration) Collector {
	return newSource("swap", interval, func(ctx context.Context) (metrics.Value, error) {
		return p.Swap(ctx)
	})
}

// NewNetIO collects cumulative I/O counters for one interface.
func NewNetIO(p provider.Provider, iface string, interval time.Duration) Collector {
	return newSource("network_io:"+iface, interval, func(ctx context.Context) (metrics.Value, error) {
		return p.NetIO(ctx, iface)
	})
}

// NewNetAddrs collects the address list for one interface.
func NewNetAddrs(p provider.Provider, iface string, interval time.Duration) Collector {
	return newSource("network_address:"+iface, interval, func(ctx context.Context) (metrics.Value, error) {
		return p.NetAddrs(ctx, iface)
	})
}

// NewCPUTemp collects the temperature sensor group.
func NewCPUTemp(p provider.Provider, interval time.Duration) Collector {
	return newSource("processor_temperature", interval, func(ctx context.Context) (metrics.Value, error) {
		return p.CPUTemp(ctx)
	})
}

// NewCPUPercent collects aggregate CPU utilization.
func NewCPUPercent(p provider.Provider, interval time.Duration) Collector {
	return newSource("processor_use", interval, func(ctx context.Context) (metrics.Value, error) {
		return p.CPUPercent(ctx)
	})
}

// NewLoadAvg collects the load average triple.
func NewLoadAvg(p provider.Provider, interval time.Duration) Collector {
	return newSource("load", interval, func(ctx context.Context) (metrics.Value, error) {
		return p.LoadAvg(ctx)
	})
}

// NewProcesses collects the watched-process list. The watch list is
// copied so later mutation by the caller has no effect.
func NewProcesses(p provider.Provider, names []string, interval time.Duration) Collector {
	watch := make([]string, len(names))
	copy(watch, names)
	return newSource("process", interval, func(ctx context.Context) (metrics.Value, error) {
		return p.Processes(ctx, watch)
	})
}
