// Package provider supplies raw structured OS readings on demand. The
// Provider interface is the seam between the collectors and the host:
// production code uses the gopsutil-backed SystemProvider, tests inject
// a Fake.
package provider

import (
	"context"

	"gitlab.com/tinyland/lab/sysmon-agent/pkg/metrics"
)

// Provider returns one raw reading per call. Implementations must be
// safe for concurrent use; the coordinator fetches all sources in
// parallel within a poll cycle.
type Provider interface {
	// DiskUsage reports usage for a single mount path.
	DiskUsage(ctx context.Context, path string) (metrics.DiskUsage, error)

	// Memory reports physical memory statistics.
	Memory(ctx context.Context) (metrics.Memory, error)

	// Swap reports swap space statistics.
	Swap(ctx context.Context) (metrics.Swap, error)

	// NetIO reports cumulative I/O counters for the named interface.
	NetIO(ctx context.Context, iface string) (metrics.NetIO, error)

	// NetAddrs reports the addresses assigned to the named interface.
	NetAddrs(ctx context.Context, iface string) (metrics.NetAddrs, error)

	// CPUTemp reports the temperature sensor group.
	CPUTemp(ctx context.Context) (metrics.CPUTemp, error)

	// CPUPercent reports aggregate CPU utilization since the last call.
	CPUPercent(ctx context.Context) (metrics.CPUPercent, error)

	// LoadAvg reports the 1/5/15 minute load averages.
	LoadAvg(ctx context.Context) (metrics.LoadAvg, error)

	// Processes reports live processes whose name is in names, sorted by
	// ascending PID.
	Processes(ctx context.Context, names []string) (metrics.ProcessList, error)
}
