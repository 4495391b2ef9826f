package provider

import (
	"context"
	"sync"

	"gitlab.com/tinyland/lab/sysmon-agent/pkg/metrics"
)

// Fake is an in-memory Provider for tests. Set the value or error for
// each source; unset sources return their zero value. All methods are
// safe for concurrent use.
type Fake struct {
	mu sync.RWMutex

	DiskUsages map[string]metrics.DiskUsage
	DiskErrs   map[string]error
	MemoryVal  metrics.Memory
	MemoryErr  error
	SwapVal    metrics.Swap
	SwapErr    error
	NetIOs     map[string]metrics.NetIO
	NetIOErrs  map[string]error
	NetAddrVal map[string]metrics.NetAddrs
	NetAddrErr map[string]error
	CPUTempVal metrics.CPUTemp
	CPUTempErr error
	CPUPctVal  metrics.CPUPercent
	CPUPctErr  error
	LoadVal    metrics.LoadAvg
	LoadErr    error
	ProcVal    metrics.ProcessList
	ProcErr    error
}

// NewFake returns an empty Fake ready for configuration.
func NewFake() *Fake {
	return &Fake{
		DiskUsages: make(map[string]metrics.DiskUsage),
		DiskErrs:   make(map[string]error),
		NetIOs:     make(map[string]metrics.NetIO),
		NetIOErrs:  make(map[string]error),
		NetAddrVal: make(map[string]metrics.NetAddrs),
		NetAddrErr: make(map[string]error),
	}
}

var _ Provider = (*Fake)(nil)

// SetDiskUsage configures the result for one mount path.
func (f *Fake) SetDiskUsage(path string, d metrics.DiskUsage, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DiskUsages[path] = d
	f.DiskErrs[path] = err
}

// SetNetIO configures the result for one interface.
func (f *Fake) SetNetIO(iface string, n metrics.NetIO, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.NetIOs[iface] = n
	f.NetIOErrs[iface] = err
}

// SetMemory configures the memory result.
func (f *Fake) SetMemory(m metrics.Memory, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.MemoryVal = m
	f.MemoryErr = err
}

// SetProcesses configures the process list result.
func (f *Fake) SetProcesses(p metrics.ProcessList, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ProcVal = p
	f.ProcErr = err
}

func (f *Fake) DiskUsage(_ context.Context, path string) (metrics.DiskUsage, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.DiskUsages[path], f.DiskErrs[path]
}

func (f *Fake) Memory(context.Context) (metrics.Memory, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.MemoryVal, f.MemoryErr
}

func (f *Fake) Swap(context.Context) (metrics.Swap, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.SwapVal, f.SwapErr
}

func (f *Fake) NetIO(_ context.Context, iface string) (metrics.NetIO, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.NetIOs[iface], f.NetIOErrs[iface]
}

func (f *Fake) NetAddrs(_ context.Context, iface string) (metrics.NetAddrs, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.NetAddrVal[iface], f.NetAddrErr[iface]
}

func (f *Fake) CPUTemp(context.Context) (metrics.CPUTemp, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.CPUTempVal, f.CPUTempErr
}

func (f *Fake) CPUPercent(context.Context) (metrics.CPUPercent, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.CPUPctVal, f.CPUPctErr
}

func (f *Fake) LoadAvg(context.Context) (metrics.LoadAvg, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.LoadVal, f.LoadErr
}

func (f *Fake) Processes(context.Context, []string) (metrics.ProcessList, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.ProcVal, f.ProcErr
}
