// Package metrics defines the typed values produced by sysmon-agent
// sources. Each source kind has a concrete struct; all of them implement
// the Value interface so the coordinator and change gate can handle
// readings uniformly without resorting to untyped blobs.
package metrics

import "time"

// Kind identifies a source value shape.
type Kind string

const (
	KindDiskUsage   Kind = "disk_usage"
	KindMemory      Kind = "memory"
	KindSwap        Kind = "swap"
	KindNetIO       Kind = "net_io"
	KindNetAddrs    Kind = "net_addrs"
	KindCPUTemp     Kind = "cpu_temperature"
	KindCPUPercent  Kind = "cpu_percent"
	KindLoadAvg     Kind = "load_avg"
	KindProcessList Kind = "process_list"
)

// Value is the closed set of metric payloads. Equal is structural with
// exact numeric comparison; values that fluctuate continuously (e.g. CPU
// percent) must be quantized upstream if suppression is desired.
type Value interface {
	Kind() Kind
	Equal(other Value) bool
}

// DiskUsage holds usage data for a single mount path.
type DiskUsage struct {
	Path        string  `json:"path"`
	FSType      string  `json:"fstype"`
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	Free        uint64  `json:"free"`
	UsedPercent float64 `json:"used_percent"`
}

func (DiskUsage) Kind() Kind { return KindDiskUsage }

func (d DiskUsage) Equal(other Value) bool {
	o, ok := other.(DiskUsage)
	return ok && d == o
}

// Memory holds physical memory statistics.
type Memory struct {
	Total       uint64  `json:"total"`
	Available   uint64  `json:"available"`
	Used        uint64  `json:"used"`
	Free        uint64  `json:"free"`
	UsedPercent float64 `json:"used_percent"`
}

func (Memory) Kind() Kind { return KindMemory }

func (m Memory) Equal(other Value) bool {
	o, ok := other.(Memory)
	return ok && m == o
}

// Swap holds swap space statistics including swap-in/out counters.
type Swap struct {
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	Free        uint64  `json:"free"`
	UsedPercent float64 `json:"used_percent"`
	In          uint64  `json:"in"`
	Out         uint64  `json:"out"`
}

func (Swap) Kind() Kind { return KindSwap }

func (s Swap) Equal(other Value) bool {
	o, ok := other.(Swap)
	return ok && s == o
}

// NetIO holds cumulative I/O counters for one network interface.
type NetIO struct {
	Interface   string `json:"interface"`
	BytesSent   uint64 `json:"bytes_sent"`
	BytesRecv   uint64 `json:"bytes_recv"`
	PacketsSent uint64 `json:"packets_sent"`
	PacketsRecv uint64 `json:"packets_recv"`
	ErrIn       uint64 `json:"err_in"`
	ErrOut      uint64 `json:"err_out"`
	DropIn      uint64 `json:"drop_in"`
	DropOut     uint64 `json:"drop_out"`
}

func (NetIO) Kind() Kind { return KindNetIO }

func (n NetIO) Equal(other Value) bool {
	o, ok := other.(NetIO)
	return ok && n == o
}

// NetAddr is a single address assigned to an interface.
type NetAddr struct {
	Family    string `json:"family"` // "inet" or "inet6"
	Address   string `json:"address"`
	Netmask   string `json:"netmask"`
	Broadcast string `json:"broadcast,omitempty"`
}

// NetAddrs holds the address list for one network interface.
type NetAddrs struct {
	Interface string    `json:"interface"`
	Addrs     []NetAddr `json:"addrs"`
}

func (NetAddrs) Kind() Kind { return KindNetAddrs }

func (n NetAddrs) Equal(other Value) bool {
	o, ok := other.(NetAddrs)
	if !ok || n.Interface != o.Interface || len(n.Addrs) != len(o.Addrs) {
		return false
	}
	for i := range n.Addrs {
		if n.Addrs[i] != o.Addrs[i] {
			return false
		}
	}
	return true
}

// TempSensor is one temperature sensor reading within a group.
type TempSensor struct {
	Label       string  `json:"label"`
	Temperature float64 `json:"temperature"`
}

// CPUTemp holds the per-sensor temperature group.
type CPUTemp struct {
	Sensors []TempSensor `json:"sensors"`
}

func (CPUTemp) Kind() Kind { return KindCPUTemp }

func (c CPUTemp) Equal(other Value) bool {
	o, ok := other.(CPUTemp)
	if !ok || len(c.Sensors) != len(o.Sensors) {
		return false
	}
	for i := range c.Sensors {
		if c.Sensors[i] != o.Sensors[i] {
			return false
		}
	}
	return true
}

// CPUPercent holds aggregate CPU utilization.
type CPUPercent struct {
	Percent float64 `json:"percent"`
}

func (CPUPercent) Kind() Kind { return KindCPUPercent }

func (c CPUPercent) Equal(other Value) bool {
	o, ok := other.(CPUPercent)
	return ok && c == o
}

// LoadAvg holds the 1/5/15 minute load average triple.
type LoadAvg struct {
	Load1  float64 `json:"load1"`
	Load5  float64 `json:"load5"`
	Load15 float64 `json:"load15"`
}

func (LoadAvg) Kind() Kind { return KindLoadAvg }

func (l LoadAvg) Equal(other Value) bool {
	o, ok := other.(LoadAvg)
	return ok && l == o
}

// ProcessInfo describes one live process matched by the watch list.
type ProcessInfo struct {
	PID     int32     `json:"pid"`
	Name    string    `json:"name"`
	Status  string    `json:"status"`
	Started time.Time `json:"started"`
}

// ProcessList holds the watched processes found in the last poll, in
// ascending PID order.
type ProcessList struct {
	Processes []ProcessInfo `json:"processes"`
}

func (ProcessList) Kind() Kind { return KindProcessList }

func (p ProcessList) Equal(other Value) bool {
	o, ok := other.(ProcessList)
	if !ok || len(p.Processes) != len(o.Processes) {
		return false
	}
	for i := range p.Processes {
		a, b := p.Processes[i], o.Processes[i]
		if a.PID != b.PID || a.Name != b.Name || a.Status != b.Status || !a.Started.Equal(b.Started) {
			return false
		}
	}
	return true
}
