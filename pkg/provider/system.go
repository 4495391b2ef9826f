package provider

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	gnet "github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/process"
	"github.com/shirou/gopsutil/v4/sensors"

	"gitlab.com/tinyland/lab/sysmon-agent/pkg/metrics"
)

// SystemProvider reads host metrics via gopsutil. The zero value is
// ready to use.
type SystemProvider struct{}

// NewSystemProvider returns a Provider backed by the local host.
func NewSystemProvider() *SystemProvider {
	return &SystemProvider{}
}

var _ Provider = (*SystemProvider)(nil)

// DiskUsage reports usage for a single mount path.
func (p *SystemProvider) DiskUsage(ctx context.Context, path string) (metrics.DiskUsage, error) {
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return metrics.DiskUsage{}, fmt.Errorf("disk usage %q: %w", path, err)
	}
	return metrics.DiskUsage{
		Path:        usage.Path,
		FSType:      usage.Fstype,
		Total:       usage.Total,
		Used:        usage.Used,
		Free:        usage.Free,
		UsedPercent: usage.UsedPercent,
	}, nil
}

// Memory reports physical memory statistics.
func (p *SystemProvider) Memory(ctx context.Context) (metrics.Memory, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return metrics.Memory{}, fmt.Errorf("virtual memory: %w", err)
	}
	return metrics.Memory{
		Total:       vm.Total,
		Available:   vm.Available,
		Used:        vm.Used,
		Free:        vm.Free,
		UsedPercent: vm.UsedPercent,
	}, nil
}

// Swap reports swap space statistics.
func (p *SystemProvider) Swap(ctx context.Context) (metrics.Swap, error) {
	sw, err := mem.SwapMemoryWithContext(ctx)
	if err != nil {
		return metrics.Swap{}, fmt.Errorf("swap memory: %w", err)
	}
	return metrics.Swap{
		Total:       sw.Total,
		Used:        sw.Used,
		Free:        sw.Free,
		UsedPercent: sw.UsedPercent,
		In:          sw.Sin,
		Out:         sw.Sout,
	}, nil
}

// NetIO reports cumulative I/O counters for the named interface.
func (p *SystemProvider) NetIO(ctx context.Context, iface string) (metrics.NetIO, error) {
	counters, err := gnet.IOCountersWithContext(ctx, true)
	if err != nil {
		return metrics.NetIO{}, fmt.Errorf("net io counters: %w", err)
	}
	for _, c := range counters {
		if c.Name != iface {
			continue
		}
		return metrics.NetIO{
			Interface:   c.Name,
			BytesSent:   c.BytesSent,
			BytesRecv:   c.BytesRecv,
			PacketsSent: c.PacketsSent,
			PacketsRecv: c.PacketsRecv,
			ErrIn:       c.Errin,
			ErrOut:      c.Errout,
			DropIn:      c.Dropin,
			DropOut:     c.Dropout,
		}, nil
	}
	return metrics.NetIO{}, fmt.Errorf("net io counters: interface %q not found", iface)
}

// NetAddrs reports the addresses assigned to the named interface.
func (p *SystemProvider) NetAddrs(ctx context.Context, iface string) (metrics.NetAddrs, error) {
	ifaces, err := gnet.InterfacesWithContext(ctx)
	if err != nil {
		return metrics.NetAddrs{}, fmt.Errorf("net interfaces: %w", err)
	}
	for _, stat := range ifaces {
		if stat.Name != iface {
			continue
		}
		out := metrics.NetAddrs{Interface: stat.Name}
		for _, a := range stat.Addrs {
			addr, ok := parseAddr(a.Addr)
			if !ok {
				continue
			}
			out.Addrs = append(out.Addrs, addr)
		}
		return out, nil
	}
	return metrics.NetAddrs{}, fmt.Errorf("net interfaces: interface %q not found", iface)
}

// parseAddr converts a CIDR string into a NetAddr with family, netmask,
// and (for IPv4) broadcast address.
func parseAddr(cidr string) (metrics.NetAddr, bool) {
	ip, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		// Some platforms report bare addresses without a prefix.
		ip = net.ParseIP(cidr)
		if ip == nil {
			return metrics.NetAddr{}, false
		}
		family := "inet"
		if ip.To4() == nil {
			family = "inet6"
		}
		return metrics.NetAddr{Family: family, Address: ip.String()}, true
	}

	if v4 := ip.To4(); v4 != nil {
		mask := ipnet.Mask
		bcast := make(net.IP, len(v4))
		for i := range v4 {
			bcast[i] = v4[i] | ^mask[len(mask)-len(v4)+i]
		}
		return metrics.NetAddr{
			Family:    "inet",
			Address:   v4.String(),
			Netmask:   net.IP(mask).String(),
			Broadcast: bcast.String(),
		}, true
	}

	ones, _ := ipnet.Mask.Size()
	return metrics.NetAddr{
		Family:  "inet6",
		Address: ip.String(),
		Netmask: fmt.Sprintf("%d", ones),
	}, true
}

// CPUTemp reports the temperature sensor group.
func (p *SystemProvider) CPUTemp(ctx context.Context) (metrics.CPUTemp, error) {
	stats, err := sensors.TemperaturesWithContext(ctx)
	if err != nil {
		return metrics.CPUTemp{}, fmt.Errorf("temperature sensors: %w", err)
	}
	if len(stats) == 0 {
		return metrics.CPUTemp{}, fmt.Errorf("temperature sensors: none available")
	}
	out := metrics.CPUTemp{}
	for _, s := range stats {
		out.Sensors = append(out.Sensors, metrics.TempSensor{
			Label:       s.SensorKey,
			Temperature: s.Temperature,
		})
	}
	sort.Slice(out.Sensors, func(i, j int) bool {
		return out.Sensors[i].Label < out.Sensors[j].Label
	})
	return out, nil
}

// CPUPercent reports aggregate CPU utilization. interval=0 compares
// against the previous call, so the first reading after process start
// may be zero.
func (p *SystemProvider) CPUPercent(ctx context.Context) (metrics.CPUPercent, error) {
	pcts, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return metrics.CPUPercent{}, fmt.Errorf("cpu percent: %w", err)
	}
	if len(pcts) == 0 {
		return metrics.CPUPercent{}, fmt.Errorf("cpu percent: no data")
	}
	return metrics.CPUPercent{Percent: pcts[0]}, nil
}

// LoadAvg reports the 1/5/15 minute load averages.
func (p *SystemProvider) LoadAvg(ctx context.Context) (metrics.LoadAvg, error) {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return metrics.LoadAvg{}, fmt.Errorf("load average: %w", err)
	}
	return metrics.LoadAvg{Load1: avg.Load1, Load5: avg.Load5, Load15: avg.Load15}, nil
}

// Processes reports live processes whose name matches the watch list.
// Processes that disappear mid-enumeration are skipped.
func (p *SystemProvider) Processes(ctx context.Context, names []string) (metrics.ProcessList, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return metrics.ProcessList{}, fmt.Errorf("process list: %w", err)
	}

	watch := make(map[string]bool, len(names))
	for _, n := range names {
		watch[n] = true
	}

	out := metrics.ProcessList{}
	for _, proc := range procs {
		name, err := proc.NameWithContext(ctx)
		if err != nil || !watch[name] {
			continue
		}
		info := metrics.ProcessInfo{PID: proc.Pid, Name: name}
		if statuses, err := proc.StatusWithContext(ctx); err == nil && len(statuses) > 0 {
			info.Status = strings.Join(statuses, "+")
		}
		if created, err := proc.CreateTimeWithContext(ctx); err == nil {
			info.Started = time.UnixMilli(created).UTC()
		}
		out.Processes = append(out.Processes, info)
	}
	sort.Slice(out.Processes, func(i, j int) bool {
		return out.Processes[i].PID < out.Processes[j].PID
	})
	return out, nil
}
