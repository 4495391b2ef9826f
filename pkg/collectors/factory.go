package collectors

import (
	"fmt"
	"strings"
	"time"

	"gitlab.com/tinyland/lab/sysmon-agent/pkg/provider"
)

// Build constructs the collector set for the configured resources.
// A resource is either a bare kind ("memory", "swap", "load",
// "processor_use", "processor_temperature", "process") or a
// parameterized kind ("disk_use:/path", "network_io:eth0",
// "network_address:eth0"). Unknown or malformed resources are rejected
// by name. The process watch list applies to the "process" resource.
func Build(p provider.Provider, resources []string, processNames []string, interval time.Duration) ([]Collector, error) {
	out := make([]Collector, 0, len(resources))
	for _, res := range resources {
		kind, arg := res, ""
		if i := strings.IndexByte(res, ':'); i >= 0 {
			kind, arg = res[:i], res[i+1:]
		}

		switch kind {
		case "disk_use", "network_io", "network_address":
			if arg == "" {
				return nil, fmt.Errorf("resource %q: %s requires an argument", res, kind)
			}
		case "memory", "swap", "processor_temperature", "processor_use", "load", "process":
			if arg != "" {
				return nil, fmt.Errorf("resource %q: %s takes no argument", res, kind)
			}
		default:
			return nil, fmt.Errorf("unknown resource %q", res)
		}

		var c Collector
		switch kind {
		case "disk_use":
			c = NewDiskUsage(p, arg, interval)
		case "network_io":
			c = NewNetIO(p, arg, interval)
		case "network_address":
			c = NewNetAddrs(p, arg, interval)
		case "memory":
			c = NewMemory(p, interval)
		case "swap":
			c = NewSwap(p, interval)
		case "processor_temperature":
			c = NewCPUTemp(p, interval)
		case "processor_use":
			c = NewCPUPercent(p, interval)
		case "load":
			c = NewLoadAvg(p, interval)
		case "process":
			c = NewProcesses(p, processNames, interval)
		}
		out = append(out, c)
	}
	return out, nil
}
