package coordinator

import (
	"sync"

	"gitlab.com/tinyland/lab/sysmon-agent/pkg/metrics"
)

// Gate suppresses publications that are not meaningfully different from
// the last published reading for the same source. A reading is admitted
// when it is the first for its source, its data differs structurally,
// or its success flag flipped. Comparison is exact; the gate performs
// no smoothing or quantization.
type Gate struct {
	mu   sync.Mutex
	last map[string]gateEntry
}

type gateEntry struct {
	data    metrics.Value
	success bool
}

// NewGate returns an empty gate.
func NewGate() *Gate {
	return &Gate{last: make(map[string]gateEntry)}
}

// Admit reports whether r should be published, recording it as the
// latest published reading when it is.
func (g *Gate) Admit(r metrics.Reading) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	prev, seen := g.last[r.SourceID]
	if seen && prev.success == r.LastUpdateSuccess && valuesEqual(prev.data, r.Data) {
		return false
	}
	g.last[r.SourceID] = gateEntry{data: r.Data, success: r.LastUpdateSuccess}
	return true
}

// Seed records r as already published without admitting it, so a
// restored snapshot does not replay through subscribers.
func (g *Gate) Seed(r metrics.Reading) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last[r.SourceID] = gateEntry{data: r.Data, success: r.LastUpdateSuccess}
}

// Forget drops the gate state for a deregistered source.
func (g *Gate) Forget(sourceID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.last, sourceID)
}

func valuesEqual(a, b metrics.Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b)
}
