package collectors

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"gitlab.com/tinyland/lab/sysmon-agent/pkg/metrics"
	"gitlab.com/tinyland/lab/sysmon-agent/pkg/provider"
)

func newFakeProvider() *provider.Fake { return provider.NewFake() }

// --- Registry tests ---

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()
	c := NewMockCollector("memory", time.Second)

	if err := r.Register(c); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	got, ok := r.Get("memory")
	if !ok {
		t.Fatal("Get returned false for registered collector")
	}
	if got.SourceID() != "memory" {
		t.Errorf("SourceID = %q, want %q", got.SourceID(), "memory")
	}
}

func TestRegistryDuplicateSourceError(t *testing.T) {
	r := NewRegistry()
	c1 := NewMockCollector("dup", time.Second)
	c2 := NewMockCollector("dup", time.Second)

	if err := r.Register(c1); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	if err := r.Register(c2); err == nil {
		t.Fatal("second Register should have returned an error for duplicate source")
	}
}

func TestRegistryDeregister(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(NewMockCollector("gone", time.Second))

	r.Deregister("gone")

	if _, ok := r.Get("gone"); ok {
		t.Fatal("Get returned true after Deregister")
	}
	if _, ok := r.Status("gone"); ok {
		t.Fatal("Status returned true after Deregister")
	}
}

func TestRegistryDeregisterNonExistent(t *testing.T) {
	r := NewRegistry()
	// Should not panic.
	r.Deregister("does-not-exist")
}

func TestRegistryList(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(NewMockCollector("swap", time.Second))
	_ = r.Register(NewMockCollector("load", time.Second))
	_ = r.Register(NewMockCollector("memory", time.Second))

	ids := r.List()
	expected := []string{"load", "memory", "swap"}

	if len(ids) != len(expected) {
		t.Fatalf("List returned %d ids, want %d", len(ids), len(expected))
	}
	for i, id := range ids {
		if id != expected[i] {
			t.Errorf("List[%d] = %q, want %q", i, id, expected[i])
		}
	}
}

func TestRegistryStatusInitial(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(NewMockCollector("load", time.Second))

	s, ok := r.Status("load")
	if !ok {
		t.Fatal("Status returned false for registered collector")
	}
	if !s.Healthy {
		t.Error("initial status should be healthy")
	}
	if s.RunCount != 0 {
		t.Errorf("initial RunCount = %d, want 0", s.RunCount)
	}
}

func TestRegistryRecordRun(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(NewMockCollector("memory", time.Second))

	r.RecordRun("memory", nil, 3*time.Millisecond)
	s, _ := r.Status("memory")
	if s.RunCount != 1 || !s.Healthy || s.LastError != nil {
		t.Errorf("after success: %+v", s)
	}
	if s.LastLatency != 3*time.Millisecond {
		t.Errorf("LastLatency = %v, want 3ms", s.LastLatency)
	}

	fetchErr := &FetchError{SourceID: "memory", Cause: errors.New("boom")}
	r.RecordRun("memory", fetchErr, time.Millisecond)
	s, _ = r.Status("memory")
	if s.RunCount != 2 || s.ErrorCount != 1 || s.Healthy {
		t.Errorf("after failure: %+v", s)
	}
	if !errors.Is(s.LastError, fetchErr) {
		t.Errorf("LastError = %v, want %v", s.LastError, fetchErr)
	}
}

func TestRegistryRecordRunUnknownSource(t *testing.T) {
	r := NewRegistry()
	// Should not panic for a source deregistered mid-cycle.
	r.RecordRun("ghost", nil, time.Millisecond)
}

func TestRegistryAllStatusSorted(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(NewMockCollector("swap", time.Second))
	_ = r.Register(NewMockCollector("load", time.Second))

	statuses := r.AllStatus()
	if len(statuses) != 2 {
		t.Fatalf("AllStatus returned %d, want 2", len(statuses))
	}
	if statuses[0].SourceID != "load" || statuses[1].SourceID != "swap" {
		t.Errorf("AllStatus not sorted: got %q, %q", statuses[0].SourceID, statuses[1].SourceID)
	}
}

func TestRegistryConcurrentSafety(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = r.Register(NewMockCollector(fmt.Sprintf("concurrent-%d", n), time.Second))
		}(i)
	}
	wg.Wait()

	if got := len(r.List()); got != 10 {
		t.Errorf("expected 10 collectors, got %d", got)
	}

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			r.RecordRun(fmt.Sprintf("concurrent-%d", n), nil, time.Millisecond)
			_ = r.AllStatus()
			_ = r.List()
		}(i)
	}
	wg.Wait()
}

// --- Source collector tests ---

func TestFetchErrorNormalization(t *testing.T) {
	f := newFakeProvider()
	cause := errors.New("no such file or directory")
	f.SetDiskUsage("/home/notexist/", metrics.DiskUsage{}, cause)

	c := NewDiskUsage(f, "/home/notexist/", time.Minute)
	if c.SourceID() != "disk_use:/home/notexist/" {
		t.Errorf("SourceID = %q", c.SourceID())
	}

	_, err := c.Collect(context.Background())
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("error %v is not a *FetchError", err)
	}
	if fe.SourceID != "disk_use:/home/notexist/" {
		t.Errorf("FetchError.SourceID = %q", fe.SourceID)
	}
	if !errors.Is(err, cause) {
		t.Error("FetchError should wrap the provider cause")
	}
	if c.Healthy() {
		t.Error("collector should be unhealthy after a failed fetch")
	}
}

func TestSourceCollectorRecovers(t *testing.T) {
	f := newFakeProvider()
	f.SetDiskUsage("/", metrics.DiskUsage{}, errors.New("transient"))

	c := NewDiskUsage(f, "/", time.Minute)
	if _, err := c.Collect(context.Background()); err == nil {
		t.Fatal("expected failure")
	}

	f.SetDiskUsage("/", metrics.DiskUsage{Path: "/", UsedPercent: 60.0}, nil)
	v, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.Healthy() {
		t.Error("collector should be healthy after recovery")
	}
	d, ok := v.(metrics.DiskUsage)
	if !ok || d.UsedPercent != 60.0 {
		t.Errorf("unexpected value: %#v", v)
	}
}

func TestProcessesCopiesWatchList(t *testing.T) {
	f := newFakeProvider()
	names := []string{"python3", "pip"}
	c := NewProcesses(f, names, time.Minute)
	names[0] = "mutated"

	if c.SourceID() != "process" {
		t.Errorf("SourceID = %q", c.SourceID())
	}
	// The fake ignores names, so just verify Collect still works.
	if _, err := c.Collect(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// --- Factory tests ---

func TestBuildResources(t *testing.T) {
	f := newFakeProvider()
	resources := []string{
		"disk_use:/",
		"disk_use:/media/share",
		"memory",
		"swap",
		"network_io:eth0",
		"network_address:eth0",
		"processor_temperature",
		"processor_use",
		"load",
		"process",
	}

	cs, err := Build(f, resources, []string{"python3", "pip"}, 15*time.Second)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(cs) != len(resources) {
		t.Fatalf("Build returned %d collectors, want %d", len(cs), len(resources))
	}

	wantIDs := []string{
		"disk_use:/",
		"disk_use:/media/share",
		"memory",
		"swap",
		"network_io:eth0",
		"network_address:eth0",
		"processor_temperature",
		"processor_use",
		"load",
		"process",
	}
	for i, c := range cs {
		if c.SourceID() != wantIDs[i] {
			t.Errorf("collector %d id = %q, want %q", i, c.SourceID(), wantIDs[i])
		}
		if c.Interval() != 15*time.Second {
			t.Errorf("collector %d interval = %v", i, c.Interval())
		}
	}
}

func TestBuildRejectsBadResources(t *testing.T) {
	f := newFakeProvider()
	cases := []string{
		"disk_use",        // missing path
		"network_io",      // missing interface
		"network_address", // missing interface
		"memory:oops",     // unexpected argument
		"frobnicator",     // unknown kind
	}
	for _, res := range cases {
		if _, err := Build(f, []string{res}, nil, time.Second); err == nil {
			t.Errorf("Build(%q) should fail", res)
		}
	}
}

// --- Mock collector tests ---

func TestMockCollectorDefaults(t *testing.T) {
	m := NewMockCollector("test", 5*time.Second)

	if m.SourceID() != "test" {
		t.Errorf("SourceID = %q, want %q", m.SourceID(), "test")
	}
	if m.Interval() != 5*time.Second {
		t.Errorf("Interval = %v, want %v", m.Interval(), 5*time.Second)
	}
	if !m.Healthy() {
		t.Error("default Healthy should be true")
	}
	if m.CallCount() != 0 {
		t.Errorf("initial CallCount = %d, want 0", m.CallCount())
	}
}

func TestMockCollectorWithOptions(t *testing.T) {
	testErr := errors.New("fail")
	m := NewMockCollector("opts", time.Second,
		WithValue(metrics.LoadAvg{Load1: 0.5}),
		WithError(testErr),
		WithHealthy(false),
	)

	if m.Healthy() {
		t.Error("Healthy should be false")
	}

	v, err := m.Collect(context.Background())
	if !errors.Is(err, testErr) {
		t.Errorf("Error = %v, want %v", err, testErr)
	}
	if la, ok := v.(metrics.LoadAvg); !ok || la.Load1 != 0.5 {
		t.Errorf("Value = %#v", v)
	}
	if m.CallCount() != 1 {
		t.Errorf("CallCount = %d, want 1", m.CallCount())
	}
}

func TestMockCollectorWithCollectFunc(t *testing.T) {
	calls := 0
	m := NewMockCollector("custom", time.Second,
		WithCollectFunc(func(ctx context.Context) (metrics.Value, error) {
			calls++
			return metrics.CPUPercent{Percent: float64(calls)}, nil
		}),
	)

	v, err := m.Collect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.(metrics.CPUPercent).Percent != 1 {
		t.Errorf("first call = %#v", v)
	}

	v, _ = m.Collect(context.Background())
	if v.(metrics.CPUPercent).Percent != 2 {
		t.Errorf("second call = %#v", v)
	}
}
