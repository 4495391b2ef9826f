package history

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"gitlab.com/tinyland/lab/sysmon-agent/pkg/bus"
	"gitlab.com/tinyland/lab/sysmon-agent/pkg/metrics"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path, slog.Default())
	if err != nil {
		t.Fatalf("Open(%s): %v", path, err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func diskPub(sourceID string, pct float64, ts time.Time) bus.Publication {
	return bus.Publication{
		SourceID: sourceID,
		Reading: metrics.Reading{
			SourceID: sourceID,
			Data: metrics.DiskUsage{
				Path:        "/",
				Total:       500 << 30,
				Used:        300 << 30,
				Free:        200 << 30,
				UsedPercent: pct,
			},
			LastUpdateSuccess: true,
			Timestamp:         ts,
			State:             metrics.StateHealthy,
		},
	}
}

func TestRecordAndQuery(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		pub := diskPub("disk_use:/", 60.0+float64(i), base.Add(time.Duration(i)*time.Minute))
		if err := s.Record(ctx, pub); err != nil {
			t.Fatalf("Record #%d: %v", i, err)
		}
	}

	rows, err := s.Query(ctx, "disk_use:/", base.Add(-time.Hour), base.Add(time.Hour), 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, want 3", len(rows))
	}

	// Oldest first, payload round-trips through JSON.
	first := rows[0]
	if first.SourceID != "disk_use:/" || !first.Success || first.State != "healthy" {
		t.Errorf("first row = %+v", first)
	}
	du, ok := first.Data.(metrics.DiskUsage)
	if !ok {
		t.Fatalf("first.Data is %T, want metrics.DiskUsage", first.Data)
	}
	if du.UsedPercent != 60.0 {
		t.Errorf("first UsedPercent = %v, want 60.0", du.UsedPercent)
	}
	if last := rows[2].Data.(metrics.DiskUsage); last.UsedPercent != 62.0 {
		t.Errorf("last UsedPercent = %v, want 62.0", last.UsedPercent)
	}
}

func TestQueryTimeWindow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		pub := diskPub("disk_use:/", 50.0, base.Add(time.Duration(i)*time.Minute))
		if err := s.Record(ctx, pub); err != nil {
			t.Fatalf("Record #%d: %v", i, err)
		}
	}

	rows, err := s.Query(ctx, "disk_use:/", base.Add(2*time.Minute), base.Add(5*time.Minute), 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(rows) != 4 {
		t.Errorf("len(rows) = %d, want 4 (minutes 2..5 inclusive)", len(rows))
	}

	rows, err = s.Query(ctx, "disk_use:/", base, base.Add(time.Hour), 3)
	if err != nil {
		t.Fatalf("Query with limit: %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("len(rows) = %d, want limit 3", len(rows))
	}
}

func TestQueryUnknownSourceEmpty(t *testing.T) {
	s := openTestStore(t)

	rows, err := s.Query(context.Background(), "memory", time.Time{}, time.Time{}, 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("len(rows) = %d, want 0", len(rows))
	}
}

func TestRecordFailedReadingWithoutData(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	pub := bus.Publication{
		SourceID: "disk_use:/notexist",
		Reading: metrics.Reading{
			SourceID:          "disk_use:/notexist",
			Data:              nil,
			LastUpdateSuccess: false,
			Timestamp:         time.Now(),
			State:             metrics.StateDegraded,
			Err:               "no such file or directory",
		},
	}
	if err := s.Record(ctx, pub); err != nil {
		t.Fatalf("Record: %v", err)
	}

	rows, err := s.Query(ctx, "disk_use:/notexist", time.Time{}, time.Time{}, 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(rows))
	}
	r := rows[0]
	if r.Success || r.State != "degraded" || r.Err == "" {
		t.Errorf("row = %+v, want degraded with error", r)
	}
	if r.Data != nil {
		t.Errorf("Data = %v, want nil for never-succeeded source", r.Data)
	}
}

func TestSources(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	for _, id := range []string{"memory", "disk_use:/", "memory", "load"} {
		pub := diskPub(id, 10, now)
		if err := s.Record(ctx, pub); err != nil {
			t.Fatalf("Record(%s): %v", id, err)
		}
	}

	got, err := s.Sources(ctx)
	if err != nil {
		t.Fatalf("Sources: %v", err)
	}
	want := []string{"disk_use:/", "load", "memory"}
	if len(got) != len(want) {
		t.Fatalf("Sources = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Sources[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestPrune(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	old := diskPub("disk_use:/", 40, now.Add(-48*time.Hour))
	fresh := diskPub("disk_use:/", 41, now)
	if err := s.Record(ctx, old); err != nil {
		t.Fatalf("Record old: %v", err)
	}
	if err := s.Record(ctx, fresh); err != nil {
		t.Fatalf("Record fresh: %v", err)
	}

	n, err := s.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 1 {
		t.Errorf("Prune removed %d rows, want 1", n)
	}

	rows, err := s.Query(ctx, "disk_use:/", time.Time{}, time.Time{}, 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1 after prune", len(rows))
	}
	if du := rows[0].Data.(metrics.DiskUsage); du.UsedPercent != 41 {
		t.Errorf("surviving row UsedPercent = %v, want 41", du.UsedPercent)
	}
}

func TestSubscriberRecordsPublications(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sub := s.Subscriber(ctx)
	if err := sub(diskPub("memory", 55, time.Now())); err != nil {
		t.Fatalf("subscriber: %v", err)
	}

	rows, err := s.Query(ctx, "memory", time.Time{}, time.Time{}, 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("len(rows) = %d, want 1", len(rows))
	}
}

func TestSubscriberErrorAfterClose(t *testing.T) {
	s := openTestStore(t)
	sub := s.Subscriber(context.Background())
	s.Close()

	if err := sub(diskPub("memory", 55, time.Now())); err == nil {
		t.Fatal("expected error recording on a closed store")
	}
}
