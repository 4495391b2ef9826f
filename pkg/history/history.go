// Package history persists published readings to a local SQLite database
// and serves time-range queries over them.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"gitlab.com/tinyland/lab/sysmon-agent/pkg/bus"
	"gitlab.com/tinyland/lab/sysmon-agent/pkg/metrics"
)

// Store writes each published reading as one row. Rows older than the
// retention window are removed by Prune.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Row is one persisted publication.
type Row struct {
	ID        int64         `json:"id"`
	SourceID  string        `json:"source_id"`
	Timestamp time.Time     `json:"timestamp"`
	Success   bool          `json:"success"`
	State     string        `json:"state"`
	Err       string        `json:"error,omitempty"`
	Kind      metrics.Kind  `json:"kind,omitempty"`
	Data      metrics.Value `json:"data,omitempty"`
}

// UnmarshalJSON decodes the interface-typed Data payload using the
// row's kind, mirroring how readings decode.
func (r *Row) UnmarshalJSON(b []byte) error {
	type alias Row
	aux := struct {
		*alias
		Data json.RawMessage `json:"data,omitempty"`
	}{alias: (*alias)(r)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	r.Data = nil
	if r.Kind != "" && len(aux.Data) > 0 {
		v, err := metrics.UnmarshalValue(r.Kind, aux.Data)
		if err != nil {
			return err
		}
		r.Data = v
	}
	return nil
}

// Open opens (or creates) the SQLite file at dbPath and runs the migration
// that creates the readings table if it does not exist. The caller must
// call Close() when the program shuts down.
func Open(dbPath string, log *slog.Logger) (*Store, error) {
	// The modernc.org driver is pure-go and works without CGO.
	dsn := fmt.Sprintf("file:%s?_fk=1", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	s := &Store{db: db, log: log}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migration: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	const stmt = `
CREATE TABLE IF NOT EXISTS readings (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    source_id TEXT NOT NULL,
    ts        DATETIME NOT NULL,
    success   INTEGER NOT NULL,
    state     TEXT NOT NULL,
    error     TEXT NOT NULL DEFAULT '',
    kind      TEXT NOT NULL DEFAULT '',
    data      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_readings_source_ts ON readings(source_id, ts);
`
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("create readings table: %w", err)
	}
	s.log.Debug("sqlite migration applied")
	return nil
}

// Record stores one published reading. It satisfies bus.Subscriber when
// wrapped by Subscriber().
func (s *Store) Record(ctx context.Context, pub bus.Publication) error {
	r := pub.Reading
	var kind string
	var data []byte
	if r.Data != nil {
		kind = string(r.Data.Kind())
		var err error
		data, err = json.Marshal(r.Data)
		if err != nil {
			return fmt.Errorf("marshal %s data: %w", pub.SourceID, err)
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO readings (source_id, ts, success, state, error, kind, data)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.SourceID, r.Timestamp.UTC(), boolToInt(r.LastUpdateSuccess),
		string(r.State), r.Err, kind, string(data))
	if err != nil {
		return fmt.Errorf("insert reading for %s: %w", r.SourceID, err)
	}
	return nil
}

// Subscriber adapts the store into a bus subscriber. Insert failures
// surface as subscriber errors, which the bus logs without interrupting
// delivery to other subscribers.
func (s *Store) Subscriber(ctx context.Context) bus.Subscriber {
	return func(pub bus.Publication) error {
		return s.Record(ctx, pub)
	}
}

// Query returns the persisted readings for one source within [since, until],
// oldest first, capped at limit rows. A zero until means "now"; a zero or
// negative limit applies a default of 1000.
func (s *Store) Query(ctx context.Context, sourceID string, since, until time.Time, limit int) ([]Row, error) {
	if until.IsZero() {
		until = time.Now()
	}
	if limit <= 0 {
		limit = 1000
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_id, ts, success, state, error, kind, data
		 FROM readings
		 WHERE source_id = ? AND ts >= ? AND ts <= ?
		 ORDER BY ts ASC
		 LIMIT ?`,
		sourceID, since.UTC(), until.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("query readings for %s: %w", sourceID, err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var (
			row     Row
			success int
			kind    string
			data    string
		)
		if err := rows.Scan(&row.ID, &row.SourceID, &row.Timestamp, &success,
			&row.State, &row.Err, &kind, &data); err != nil {
			return nil, fmt.Errorf("scan reading row: %w", err)
		}
		row.Success = success != 0
		row.Kind = metrics.Kind(kind)
		if kind != "" && data != "" {
			v, err := metrics.UnmarshalValue(metrics.Kind(kind), []byte(data))
			if err != nil {
				// A row written by a newer build may carry a kind this
				// build cannot decode. Skip the payload, keep the row.
				s.log.Warn("undecodable reading payload",
					"source", row.SourceID, "kind", kind, "error", err)
			} else {
				row.Data = v
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Sources returns the distinct source IDs present in the store, sorted.
func (s *Store) Sources(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT source_id FROM readings ORDER BY source_id`)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan source id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Prune deletes readings older than the retention window and returns the
// number of rows removed.
func (s *Store) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).UTC()
	res, err := s.db.ExecContext(ctx, `DELETE FROM readings WHERE ts < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune readings: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Debug("pruned history", "rows", n, "cutoff", cutoff)
	}
	return n, nil
}

// Close shuts down the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
