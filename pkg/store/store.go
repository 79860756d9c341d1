// Package store persists sensor readings and downloaded history in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/sensorlink/aranet4/internal/log"
	"github.com/sensorlink/aranet4/pkg/history"
	"github.com/sensorlink/aranet4/pkg/protocol"
)

const schema = `
CREATE TABLE IF NOT EXISTS readings (
  sensor        TEXT    NOT NULL,
  ts            INTEGER NOT NULL,
  co2_ppm       INTEGER NOT NULL,
  temperature_f REAL    NOT NULL,
  pressure_kpa  REAL    NOT NULL,
  humidity_pct  INTEGER NOT NULL,
  battery_pct   INTEGER NOT NULL,
  status_color  INTEGER NOT NULL,
  PRIMARY KEY (sensor, ts)
);

CREATE TABLE IF NOT EXISTS history (
  sensor        TEXT    NOT NULL,
  ts            INTEGER NOT NULL,
  temperature_f REAL    NOT NULL,
  humidity_pct  INTEGER NOT NULL,
  pressure_kpa  REAL    NOT NULL,
  co2_ppm       INTEGER NOT NULL,
  PRIMARY KEY (sensor, ts)
);
CREATE INDEX IF NOT EXISTS idx_history_ts ON history(ts);
`

// Snapshot is a stored current reading.
type Snapshot struct {
	Time    time.Time
	Reading protocol.Reading
}

// Store wraps a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the schema. ":memory:" opens a
// private in-memory database.
func Open(path string) (*Store, error) {
	dsn, err := buildDSN(path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}
	// SQLite serialises writers; a single connection also keeps in-memory databases shared.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping")
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "migrate")
	}
	log.Debug("Opened store %s", path)
	return &Store{db: db}, nil
}

func buildDSN(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	dir := filepath.Dir(strings.TrimPrefix(path, "file:"))
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", errors.Wrapf(err, "mkdir %s", dir)
		}
	}

	params := []string{
		"_busy_timeout=5000",
		"_journal_mode=WAL",
	}
	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&"), nil
	}
	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveReading stores a current reading taken at t. A second reading for the same sensor and second
// replaces the first.
func (s *Store) SaveReading(ctx context.Context, sensor string, t time.Time, r protocol.Reading) error {
	_, err := s.db.ExecContext(ctx, `
INSERT OR REPLACE INTO readings (sensor, ts, co2_ppm, temperature_f, pressure_kpa, humidity_pct, battery_pct, status_color)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sensor, t.Unix(), r.CO2, r.TemperatureF, r.PressureKPa, r.Humidity, r.Battery, r.StatusColor)
	return errors.Wrap(err, "save reading")
}

// LatestReading returns the most recent stored reading for sensor. The boolean is false if none is
// stored.
func (s *Store) LatestReading(ctx context.Context, sensor string) (Snapshot, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT ts, co2_ppm, temperature_f, pressure_kpa, humidity_pct, battery_pct, status_color
FROM readings WHERE sensor = ? ORDER BY ts DESC LIMIT 1`, sensor)

	var ts int64
	var snap Snapshot
	r := &snap.Reading
	err := row.Scan(&ts, &r.CO2, &r.TemperatureF, &r.PressureKPa, &r.Humidity, &r.Battery, &r.StatusColor)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, errors.Wrap(err, "latest reading")
	}
	snap.Time = time.Unix(ts, 0)
	return snap, true, nil
}

// SaveHistory inserts every record of readings. A record is skipped when the sensor already has a
// row within half a logging interval of it, so repeated downloads of an overlapping log are safe
// even when their start estimates differ by a second. It returns the number of new rows.
func (s *Store) SaveHistory(ctx context.Context, sensor string, readings *history.Readings) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "begin")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
INSERT OR IGNORE INTO history (sensor, ts, temperature_f, humidity_pct, pressure_kpa, co2_ppm)
SELECT ?, ?, ?, ?, ?, ?
WHERE NOT EXISTS (SELECT 1 FROM history WHERE sensor = ? AND ts > ? AND ts < ?)`)
	if err != nil {
		return 0, errors.Wrap(err, "prepare")
	}
	defer stmt.Close()

	tolerance := matchTolerance(readings.Information.Interval)
	inserted := 0
	for rec := range readings.Records() {
		ts := rec.Time.Unix()
		res, err := stmt.ExecContext(ctx, sensor, ts, rec.Temperature, rec.Humidity, rec.Pressure, rec.CO2,
			sensor, ts-tolerance, ts+tolerance)
		if err != nil {
			return 0, errors.Wrapf(err, "insert record at %s", rec.Time.Format(time.RFC3339))
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, errors.Wrap(err, "rows affected")
		}
		inserted += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "commit")
	}
	log.Debug("Stored %d of %d history records for %s", inserted, readings.Len(), sensor)
	return inserted, nil
}

// matchTolerance is the exclusive distance in seconds at which a stored row counts as the same
// sample. Below two-second intervals only exact timestamps match.
func matchTolerance(interval time.Duration) int64 {
	if tol := int64(interval/time.Second) / 2; tol > 1 {
		return tol
	}
	return 1
}

// HistorySince returns the stored records for sensor at or after since, oldest first.
func (s *Store) HistorySince(ctx context.Context, sensor string, since time.Time) ([]history.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT ts, temperature_f, humidity_pct, pressure_kpa, co2_ppm
FROM history WHERE sensor = ? AND ts >= ? ORDER BY ts`, sensor, since.Unix())
	if err != nil {
		return nil, errors.Wrap(err, "query history")
	}
	defer rows.Close()

	var out []history.Record
	for rows.Next() {
		var ts int64
		var rec history.Record
		if err := rows.Scan(&ts, &rec.Temperature, &rec.Humidity, &rec.Pressure, &rec.CO2); err != nil {
			return nil, errors.Wrap(err, "scan history")
		}
		rec.Time = time.Unix(ts, 0)
		out = append(out, rec)
	}
	return out, errors.Wrap(rows.Err(), "iterate history")
}
