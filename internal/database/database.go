package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so that timestamps sort lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// PersistenceError reports a failed store operation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func persistErr(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}

// IsPersistence reports whether err came from the store.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

// Store owns the alerts, alert_history and metrics tables.
type Store struct {
	db *sql.DB
}

// New wraps an already opened database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to the SQLite file at dbPath and makes sure the schema exists.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, persistErr("open", err)
	}

	// Single writer connection, avoids SQLITE_BUSY on concurrent transactions.
	db.SetMaxOpenConns(1)

	s := New(db)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.InitSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	log.WithField("path", dbPath).Info("Database initialized successfully.")
	return s, nil
}

// InitSchema creates the tables when missing. Safe to call on every start.
func (s *Store) InitSchema(ctx context.Context) error {
	createAlertsTable := `
	CREATE TABLE IF NOT EXISTS alerts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		alert_type TEXT NOT NULL,
		condition_type TEXT NOT NULL,
		target_price REAL,
		reference_price REAL NOT NULL DEFAULT 0,
		percentage_change REAL,
		volume_threshold REAL,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		triggered_at TEXT,
		message TEXT NOT NULL
	);`
	if _, err := s.db.ExecContext(ctx, createAlertsTable); err != nil {
		return persistErr("create alerts table", err)
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_alerts_active ON alerts (is_active);`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_user ON alerts (user_id, created_at);`,
	}
	for _, q := range indexes {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return persistErr("create alerts index", err)
		}
	}

	// alert_id is declared but not enforced: history outlives deleted alerts.
	createHistoryTable := `
	CREATE TABLE IF NOT EXISTS alert_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		alert_id INTEGER NOT NULL,
		triggered_at TEXT NOT NULL,
		price_at_trigger REAL NOT NULL,
		message TEXT NOT NULL,
		FOREIGN KEY (alert_id) REFERENCES alerts (id)
	);`
	if _, err := s.db.ExecContext(ctx, createHistoryTable); err != nil {
		return persistErr("create alert_history table", err)
	}

	createMetricsTable := `
	CREATE TABLE IF NOT EXISTS metrics (
		metric_name TEXT NOT NULL,
		label_key TEXT NOT NULL DEFAULT '',
		label_value TEXT NOT NULL DEFAULT '',
		metric_value REAL NOT NULL,
		PRIMARY KEY (metric_name, label_key, label_value)
	);`
	if _, err := s.db.ExecContext(ctx, createMetricsTable); err != nil {
		return persistErr("create metrics table", err)
	}

	return nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(v string) (time.Time, error) {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "invalid timestamp %q", v)
	}
	return t, nil
}
