package database

import (
	"context"
	"crypto-alert-bot/internal/types"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const alertColumns = `id, user_id, symbol, alert_type, condition_type, target_price, reference_price,
	percentage_change, volume_threshold, is_active, created_at, triggered_at, message`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// Insert saves a new alert and returns its id. Ids increase monotonically.
func (s *Store) Insert(ctx context.Context, a types.Alert) (int64, error) {
	query := `
	INSERT INTO alerts (user_id, symbol, alert_type, condition_type, target_price, reference_price,
		percentage_change, volume_threshold, is_active, created_at, message)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?);`

	var target, pct, volume sql.NullFloat64
	switch a.AlertType {
	case types.AlertTypePrice:
		target = sql.NullFloat64{Float64: a.TargetPrice, Valid: true}
	case types.AlertTypePercentage:
		pct = sql.NullFloat64{Float64: a.PercentageChange, Valid: true}
	case types.AlertTypeVolume:
		volume = sql.NullFloat64{Float64: a.VolumeThreshold, Valid: true}
	}

	res, err := s.db.ExecContext(ctx, query,
		a.UserID, a.Symbol, string(a.AlertType), string(a.ConditionType),
		target, a.ReferencePrice, pct, volume, formatTime(a.CreatedAt), a.Message)
	if err != nil {
		return 0, persistErr("insert alert", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, persistErr("insert alert", err)
	}

	log.WithFields(log.Fields{
		"alert_id": id,
		"user_id":  a.UserID,
		"symbol":   a.Symbol,
		"type":     a.AlertType,
	}).Debug("Alert inserted")
	return id, nil
}

// Get returns the alert with the given id, or nil when it does not exist.
func (s *Store) Get(ctx context.Context, id int64) (*types.Alert, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = ?;`, id)
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, persistErr("get alert", err)
	}
	return &a, nil
}

// ListActive returns every alert still waiting for its trigger.
func (s *Store) ListActive(ctx context.Context) ([]types.Alert, error) {
	return s.queryAlerts(ctx, "list active alerts",
		`SELECT `+alertColumns+` FROM alerts WHERE is_active = 1 ORDER BY id;`)
}

// ListByUser returns active and triggered alerts of userID, newest first.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]types.Alert, error) {
	return s.queryAlerts(ctx, "list user alerts",
		`SELECT `+alertColumns+` FROM alerts WHERE user_id = ? ORDER BY created_at DESC, id DESC;`, userID)
}

func (s *Store) queryAlerts(ctx context.Context, op, query string, args ...interface{}) ([]types.Alert, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistErr(op, err)
	}
	defer rows.Close()

	alerts := []types.Alert{}
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, persistErr(op, err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr(op, err)
	}
	return alerts, nil
}

// RecordTrigger deactivates the alert and appends its history row in one
// transaction. It returns false, writing nothing, when the alert is no longer
// active (already triggered, or deleted while the pass was running).
func (s *Store) RecordTrigger(ctx context.Context, alertID int64, at time.Time, price float64, message string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, persistErr("begin trigger", err)
	}
	defer tx.Rollback()

	marked, err := markTriggered(ctx, tx, alertID, at)
	if err != nil {
		return false, persistErr("mark triggered", err)
	}
	if !marked {
		return false, nil
	}

	if err := appendHistory(ctx, tx, alertID, at, price, message); err != nil {
		return false, persistErr("append history", err)
	}

	if err := tx.Commit(); err != nil {
		return false, persistErr("commit trigger", err)
	}
	return true, nil
}

func markTriggered(ctx context.Context, tx *sql.Tx, alertID int64, at time.Time) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE alerts SET is_active = 0, triggered_at = ? WHERE id = ? AND is_active = 1;`,
		formatTime(at), alertID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func appendHistory(ctx context.Context, tx *sql.Tx, alertID int64, at time.Time, price float64, message string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO alert_history (alert_id, triggered_at, price_at_trigger, message) VALUES (?, ?, ?, ?);`,
		alertID, formatTime(at), price, message)
	return err
}

// Delete removes the alert only when it belongs to userID.
func (s *Store) Delete(ctx context.Context, alertID int64, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM alerts WHERE id = ? AND user_id = ?;`, alertID, userID)
	if err != nil {
		return false, persistErr("delete alert", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, persistErr("delete alert", err)
	}
	return n > 0, nil
}

// ListHistory returns the trigger records of an alert, oldest first.
func (s *Store) ListHistory(ctx context.Context, alertID int64) ([]types.AlertHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, alert_id, triggered_at, price_at_trigger, message FROM alert_history WHERE alert_id = ? ORDER BY id;`,
		alertID)
	if err != nil {
		return nil, persistErr("list history", err)
	}
	defer rows.Close()

	entries := []types.AlertHistoryEntry{}
	for rows.Next() {
		var e types.AlertHistoryEntry
		var at string
		if err := rows.Scan(&e.ID, &e.AlertID, &at, &e.PriceAtTrigger, &e.Message); err != nil {
			return nil, persistErr("list history", err)
		}
		if e.TriggeredAt, err = parseTime(at); err != nil {
			return nil, persistErr("list history", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("list history", err)
	}
	return entries, nil
}

func scanAlert(row rowScanner) (types.Alert, error) {
	var (
		a                    types.Alert
		alertType, condition string
		target, pct, volume  sql.NullFloat64
		active               int
		createdAt            string
		triggeredAt          sql.NullString
	)

	err := row.Scan(&a.ID, &a.UserID, &a.Symbol, &alertType, &condition, &target, &a.ReferencePrice,
		&pct, &volume, &active, &createdAt, &triggeredAt, &a.Message)
	if err != nil {
		return a, err
	}

	a.AlertType = types.AlertType(alertType)
	a.ConditionType = types.ConditionType(condition)
	a.TargetPrice = target.Float64
	a.PercentageChange = pct.Float64
	a.VolumeThreshold = volume.Float64
	a.IsActive = active == 1

	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return a, err
	}
	if triggeredAt.Valid {
		t, err := parseTime(triggeredAt.String)
		if err != nil {
			return a, err
		}
		a.TriggeredAt = &t
	}
	return a, nil
}
