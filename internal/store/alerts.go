package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hostpulse/hostpulse/internal/alerting"
	"github.com/hostpulse/hostpulse/internal/models"
)

// AlertUnit runs fn against alert storage inside a transaction holding the
// host row lock (SELECT ... FOR UPDATE). Reports for the same host serialize
// on that lock; reports for different hosts lock different rows and never
// contend. Everything fn writes commits together or rolls back together.
func (s *Store) AlertUnit(ctx context.Context, hostID uuid.UUID, fn func(alerting.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin alert transaction: %w", err)
	}
	defer tx.Rollback()

	var locked uuid.UUID
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM hostpulse.hosts WHERE id = $1 FOR UPDATE`, hostID).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrHostNotFound
	}
	if err != nil {
		return fmt.Errorf("lock host row: %w", err)
	}

	if err := fn(&txAlertStore{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit alert transaction: %w", err)
	}
	return nil
}

// txAlertStore implements alerting.Store on the open transaction.
type txAlertStore struct {
	tx *sql.Tx
}

func (t *txAlertStore) ActiveAlerts(ctx context.Context, hostID uuid.UUID, metric models.Metric) ([]models.Alert, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, host_id, metric, threshold, status, opened_at, resolved_at
		FROM hostpulse.alerts
		WHERE host_id = $1 AND metric = $2 AND status = $3
		ORDER BY opened_at ASC, id ASC`,
		hostID, metric, models.AlertActive,
	)
	if err != nil {
		return nil, fmt.Errorf("query active alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		var a models.Alert
		if err := rows.Scan(&a.ID, &a.HostID, &a.Metric, &a.Threshold, &a.Status, &a.OpenedAt, &a.ResolvedAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func (t *txAlertStore) OpenAlert(ctx context.Context, hostID uuid.UUID, metric models.Metric, threshold float64, openedAt time.Time) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO hostpulse.alerts (host_id, metric, threshold, status, opened_at)
		VALUES ($1, $2, $3, $4, $5)`,
		hostID, metric, threshold, models.AlertActive, openedAt,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (t *txAlertStore) ResolveAlert(ctx context.Context, alertID int64, resolvedAt time.Time) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE hostpulse.alerts
		SET status = $1, resolved_at = $2
		WHERE id = $3 AND status = $4`,
		models.AlertResolved, resolvedAt, alertID, models.AlertActive,
	)
	if err != nil {
		return fmt.Errorf("resolve alert: %w", err)
	}
	return nil
}

// RecentAlerts returns the newest limit alerts across all hosts owned by an
// account, annotated with host display names.
func (s *Store) RecentAlerts(ctx context.Context, accountID uuid.UUID, limit int) ([]models.AlertWithHost, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.host_id, a.metric, a.threshold, a.status, a.opened_at, a.resolved_at, h.name
		FROM hostpulse.alerts a
		JOIN hostpulse.hosts h ON h.id = a.host_id
		WHERE h.account_id = $1
		ORDER BY a.opened_at DESC, a.id DESC
		LIMIT $2`,
		accountID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	alerts := []models.AlertWithHost{}
	for rows.Next() {
		var a models.AlertWithHost
		if err := rows.Scan(&a.ID, &a.HostID, &a.Metric, &a.Threshold, &a.Status, &a.OpenedAt, &a.ResolvedAt, &a.HostName); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}
