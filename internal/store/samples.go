package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hostpulse/hostpulse/internal/models"
)

// StoreSample appends the sample and marks its host online in a single
// transaction: the sample and the liveness update both land or neither does.
// The host row UPDATE takes the row lock, so same-host writers serialize
// here just as they do in AlertUnit.
func (s *Store) StoreSample(ctx context.Context, sample models.Sample) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sample transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO hostpulse.samples (
			host_id, captured_at,
			cpu_pct, ram_pct, ram_total, ram_used,
			disk_pct, disk_total, disk_used,
			net_in, net_out, load1, uptime_seconds
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		sample.HostID, sample.CapturedAt,
		sample.CPUPct, sample.RAMPct, sample.RAMTotal, sample.RAMUsed,
		sample.DiskPct, sample.DiskTotal, sample.DiskUsed,
		sample.NetIn, sample.NetOut, sample.Load1, sample.UptimeSeconds,
	)
	if err != nil {
		return fmt.Errorf("insert sample: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE hostpulse.hosts
		SET status = $1, last_seen_at = $2, updated_at = NOW()
		WHERE id = $3`,
		models.HostOnline, sample.CapturedAt, sample.HostID,
	)
	if err != nil {
		return fmt.Errorf("update host liveness: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		// Host deleted between token resolution and here.
		return models.ErrHostNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sample transaction: %w", err)
	}
	return nil
}

// RecentSamples returns the most recent limit samples for a host in
// chronological order: fetched newest-first, then reversed for charting.
func (s *Store) RecentSamples(ctx context.Context, hostID uuid.UUID, limit int) ([]models.Sample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, host_id, captured_at,
		       cpu_pct, ram_pct, ram_total, ram_used,
		       disk_pct, disk_total, disk_used,
		       net_in, net_out, load1, uptime_seconds
		FROM hostpulse.samples
		WHERE host_id = $1
		ORDER BY captured_at DESC, id DESC
		LIMIT $2`,
		hostID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	samples := []models.Sample{}
	for rows.Next() {
		var m models.Sample
		if err := rows.Scan(&m.ID, &m.HostID, &m.CapturedAt,
			&m.CPUPct, &m.RAMPct, &m.RAMTotal, &m.RAMUsed,
			&m.DiskPct, &m.DiskTotal, &m.DiskUsed,
			&m.NetIn, &m.NetOut, &m.Load1, &m.UptimeSeconds); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		samples = append(samples, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(samples)-1; i < j; i, j = i+1, j-1 {
		samples[i], samples[j] = samples[j], samples[i]
	}
	return samples, nil
}
