package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hostpulse/hostpulse/internal/models"
)

// CreateHost registers a host with its freshly generated bearer token.
func (s *Store) CreateHost(ctx context.Context, accountID uuid.UUID, name string, ip *string, token string) (models.Host, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO hostpulse.hosts (id, account_id, name, ip, token, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+hostColumns,
		uuid.New(), accountID, name, ip, token, models.HostOffline,
	)
	h, err := scanHost(row)
	if err != nil {
		return models.Host{}, fmt.Errorf("insert host: %w", err)
	}
	return h, nil
}

// HostsByAccount lists an account's hosts, newest-first.
func (s *Store) HostsByAccount(ctx context.Context, accountID uuid.UUID) ([]models.Host, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+hostColumns+`
		FROM hostpulse.hosts
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("query hosts: %w", err)
	}
	defer rows.Close()

	hosts := []models.Host{}
	for rows.Next() {
		h, err := scanHost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan host: %w", err)
		}
		hosts = append(hosts, h)
	}
	return hosts, rows.Err()
}

// HostByID fetches a host scoped to its owning account. A host owned by a
// different account is indistinguishable from a missing one.
func (s *Store) HostByID(ctx context.Context, accountID, hostID uuid.UUID) (models.Host, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+hostColumns+` FROM hostpulse.hosts WHERE id = $1 AND account_id = $2`,
		hostID, accountID,
	)
	h, err := scanHost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Host{}, models.ErrHostNotFound
	}
	if err != nil {
		return models.Host{}, fmt.Errorf("query host: %w", err)
	}
	return h, nil
}

// DeleteHost removes a host; samples and alerts cascade at the schema level.
func (s *Store) DeleteHost(ctx context.Context, accountID, hostID uuid.UUID) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM hostpulse.hosts WHERE id = $1 AND account_id = $2`,
		hostID, accountID,
	)
	if err != nil {
		return fmt.Errorf("delete host: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete host rows affected: %w", err)
	}
	if n == 0 {
		return models.ErrHostNotFound
	}
	return nil
}

// MarkStaleHostsOffline flips online hosts whose last accepted sample is
// older than cutoff. Called only by the sweeper, never from the ingest path.
func (s *Store) MarkStaleHostsOffline(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE hostpulse.hosts
		SET status = $1, updated_at = NOW()
		WHERE status = $2 AND last_seen_at < $3`,
		models.HostOffline, models.HostOnline, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("mark stale hosts offline: %w", err)
	}
	return result.RowsAffected()
}

// CountStaleOnlineHosts reports how many hosts a sweep would flip, for
// dry-run mode.
func (s *Store) CountStaleOnlineHosts(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM hostpulse.hosts
		WHERE status = $1 AND last_seen_at < $2`,
		models.HostOnline, cutoff,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count stale hosts: %w", err)
	}
	return n, nil
}
