// Package store is the PostgreSQL persistence layer. Write paths touching
// alert state go through AlertUnit, which serializes per host via a row lock
// on the hosts table.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hostpulse/hostpulse/internal/database"
	"github.com/hostpulse/hostpulse/internal/models"
)

type Store struct {
	db *database.DB
}

func New(db *database.DB) *Store {
	return &Store{db: db}
}

const hostColumns = `id, account_id, name, ip, token, status, last_seen_at, created_at, updated_at`

func scanHost(row interface{ Scan(...any) error }) (models.Host, error) {
	var h models.Host
	err := row.Scan(&h.ID, &h.AccountID, &h.Name, &h.IP, &h.Token, &h.Status, &h.LastSeenAt, &h.CreatedAt, &h.UpdatedAt)
	return h, err
}

// HostByToken resolves a bearer token to its full host row.
func (s *Store) HostByToken(ctx context.Context, token string) (models.Host, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+hostColumns+` FROM hostpulse.hosts WHERE token = $1`, token)
	h, err := scanHost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Host{}, models.ErrHostNotFound
	}
	if err != nil {
		return models.Host{}, fmt.Errorf("query host by token: %w", err)
	}
	return h, nil
}

// HostIDByToken is the narrow lookup used by the token resolver cache.
func (s *Store) HostIDByToken(ctx context.Context, token string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM hostpulse.hosts WHERE token = $1`, token).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, models.ErrHostNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("query host id by token: %w", err)
	}
	return id, nil
}
