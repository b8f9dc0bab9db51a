package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hostpulse/hostpulse/internal/models"
)

const pqUniqueViolation = "23505"

// CreateAccount registers an operator account. Email uniqueness is enforced
// by the database.
func (s *Store) CreateAccount(ctx context.Context, email, passwordHash string) (models.Account, error) {
	var a models.Account
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO hostpulse.accounts (id, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, email, password_hash, created_at`,
		uuid.New(), email, passwordHash,
	).Scan(&a.ID, &a.Email, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return models.Account{}, models.ErrEmailTaken
		}
		return models.Account{}, fmt.Errorf("insert account: %w", err)
	}
	return a, nil
}

func (s *Store) AccountByEmail(ctx context.Context, email string) (models.Account, error) {
	var a models.Account
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM hostpulse.accounts WHERE email = $1`,
		email,
	).Scan(&a.ID, &a.Email, &a.PasswordHash, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, models.ErrAccountNotFound
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("query account: %w", err)
	}
	return a, nil
}
