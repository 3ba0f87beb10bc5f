// Package sessions provides a PostgreSQL-backed token store for the
// server's authentication flow.
package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new active record in a single statement, so concurrent
// readers either see the whole row or nothing.
func (r *PostgresRepository) Create(ctx context.Context, userID, refreshToken, accessToken string, meta models.SessionMeta) (*models.Session, error) {
	session := &models.Session{
		ID:           uuid.NewString(),
		UserID:       userID,
		RefreshToken: refreshToken,
		AccessToken:  accessToken,
		IsActive:     true,
		UserAgent:    meta.UserAgent,
		IPAddress:    meta.IPAddress,
	}

	query := `
		INSERT INTO sessions (id, user_id, refresh_token, access_token, is_active, user_agent, ip_address)
		VALUES ($1, $2, $3, $4, true, $5, $6)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		session.ID, session.UserID, session.RefreshToken, session.AccessToken,
		session.UserAgent, session.IPAddress,
	).Scan(&session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return session, nil
}

// FindByRefreshToken returns the record for the given refresh credential
// value. If not found, it returns common.ErrorNotFound.
func (r *PostgresRepository) FindByRefreshToken(ctx context.Context, refreshToken string) (*models.Session, error) {
	query := `
		SELECT id, user_id, refresh_token, access_token, is_active, user_agent, ip_address, created_at, updated_at
		FROM sessions
		WHERE refresh_token = $1
	`
	session := &models.Session{}
	err := r.db.QueryRowContext(ctx, query, refreshToken).Scan(
		&session.ID, &session.UserID, &session.RefreshToken, &session.AccessToken,
		&session.IsActive, &session.UserAgent, &session.IPAddress,
		&session.CreatedAt, &session.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return session, nil
}

// RotateAccess overwrites the access credential and updated timestamp of
// the identified record. The refresh credential and owner are immutable
// after creation, so no other column is touched.
func (r *PostgresRepository) RotateAccess(ctx context.Context, id string, accessToken string) error {
	query := `
		UPDATE sessions SET access_token = $2, updated_at = now()
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, id, accessToken)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// DeactivateOne flips one active record to inactive. The conditional
// single-statement UPDATE makes the database take the row lock: of any number of concurrent calls
// for the same value, exactly one observes true.
func (r *PostgresRepository) DeactivateOne(ctx context.Context, refreshToken string) (bool, error) {
	query := `
		UPDATE sessions SET is_active = false, updated_at = now()
		WHERE refresh_token = $1 AND is_active
	`
	res, err := r.db.ExecContext(ctx, query, refreshToken)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return affected == 1, nil
}

// DeactivateAllForUser revokes every active record owned by the user in a
// single set-based statement; rows are never loaded into memory.
func (r *PostgresRepository) DeactivateAllForUser(ctx context.Context, userID string) (int64, error) {
	query := `
		UPDATE sessions SET is_active = false, updated_at = now()
		WHERE user_id = $1 AND is_active
	`
	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return affected, nil
}
