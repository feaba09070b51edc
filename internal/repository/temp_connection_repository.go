package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/postpilot/postpilot/internal/models"
)

type TempConnectionRepository interface {
	Upsert(ctx context.Context, tc *models.TempConnection) (int64, error)
	GetByState(ctx context.Context, state string, now time.Time) (*models.TempConnection, error)
	Remove(ctx context.Context, id int64) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type tempConnectionRepository struct {
	db *sql.DB
}

func NewTempConnectionRepository(db *sql.DB) TempConnectionRepository {
	return &tempConnectionRepository{db: db}
}

const tempConnectionColumns = `id, state, platform, account_id, account_name, email, profile_picture_url, account_type, access_token, refresh_token, token_expires_at, expires_at, created_at`

// Upsert stores the callback result keyed by state. Re-running the callback
// with the same state replaces the earlier row instead of duplicating it.
func (r *tempConnectionRepository) Upsert(ctx context.Context, tc *models.TempConnection) (int64, error) {
	query := `
			INSERT INTO temp_connections(
				state,
				platform,
				account_id,
				account_name,
				email,
				profile_picture_url,
				account_type,
				access_token,
				refresh_token,
				token_expires_at,
				expires_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (state) DO UPDATE SET
				platform = EXCLUDED.platform,
				account_id = EXCLUDED.account_id,
				account_name = EXCLUDED.account_name,
				email = EXCLUDED.email,
				profile_picture_url = EXCLUDED.profile_picture_url,
				account_type = EXCLUDED.account_type,
				access_token = EXCLUDED.access_token,
				refresh_token = EXCLUDED.refresh_token,
				token_expires_at = EXCLUDED.token_expires_at,
				expires_at = EXCLUDED.expires_at
			RETURNING id
		`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		tc.State,
		tc.Platform,
		tc.AccountID,
		tc.AccountName,
		tc.Email,
		tc.ProfilePicture,
		tc.AccountType,
		tc.AccessToken,
		tc.RefreshToken,
		tc.TokenExpiresAt,
		tc.ExpiresAt,
	).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

// GetByState returns the pending connection for the state, or nil when none
// exists or it has already expired.
func (r *tempConnectionRepository) GetByState(ctx context.Context, state string, now time.Time) (*models.TempConnection, error) {
	query := `SELECT ` + tempConnectionColumns + ` FROM temp_connections WHERE state = $1 AND expires_at > $2`
	row := r.db.QueryRowContext(ctx, query, state, now.UTC())

	var tc models.TempConnection
	err := row.Scan(&tc.ID, &tc.State, &tc.Platform, &tc.AccountID, &tc.AccountName,
		&tc.Email, &tc.ProfilePicture, &tc.AccountType, &tc.AccessToken, &tc.RefreshToken,
		&tc.TokenExpiresAt, &tc.ExpiresAt, &tc.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	tc.TokenExpiresAt = tc.TokenExpiresAt.UTC()
	tc.ExpiresAt = tc.ExpiresAt.UTC()
	return &tc, nil
}

func (r *tempConnectionRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM temp_connections WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *tempConnectionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM temp_connections WHERE expires_at <= $1`
	result, err := r.db.ExecContext(ctx, query, now.UTC())
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return deleted, nil
}
