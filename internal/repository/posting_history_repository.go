package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/postpilot/postpilot/internal/models"
)

type PostingHistoryRepository interface {
	Create(ctx context.Context, ph *models.PostingHistory) (int64, error)
	ListByPostID(ctx context.Context, postID int64) ([]*models.PostingHistory, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type postingHistoryRepository struct {
	db *sql.DB
}

func NewPostingHistoryRepository(db *sql.DB) PostingHistoryRepository {
	return &postingHistoryRepository{db: db}
}

func (r *postingHistoryRepository) Create(ctx context.Context, ph *models.PostingHistory) (int64, error) {
	query := `
		INSERT INTO posting_history (user_id, post_id, platform, external_post_id, diagnostic)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, ph.UserID, ph.PostID, ph.Platform, ph.ExternalPostID, ph.Diagnostic).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return id, nil
}

func (r *postingHistoryRepository) ListByPostID(ctx context.Context, postID int64) ([]*models.PostingHistory, error) {
	query := `SELECT id, user_id, post_id, platform, external_post_id, diagnostic, created_at FROM posting_history WHERE post_id = $1 ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var history []*models.PostingHistory
	for rows.Next() {
		var ph models.PostingHistory
		err := rows.Scan(&ph.ID, &ph.UserID, &ph.PostID, &ph.Platform, &ph.ExternalPostID, &ph.Diagnostic, &ph.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		history = append(history, &ph)
	}
	return history, nil
}

func (r *postingHistoryRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM posting_history WHERE created_at < $1`
	result, err := r.db.ExecContext(ctx, query, cutoff.UTC())
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
