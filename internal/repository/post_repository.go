package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/postpilot/postpilot/internal/models"
)

type PostRepository interface {
	Create(ctx context.Context, tx *sql.Tx, post *models.ScheduledPost) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.ScheduledPost, error)
	GetByUserID(ctx context.Context, userID int64) ([]*models.ScheduledPost, error)
	CheckByUserID(ctx context.Context, postID, userID int64) (bool, error)
	ListOverdue(ctx context.Context, now time.Time) ([]*models.ScheduledPost, error)
	ListUpcoming(ctx context.Context, from, to time.Time) ([]*models.ScheduledPost, error)
	MarkPublished(ctx context.Context, id int64, externalPostID string) (bool, error)
	MarkFailed(ctx context.Context, id int64, reason string) (bool, error)
	Remove(ctx context.Context, id int64) error
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `id, user_id, platform, caption, image_urls, scheduled_at, status, external_post_id, error, created_at, updated_at`

func (r *postRepository) Create(ctx context.Context, tx *sql.Tx, post *models.ScheduledPost) (int64, error) {
	query := `
		INSERT INTO scheduled_posts (user_id, platform, caption, image_urls, scheduled_at, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id int64
	var err error

	if tx != nil {
		err = tx.QueryRowContext(ctx, query, post.UserID, post.Platform, post.Caption,
			pq.Array(post.ImageURLs), post.ScheduledAt, post.Status).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, post.UserID, post.Platform, post.Caption,
			pq.Array(post.ImageURLs), post.ScheduledAt, post.Status).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func scanPost(row interface{ Scan(...any) error }) (*models.ScheduledPost, error) {
	var post models.ScheduledPost
	var urls pq.StringArray
	err := row.Scan(&post.ID, &post.UserID, &post.Platform, &post.Caption, &urls,
		&post.ScheduledAt, &post.Status, &post.ExternalPostID, &post.Error,
		&post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return nil, err
	}
	post.ImageURLs = urls
	post.ScheduledAt = post.ScheduledAt.UTC()
	return &post, nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.ScheduledPost, error) {
	query := `SELECT ` + postColumns + ` FROM scheduled_posts WHERE id = $1`
	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return post, nil
}

func (r *postRepository) GetByUserID(ctx context.Context, userID int64) ([]*models.ScheduledPost, error) {
	query := `SELECT ` + postColumns + ` FROM scheduled_posts WHERE user_id = $1 ORDER BY scheduled_at`
	return r.queryPosts(ctx, query, userID)
}

func (r *postRepository) CheckByUserID(ctx context.Context, postID, userID int64) (bool, error) {
	query := "SELECT 1 FROM scheduled_posts WHERE id = $1 AND user_id = $2"

	var result int
	err := r.db.QueryRowContext(ctx, query, postID, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return result == 1, nil
}

func (r *postRepository) ListOverdue(ctx context.Context, now time.Time) ([]*models.ScheduledPost, error) {
	query := `SELECT ` + postColumns + ` FROM scheduled_posts WHERE status = $1 AND scheduled_at <= $2 ORDER BY scheduled_at`
	return r.queryPosts(ctx, query, models.PostStatusScheduled, now.UTC())
}

func (r *postRepository) ListUpcoming(ctx context.Context, from, to time.Time) ([]*models.ScheduledPost, error) {
	query := `SELECT ` + postColumns + ` FROM scheduled_posts WHERE status = $1 AND scheduled_at > $2 AND scheduled_at <= $3 ORDER BY scheduled_at`
	return r.queryPosts(ctx, query, models.PostStatusScheduled, from.UTC(), to.UTC())
}

// MarkPublished transitions the post to published, but only while it is still
// in scheduled status. The boolean result reports whether this call won the
// transition; a late or duplicate writer gets false and the stored record is
// left untouched.
func (r *postRepository) MarkPublished(ctx context.Context, id int64, externalPostID string) (bool, error) {
	query := `
		UPDATE scheduled_posts
		SET status = $2, external_post_id = $3, updated_at = $4
		WHERE id = $1 AND status = $5
	`
	result, err := r.db.ExecContext(ctx, query, id, models.PostStatusPublished, externalPostID,
		time.Now().UTC(), models.PostStatusScheduled)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

func (r *postRepository) MarkFailed(ctx context.Context, id int64, reason string) (bool, error) {
	query := `
		UPDATE scheduled_posts
		SET status = $2, error = $3, updated_at = $4
		WHERE id = $1 AND status = $5
	`
	result, err := r.db.ExecContext(ctx, query, id, models.PostStatusFailed, reason,
		time.Now().UTC(), models.PostStatusScheduled)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

func (r *postRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM scheduled_posts WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) queryPosts(ctx context.Context, query string, args ...any) ([]*models.ScheduledPost, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.ScheduledPost
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return posts, nil
}
