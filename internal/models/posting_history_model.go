package models

import "time"

// PostingHistory is the audit record of a single publish attempt. Diagnostic
// carries the failure reason, or a degradation note when the attempt succeeded
// with reduced media (for example a carousel collapsed to its first image).
type PostingHistory struct {
	ID             int64     `db:"id" json:"id"`
	UserID         int64     `db:"user_id" json:"user_id"`
	PostID         int64     `db:"post_id" json:"post_id"`
	Platform       string    `db:"platform" json:"platform"`
	ExternalPostID string    `db:"external_post_id" json:"external_post_id"`
	Diagnostic     string    `db:"diagnostic" json:"diagnostic"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
