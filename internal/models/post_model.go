package models

import "time"

type ScheduledPost struct {
	ID             int64     `db:"id" json:"id"`
	UserID         int64     `db:"user_id" json:"user_id"`
	Platform       string    `db:"platform" json:"platform"`
	Caption        string    `db:"caption" json:"caption"`
	ImageURLs      []string  `db:"image_urls" json:"image_urls"`
	ScheduledAt    time.Time `db:"scheduled_at" json:"scheduled_at"`
	Status         string    `db:"status" json:"status"` // scheduled, published, failed
	ExternalPostID string    `db:"external_post_id" json:"external_post_id,omitempty"`
	Error          string    `db:"error" json:"error,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

const (
	PostStatusScheduled = "scheduled"
	PostStatusPublished = "published"
	PostStatusFailed    = "failed"
)

const (
	PlatformLinkedIn  = "linkedin"
	PlatformFacebook  = "facebook"
	PlatformInstagram = "instagram"
	PlatformTwitter   = "twitter"
)

// KnownPlatform reports whether p is a platform name this service recognizes.
// Recognized is weaker than supported: only LinkedIn has a live publisher.
func KnownPlatform(p string) bool {
	switch p {
	case PlatformLinkedIn, PlatformFacebook, PlatformInstagram, PlatformTwitter:
		return true
	}
	return false
}

// Terminal reports whether the post's status admits no further transition.
func (p *ScheduledPost) Terminal() bool {
	return p.Status == PostStatusPublished || p.Status == PostStatusFailed
}
