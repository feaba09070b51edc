package models

import "time"

// TempConnection holds an OAuth connection that finished its platform
// callback but is not yet attached to a user. The completion endpoint
// promotes it to a SocialAccount; expired rows are swept by a cron job.
type TempConnection struct {
	ID             int64     `db:"id" json:"id"`
	State          string    `db:"state" json:"state"`
	Platform       string    `db:"platform" json:"platform"`
	AccountID      string    `db:"account_id" json:"account_id"`
	AccountName    string    `db:"account_name" json:"account_name"`
	Email          string    `db:"email" json:"email"`
	ProfilePicture string    `db:"profile_picture_url" json:"profile_picture_url"`
	AccountType    string    `db:"account_type" json:"account_type"`
	AccessToken    string    `db:"access_token" json:"-"`
	RefreshToken   string    `db:"refresh_token" json:"-"`
	TokenExpiresAt time.Time `db:"token_expires_at" json:"token_expires_at"`
	ExpiresAt      time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
