package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/pkg/utils"
	"golang.org/x/oauth2"
)

// CredentialStore is the slice of the social account repository the
// credential manager needs: read by (user, platform) and atomic replace.
type CredentialStore interface {
	GetByUserPlatform(ctx context.Context, userID int64, platform string) (*models.SocialAccount, error)
	SetToken(ctx context.Context, userID int64, oldAccessToken string, sa *models.SocialAccount) error
}

// Credentials is a decrypted, usable credential for one publish attempt.
type Credentials struct {
	AccessToken string
	AccountID   string
	AccountType string
}

// CredentialManager resolves a user's platform credential, transparently
// refreshing and persisting it when the access token has expired. Tokens are
// stored encrypted; everything leaving this type is plaintext.
type CredentialManager struct {
	store     CredentialStore
	secretKey []byte
	oauth     oauth2.Config
	now       func() time.Time
}

func NewCredentialManager(store CredentialStore, secretKey []byte, oauthCfg oauth2.Config) *CredentialManager {
	return &CredentialManager{
		store:     store,
		secretKey: secretKey,
		oauth:     oauthCfg,
		now:       time.Now,
	}
}

// Resolve returns a usable access token for (userID, platform). An expired
// token is refreshed and the new credential is persisted before Resolve
// returns, so the subsequent publish call never runs on a stale token.
func (m *CredentialManager) Resolve(ctx context.Context, userID int64, platform string) (*Credentials, error) {
	acc, err := m.store.GetByUserPlatform(ctx, userID, platform)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, fmt.Errorf("user %d, %s: %w", userID, platform, ErrNoConnectedAccount)
	}

	if !acc.TokenExpiresAt.After(m.now()) {
		slog.Info("access token expired, refreshing", "user_id", userID, "platform", platform)
		acc, err = m.Refresh(ctx, acc)
		if err != nil {
			return nil, err
		}
	}

	accessToken, err := utils.Decrypt(acc.AccessToken, m.secretKey)
	if err != nil {
		return nil, &CredentialError{Platform: platform, Err: err}
	}

	return &Credentials{
		AccessToken: accessToken,
		AccountID:   acc.AccountID,
		AccountType: acc.AccountType,
	}, nil
}

// Refresh exchanges the stored refresh token for a new access token and
// persists the replacement record. The returned account carries the new
// encrypted tokens.
func (m *CredentialManager) Refresh(ctx context.Context, acc *models.SocialAccount) (*models.SocialAccount, error) {
	if acc.RefreshToken == "" {
		return nil, &CredentialError{Platform: acc.Platform, Err: fmt.Errorf("no refresh token stored")}
	}

	refreshToken, err := utils.Decrypt(acc.RefreshToken, m.secretKey)
	if err != nil {
		return nil, &CredentialError{Platform: acc.Platform, Err: err}
	}

	tokenSource := m.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := tokenSource.Token()
	if err != nil {
		return nil, &CredentialError{Platform: acc.Platform, Err: err}
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(token.AccessToken), m.secretKey)
	if err != nil {
		return nil, err
	}

	updated := *acc
	updated.AccessToken = encryptedAccessToken
	updated.TokenExpiresAt = token.Expiry.UTC()

	if token.RefreshToken != "" && token.RefreshToken != refreshToken {
		encryptedRefreshToken, err := utils.Encrypt([]byte(token.RefreshToken), m.secretKey)
		if err != nil {
			return nil, err
		}
		updated.RefreshToken = encryptedRefreshToken
	}

	if err := m.store.SetToken(ctx, acc.UserID, acc.AccessToken, &updated); err != nil {
		return nil, err
	}

	return &updated, nil
}
