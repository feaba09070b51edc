package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/publisher"
	"github.com/postpilot/postpilot/internal/repository"
)

// TokenRefreshJob proactively renews access tokens expiring soon, so a
// publish attempt rarely has to refresh inline.
type TokenRefreshJob struct {
	sr    repository.SocialAccountRepository
	creds *publisher.CredentialManager
}

func NewTokenRefreshJob(sr repository.SocialAccountRepository, creds *publisher.CredentialManager) *TokenRefreshJob {
	return &TokenRefreshJob{
		sr:    sr,
		creds: creds,
	}
}

func (c *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	timeIn30Minutes := time.Now().Add(30 * time.Minute)

	accounts, err := c.sr.ListExpiring(ctx, timeIn30Minutes)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var wg sync.WaitGroup

	concurrencyLimit := 10
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, acc := range accounts {

		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.SocialAccount) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if _, err := c.creds.Refresh(ctx, acc); err != nil {
				slog.Info("unable to refresh token",
					"user_id", acc.UserID, "platform", acc.Platform, "err", err)
			}
		}(acc)
	}

	wg.Wait()
}
