package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	config "github.com/postpilot/postpilot/configs"
	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/repository"
	"github.com/postpilot/postpilot/internal/transfer"
	"github.com/postpilot/postpilot/pkg/utils"
)

const (
	LINKEDIN_TOKEN_URL    = "https://www.linkedin.com/oauth/v2/accessToken"
	LINKEDIN_USERINFO_URL = "https://api.linkedin.com/v2/userinfo"
)

// tempConnectionTTL bounds how long a finished callback waits for the user
// to complete the connection before the handoff expires.
const tempConnectionTTL = 10 * time.Minute

var (
	ErrConnectionExpired = errors.New("connection data not found or expired")
	ErrAccountConnected  = errors.New("this account is already connected to another user")
	ErrStateMissing      = errors.New("state is empty")
)

// LinkedInService runs the two-phase connect flow: the OAuth callback stores
// the exchanged credential as a temporary connection keyed by state, and
// CompleteConnection attaches it to the authenticated user. The split lets
// the callback run without a session cookie.
type LinkedInService interface {
	LinkedInCallback(ctx context.Context, code, state string) error
	CompleteConnection(ctx context.Context, userID int64, state string) error
}

type linkedinService struct {
	cfg config.Config
	sa  repository.SocialAccountRepository
	tc  repository.TempConnectionRepository
}

func NewLinkedInService(cfg config.Config, sa repository.SocialAccountRepository, tc repository.TempConnectionRepository) LinkedInService {
	return &linkedinService{
		cfg: cfg,
		sa:  sa,
		tc:  tc,
	}
}

func (s *linkedinService) LinkedInCallback(ctx context.Context, code, state string) error {
	if code == "" {
		err := errors.New("code is empty")
		slog.Info(err.Error())
		return err
	}
	if state == "" {
		slog.Info(ErrStateMissing.Error())
		return ErrStateMissing
	}

	token, err := s.exchangeCode(ctx, code)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	userInfo, err := s.getUserInfo(ctx, token.AccessToken)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(token.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	encryptedRefreshToken := ""
	if token.RefreshToken != "" {
		encryptedRefreshToken, err = utils.Encrypt([]byte(token.RefreshToken), []byte(s.cfg.SecretKey))
		if err != nil {
			return err
		}
	}

	temp := &models.TempConnection{
		State:          state,
		Platform:       models.PlatformLinkedIn,
		AccountID:      userInfo.Sub,
		AccountName:    userInfo.Name,
		Email:          userInfo.Email,
		ProfilePicture: userInfo.Picture,
		AccountType:    models.AccountTypePersonal,
		AccessToken:    encryptedAccessToken,
		RefreshToken:   encryptedRefreshToken,
		TokenExpiresAt: GetExpiresAt(token.ExpiresIn),
		ExpiresAt:      time.Now().UTC().Add(tempConnectionTTL),
	}

	_, err = s.tc.Upsert(ctx, temp)
	if err != nil {
		return fmt.Errorf("error storing connection: %w", err)
	}

	slog.Info("linkedin connection stored pending completion", "state", state)
	return nil
}

// CompleteConnection promotes the temporary connection for state into a
// social account owned by userID. The temporary row is removed either way
// once its fate is decided.
func (s *linkedinService) CompleteConnection(ctx context.Context, userID int64, state string) error {
	if state == "" {
		slog.Info(ErrStateMissing.Error())
		return ErrStateMissing
	}

	temp, err := s.tc.GetByState(ctx, state, time.Now().UTC())
	if err != nil {
		return err
	}
	if temp == nil {
		slog.Info("temporary connection not found or expired", "state", state)
		return ErrConnectionExpired
	}

	existing, err := s.sa.GetByPlatformAccountID(ctx, temp.Platform, temp.AccountID)
	if err != nil {
		return err
	}
	if existing != nil && existing.UserID != userID {
		slog.Info("platform account already connected to another user",
			"platform", temp.Platform, "account_id", temp.AccountID)
		if err := s.tc.Remove(ctx, temp.ID); err != nil {
			slog.Info(err.Error())
		}
		return ErrAccountConnected
	}

	account := &models.SocialAccount{
		UserID:         userID,
		Platform:       temp.Platform,
		AccountID:      temp.AccountID,
		AccountName:    temp.AccountName,
		AccountType:    temp.AccountType,
		ProfilePicture: temp.ProfilePicture,
		AccessToken:    temp.AccessToken,
		RefreshToken:   temp.RefreshToken,
		TokenExpiresAt: temp.TokenExpiresAt,
		IsActive:       true,
	}

	_, err = s.sa.Create(ctx, nil, account)
	if err != nil {
		return fmt.Errorf("error saving social account: %w", err)
	}

	if err := s.tc.Remove(ctx, temp.ID); err != nil {
		slog.Info(err.Error())
	}

	slog.Info("linkedin connection completed", "user_id", userID, "account_id", temp.AccountID)
	return nil
}

func (s *linkedinService) exchangeCode(ctx context.Context, code string) (*transfer.LinkedInToken, error) {
	params := url.Values{}
	params.Add("grant_type", "authorization_code")
	params.Add("code", code)
	params.Add("client_id", s.cfg.LinkedInClientID)
	params.Add("client_secret", s.cfg.LinkedInClientSecret)
	params.Add("redirect_uri", s.cfg.LinkedInRedirectURI)

	req, err := http.NewRequestWithContext(ctx, "POST", LINKEDIN_TOKEN_URL, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token exchange failed with status %d", resp.StatusCode)
	}

	var token transfer.LinkedInToken
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, err
	}

	return &token, nil
}

func (s *linkedinService) getUserInfo(ctx context.Context, accessToken string) (*transfer.LinkedInUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", LINKEDIN_USERINFO_URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo request failed with status %d", resp.StatusCode)
	}

	var userInfo transfer.LinkedInUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		return nil, err
	}

	return &userInfo, nil
}
