package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	config "github.com/postpilot/postpilot/configs"
	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/repository"
)

const LINKEDIN_AUTH_URL = "https://www.linkedin.com/oauth/v2/authorization"

type PlatformService interface {
	GetAuthURL(ctx context.Context, platform, tokenString string) string
	List(ctx context.Context, userID int64) ([]*models.SocialAccount, error)
	Delete(ctx context.Context, userID, accountID int64) error
}

type platformService struct {
	cfg config.Config
	sa  repository.SocialAccountRepository
}

func NewPlatformService(cfg config.Config, sa repository.SocialAccountRepository) PlatformService {
	return &platformService{
		cfg: cfg,
		sa:  sa,
	}
}

func (s *platformService) GetAuthURL(ctx context.Context, platform, tokenString string) string {
	switch platform {
	case models.PlatformLinkedIn:
		params := url.Values{}
		params.Add("client_id", s.cfg.LinkedInClientID)
		params.Add("redirect_uri", s.cfg.LinkedInRedirectURI)
		params.Add("response_type", "code")
		params.Add("scope", "openid profile email w_member_social")
		params.Add("state", tokenString)

		fullURL := fmt.Sprintf("%s?%s", LINKEDIN_AUTH_URL, params.Encode())
		return fullURL

	default:
		return ""
	}
}

func (s *platformService) List(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	var err error

	if userID == 0 {
		err = errors.New("UserID is not valid")
		slog.Info(err.Error())
		return nil, err
	}

	accounts, err := s.sa.ListInfoByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Error getting social accounts")
	}

	return accounts, nil
}

func (s *platformService) Delete(ctx context.Context, userID, accountID int64) error {
	var err error

	if userID == 0 {
		err = errors.New("UserID is not valid")
		slog.Info(err.Error())
		return err
	}

	if accountID == 0 {
		err = errors.New("AccountID is not valid")
		slog.Info(err.Error())
		return err
	}

	isValid, err := s.sa.CheckByUserID(ctx, accountID, userID)
	if err != nil {
		return err
	}

	if !isValid {
		err = errors.New("Social account doesn't exist")
		slog.Info(err.Error())
		return err
	}

	err = s.sa.Remove(ctx, accountID)
	if err != nil {
		return fmt.Errorf("Error removing account Info")
	}

	return nil
}
