package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/postpilot/postpilot/internal/models"
)

const defaultLinkedInAPIBase = "https://api.linkedin.com"

// LinkedInPublisher publishes posts through the LinkedIn UGC posts API.
// LinkedIn's share API takes a single attachment, so carousels degrade to
// their first image when the degrade policy is enabled; with the policy
// disabled a carousel post fails instead.
type LinkedInPublisher struct {
	creds           *CredentialManager
	client          *http.Client
	apiBase         string
	degradeCarousel bool
}

func NewLinkedInPublisher(creds *CredentialManager, timeout time.Duration, degradeCarousel bool) *LinkedInPublisher {
	return &LinkedInPublisher{
		creds:           creds,
		client:          &http.Client{Timeout: timeout},
		apiBase:         defaultLinkedInAPIBase,
		degradeCarousel: degradeCarousel,
	}
}

type linkedInShareText struct {
	Text string `json:"text"`
}

type linkedInMedia struct {
	Status      string            `json:"status"`
	OriginalURL string            `json:"originalUrl"`
	Description linkedInShareText `json:"description"`
}

type linkedInShareContent struct {
	ShareCommentary    linkedInShareText `json:"shareCommentary"`
	ShareMediaCategory string            `json:"shareMediaCategory"`
	Media              []linkedInMedia   `json:"media,omitempty"`
}

type linkedInUGCPost struct {
	Author          string `json:"author"`
	LifecycleState  string `json:"lifecycleState"`
	SpecificContent struct {
		ShareContent linkedInShareContent `json:"com.linkedin.ugc.ShareContent"`
	} `json:"specificContent"`
	Visibility struct {
		MemberNetworkVisibility string `json:"com.linkedin.ugc.MemberNetworkVisibility"`
	} `json:"visibility"`
}

func (l *LinkedInPublisher) Publish(ctx context.Context, post *models.ScheduledPost) (*Result, error) {
	creds, err := l.creds.Resolve(ctx, post.UserID, models.PlatformLinkedIn)
	if err != nil {
		return nil, err
	}

	images := post.ImageURLs
	degraded := ""
	if len(images) > 1 {
		if !l.degradeCarousel {
			return nil, fmt.Errorf("linkedin: carousel posts are not supported")
		}
		degraded = fmt.Sprintf("carousel degraded: published first of %d images", len(images))
		slog.Warn("degrading carousel to single image",
			"post_id", post.ID, "images", len(images))
		images = images[:1]
	}

	author := fmt.Sprintf("urn:li:person:%s", creds.AccountID)
	if creds.AccountType == models.AccountTypeOrganization {
		author = fmt.Sprintf("urn:li:organization:%s", creds.AccountID)
	}

	payload := linkedInUGCPost{
		Author:         author,
		LifecycleState: "PUBLISHED",
	}
	payload.Visibility.MemberNetworkVisibility = "PUBLIC"
	payload.SpecificContent.ShareContent = linkedInShareContent{
		ShareCommentary:    linkedInShareText{Text: post.Caption},
		ShareMediaCategory: "NONE",
	}
	if len(images) == 1 {
		payload.SpecificContent.ShareContent.ShareMediaCategory = "IMAGE"
		payload.SpecificContent.ShareContent.Media = []linkedInMedia{
			{Status: "READY", OriginalURL: images[0]},
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("error marshalling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", l.apiBase+"/v2/ugcPosts", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	resp, err := l.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			// Shutdown abandoned the call; let the supervisor decide.
			return nil, ctx.Err()
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, &PlatformError{Platform: models.PlatformLinkedIn, Timeout: true}
		}
		return nil, fmt.Errorf("linkedin request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, &PlatformError{
			Platform:   models.PlatformLinkedIn,
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	externalID := resp.Header.Get("X-RestLi-Id")
	if externalID == "" {
		var result struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(respBody, &result); err != nil {
			return nil, fmt.Errorf("error parsing response: %w", err)
		}
		externalID = result.ID
	}
	if externalID == "" {
		return nil, fmt.Errorf("no post ID returned from LinkedIn")
	}

	slog.Info("published to linkedin", "post_id", post.ID, "external_id", externalID)
	return &Result{ExternalPostID: externalID, Degraded: degraded}, nil
}
