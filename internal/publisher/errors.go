package publisher

import (
	"errors"
	"fmt"
)

// ErrUnsupportedPlatform is returned for platform names that are recognized
// by the data model but have no live publisher integration.
var ErrUnsupportedPlatform = errors.New("platform not implemented")

// ErrNoConnectedAccount is returned when the owner has no active account for
// the requested platform.
var ErrNoConnectedAccount = errors.New("no connected account for platform")

// CredentialError means the stored credential is unusable and cannot be
// refreshed; the user must reconnect the account. Fatal for the attempt.
type CredentialError struct {
	Platform string
	Err      error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("%s credentials invalid, reconnect required: %v", e.Platform, e.Err)
}

func (e *CredentialError) Unwrap() error { return e.Err }

// PlatformError describes a failed call to a platform API. Timeout
// distinguishes transient network timeouts from a request the platform
// actively rejected, so operators can tell the two apart in diagnostics.
type PlatformError struct {
	Platform   string
	StatusCode int
	Body       string
	Timeout    bool
}

func (e *PlatformError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s: platform timeout", e.Platform)
	}
	return fmt.Sprintf("%s: platform rejected request (status %d): %s", e.Platform, e.StatusCode, e.Body)
}
