package license

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PyotrToheed/Pyotr-x-udemy/internal/metadata"
	"github.com/PyotrToheed/Pyotr-x-udemy/internal/services"
)

// Client posts license challenges to the portal's license server and
// returns the raw response for SubmitLicense.
type Client struct {
	httpc      *http.Client
	licenseURL string
}

// NewClient builds a license client. The HTTP client should carry the
// portal session credentials so the request looks like the player's own.
func NewClient(httpc *http.Client, licenseURL string) *Client {
	return &Client{httpc: httpc, licenseURL: licenseURL}
}

// Exchange sends a challenge to the license server under a fresh
// per-lecture token. Expired tokens, anti-automation interstitials, and
// server rejections all surface as ErrLicenseRejected with distinct
// messages.
func (c *Client) Exchange(ctx context.Context, token string, challenge []byte) ([]byte, error) {
	if strings.TrimSpace(token) == "" {
		return nil, services.Wrap(services.ErrLicenseTokenMissing, "license", "exchange", "no license token for request", nil)
	}

	target, err := c.requestURL(token)
	if err != nil {
		return nil, services.Wrap(services.ErrLicenseRejected, "license", "exchange", "bad license server URL", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(challenge))
	if err != nil {
		return nil, services.Wrap(services.ErrLicenseRejected, "license", "exchange", "build request", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrLicenseRejected, "license", "exchange", "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrLicenseRejected, "license", "exchange", "read response", err)
	}

	// A 200 body is the license; it goes to SubmitLicense untouched. Only
	// failure responses get classified further.
	if resp.StatusCode == http.StatusOK {
		return body, nil
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || bytes.Contains(bytes.ToLower(body), []byte("expired")):
		return nil, services.Wrap(services.ErrLicenseRejected, "license", "exchange", "license token expired; tokens are only valid for minutes after issue", nil)
	case metadata.BlockedBody(body):
		return nil, services.Wrap(services.ErrLicenseRejected, "license", "exchange", "anti-automation interstitial served; refresh session credentials", nil)
	default:
		return nil, services.Wrap(services.ErrLicenseRejected, "license", "exchange", fmt.Sprintf("license server returned http %d", resp.StatusCode), nil)
	}
}

func (c *Client) requestURL(token string) (string, error) {
	parsed, err := url.Parse(c.licenseURL)
	if err != nil {
		return "", err
	}
	query := parsed.Query()
	query.Set("drm_type", "widevine")
	query.Set("auth_token", token)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
