package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/PyotrToheed/Pyotr-x-udemy/internal/course"
	"github.com/PyotrToheed/Pyotr-x-udemy/internal/services"
)

// FreshAsset is the per-lecture refresh result: a just-issued license token
// and the manifest URL to pair with it. Tokens expire within minutes, so
// this is fetched immediately before license exchange, never reused from
// the curriculum listing.
type FreshAsset struct {
	LicenseToken string
	ManifestURL  string
}

// Client performs the portal calls the orchestrator needs mid-run.
type Client struct {
	httpc   *http.Client
	baseURL string
}

// NewClient builds a portal client on top of an authenticated *http.Client.
func NewClient(httpc *http.Client, baseURL string) *Client {
	return &Client{httpc: httpc, baseURL: strings.TrimRight(baseURL, "/")}
}

type lectureResponse struct {
	Asset struct {
		Body              string `json:"body"`
		MediaLicenseToken string `json:"media_license_token"`
		MediaSources      []struct {
			Type string `json:"type"`
			Src  string `json:"src"`
		} `json:"media_sources"`
	} `json:"asset"`
}

// FreshVideoAsset fetches a fresh license token and manifest URL for one
// lecture.
func (c *Client) FreshVideoAsset(ctx context.Context, courseID, lectureID int64) (*FreshAsset, error) {
	params := url.Values{}
	params.Set("fields[lecture]", "asset")
	params.Set("fields[asset]", "media_license_token,media_sources")
	body, err := c.getJSON(ctx, c.lectureURL(courseID, lectureID), params)
	if err != nil {
		return nil, err
	}

	var decoded lectureResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode lecture response: %w", err)
	}

	fresh := &FreshAsset{LicenseToken: strings.TrimSpace(decoded.Asset.MediaLicenseToken)}
	sources := make([]course.ProtectedSource, 0, len(decoded.Asset.MediaSources))
	for _, src := range decoded.Asset.MediaSources {
		sources = append(sources, course.ProtectedSource{MIMEType: src.Type, URL: src.Src})
	}
	fresh.ManifestURL = course.ManifestURL(sources)
	return fresh, nil
}

// ArticleBody fetches the rich-text body of an article lecture.
func (c *Client) ArticleBody(ctx context.Context, courseID, lectureID int64) (string, error) {
	params := url.Values{}
	params.Set("fields[lecture]", "asset")
	params.Set("fields[asset]", "body")
	body, err := c.getJSON(ctx, c.lectureURL(courseID, lectureID), params)
	if err != nil {
		return "", err
	}
	var decoded lectureResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("decode lecture response: %w", err)
	}
	return decoded.Asset.Body, nil
}

// FetchManifest retrieves adaptive manifest text. Interstitial bodies and
// non-success statuses surface as ErrManifestFetch.
func (c *Client) FetchManifest(ctx context.Context, manifestURL string) (string, error) {
	body, status, err := c.get(ctx, manifestURL, nil)
	if err != nil {
		return "", services.Wrap(services.ErrManifestFetch, "metadata", "fetch manifest", "request failed", err)
	}
	if status != http.StatusOK {
		return "", services.Wrap(services.ErrManifestFetch, "metadata", "fetch manifest", fmt.Sprintf("http %d", status), nil)
	}
	if BlockedBody(body) {
		return "", services.Wrap(services.ErrManifestFetch, "metadata", "fetch manifest", "anti-automation interstitial served; refresh session credentials", nil)
	}
	return string(body), nil
}

// DownloadTo streams a URL into path, writing through a temp file so a
// partial transfer never looks like a finished output.
func (c *Client) DownloadTo(ctx context.Context, fileURL, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: http %d", fileURL, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	temp := path + ".part"
	out, err := os.Create(temp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(temp)
		return fmt.Errorf("download %s: %w", fileURL, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(temp)
		return err
	}
	return os.Rename(temp, path)
}

func (c *Client) lectureURL(courseID, lectureID int64) string {
	return fmt.Sprintf("%s/api-2.0/users/me/subscribed-courses/%d/lectures/%d/", c.baseURL, courseID, lectureID)
}

func (c *Client) getJSON(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	body, status, err := c.get(ctx, rawURL, params)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("portal request %s: http %d", rawURL, status)
	}
	if BlockedBody(body) {
		return nil, fmt.Errorf("portal request %s: anti-automation interstitial served", rawURL)
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, rawURL string, params url.Values) ([]byte, int, error) {
	target := rawURL
	if len(params) > 0 {
		separator := "?"
		if strings.Contains(rawURL, "?") {
			separator = "&"
		}
		target = rawURL + separator + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}
