// Package watsonx calls IBM watsonx.ai foundation models over REST. Two
// model families are wired in: granite TTM time-series inference for the
// numeric risk forecast, and granite instruct text generation for the
// prompt-based forecast fallback and the plain-English impact summary.
package watsonx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const apiVersion = "2023-05-29"

// tokenSkew refreshes the IAM token this long before its stated expiry so a
// request never goes out with a token about to lapse mid-flight.
const tokenSkew = 60 * time.Second

// Config carries the connection settings for one watsonx.ai project. The
// API key is held in memory only and must never appear in logs or errors.
type Config struct {
	APIKey      string
	ProjectID   string
	BaseURL     string
	IAMURL      string
	TSModelID   string
	TextModelID string
	Timeout     time.Duration
	MaxRetries  int
	Horizon     int
}

// Client is a shared watsonx.ai HTTP client with cached IAM authentication.
// It is safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger

	// retryBase overrides the initial backoff interval; tests shrink it.
	retryBase time.Duration

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient creates a watsonx.ai client. The first model call triggers the
// IAM token exchange; no network traffic happens here.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

// accessToken returns a valid bearer token, exchanging the API key at the
// IAM endpoint when the cached token is missing or near expiry.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry.Add(-tokenSkew)) {
		return c.token, nil
	}

	form := url.Values{
		"grant_type": {"urn:ibm:params:oauth:grant-type:apikey"},
		"apikey":     {c.cfg.APIKey},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.IAMURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("iam token exchange: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("iam token exchange: status %d", resp.StatusCode)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("iam token exchange: empty access token")
	}

	c.token = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	c.logger.Debug("iam token refreshed", "expires_in_seconds", tok.ExpiresIn)
	return c.token, nil
}

// invalidateToken drops the cached token so the next call re-authenticates.
func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.tokenExpiry = time.Time{}
	c.mu.Unlock()
}

// postJSON sends one model request with bounded exponential-backoff retry.
// Transport failures, 429, and 5xx responses retry up to MaxRetries times;
// any other status fails immediately. A 401 invalidates the cached token
// before retrying.
func (c *Client) postJSON(ctx context.Context, endpoint string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	fullURL := strings.TrimRight(c.cfg.BaseURL, "/") + endpoint + "?version=" + apiVersion

	attempt := 0
	op := func() error {
		attempt++
		token, err := c.accessToken(ctx)
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("watsonx request: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return backoff.Permanent(fmt.Errorf("decode response: %w", err))
			}
			return nil
		case resp.StatusCode == http.StatusUnauthorized:
			io.Copy(io.Discard, resp.Body)
			c.invalidateToken()
			return fmt.Errorf("watsonx API: status %d", resp.StatusCode)
		case retryableStatus(resp.StatusCode):
			io.Copy(io.Discard, resp.Body)
			c.logger.Warn("watsonx request retrying",
				"status", resp.StatusCode, "attempt", attempt)
			return fmt.Errorf("watsonx API: status %d", resp.StatusCode)
		default:
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return backoff.Permanent(fmt.Errorf("watsonx API: status %d: %s", resp.StatusCode, snippet))
		}
	}

	bo := backoff.NewExponentialBackOff()
	if c.retryBase > 0 {
		bo.InitialInterval = c.retryBase
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.cfg.MaxRetries)), ctx)
	return backoff.Retry(op, policy)
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
