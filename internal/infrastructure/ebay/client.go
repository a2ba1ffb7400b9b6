package ebay

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/four-bytes-robby/scr-ebay-sync/internal/domain/reconcile"
)

// maxResponseSize is the maximum allowed response size from the eBay API (10MB)
const maxResponseSize = 10 * 1024 * 1024

// tokenExpirySlack is subtracted from the reported token lifetime so a
// token is never used right at its expiry.
const tokenExpirySlack = time.Minute

// Client is the HTTP adapter for the eBay Sell Inventory and Fulfillment
// APIs. It implements reconcile.MarketplaceClient.
type Client struct {
	config     *Config
	httpClient *http.Client
	logger     *zap.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient creates a new eBay client with the given configuration
func NewClient(config *Config, logger *zap.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger,
	}, nil
}

// ---------------------------------------------------------------------------
// OAuth
// ---------------------------------------------------------------------------

// token returns a valid access token, minting one from the refresh token
// when the cached one is missing or about to expire.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", c.config.RefreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("ebay: failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Basic "+basicAuth(c.config.ClientID, c.config.ClientSecret))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token request: %v", reconcile.ErrMarketplaceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("ebay: failed to read token response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("%w: token request rejected with HTTP %d", reconcile.ErrMarketplaceRejected, resp.StatusCode)
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("ebay: failed to parse token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%w: token response carried no access token", reconcile.ErrMarketplaceRejected)
	}

	c.accessToken = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - tokenExpirySlack)
	return c.accessToken, nil
}

// invalidateToken drops the cached access token after a 401
func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.accessToken = ""
	c.mu.Unlock()
}

func basicAuth(id, secret string) string {
	return base64.StdEncoding.EncodeToString([]byte(id + ":" + secret))
}

// ---------------------------------------------------------------------------
// Request plumbing
// ---------------------------------------------------------------------------

// apiError is a non-success API response that was neither throttling nor a
// server failure. Callers map it onto the domain error vocabulary.
type apiError struct {
	Status int
	Errors []errorDetail
}

func (e *apiError) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("ebay: HTTP %d: %s", e.Status, e.Errors[0].Message)
	}
	return fmt.Sprintf("ebay: HTTP %d", e.Status)
}

// doRequest performs an authenticated API request. Throttled and transient
// failures are retried with exponential backoff; a 401 invalidates the
// cached token and the call is retried with a fresh one. Remaining 4xx
// responses come back as *apiError.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, payload interface{}) ([]byte, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("ebay: failed to encode request: %w", err)
		}
	}

	endpoint := c.config.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	backoff := c.config.RetryBackoff
	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		respBody, status, err := c.attempt(ctx, method, endpoint, body)
		if err != nil {
			lastErr = fmt.Errorf("%w: %v", reconcile.ErrMarketplaceUnavailable, err)
			continue
		}

		switch {
		case status < 400:
			return respBody, nil
		case status == http.StatusUnauthorized:
			c.invalidateToken()
			lastErr = fmt.Errorf("%w: HTTP 401", reconcile.ErrMarketplaceRejected)
		case status == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("%w: HTTP 429", reconcile.ErrMarketplaceRateLimited)
		case status >= 500:
			lastErr = fmt.Errorf("%w: HTTP %d", reconcile.ErrMarketplaceUnavailable, status)
		default:
			return nil, &apiError{Status: status, Errors: parseErrors(respBody)}
		}

		c.logger.Debug("ebay request retrying",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Int("attempt", attempt+1))
	}
	return nil, lastErr
}

// attempt runs a single authenticated HTTP exchange
func (c *Client) attempt(ctx context.Context, method, endpoint string, body []byte) ([]byte, int, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, 0, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Language", "de-DE")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, 0, err
	}
	return respBody, resp.StatusCode, nil
}

func parseErrors(body []byte) []errorDetail {
	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil
	}
	return resp.Errors
}

// ---------------------------------------------------------------------------
// Error mapping
// ---------------------------------------------------------------------------

// mapListingError translates an inventory API rejection into the domain
// error vocabulary. A missing resource becomes ErrListingNotFound and a
// quantity rejection becomes ErrInvalidQuantity so the caller can run the
// compensating action.
func mapListingError(err error) error {
	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch {
	case apiErr.Status == http.StatusNotFound:
		return fmt.Errorf("%w: %v", reconcile.ErrListingNotFound, apiErr)
	case isQuantityRejection(apiErr):
		return fmt.Errorf("%w: %v", reconcile.ErrInvalidQuantity, apiErr)
	default:
		return fmt.Errorf("%w: %v", reconcile.ErrMarketplaceRejected, apiErr)
	}
}

// mapOrderError translates a fulfillment API rejection into the domain
// error vocabulary.
func mapOrderError(err error) error {
	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		return err
	}
	if apiErr.Status == http.StatusNotFound {
		return fmt.Errorf("%w: %v", reconcile.ErrOrderNotFound, apiErr)
	}
	return fmt.Errorf("%w: %v", reconcile.ErrMarketplaceRejected, apiErr)
}

func isQuantityRejection(apiErr *apiError) bool {
	for _, detail := range apiErr.Errors {
		if strings.Contains(strings.ToLower(detail.Message), "quantity") {
			return true
		}
	}
	return false
}

// Ensure Client implements the marketplace port
var _ reconcile.MarketplaceClient = (*Client)(nil)
