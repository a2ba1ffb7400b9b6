package ebay

import (
	"errors"
	"time"
)

// Config holds the credentials and endpoints for the eBay Sell APIs.
type Config struct {
	// BaseURL is the API root (production or sandbox).
	BaseURL string
	// TokenURL is the OAuth token endpoint used for the refresh grant.
	TokenURL string
	// ClientID and ClientSecret identify the application.
	ClientID     string
	ClientSecret string
	// RefreshToken is the long-lived user grant; access tokens are minted
	// from it on demand.
	RefreshToken string
	// MarketplaceID selects the eBay site listings are published on.
	MarketplaceID string
	// Currency is the currency refund amounts are denominated in.
	Currency string
	// MerchantLocation is the inventory location key offers ship from.
	MerchantLocation string
	// Listing policy ids applied to every offer.
	FulfillmentPolicy string
	PaymentPolicy     string
	ReturnPolicy      string
	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration
	// MaxRetries bounds retries of throttled or transiently failing calls.
	MaxRetries int
	// RetryBackoff is the pause before the first retry; it doubles per
	// attempt.
	RetryBackoff time.Duration
}

const (
	// ProductionBaseURL is the production API root
	ProductionBaseURL = "https://api.ebay.com"
	// SandboxBaseURL is the sandbox API root
	SandboxBaseURL = "https://api.sandbox.ebay.com"
	// ProductionTokenURL is the production OAuth token endpoint
	ProductionTokenURL = "https://api.ebay.com/identity/v1/oauth2/token"

	// DefaultMarketplaceID is the German eBay site
	DefaultMarketplaceID = "EBAY_DE"
	// DefaultCurrency is the currency of the German site
	DefaultCurrency = "EUR"
)

// Errors for eBay configuration
var (
	ErrConfigMissingClientID     = errors.New("ebay: client id is required")
	ErrConfigMissingClientSecret = errors.New("ebay: client secret is required")
	ErrConfigMissingRefreshToken = errors.New("ebay: refresh token is required")
)

// NewConfig creates a configuration with production defaults
func NewConfig(clientID, clientSecret, refreshToken string) *Config {
	return &Config{
		BaseURL:       ProductionBaseURL,
		TokenURL:      ProductionTokenURL,
		ClientID:      clientID,
		ClientSecret:  clientSecret,
		RefreshToken:  refreshToken,
		MarketplaceID: DefaultMarketplaceID,
		Currency:      DefaultCurrency,
		Timeout:       30 * time.Second,
		MaxRetries:    3,
		RetryBackoff:  2 * time.Second,
	}
}

// Validate validates the configuration and fills defaults
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return ErrConfigMissingClientID
	}
	if c.ClientSecret == "" {
		return ErrConfigMissingClientSecret
	}
	if c.RefreshToken == "" {
		return ErrConfigMissingRefreshToken
	}
	if c.BaseURL == "" {
		c.BaseURL = ProductionBaseURL
	}
	if c.TokenURL == "" {
		c.TokenURL = ProductionTokenURL
	}
	if c.MarketplaceID == "" {
		c.MarketplaceID = DefaultMarketplaceID
	}
	if c.Currency == "" {
		c.Currency = DefaultCurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 2 * time.Second
	}
	return nil
}
