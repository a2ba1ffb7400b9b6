package media

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/four-bytes-robby/scr-ebay-sync/internal/domain/reconcile"
	"github.com/four-bytes-robby/scr-ebay-sync/internal/infrastructure/cache"
)

// candidateSuffixes are probed per item in order: the cover image first,
// then numbered additional shots.
var candidateSuffixes = []string{"", "_2", "_3", "_4"}

// Finder discovers cover images on the shop's image host by probing the
// deterministic URL per item id. Results, including negative ones, go
// through the injected cache so one cycle's probing serves the next.
type Finder struct {
	baseURL    string
	httpClient *http.Client
	cache      cache.ImageURLCache
	ttl        time.Duration
	logger     *zap.Logger
}

// NewFinder creates a new image finder
func NewFinder(baseURL string, timeout time.Duration, urlCache cache.ImageURLCache, ttl time.Duration, logger *zap.Logger) *Finder {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Finder{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		cache:      urlCache,
		ttl:        ttl,
		logger:     logger,
	}
}

// FindImages returns the image URLs for an item. An empty slice with a nil
// error means the item has no discoverable image.
func (f *Finder) FindImages(ctx context.Context, itemID string) ([]string, error) {
	if f.cache != nil {
		urls, found, err := f.cache.Get(ctx, itemID)
		if err != nil {
			// A broken cache degrades to probing, it never fails a listing.
			f.logger.Warn("image cache read failed, probing directly",
				zap.String("item_id", itemID),
				zap.Error(err))
		} else if found {
			return urls, nil
		}
	}

	urls, err := f.probe(ctx, itemID)
	if err != nil {
		return nil, err
	}

	if f.cache != nil {
		if err := f.cache.Set(ctx, itemID, urls, f.ttl); err != nil {
			f.logger.Warn("image cache write failed",
				zap.String("item_id", itemID),
				zap.Error(err))
		}
	}
	return urls, nil
}

// probe issues HEAD requests against the candidate URLs. Probing stops at
// the first gap so numbering stays contiguous.
func (f *Finder) probe(ctx context.Context, itemID string) ([]string, error) {
	urls := make([]string, 0, len(candidateSuffixes))
	for _, suffix := range candidateSuffixes {
		candidate := fmt.Sprintf("%s/%s%s.jpg", f.baseURL, itemID, suffix)

		exists, err := f.exists(ctx, candidate)
		if err != nil {
			return nil, err
		}
		if !exists {
			break
		}
		urls = append(urls, candidate)
	}
	return urls, nil
}

func (f *Finder) exists(ctx context.Context, url string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false, fmt.Errorf("media: failed to create probe request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("media: image probe failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("media: image probe returned HTTP %d", resp.StatusCode)
	}
}

// Ensure Finder implements the domain port
var _ reconcile.ImageFinder = (*Finder)(nil)
