package verify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// robotsTxtPath is the well-known path for robots.txt files.
const robotsTxtPath = "/robots.txt"

// maxRobotsBodyBytes limits the size of robots.txt responses we will read.
const maxRobotsBodyBytes = 512 * 1024

// genericAgent is the agent name the crawl policy is evaluated for.
const genericAgent = "*"

// RobotsChecker checks and caches robots.txt rules per host.
type RobotsChecker struct {
	httpClient *http.Client
	cache      map[string]*robotsCacheEntry // keyed by host
	mu         sync.RWMutex
	cacheTTL   time.Duration
}

// robotsCacheEntry stores the parsed robots.txt data for a host.
type robotsCacheEntry struct {
	data      *robotstxt.RobotsData
	fetchedAt time.Time
	allowAll  bool // missing or unparsable robots.txt means allow all
}

// NewRobotsChecker creates a new RobotsChecker.
func NewRobotsChecker(httpClient *http.Client, cacheTTL time.Duration) *RobotsChecker {
	if cacheTTL <= 0 {
		cacheTTL = DefaultRobotsCacheTTL
	}

	return &RobotsChecker{
		httpClient: httpClient,
		cache:      make(map[string]*robotsCacheEntry),
		cacheTTL:   cacheTTL,
	}
}

// IsAllowed checks whether the given URL may be fetched by a generic agent
// under the host's robots.txt. A missing or unparsable robots.txt allows
// all; an unfetchable one is an error, never an implicit allow.
func (r *RobotsChecker) IsAllowed(ctx context.Context, rawURL string) (bool, error) {
	parsed, parseErr := url.Parse(rawURL)
	if parseErr != nil {
		return false, fmt.Errorf("robots: parse url: %w", parseErr)
	}

	host := strings.ToLower(parsed.Host)
	if host == "" {
		return false, fmt.Errorf("robots: empty host in url %q", rawURL)
	}

	entry, err := r.getOrFetchEntry(ctx, host, parsed.Scheme)
	if err != nil {
		return false, err
	}
	if entry.allowAll {
		return true, nil
	}

	return entry.data.TestAgent(parsed.Path, genericAgent), nil
}

// getOrFetchEntry returns a cached entry if fresh, otherwise fetches robots.txt.
func (r *RobotsChecker) getOrFetchEntry(ctx context.Context, host, scheme string) (*robotsCacheEntry, error) {
	if entry, ok := r.getCachedEntry(host); ok {
		return entry, nil
	}
	return r.fetchAndCache(ctx, host, scheme)
}

// getCachedEntry returns a cached entry if it exists and is not stale.
func (r *RobotsChecker) getCachedEntry(host string) (*robotsCacheEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.cache[host]
	if !ok || time.Since(entry.fetchedAt) > r.cacheTTL {
		return nil, false
	}
	return entry, true
}

// fetchAndCache fetches robots.txt for the host and caches the result.
// Non-2xx responses and parse failures degrade to allow-all; a failed fetch
// is returned as an error and not cached, so the next check retries.
func (r *RobotsChecker) fetchAndCache(ctx context.Context, host, scheme string) (*robotsCacheEntry, error) {
	if scheme == "" {
		scheme = "https"
	}

	body, statusCode, fetchErr := r.doFetch(ctx, scheme+"://"+host+robotsTxtPath)
	if fetchErr != nil {
		return nil, fetchErr
	}

	entry := &robotsCacheEntry{fetchedAt: time.Now(), allowAll: true}
	if statusCode >= 200 && statusCode < 300 {
		if data, parseErr := robotstxt.FromBytes(body); parseErr == nil {
			entry.data = data
			entry.allowAll = false
		}
	}

	r.mu.Lock()
	r.cache[host] = entry
	r.mu.Unlock()

	return entry, nil
}

// doFetch performs the HTTP GET request for a robots.txt URL.
func (r *RobotsChecker) doFetch(ctx context.Context, robotsURL string) ([]byte, int, error) {
	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, http.NoBody)
	if reqErr != nil {
		return nil, 0, fmt.Errorf("robots: create request: %w", reqErr)
	}

	resp, doErr := r.httpClient.Do(req)
	if doErr != nil {
		return nil, 0, fmt.Errorf("robots: fetch: %w", doErr)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBodyBytes))
	if readErr != nil {
		return nil, resp.StatusCode, fmt.Errorf("robots: read body: %w", readErr)
	}

	return body, resp.StatusCode, nil
}
