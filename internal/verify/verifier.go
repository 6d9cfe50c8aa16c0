package verify

import (
	"context"
	"crypto/tls"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jiazeyu1987/hospitalscan/internal/logger"
)

// Composite score weights. The validity threshold is ValidScore.
const (
	statusOKCredit       = 20
	statusRedirectCredit = 15
	latencyFastCredit    = 10
	latencySlowCredit    = 5
	tlsCredit            = 10
	robotsCredit         = 10
	perIndicatorCredit   = 5
	indicatorCreditCap   = 20

	latencyFastThreshold = 1000 * time.Millisecond
	latencySlowThreshold = 3000 * time.Millisecond

	// ValidScore is the composite score at or above which a site is
	// considered an authentic, reachable hospital website.
	ValidScore = 60
)

// tlsProbePort is the port probed for TLS reachability, independent of the
// scheme the page was fetched over.
const tlsProbePort = "443"

// maxPageBodyBytes limits how much of a fetched page is read for analysis.
const maxPageBodyBytes = 2 << 20

// Result is the immutable outcome of one verification call.
type Result struct {
	URL           string       `json:"url"`
	Domain        string       `json:"domain"`
	HTTPStatus    int          `json:"http_status"`
	Latency       time.Duration `json:"latency"`
	TLSValid      bool         `json:"tls_valid"`
	RobotsAllowed bool         `json:"robots_allowed"`
	PageTitle     string       `json:"page_title,omitempty"`
	Description   string       `json:"description,omitempty"`
	KeywordHits   []KeywordHit `json:"keyword_hits,omitempty"`
	ContentScore  int          `json:"content_score"`
	Indicators    []string     `json:"indicators,omitempty"`
	Score         int          `json:"score"`
	IsValid       bool         `json:"is_valid"`
	Errors        []string     `json:"errors,omitempty"`
}

// Verifier scores candidate URLs. Safe for concurrent use.
type Verifier struct {
	cfg        Config
	httpClient *http.Client
	robots     *RobotsChecker
	logger     logger.Interface

	// tlsProbe is swappable in tests.
	tlsProbe func(ctx context.Context, host string) bool
}

// New creates a Verifier with the given configuration.
func New(cfg Config, log logger.Interface) *Verifier {
	cfg = cfg.withDefaults()

	httpClient := &http.Client{Timeout: cfg.Timeout}

	v := &Verifier{
		cfg:        cfg,
		httpClient: httpClient,
		robots:     NewRobotsChecker(httpClient, cfg.RobotsCacheTTL),
		logger:     log.WithComponent("verify"),
	}
	v.tlsProbe = v.dialTLS

	return v
}

// Verify scores a candidate URL. It never returns an error: each failing
// step records an entry in Errors and contributes zero to the score, and
// the result is always structurally complete.
func (v *Verifier) Verify(ctx context.Context, rawURL string) Result {
	result := Result{URL: rawURL}

	normalized, ok := normalizeURL(rawURL)
	if !ok {
		result.Errors = append(result.Errors, "invalid URL format")
		return result
	}
	result.URL = normalized.String()
	result.Domain = strings.ToLower(normalized.Host)

	start := time.Now()
	resp, fetchErr := v.fetch(ctx, result.URL)
	if fetchErr != nil {
		result.Errors = append(result.Errors, "site unreachable: "+fetchErr.Error())
	} else {
		result.HTTPStatus = resp.status
		result.Latency = time.Since(start)
	}

	result.TLSValid = v.tlsProbe(ctx, normalized.Hostname())

	allowed, robotsErr := v.robots.IsAllowed(ctx, result.URL)
	if robotsErr != nil {
		result.Errors = append(result.Errors, "robots check failed: "+robotsErr.Error())
	} else {
		result.RobotsAllowed = allowed
	}

	if fetchErr == nil {
		if doc, parseErr := goquery.NewDocumentFromReader(strings.NewReader(resp.body)); parseErr != nil {
			result.Errors = append(result.Errors, "content analysis failed: "+parseErr.Error())
		} else {
			analysis := analyzeContent(doc)
			result.PageTitle = analysis.title
			result.Description = analysis.description
			result.KeywordHits = analysis.keywordHits
			result.ContentScore = analysis.score
			result.Indicators = analysis.indicators
		}
	}

	result.Score = compositeScore(result)
	result.IsValid = result.Score >= ValidScore

	v.logger.Debug("verification finished",
		"url", result.URL,
		"score", result.Score,
		"valid", result.IsValid,
		"errors", len(result.Errors),
	)

	return result
}

// fetchedPage carries what the scoring steps need from the HTTP response.
type fetchedPage struct {
	status int
	body   string
}

// fetch performs the page GET with a rotating User-Agent and applies the
// configured courtesy delay afterwards.
func (v *Verifier) fetch(ctx context.Context, pageURL string) (*fetchedPage, error) {
	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if reqErr != nil {
		return nil, reqErr
	}

	req.Header.Set("User-Agent", v.cfg.UserAgents[rand.Intn(len(v.cfg.UserAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")

	resp, doErr := v.httpClient.Do(req)
	if doErr != nil {
		return nil, doErr
	}
	defer resp.Body.Close()

	var body strings.Builder
	if _, readErr := io.Copy(&body, io.LimitReader(resp.Body, maxPageBodyBytes)); readErr != nil {
		return nil, readErr
	}

	v.courtesyDelay(ctx)

	return &fetchedPage{status: resp.StatusCode, body: body.String()}, nil
}

// courtesyDelay sleeps a random duration within the configured bounds.
func (v *Verifier) courtesyDelay(ctx context.Context) {
	if v.cfg.DelayMax <= 0 {
		return
	}

	delay := v.cfg.DelayMin
	if span := v.cfg.DelayMax - v.cfg.DelayMin; span > 0 {
		delay += time.Duration(rand.Int63n(int64(span)))
	}

	select {
	case <-time.After(delay):
	case <-ctx.Done():
	}
}

// dialTLS probes TLS handshake reachability on the standard secure port.
func (v *Verifier) dialTLS(ctx context.Context, host string) bool {
	dialer := &net.Dialer{Timeout: v.cfg.TLSTimeout}

	dialCtx, cancel := context.WithTimeout(ctx, v.cfg.TLSTimeout)
	defer cancel()

	conn, err := (&tls.Dialer{NetDialer: dialer}).DialContext(
		dialCtx, "tcp", net.JoinHostPort(host, tlsProbePort),
	)
	if err != nil {
		return false
	}
	_ = conn.Close()

	return true
}

// normalizeURL prepends a scheme when absent and rejects input without a
// resolvable host component.
func normalizeURL(rawURL string) (*url.URL, bool) {
	if rawURL == "" {
		return nil, false
	}

	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		rawURL = "http://" + rawURL
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return nil, false
	}

	return parsed, true
}

// compositeScore sums the independent verification signals.
func compositeScore(r Result) int {
	score := 0

	switch r.HTTPStatus {
	case http.StatusOK:
		score += statusOKCredit
	case http.StatusMovedPermanently, http.StatusFound:
		score += statusRedirectCredit
	}

	if r.Latency > 0 {
		switch {
		case r.Latency < latencyFastThreshold:
			score += latencyFastCredit
		case r.Latency < latencySlowThreshold:
			score += latencySlowCredit
		}
	}

	if r.TLSValid {
		score += tlsCredit
	}
	if r.RobotsAllowed {
		score += robotsCredit
	}

	contentScore := r.ContentScore
	if contentScore > contentScoreCap {
		contentScore = contentScoreCap
	}
	score += contentScore

	indicatorScore := len(r.Indicators) * perIndicatorCredit
	if indicatorScore > indicatorCreditCap {
		indicatorScore = indicatorCreditCap
	}
	score += indicatorScore

	return score
}
