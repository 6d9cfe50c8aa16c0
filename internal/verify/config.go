// Package verify scores candidate hospital website URLs for authenticity
// and reachability. Verification is a pure scoring pass: every step is
// independently tolerant of failure, a failing step contributes zero and
// records an error string, and Verify always returns a populated Result.
package verify

import "time"

// Default configuration values.
const (
	// DefaultTimeout bounds each HTTP fetch.
	DefaultTimeout = 30 * time.Second

	// DefaultTLSTimeout bounds the TLS handshake probe.
	DefaultTLSTimeout = 10 * time.Second

	// DefaultRobotsCacheTTL is how long parsed robots.txt rules are cached per host.
	DefaultRobotsCacheTTL = 24 * time.Hour

	// DefaultDelayMin and DefaultDelayMax bound the randomized courtesy
	// delay applied after each page fetch.
	DefaultDelayMin = 1 * time.Second
	DefaultDelayMax = 5 * time.Second
)

// defaultUserAgents is the rotating set of client identities used for fetches.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

// Config holds verification engine settings.
type Config struct {
	// Timeout is the per-fetch HTTP timeout.
	Timeout time.Duration

	// TLSTimeout bounds the TLS handshake probe on port 443.
	TLSTimeout time.Duration

	// DelayMin and DelayMax bound the randomized delay after a fetch.
	// A zero DelayMax disables the delay.
	DelayMin time.Duration
	DelayMax time.Duration

	// UserAgents is the rotating set of User-Agent headers.
	UserAgents []string

	// RobotsCacheTTL is how long robots.txt rules are cached per host.
	RobotsCacheTTL time.Duration
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:        DefaultTimeout,
		TLSTimeout:     DefaultTLSTimeout,
		DelayMin:       DefaultDelayMin,
		DelayMax:       DefaultDelayMax,
		UserAgents:     defaultUserAgents,
		RobotsCacheTTL: DefaultRobotsCacheTTL,
	}
}

// withDefaults fills zero fields with defaults.
func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.TLSTimeout <= 0 {
		c.TLSTimeout = DefaultTLSTimeout
	}
	if len(c.UserAgents) == 0 {
		c.UserAgents = defaultUserAgents
	}
	if c.RobotsCacheTTL <= 0 {
		c.RobotsCacheTTL = DefaultRobotsCacheTTL
	}
	return c
}
