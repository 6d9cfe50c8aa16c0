// Package dedup merges and filters tender candidates against known records.
// Exact duplicates are detected by content hash; near-duplicates by averaged
// text similarity from the fingerprint engine. Candidates are processed in
// input order and the kept set only grows, which makes the pass
// deterministic and (for well-separated inputs) idempotent.
package dedup

import (
	"time"

	"github.com/jiazeyu1987/hospitalscan/internal/extract"
	"github.com/jiazeyu1987/hospitalscan/internal/fingerprint"
	"github.com/jiazeyu1987/hospitalscan/internal/logger"
)

// Default configuration values.
const (
	// DefaultSimilarityThreshold is the averaged similarity at or above
	// which two candidates count as near-duplicates.
	DefaultSimilarityThreshold = 0.8

	// DefaultRetentionDays is the age beyond which records are dropped
	// during periodic cleanup.
	DefaultRetentionDays = 30
)

// Config holds deduplication settings.
type Config struct {
	// SimilarityThreshold is the near-duplicate threshold in (0, 1].
	SimilarityThreshold float64

	// RetentionDays is the cleanup window in days.
	RetentionDays int
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: DefaultSimilarityThreshold,
		RetentionDays:       DefaultRetentionDays,
	}
}

// withDefaults fills zero fields with defaults.
func (c Config) withDefaults() Config {
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = DefaultRetentionDays
	}
	return c
}

// Stats summarizes one deduplication pass.
type Stats struct {
	TotalCount           int `json:"total_count"`
	ExactDuplicates      int `json:"exact_duplicates"`
	NearDuplicatesMerged int `json:"near_duplicates_merged"`
	UniqueCount          int `json:"unique_count"`
}

// Deduper filters candidate lists. Stateless between calls; safe for
// concurrent use.
type Deduper struct {
	cfg    Config
	logger logger.Interface
}

// New creates a Deduper.
func New(cfg Config, log logger.Interface) *Deduper {
	return &Deduper{cfg: cfg.withDefaults(), logger: log.WithComponent("dedup")}
}

// Run deduplicates candidates against the supplied set of already-known
// content hashes. Exact-hash duplicates (against the known set or earlier
// candidates in this run) are discarded. A surviving candidate that is
// near-duplicate to an already-kept one merges with it: the longer
// normalized text wins, ties favor the incumbent.
func (d *Deduper) Run(existingHashes map[string]struct{}, candidates []extract.Candidate) ([]extract.Candidate, Stats) {
	stats := Stats{TotalCount: len(candidates)}

	seen := make(map[string]struct{}, len(existingHashes)+len(candidates))
	for hash := range existingHashes {
		seen[hash] = struct{}{}
	}

	kept := make([]extract.Candidate, 0, len(candidates))

	for _, candidate := range candidates {
		hash := candidate.ContentHash
		if hash == "" {
			hash = fingerprint.Hash(candidate.Title, candidate.PublishDate, comparableText(candidate))
			candidate.ContentHash = hash
		}

		if _, dup := seen[hash]; dup {
			stats.ExactDuplicates++
			continue
		}
		seen[hash] = struct{}{}

		if idx, similar := d.mostSimilarKept(kept, candidate); similar {
			stats.NearDuplicatesMerged++
			if normalizedLen(candidate) > normalizedLen(kept[idx]) {
				kept[idx] = candidate
			}
			continue
		}

		kept = append(kept, candidate)
	}

	stats.UniqueCount = len(kept)

	d.logger.Debug("deduplication finished",
		"total", stats.TotalCount,
		"unique", stats.UniqueCount,
		"exact", stats.ExactDuplicates,
		"merged", stats.NearDuplicatesMerged,
	)

	return kept, stats
}

// mostSimilarKept returns the index of the kept candidate most similar to
// the given one, and whether that similarity reaches the threshold.
func (d *Deduper) mostSimilarKept(kept []extract.Candidate, candidate extract.Candidate) (int, bool) {
	text := comparableText(candidate)

	best, bestIdx := 0.0, -1
	for i := range kept {
		if s := fingerprint.Similarity(text, comparableText(kept[i])); s > best {
			best, bestIdx = s, i
		}
	}

	return bestIdx, bestIdx >= 0 && best >= d.cfg.SimilarityThreshold
}

// CleanupExpired drops records whose date (selected by dateOf) is older
// than the retention window relative to now. Records whose date is absent
// or unparsable are retained: cleanup fails open.
func (d *Deduper) CleanupExpired(
	records []extract.Candidate,
	dateOf func(extract.Candidate) string,
	now time.Time,
) []extract.Candidate {
	cutoff := now.AddDate(0, 0, -d.cfg.RetentionDays)

	kept := make([]extract.Candidate, 0, len(records))
	removed := 0

	for _, record := range records {
		recordDate, ok := parseRecordDate(dateOf(record))
		if ok && recordDate.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, record)
	}

	if removed > 0 {
		d.logger.Info("expired records cleaned up", "removed", removed, "kept", len(kept))
	}

	return kept
}

// parseRecordDate parses the date formats stored on records.
func parseRecordDate(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}

	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, true
		}
	}

	return time.Time{}, false
}

// comparableText selects the text used for similarity: the content excerpt,
// falling back to the title.
func comparableText(c extract.Candidate) string {
	if c.Content != "" {
		return c.Content
	}
	return c.Title
}

// normalizedLen measures a candidate's normalized text length.
func normalizedLen(c extract.Candidate) int {
	return len([]rune(fingerprint.Normalize(comparableText(c))))
}
