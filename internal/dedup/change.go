package dedup

import (
	"sort"

	"github.com/jiazeyu1987/hospitalscan/internal/fingerprint"
)

// DefaultChangeThreshold is the similarity below which two versions of the
// same record count as changed.
const DefaultChangeThreshold = 0.95

// maxTokenDiffs caps the number of added/removed tokens reported per side.
const maxTokenDiffs = 10

// Change describes the difference between two versions of a record's text.
type Change struct {
	HasChanged    bool     `json:"has_changed"`
	Similarity    float64  `json:"similarity"`
	ChangeRatio   float64  `json:"change_ratio"`
	AddedTokens   []string `json:"added_tokens,omitempty"`
	RemovedTokens []string `json:"removed_tokens,omitempty"`
	Summary       string   `json:"summary"`
}

// DetectChange compares an old and a new version of a record's text.
// Versions with similarity at or above DefaultChangeThreshold count as
// unchanged. Token diffs are sorted and capped at maxTokenDiffs per side.
func (d *Deduper) DetectChange(oldText, newText string) Change {
	similarity := fingerprint.Similarity(oldText, newText)

	change := Change{
		Similarity:  similarity,
		ChangeRatio: 1 - similarity,
	}

	if similarity >= DefaultChangeThreshold {
		change.Summary = "unchanged"
		return change
	}

	change.HasChanged = true

	oldTokens := fingerprint.Tokenize(fingerprint.Normalize(oldText))
	newTokens := fingerprint.Tokenize(fingerprint.Normalize(newText))

	change.AddedTokens = tokenDifference(newTokens, oldTokens)
	change.RemovedTokens = tokenDifference(oldTokens, newTokens)
	change.Summary = summarize(len(change.AddedTokens), len(change.RemovedTokens))

	return change
}

// tokenDifference returns the tokens present in a but not in b, sorted,
// capped at maxTokenDiffs.
func tokenDifference(a, b map[string]struct{}) []string {
	var diff []string
	for token := range a {
		if _, ok := b[token]; !ok {
			diff = append(diff, token)
		}
	}

	sort.Strings(diff)
	if len(diff) > maxTokenDiffs {
		diff = diff[:maxTokenDiffs]
	}

	return diff
}

// summarize classifies a change by the balance of added and removed tokens.
func summarize(added, removed int) string {
	switch {
	case added > removed:
		return "mostly additions"
	case removed > added:
		return "mostly removals"
	default:
		return "minor edit"
	}
}
