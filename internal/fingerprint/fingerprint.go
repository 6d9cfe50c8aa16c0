// Package fingerprint canonicalizes announcement text and computes the
// identity and similarity signals used for deduplication. A fingerprint is
// the pair (content hash, normalized token set): equal hashes mean identical
// records by construction, while differing hashes may still be near-duplicates
// per the similarity score.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DefaultMinLength is the minimum normalized length below which text is
// treated as non-comparable. Shorter text normalizes to the empty string.
const DefaultMinLength = 10

// hashContentLimit bounds the amount of source text that feeds the content
// hash. Matches the excerpt length stored on extracted candidates.
const hashContentLimit = 500

var (
	htmlTagPattern = regexp.MustCompile(`<[^>]+>`)
	// Everything outside word characters, whitespace, and the CJK unified
	// ideograph block is stripped during normalization.
	nonWordPattern    = regexp.MustCompile(`[^\w\s\x{4e00}-\x{9fff}]`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Fingerprint holds the identity and similarity signals for one record.
type Fingerprint struct {
	Hash   string
	Tokens map[string]struct{}
}

// New builds a fingerprint from a candidate's title, publish date, and text.
func New(title, date, content string) Fingerprint {
	return Fingerprint{
		Hash:   Hash(title, date, content),
		Tokens: Tokenize(Normalize(content)),
	}
}

// Hash returns the hex SHA-256 digest over "title|date|content", with the
// content limited to its first 500 characters. The digest is computed over
// the raw concatenation so that even non-comparable (too short) text still
// has a stable identity.
func Hash(title, date, content string) string {
	sum := sha256.Sum256([]byte(title + "|" + date + "|" + truncateRunes(content, hashContentLimit)))
	return hex.EncodeToString(sum[:])
}

// Normalize canonicalizes text for comparison: HTML markup removed,
// characters outside the word/whitespace/CJK set stripped, whitespace
// collapsed, lower-cased. Text whose normalized form is shorter than
// DefaultMinLength characters normalizes to the empty string.
func Normalize(text string) string {
	return NormalizeMin(text, DefaultMinLength)
}

// NormalizeMin is Normalize with an explicit minimum length.
func NormalizeMin(text string, minLength int) string {
	if text == "" {
		return ""
	}

	processed := htmlTagPattern.ReplaceAllString(text, "")
	processed = nonWordPattern.ReplaceAllString(processed, "")
	processed = whitespacePattern.ReplaceAllString(processed, " ")
	processed = strings.TrimSpace(processed)

	if len([]rune(processed)) < minLength {
		return ""
	}

	return strings.ToLower(processed)
}

// Tokenize splits text into a token set. Runs of latin letters and digits
// form one token each, folded to lower case so raw and normalized input
// tokenize alike; every CJK ideograph is its own token.
func Tokenize(text string) map[string]struct{} {
	tokens := make(map[string]struct{})

	var word strings.Builder
	flush := func() {
		if word.Len() > 0 {
			tokens[word.String()] = struct{}{}
			word.Reset()
		}
	}

	for _, r := range text {
		switch {
		case isCJK(r):
			flush()
			tokens[string(r)] = struct{}{}
		case r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z'):
			word.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			word.WriteRune(r + ('a' - 'A'))
		default:
			flush()
		}
	}
	flush()

	return tokens
}

// Jaccard returns the token-set Jaccard similarity of two token sets.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	intersection := 0
	for token := range a {
		if _, ok := b[token]; ok {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}

	return float64(intersection) / float64(union)
}

// SequenceRatio returns the character-sequence match ratio of two strings:
// twice the number of matching characters divided by the total length.
// Equal strings score 1, disjoint strings score 0.
func SequenceRatio(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(a, b, false)

	matched := 0
	for _, d := range diffs {
		if d.Type == diffmatchpatch.DiffEqual {
			matched += len([]rune(d.Text))
		}
	}

	total := len([]rune(a)) + len([]rune(b))
	return 2 * float64(matched) / float64(total)
}

// Similarity averages the sequence-match ratio and the token-set Jaccard
// similarity of the normalized forms of two texts. Returns 0 when either
// text is non-comparable (normalizes to empty).
func Similarity(a, b string) float64 {
	normA := Normalize(a)
	normB := Normalize(b)

	if normA == "" || normB == "" {
		return 0
	}

	sequence := SequenceRatio(normA, normB)
	jaccard := Jaccard(Tokenize(normA), Tokenize(normB))

	return (sequence + jaccard) / 2
}

// SortedTokens returns the fingerprint's tokens in lexical order.
// Useful for stable reporting output.
func (f Fingerprint) SortedTokens() []string {
	tokens := make([]string, 0, len(f.Tokens))
	for token := range f.Tokens {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	return tokens
}

// truncateRunes returns the first n runes of s.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// isCJK reports whether r falls in the CJK unified ideograph block.
func isCJK(r rune) bool {
	return r >= 0x4e00 && r <= 0x9fff
}
