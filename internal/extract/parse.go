package extract

import (
	"strconv"
	"strings"
	"time"

	"github.com/jiazeyu1987/hospitalscan/internal/fingerprint"
)

// Field extraction limits.
const (
	excerptLimit       = 200
	titleFallbackLimit = 50
)

// crawlMethodAuto tags candidates produced by automatic extraction.
const crawlMethodAuto = "auto"

// ParseCandidateText extracts the structured fields of one tender candidate
// from a text fragment. Returns false when no usable title can be derived.
// Field parsing is first-match-wins over the ordered pattern tables in
// patterns.go; unparsable dates and amounts leave their fields unset.
func ParseCandidateText(text, sourceURL string) (Candidate, bool) {
	text = strings.TrimSpace(text)

	candidate := Candidate{
		SourceURL: sourceURL,
		Content:   truncateRunes(text, excerptLimit),
		Type:      TypeOther,
		Category:  CategoryOther,
		Method:    crawlMethodAuto,
	}

	for _, pattern := range titlePatterns {
		if m := pattern.FindStringSubmatch(text); m != nil {
			candidate.Title = strings.TrimSpace(m[1])
			break
		}
	}
	if candidate.Title == "" {
		candidate.Title = strings.TrimSpace(truncateRunes(text, titleFallbackLimit))
	}
	if candidate.Title == "" {
		return Candidate{}, false
	}

	for _, pattern := range datePatterns {
		if m := pattern.FindStringSubmatch(text); m != nil {
			candidate.PublishDate = normalizeDate(m[1])
			break
		}
	}

	for _, pattern := range deadlinePatterns {
		if m := pattern.FindStringSubmatch(text); m != nil {
			candidate.DeadlineDate = normalizeDate(m[1])
			break
		}
	}

	for _, pattern := range budgetPatterns {
		m := pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if amount, err := strconv.ParseFloat(m[1], 64); err == nil {
			candidate.BudgetAmount = amount
			candidate.BudgetCurrency = DefaultCurrency
			break
		}
	}

	candidate.Type = classifyType(text)
	candidate.Category = classifyCategory(text)
	candidate.ContentHash = fingerprint.Hash(candidate.Title, candidate.PublishDate, text)

	return candidate, true
}

// normalizeDate converts a matched date string to YYYY-MM-DD form.
// Returns "" when the components do not form a real calendar date.
func normalizeDate(dateStr string) string {
	for _, p := range dateComponentPatterns {
		m := p.re.FindStringSubmatch(dateStr)
		if m == nil {
			continue
		}

		var year, month, day int
		if p.yearFirst {
			year, _ = strconv.Atoi(m[1])
			month, _ = strconv.Atoi(m[2])
			day, _ = strconv.Atoi(m[3])
		} else {
			month, _ = strconv.Atoi(m[1])
			day, _ = strconv.Atoi(m[2])
			year, _ = strconv.Atoi(m[3])
		}

		parsed := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		if parsed.Year() != year || parsed.Month() != time.Month(month) || parsed.Day() != day {
			// time.Date normalized an impossible date (e.g. Feb 30).
			return ""
		}

		return parsed.Format("2006-01-02")
	}

	return ""
}

// classifyType returns the first tender type whose vocabulary appears in
// the text, defaulting to other.
func classifyType(text string) Type {
	lower := strings.ToLower(text)
	for _, entry := range typeKeywordTable {
		for _, keyword := range entry.keywords {
			if strings.Contains(lower, keyword) {
				return entry.tenderType
			}
		}
	}
	return TypeOther
}

// classifyCategory returns the first tender category whose vocabulary
// appears in the text, defaulting to other.
func classifyCategory(text string) Category {
	lower := strings.ToLower(text)
	for _, entry := range categoryKeywordTable {
		for _, keyword := range entry.keywords {
			if strings.Contains(lower, keyword) {
				return entry.category
			}
		}
	}
	return CategoryOther
}

// containsTenderKeyword reports whether the text carries any tender
// vocabulary. Latin keywords match case-insensitively.
func containsTenderKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, keyword := range tenderKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// truncateRunes returns the first n runes of s.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
