package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jiazeyu1987/hospitalscan/internal/logger"
)

// Extractor parses raw HTML into tender candidates. Stateless and safe for
// concurrent use.
type Extractor struct {
	logger logger.Interface
}

// New creates an Extractor.
func New(log logger.Interface) *Extractor {
	return &Extractor{logger: log.WithComponent("extract")}
}

// Candidates runs the three extraction strategies over the document and
// returns the deduplicated union, sorted by publish date descending
// (candidates without a date sort last; ties keep insertion order).
// Malformed HTML yields an empty slice, never an error.
func (e *Extractor) Candidates(html, sourceURL string) []Candidate {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		e.logger.Warn("unparsable document", "url", sourceURL, "error", err)
		return nil
	}

	doc.Find("script, style").Remove()

	var candidates []Candidate
	candidates = append(candidates, e.fromLists(doc, sourceURL)...)
	candidates = append(candidates, e.fromTables(doc, sourceURL)...)
	candidates = append(candidates, e.fromContent(doc, sourceURL)...)

	unique := dedupeByHash(candidates)
	sortByPublishDate(unique)

	e.logger.Debug("extraction finished",
		"url", sourceURL,
		"raw", len(candidates),
		"unique", len(unique),
	)

	return unique
}

// fromLists scans list-like containers for keyword-bearing items.
func (e *Extractor) fromLists(doc *goquery.Document, sourceURL string) []Candidate {
	var candidates []Candidate

	doc.Find("ul, ol, div").Each(func(_ int, container *goquery.Selection) {
		if !classMatches(container, listContainerClass) {
			return
		}

		container.Find("li, div, a").Each(func(_ int, item *goquery.Selection) {
			text := strings.TrimSpace(item.Text())
			if !containsTenderKeyword(text) {
				return
			}

			if candidate, ok := ParseCandidateText(text, sourceURL); ok {
				candidate.SourceSection = SectionList
				candidates = append(candidates, candidate)
			}
		})
	})

	return candidates
}

// fromTables scans table rows whose first cell reads like a tender title,
// then mines sibling cells for a date and a budget amount.
func (e *Extractor) fromTables(doc *goquery.Document, sourceURL string) []Candidate {
	var candidates []Candidate

	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td, th")
		if cells.Length() < 2 {
			return
		}

		titleText := strings.TrimSpace(cells.First().Text())
		if !containsTenderKeyword(titleText) {
			return
		}

		candidate, ok := ParseCandidateText(titleText, sourceURL)
		if !ok {
			return
		}
		candidate.SourceSection = SectionTable

		cells.Slice(1, cells.Length()).Each(func(_ int, cell *goquery.Selection) {
			cellText := strings.TrimSpace(cell.Text())

			if cellDatePattern.MatchString(cellText) {
				if date := normalizeDate(cellText); date != "" {
					candidate.PublishDate = date
				}
			}

			if m := cellBudgetPattern.FindStringSubmatch(cellText); m != nil {
				if amount, parseErr := strconv.ParseFloat(m[1], 64); parseErr == nil {
					candidate.BudgetAmount = amount
					candidate.BudgetCurrency = DefaultCurrency
				}
			}
		})

		candidates = append(candidates, candidate)
	})

	return candidates
}

// fromContent scans textual blocks under content-like containers and treats
// each keyword-bearing sentence as an independent candidate.
func (e *Extractor) fromContent(doc *goquery.Document, sourceURL string) []Candidate {
	var candidates []Candidate

	doc.Find("div, p, span").Each(func(_ int, block *goquery.Selection) {
		if !classMatches(block, contentContainerClass) {
			return
		}

		text := strings.TrimSpace(block.Text())
		if !containsTenderKeyword(text) {
			return
		}

		for _, sentence := range sentenceSplitPattern.Split(text, -1) {
			sentence = strings.TrimSpace(sentence)
			if sentence == "" || !containsTenderKeyword(sentence) {
				continue
			}

			if candidate, ok := ParseCandidateText(sentence, sourceURL); ok {
				candidate.SourceSection = SectionContent
				candidates = append(candidates, candidate)
			}
		}
	})

	return candidates
}

// dedupeByHash keeps the first candidate per content hash, preserving
// insertion order.
func dedupeByHash(candidates []Candidate) []Candidate {
	seen := make(map[string]struct{}, len(candidates))
	unique := make([]Candidate, 0, len(candidates))

	for _, candidate := range candidates {
		if _, dup := seen[candidate.ContentHash]; dup {
			continue
		}
		seen[candidate.ContentHash] = struct{}{}
		unique = append(unique, candidate)
	}

	return unique
}

// sortByPublishDate orders candidates newest first. Missing dates compare
// as the empty string, so they end up last; the sort is stable, preserving
// insertion order between equal dates.
func sortByPublishDate(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].PublishDate > candidates[j].PublishDate
	})
}

// classMatches reports whether the selection's class attribute matches the
// pattern.
func classMatches(sel *goquery.Selection, pattern *regexp.Regexp) bool {
	class, exists := sel.Attr("class")
	return exists && pattern.MatchString(strings.ToLower(class))
}
