package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// SectionKind classifies a discovered tender column.
type SectionKind string

// Section kinds.
const (
	KindTenderNotice      SectionKind = "tender_notice"
	KindProcurementNotice SectionKind = "procurement_notice"
	KindAwardNotice       SectionKind = "award_notice"
	KindCorrectionNotice  SectionKind = "correction_notice"
	KindOther             SectionKind = "other"
)

// Section is a tender column discovered on a hospital site: a link worth
// monitoring for announcements.
type Section struct {
	Title  string      `json:"title"`
	URL    string      `json:"url"`
	Kind   SectionKind `json:"kind"`
	Origin string      `json:"origin"` // "navigation" or "content"
}

// FindSections locates tender columns on a page: links in navigation areas
// and content blocks whose text or target carries tender vocabulary.
// Relative targets resolve against baseURL; duplicate URLs are dropped,
// first occurrence wins.
func (e *Extractor) FindSections(html, baseURL string) []Section {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		e.logger.Warn("unparsable document", "url", baseURL, "error", err)
		return nil
	}

	base, baseErr := url.Parse(baseURL)
	if baseErr != nil {
		base = nil
	}

	var sections []Section

	collect := func(origin string) func(int, *goquery.Selection) {
		return func(_ int, link *goquery.Selection) {
			href, exists := link.Attr("href")
			if !exists {
				return
			}

			text := strings.TrimSpace(link.Text())
			if !containsTenderKeyword(text) && !containsTenderKeyword(href) {
				return
			}

			sections = append(sections, Section{
				Title:  text,
				URL:    resolveURL(base, href),
				Kind:   classifySection(text),
				Origin: origin,
			})
		}
	}

	doc.Find("nav, div, ul, ol").Each(func(_ int, container *goquery.Selection) {
		if !container.Is("nav") && !classMatches(container, navContainerClass) {
			return
		}
		container.Find("a[href]").Each(collect("navigation"))
	})

	doc.Find("div, section, article").Each(func(_ int, container *goquery.Selection) {
		if !containsTenderKeyword(container.Text()) {
			return
		}
		container.Find("a[href]").Each(collect("content"))
	})

	return dedupeSections(sections)
}

// classifySection maps a link title to its section kind.
func classifySection(title string) SectionKind {
	switch {
	case strings.Contains(title, "招标") || strings.Contains(title, "投标"):
		return KindTenderNotice
	case strings.Contains(title, "采购"):
		return KindProcurementNotice
	case strings.Contains(title, "中标") || strings.Contains(title, "结果"):
		return KindAwardNotice
	case strings.Contains(title, "更正") || strings.Contains(title, "修改"):
		return KindCorrectionNotice
	default:
		return KindOther
	}
}

// resolveURL joins href against the page base, falling back to href as-is.
func resolveURL(base *url.URL, href string) string {
	if base == nil {
		return href
	}

	ref, err := url.Parse(href)
	if err != nil {
		return href
	}

	return base.ResolveReference(ref).String()
}

// dedupeSections keeps the first section per URL.
func dedupeSections(sections []Section) []Section {
	seen := make(map[string]struct{}, len(sections))
	unique := make([]Section, 0, len(sections))

	for _, section := range sections {
		if _, dup := seen[section.URL]; dup {
			continue
		}
		seen[section.URL] = struct{}{}
		unique = append(unique, section)
	}

	return unique
}
