package verify

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// hospitalKeywords is the bilingual vocabulary counted during content analysis.
var hospitalKeywords = []string{
	"医院", "医疗", "医护", "门诊", "住院", "手术", "医生", "护士",
	"科室", "急诊", "体检", "挂号", "医保", "药品", "治疗",
	"hospital", "medical", "clinic", "healthcare", "doctor",
}

// titleKeywords is the subset whose presence in the page title earns the
// title credit.
var titleKeywords = []string{"医院", "医疗", "hospital", "medical"}

// contactPatterns detect contact information. The first matching pattern
// earns the contact credit.
var contactPatterns = []*regexp.Regexp{
	regexp.MustCompile(`电话[:：]\s*\d{3,4}[- ]?\d{7,8}`),
	regexp.MustCompile(`手机[:：]\s*1[3-9]\d{9}`),
	regexp.MustCompile(`邮箱[:：][\w.-]+@[\w.-]+\.\w+`),
	regexp.MustCompile(`地址[:：][^<\n\r]{10,100}`),
}

// Content analysis point values. The total is capped at contentScoreCap
// when it enters the composite score.
const (
	titleKeywordCredit  = 20
	perKeywordCredit    = 3
	keywordCreditCap    = 30
	structureCredit     = 10
	contactCredit       = 10
	contentScoreCap     = 30
	richVocabularyCount = 5
)

// Indicator strings reported on verification results.
const (
	indicatorTitle      = "page title carries a hospital identity"
	indicatorVocabulary = "page content carries rich medical vocabulary"
	indicatorStructure  = "page structure is complete"
)

// KeywordHit records one keyword and its occurrence count in the page text.
type KeywordHit struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

// contentAnalysis is the outcome of the content step.
type contentAnalysis struct {
	title       string
	description string
	keywordHits []KeywordHit
	score       int
	indicators  []string
}

// analyzeContent extracts the title and description, counts hospital
// vocabulary, and scores structural and contact signals.
func analyzeContent(doc *goquery.Document) contentAnalysis {
	var analysis contentAnalysis

	analysis.title = strings.TrimSpace(doc.Find("title").First().Text())
	if desc, exists := doc.Find(`meta[name="description"]`).Attr("content"); exists {
		analysis.description = strings.TrimSpace(desc)
	}

	pageText := strings.ToLower(doc.Text())

	for _, keyword := range hospitalKeywords {
		if count := strings.Count(pageText, strings.ToLower(keyword)); count > 0 {
			analysis.keywordHits = append(analysis.keywordHits, KeywordHit{Keyword: keyword, Count: count})
		}
	}

	titleLower := strings.ToLower(analysis.title)
	for _, keyword := range titleKeywords {
		if strings.Contains(titleLower, keyword) {
			analysis.score += titleKeywordCredit
			break
		}
	}

	keywordScore := len(analysis.keywordHits) * perKeywordCredit
	if keywordScore > keywordCreditCap {
		keywordScore = keywordCreditCap
	}
	analysis.score += keywordScore

	hasNav := doc.Find("nav").Length() > 0
	hasHeader := doc.Find("header").Length() > 0
	hasFooter := doc.Find("footer").Length() > 0
	if hasNav || hasHeader || hasFooter {
		analysis.score += structureCredit
	}

	for _, pattern := range contactPatterns {
		if pattern.MatchString(pageText) {
			analysis.score += contactCredit
			break
		}
	}

	if strings.Contains(analysis.title, "医院") || strings.Contains(titleLower, "hospital") {
		analysis.indicators = append(analysis.indicators, indicatorTitle)
	}
	if len(analysis.keywordHits) >= richVocabularyCount {
		analysis.indicators = append(analysis.indicators, indicatorVocabulary)
	}
	if hasNav && hasFooter {
		analysis.indicators = append(analysis.indicators, indicatorStructure)
	}

	return analysis
}
