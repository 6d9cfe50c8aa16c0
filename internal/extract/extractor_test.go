package extract_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiazeyu1987/hospitalscan/internal/extract"
	"github.com/jiazeyu1987/hospitalscan/internal/logger"
)

const testSourceURL = "https://hospital.example.cn/tenders"

func newExtractor(t *testing.T) *extract.Extractor {
	t.Helper()
	return extract.New(logger.NewNoOp())
}

func TestCandidates_TableRow(t *testing.T) {
	t.Parallel()

	html := `<html><body><table>
<tr><th>项目</th><th>日期</th><th>预算</th></tr>
<tr><td>医院设备采购项目</td><td>2025-03-01</td><td>预算100万元</td></tr>
</table></body></html>`

	candidates := newExtractor(t).Candidates(html, testSourceURL)
	require.Len(t, candidates, 1)

	got := candidates[0]
	assert.Equal(t, "医院设备采购项目", got.Title)
	assert.Equal(t, extract.TypeEquipment, got.Type)
	assert.Equal(t, extract.CategoryMedicalEquipment, got.Category)
	assert.Equal(t, "2025-03-01", got.PublishDate)
	assert.Equal(t, float64(100), got.BudgetAmount)
	assert.Equal(t, extract.DefaultCurrency, got.BudgetCurrency)
	assert.Equal(t, extract.SectionTable, got.SourceSection)
	assert.Equal(t, testSourceURL, got.SourceURL)
	assert.Len(t, got.ContentHash, 64)
}

func TestCandidates_ListItems(t *testing.T) {
	t.Parallel()

	html := `<html><body>
<ul class="news-list">
  <li>医院药品采购公告 2025-02-10</li>
  <li>行政楼装修工程招标公告 2025-02-12</li>
  <li>今日食堂菜单更新</li>
</ul>
</body></html>`

	candidates := newExtractor(t).Candidates(html, testSourceURL)
	require.Len(t, candidates, 2)

	// Sorted newest first.
	assert.Equal(t, "2025-02-12", candidates[0].PublishDate)
	assert.Equal(t, extract.TypeConstruction, candidates[0].Type)
	assert.Equal(t, extract.CategoryConstruction, candidates[0].Category)

	assert.Equal(t, "2025-02-10", candidates[1].PublishDate)
	assert.Equal(t, extract.CategoryDrugs, candidates[1].Category)
	for _, c := range candidates {
		assert.Equal(t, extract.SectionList, c.SourceSection)
	}
}

func TestCandidates_FreeformContent(t *testing.T) {
	t.Parallel()

	html := `<html><body>
<div class="article-content">
我院信息化系统采购项目现已立项，预算50万元。
医院保洁服务项目同期采购安排。
食堂今日菜单已经更新完毕。
</div>
</body></html>`

	candidates := newExtractor(t).Candidates(html, testSourceURL)
	require.Len(t, candidates, 2)

	for _, c := range candidates {
		assert.Equal(t, extract.SectionContent, c.SourceSection)
	}
}

func TestCandidates_CrossStrategyDedup(t *testing.T) {
	t.Parallel()

	// The same announcement appears as a list item and a freeform line;
	// identical text means identical hashes, so only one survives.
	html := `<html><body>
<ul class="tender-list"><li>医院设备采购项目公告发布</li></ul>
<div class="content">医院设备采购项目公告发布</div>
</body></html>`

	candidates := newExtractor(t).Candidates(html, testSourceURL)
	require.Len(t, candidates, 1)
	assert.Equal(t, extract.SectionList, candidates[0].SourceSection)
}

func TestCandidates_MissingDatesSortLast(t *testing.T) {
	t.Parallel()

	html := `<html><body><ul class="list">
<li>医院无日期采购公告</li>
<li>医院设备采购公告 2025-01-05</li>
</ul></body></html>`

	candidates := newExtractor(t).Candidates(html, testSourceURL)
	require.Len(t, candidates, 2)
	assert.Equal(t, "2025-01-05", candidates[0].PublishDate)
	assert.Empty(t, candidates[1].PublishDate)
}

func TestCandidates_ScriptsIgnored(t *testing.T) {
	t.Parallel()

	html := `<html><body>
<script>var tender = "设备采购项目假数据";</script>
<div class="list"><a href="#">医院急救设备采购公告</a></div>
</body></html>`

	candidates := newExtractor(t).Candidates(html, testSourceURL)
	require.Len(t, candidates, 1)
	assert.Equal(t, "医院急救设备采购公告", candidates[0].Title)
}

func TestCandidates_MalformedHTML(t *testing.T) {
	t.Parallel()

	// html.Parse is lenient; worst case is an empty result, never a panic.
	candidates := newExtractor(t).Candidates("<<<not html>>>", testSourceURL)
	assert.Empty(t, candidates)
}

func TestFindSections(t *testing.T) {
	t.Parallel()

	html := `<html><body>
<nav>
  <a href="/zbgg">招标公告</a>
  <a href="/cggg">采购公告</a>
  <a href="/about">医院简介</a>
</nav>
<div class="main-content">
  本院招标信息汇总。
  <a href="/zbgg">招标公告</a>
  <a href="https://other.example.cn/result">中标结果公示</a>
</div>
</body></html>`

	sections := newExtractor(t).FindSections(html, "https://hospital.example.cn/index.html")
	require.Len(t, sections, 3)

	byURL := make(map[string]extract.Section, len(sections))
	for _, s := range sections {
		byURL[s.URL] = s
	}

	tender, ok := byURL["https://hospital.example.cn/zbgg"]
	require.True(t, ok, "relative link should resolve against the base URL")
	assert.Equal(t, extract.KindTenderNotice, tender.Kind)
	assert.Equal(t, "navigation", tender.Origin)

	procurement, ok := byURL["https://hospital.example.cn/cggg"]
	require.True(t, ok)
	assert.Equal(t, extract.KindProcurementNotice, procurement.Kind)

	award, ok := byURL["https://other.example.cn/result"]
	require.True(t, ok)
	assert.Equal(t, extract.KindAwardNotice, award.Kind)
	assert.Equal(t, "content", award.Origin)
}
