package extract

import "regexp"

// tenderKeywords is the bilingual vocabulary that marks text as
// tender-related. Matching is case-insensitive for the latin terms.
var tenderKeywords = []string{
	"招标", "采购", "中标", "投标", "竞标", "项目招标", "设备采购",
	"tender", "bid", "procurement", "purchase", "auction",
}

// titlePatterns are tried in order; the first capture group of the first
// match becomes the candidate title.
var titlePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)招标项目[:：]?\s*(.+?)(?:\r?\n|$)`),
	regexp.MustCompile(`(?i)采购项目[:：]?\s*(.+?)(?:\r?\n|$)`),
	regexp.MustCompile(`(?i)项目名称[:：]?\s*(.+?)(?:\r?\n|$)`),
	regexp.MustCompile(`(?i)<h[1-6][^>]*>([^<]*(?:招标|采购|项目)[^<]*)</h[1-6]>`),
}

// datePatterns are tried in order for the publish date, labeled form
// first so an explicit 发布时间 beats whatever date appears earliest.
var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`发布时间[:：]?\s*(\d{4}[-年]\d{1,2}[-月]\d{1,2}日?)`),
	regexp.MustCompile(`(\d{4}[-年]\d{1,2}[-月]\d{1,2}日?)`),
	regexp.MustCompile(`(\d{4}/\d{1,2}/\d{1,2})`),
	regexp.MustCompile(`(\d{1,2}[-/.]\d{1,2}[-/.]\d{4})`),
}

// deadlinePatterns require a deadline or bid-by label before the date.
var deadlinePatterns = []*regexp.Regexp{
	regexp.MustCompile(`投标截止.*?[:：]?\s*(\d{4}[-年]\d{1,2}[-月]\d{1,2}日?)`),
	regexp.MustCompile(`截止.*?[:：]?\s*(\d{4}[-年]\d{1,2}[-月]\d{1,2}日?)`),
	regexp.MustCompile(`投标.*?[:：]?\s*(\d{4}[-年]\d{1,2}[-月]\d{1,2}日?)`),
}

// budgetPatterns are tried in order, labeled form first; the first capture
// group is the amount. The scale suffix decides nothing about magnitude:
// amounts are stored as written, with the currency defaulting to CNY.
var budgetPatterns = []*regexp.Regexp{
	regexp.MustCompile(`预算[:：]?\s*(\d+(?:\.\d+)?)\s*(?:万元|元)`),
	regexp.MustCompile(`(\d+(?:\.\d+)?)\s*万元`),
	regexp.MustCompile(`(\d+(?:\.\d+)?)\s*元`),
}

// dateComponentPatterns normalize a matched date string into calendar
// components. yearFirst marks patterns whose first group is the year.
var dateComponentPatterns = []struct {
	re        *regexp.Regexp
	yearFirst bool
}{
	{regexp.MustCompile(`(\d{4})[-年](\d{1,2})[-月](\d{1,2})日?`), true},
	{regexp.MustCompile(`(\d{4})/(\d{1,2})/(\d{1,2})`), true},
	{regexp.MustCompile(`(\d{1,2})[-/.](\d{1,2})[-/.](\d{4})`), false},
}

// typeKeywordTable maps tender types to their trigger keywords, most
// specific first: the generic procurement vocabulary only wins when nothing
// narrower matched.
var typeKeywordTable = []struct {
	tenderType Type
	keywords   []string
}{
	{TypeConstruction, []string{"建设", "工程", "装修"}},
	{TypeEquipment, []string{"设备", "器械", "仪器"}},
	{TypeMedical, []string{"医疗", "医院", "临床"}},
	{TypeService, []string{"服务", "维护", "保洁"}},
	{TypeProcurement, []string{"采购", "购买"}},
}

// categoryKeywordTable maps tender categories to their trigger keywords,
// tried in order.
var categoryKeywordTable = []struct {
	category Category
	keywords []string
}{
	{CategoryConstruction, []string{"建设", "工程", "装修", "基建", "施工"}},
	{CategoryMedicalEquipment, []string{"设备", "器械", "仪器", "医疗设备"}},
	{CategoryDrugs, []string{"药品", "药物", "药材"}},
	{CategoryService, []string{"服务", "维护", "保洁", "保安"}},
	{CategoryIT, []string{"信息化", "软件", "系统", "网络", "it"}},
}

// Structural selectors for the three extraction strategies. Containers are
// identified by structural role (class naming), never by content.
var (
	listContainerClass    = regexp.MustCompile(`list|item|news|tender|bid`)
	contentContainerClass = regexp.MustCompile(`content|article|news|item`)
	navContainerClass     = regexp.MustCompile(`nav|menu|header`)
)

// Cell-level patterns used by the table strategy on sibling cells.
var (
	cellDatePattern   = regexp.MustCompile(`\d{4}[-年]\d{1,2}[-月]\d{1,2}`)
	cellBudgetPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*万元`)
)

// sentenceSplitPattern breaks freeform text into sentences.
var sentenceSplitPattern = regexp.MustCompile(`[。！？\n]`)
