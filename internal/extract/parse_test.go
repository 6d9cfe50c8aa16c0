package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCandidateText_LabeledTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		text  string
		title string
	}{
		{
			name:  "tender project label",
			text:  "招标项目：某医院门诊楼改造工程\n发布时间：2025-01-15",
			title: "某医院门诊楼改造工程",
		},
		{
			name:  "procurement project label",
			text:  "采购项目: CT设备一批\n预算：300万元",
			title: "CT设备一批",
		},
		{
			name:  "project name label",
			text:  "项目名称：保洁服务采购",
			title: "保洁服务采购",
		},
		{
			name:  "heading tag with keyword",
			text:  `<h2 class="t">医院设备采购公告</h2>`,
			title: "医院设备采购公告",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			candidate, ok := ParseCandidateText(tt.text, testURL)
			require.True(t, ok)
			assert.Equal(t, tt.title, candidate.Title)
		})
	}
}

func TestParseCandidateText_TitleFallback(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("设备采购", 20) // 80 runes, no label patterns
	candidate, ok := ParseCandidateText(long, testURL)
	require.True(t, ok)
	assert.Equal(t, 50, len([]rune(candidate.Title)))
}

func TestParseCandidateText_EmptyTextRejected(t *testing.T) {
	t.Parallel()

	_, ok := ParseCandidateText("   ", testURL)
	assert.False(t, ok)
}

func TestParseCandidateText_Dates(t *testing.T) {
	t.Parallel()

	candidate, ok := ParseCandidateText(
		"设备采购公告 发布时间：2025年3月1日 投标截止：2025年3月20日", testURL)
	require.True(t, ok)

	assert.Equal(t, "2025-03-01", candidate.PublishDate)
	assert.Equal(t, "2025-03-20", candidate.DeadlineDate)
}

func TestParseCandidateText_LabeledDateBeatsEarlierDate(t *testing.T) {
	t.Parallel()

	candidate, ok := ParseCandidateText(
		"2024年12月31日截止报名的设备采购公告 发布时间：2025年3月1日", testURL)
	require.True(t, ok)

	assert.Equal(t, "2025-03-01", candidate.PublishDate)
}

func TestParseCandidateText_DeadlineNeedsLabel(t *testing.T) {
	t.Parallel()

	candidate, ok := ParseCandidateText("设备采购公告 2025-03-01", testURL)
	require.True(t, ok)

	assert.Equal(t, "2025-03-01", candidate.PublishDate)
	assert.Empty(t, candidate.DeadlineDate)
}

func TestParseCandidateText_Budget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		text   string
		amount float64
	}{
		{"wan scale", "设备采购项目预算120.5万元", 120.5},
		{"bare yuan", "采购单价8000元的耗材", 8000},
		{"labeled beats earlier amount", "设备采购公告 保证金5万元 预算：120万元", 120},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			candidate, ok := ParseCandidateText(tt.text, testURL)
			require.True(t, ok)
			assert.Equal(t, tt.amount, candidate.BudgetAmount)
			assert.Equal(t, DefaultCurrency, candidate.BudgetCurrency)
		})
	}
}

func TestParseCandidateText_NoBudget(t *testing.T) {
	t.Parallel()

	candidate, ok := ParseCandidateText("医院设备采购公告", testURL)
	require.True(t, ok)
	assert.False(t, candidate.HasBudget())
	assert.Zero(t, candidate.BudgetAmount)
}

func TestNormalizeDate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{"2025-03-01", "2025-03-01"},
		{"2025年3月1日", "2025-03-01"},
		{"2025/3/1", "2025-03-01"},
		{"3-01-2025", "2025-03-01"},
		{"2025年2月30日", ""}, // impossible calendar date
		{"无日期", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, normalizeDate(tt.input))
		})
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text     string
		wantType Type
		wantCat  Category
	}{
		{"医院设备采购项目", TypeEquipment, CategoryMedicalEquipment},
		{"门诊楼建设工程招标", TypeConstruction, CategoryConstruction},
		{"药品集中采购公告", TypeProcurement, CategoryDrugs},
		{"信息化软件系统采购", TypeProcurement, CategoryIT},
		{"保洁服务外包项目", TypeService, CategoryService},
		{"未分类公告", TypeOther, CategoryOther},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.wantType, classifyType(tt.text))
			assert.Equal(t, tt.wantCat, classifyCategory(tt.text))
		})
	}
}

const testURL = "https://hospital.example.cn/list"
