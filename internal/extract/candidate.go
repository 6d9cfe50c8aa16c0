// Package extract parses heterogeneous hospital web pages into structured
// tender candidates. Three independent strategies (list, table, freeform
// content) run over one parsed document; their union is deduplicated by
// content hash and sorted by publish date, newest first.
package extract

// Type classifies what a tender is for.
type Type string

// Tender types.
const (
	TypeProcurement  Type = "procurement"
	TypeConstruction Type = "construction"
	TypeService      Type = "service"
	TypeMedical      Type = "medical"
	TypeEquipment    Type = "equipment"
	TypeOther        Type = "other"
)

// Category classifies what a tender buys.
type Category string

// Tender categories.
const (
	CategoryConstruction     Category = "construction"
	CategoryMedicalEquipment Category = "medical_equipment"
	CategoryDrugs            Category = "drugs"
	CategoryService          Category = "service"
	CategoryIT               Category = "it"
	CategoryOther            Category = "other"
)

// SourceSection records which strategy produced a candidate.
type SourceSection string

// Strategy origins.
const (
	SectionList    SourceSection = "list"
	SectionTable   SourceSection = "table"
	SectionContent SourceSection = "content"
)

// DefaultCurrency is assumed when an amount carries no explicit currency.
const DefaultCurrency = "CNY"

// Candidate is one extracted, not-yet-confirmed tender record.
// A candidate without a title is invalid and is dropped before it reaches
// the caller.
type Candidate struct {
	SourceURL      string        `json:"source_url"`
	Title          string        `json:"title"`
	Content        string        `json:"content"`
	Type           Type          `json:"tender_type"`
	Category       Category      `json:"tender_category"`
	BudgetAmount   float64       `json:"budget_amount,omitempty"`
	BudgetCurrency string        `json:"budget_currency,omitempty"`
	PublishDate    string        `json:"publish_date,omitempty"`
	DeadlineDate   string        `json:"deadline_date,omitempty"`
	ContentHash    string        `json:"content_hash"`
	SourceSection  SourceSection `json:"source_section"`
	Method         string        `json:"crawl_method"`
}

// HasBudget reports whether a budget amount was extracted.
func (c Candidate) HasBudget() bool {
	return c.BudgetCurrency != ""
}
