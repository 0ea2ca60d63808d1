package crawler

import (
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// FundingType classifies how much of the study cost a scholarship covers
type FundingType string

const (
	FundingFullyFunded FundingType = "fully_funded"
	FundingPartial     FundingType = "partial"
	FundingStipend     FundingType = "stipend"
	FundingOther       FundingType = "other"
)

// DegreeLevel is the level of study a scholarship targets
type DegreeLevel string

const (
	DegreeUndergraduate DegreeLevel = "undergraduate"
	DegreeMasters       DegreeLevel = "masters"
	DegreePhD           DegreeLevel = "phd"
	DegreePostdoc       DegreeLevel = "postdoc"
	DegreeAny           DegreeLevel = "any"
)

// Scholarship is a normalized scholarship record.
// Name and SourceURL are always set; the remaining fields are best-effort.
type Scholarship struct {
	Name            string      `json:"name"`
	Description     string      `json:"description"`
	Eligibility     string      `json:"eligibility"`
	Deadline        *time.Time  `json:"deadline,omitempty"`
	FundingType     FundingType `json:"funding_type"`
	DegreeLevel     DegreeLevel `json:"degree_level"`
	GPARequirement  *float64    `json:"gpa_requirement,omitempty"`
	Country         string      `json:"country,omitempty"`
	ApplicationLink string      `json:"application_link"`
	SourceURL       string      `json:"source_url"`
	SourceName      string      `json:"source_name"`
	ScrapedAt       time.Time   `json:"scraped_at"`
}

// CandidateBlock is a document fragment that may describe one scholarship
type CandidateBlock struct {
	Selection *goquery.Selection
	SourceURL string
}

// Text returns the rendered text of the block
func (b CandidateBlock) Text() string {
	return b.Selection.Text()
}

// Scraper extracts scholarship records from a single source URL
type Scraper interface {
	Scrape(ctx context.Context, url string) ([]Scholarship, error)
}

// DefaultKeywords mark a generic block as scholarship related
var DefaultKeywords = []string{
	"scholarship", "grant", "fellowship", "bursary", "financial aid",
	"fully funded", "partial funding", "tuition waiver", "stipend",
}

// Countries is the gazetteer searched by ParseCountry, in priority order.
// Aliases are distinct entries and are not normalized.
var Countries = []string{
	"USA", "UK", "Canada", "Australia", "Germany", "France", "Netherlands",
	"Switzerland", "Sweden", "Norway", "Denmark", "Finland",
	"United States", "United Kingdom", "Ireland", "New Zealand", "Japan",
	"South Korea", "China", "Italy", "Spain", "Belgium", "Austria",
}
