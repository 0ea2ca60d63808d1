package crawler

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultMaxBlocks caps the candidate blocks taken from one document
const DefaultMaxBlocks = 10

var blockClassPattern = regexp.MustCompile(`(?i)scholarship|opportunity|grant|award`)

// LocatorTier finds candidate blocks in a document using one heuristic
type LocatorTier struct {
	Name string
	Find func(root *goquery.Selection, keywords []string) *goquery.Selection
}

// DefaultTiers are tried in order; the first tier that finds anything wins
var DefaultTiers = []LocatorTier{
	{
		Name: "class-container",
		Find: func(root *goquery.Selection, _ []string) *goquery.Selection {
			return root.Find("div, article, section").FilterFunction(hasBlockClass)
		},
	},
	{
		Name: "class-list-item",
		Find: func(root *goquery.Selection, _ []string) *goquery.Selection {
			return root.Find("li").FilterFunction(hasBlockClass)
		},
	},
	{
		Name: "table-row",
		Find: func(root *goquery.Selection, _ []string) *goquery.Selection {
			return root.Find("tr")
		},
	},
	{
		// Only the first matching div is taken
		Name: "keyword-div",
		Find: func(root *goquery.Selection, keywords []string) *goquery.Selection {
			return root.Find("div").FilterFunction(func(_ int, s *goquery.Selection) bool {
				return containsAny(strings.ToLower(s.Text()), keywords)
			}).First()
		},
	},
}

func hasBlockClass(_ int, s *goquery.Selection) bool {
	class, ok := s.Attr("class")
	return ok && blockClassPattern.MatchString(class)
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// Locator scans a document for blocks that look like single scholarship listings
type Locator struct {
	Tiers     []LocatorTier
	Keywords  []string
	MaxBlocks int
}

// NewLocator creates a locator using the default tiers
func NewLocator(keywords []string, maxBlocks int) *Locator {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	if maxBlocks <= 0 {
		maxBlocks = DefaultMaxBlocks
	}

	lowered := make([]string, len(keywords))
	for i, kw := range keywords {
		lowered[i] = strings.ToLower(kw)
	}

	return &Locator{
		Tiers:     DefaultTiers,
		Keywords:  lowered,
		MaxBlocks: maxBlocks,
	}
}

// Locate returns at most MaxBlocks candidate blocks from the first tier that
// finds any, along with that tier's name. Both are empty when no tier matches.
func (l *Locator) Locate(doc *goquery.Document, sourceURL string) ([]CandidateBlock, string) {
	for _, tier := range l.Tiers {
		found := tier.Find(doc.Selection, l.Keywords)
		if found.Length() == 0 {
			continue
		}

		if found.Length() > l.MaxBlocks {
			found = found.Slice(0, l.MaxBlocks)
		}

		blocks := make([]CandidateBlock, 0, found.Length())
		found.Each(func(_ int, s *goquery.Selection) {
			blocks = append(blocks, CandidateBlock{Selection: s, SourceURL: sourceURL})
		})
		return blocks, tier.Name
	}

	return nil, ""
}
