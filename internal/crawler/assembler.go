package crawler

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"scholarsift/scholarworker/helpers"
)

const (
	// MinNameLength is the shortest name a record is accepted with
	MinNameLength = 10
	// fallbackLineLength is the length a text line must exceed to serve as a name
	fallbackLineLength = 20
	maxNameLength      = 200
	// MaxDescriptionLength bounds the description snippet
	MaxDescriptionLength = 1000
)

// Searched in order; the first element with a long enough text names the block
var nameSelectors = []string{
	"h1", "h2", "h3", "h4",
	`[class*="title"]`, `[class*="name"]`, `[class*="heading"]`,
}

// An anchor whose href contains one of these, in priority order, is the apply link
var applyLinkKeywords = []string{"apply", "application", "register", "scholarship", "opportunity"}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ExtractName finds a name for the block from its headings or title-like
// elements, falling back to the first substantial line of text.
// Returns "" when nothing qualifies.
func ExtractName(s *goquery.Selection) string {
	for _, selector := range nameSelectors {
		var name string
		s.Find(selector).EachWithBreak(func(_ int, el *goquery.Selection) bool {
			text := normalizeSpace(el.Text())
			if utf8.RuneCountInString(text) > MinNameLength {
				name = text
				return false
			}
			return true
		})
		if name != "" {
			return name
		}
	}

	for _, line := range strings.Split(s.Text(), "\n") {
		line = strings.TrimSpace(line)
		if utf8.RuneCountInString(line) > fallbackLineLength {
			return helpers.Truncate(line, maxNameLength)
		}
	}

	return ""
}

// ExtractApplicationLink returns the absolute URL of the block's apply link,
// or sourceURL when the block has none.
func ExtractApplicationLink(s *goquery.Selection, sourceURL string) string {
	for _, kw := range applyLinkKeywords {
		var link string
		s.Find(`a[href*="` + kw + `"]`).EachWithBreak(func(_ int, a *goquery.Selection) bool {
			if href := strings.TrimSpace(a.AttrOr("href", "")); href != "" {
				link = helpers.ResolveURL(sourceURL, href)
				return false
			}
			return true
		})
		if link != "" {
			return link
		}
	}
	return sourceURL
}

// Assemble builds a scholarship record from a candidate block. Blocks
// without a usable name are rejected and yield nil.
func Assemble(block CandidateBlock) *Scholarship {
	name := ExtractName(block.Selection)
	if utf8.RuneCountInString(name) < MinNameLength {
		return nil
	}

	text := strings.TrimSpace(block.Text())

	return &Scholarship{
		Name:            name,
		Description:     helpers.Truncate(text, MaxDescriptionLength),
		Eligibility:     text,
		Deadline:        ParseDeadline(text),
		FundingType:     ParseFundingType(text),
		DegreeLevel:     ParseDegreeLevel(text),
		GPARequirement:  ParseGPA(text),
		Country:         ParseCountry(text),
		ApplicationLink: ExtractApplicationLink(block.Selection, block.SourceURL),
		SourceURL:       block.SourceURL,
		SourceName:      helpers.HostOf(block.SourceURL),
	}
}
