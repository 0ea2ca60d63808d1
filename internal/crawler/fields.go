package crawler

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MaxGPA is the ceiling applied to parsed GPA requirements
const MaxGPA = 4.0

// RollingDeadlineOffset places the sentinel for rolling deadlines one year out
const RollingDeadlineOffset = 365 * 24 * time.Hour

// now is replaced in tests
var now = time.Now

var monthsByName = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June, "july": time.July,
	"august": time.August, "september": time.September, "october": time.October,
	"november": time.November, "december": time.December,
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"jun": time.June, "jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// datePattern pairs a regular expression with the indexes of the year,
// month and day groups in its submatches.
type datePattern struct {
	re               *regexp.Regexp
	year, month, day int
	monthIsName      bool
}

// Tried in order against lower-cased text
var datePatterns = []datePattern{
	{re: regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{4})`), year: 3, month: 1, day: 2},
	{re: regexp.MustCompile(`(\d{1,2})-(\d{1,2})-(\d{4})`), year: 3, month: 1, day: 2},
	{re: regexp.MustCompile(`(\d{4})-(\d{1,2})-(\d{1,2})`), year: 1, month: 2, day: 3},
	{
		re:   regexp.MustCompile(`(\d{1,2})\s+(january|february|march|april|may|june|july|august|september|october|november|december)\s+(\d{4})`),
		year: 3, month: 2, day: 1, monthIsName: true,
	},
	{
		re:   regexp.MustCompile(`(\d{1,2})\s+(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)\s+(\d{4})`),
		year: 3, month: 2, day: 1, monthIsName: true,
	},
}

// parse converts the first match of p in text to a date. A match that is
// not a real calendar date (e.g. 02/30/2024) reports false.
func (p datePattern) parse(text string) (time.Time, bool) {
	m := p.re.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}

	year, err := strconv.Atoi(m[p.year])
	if err != nil || year < 1 {
		return time.Time{}, false
	}
	day, err := strconv.Atoi(m[p.day])
	if err != nil {
		return time.Time{}, false
	}

	var month time.Month
	if p.monthIsName {
		month = monthsByName[m[p.month]]
	} else {
		n, err := strconv.Atoi(m[p.month])
		if err != nil {
			return time.Time{}, false
		}
		month = time.Month(n)
	}
	if month < time.January || month > time.December || day < 1 {
		return time.Time{}, false
	}

	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflowing days into the next month
	if t.Day() != day || t.Month() != month {
		return time.Time{}, false
	}
	return t, true
}

// ParseDeadline extracts the first parseable date from text. Text that
// mentions a rolling or open deadline yields a sentinel one year from today.
// Returns nil when nothing is found.
func ParseDeadline(text string) *time.Time {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return nil
	}

	for _, p := range datePatterns {
		if t, ok := p.parse(text); ok {
			return &t
		}
	}

	if strings.Contains(text, "rolling") || strings.Contains(text, "open") {
		// Truncated to the day so repeated extraction yields the same value
		t := now().UTC().Add(RollingDeadlineOffset).Truncate(24 * time.Hour)
		return &t
	}

	return nil
}

// keywordGroup maps a set of lower-case substrings to a value
type keywordGroup[T any] struct {
	value    T
	keywords []string
}

// matchGroups returns the value of the first group with a keyword in text
func matchGroups[T any](text string, groups []keywordGroup[T], fallback T) T {
	text = strings.ToLower(text)
	for _, g := range groups {
		for _, kw := range g.keywords {
			if strings.Contains(text, kw) {
				return g.value
			}
		}
	}
	return fallback
}

var fundingGroups = []keywordGroup[FundingType]{
	{FundingFullyFunded, []string{"fully funded", "full funding", "100%", "complete"}},
	{FundingPartial, []string{"partial", "50%", "half", "tuition"}},
	{FundingStipend, []string{"stipend", "living allowance", "monthly"}},
}

var degreeGroups = []keywordGroup[DegreeLevel]{
	{DegreeUndergraduate, []string{"undergraduate", "bachelor", "bachelors", "b.sc", "b.a"}},
	{DegreeMasters, []string{"masters", "master", "m.sc", "m.a", "postgraduate"}},
	{DegreePhD, []string{"phd", "doctoral", "doctorate"}},
	{DegreePostdoc, []string{"postdoc", "post-doctoral"}},
}

// ParseFundingType classifies text by funding keywords; higher groups win
func ParseFundingType(text string) FundingType {
	return matchGroups(text, fundingGroups, FundingOther)
}

// ParseDegreeLevel classifies text by degree keywords, defaulting to DegreeAny
func ParseDegreeLevel(text string) DegreeLevel {
	return matchGroups(text, degreeGroups, DegreeAny)
}

var gpaPatterns = []*regexp.Regexp{
	regexp.MustCompile(`gpa\s*[:\-]?\s*(\d+\.?\d*)`),
	regexp.MustCompile(`(\d+\.?\d*)\s*gpa`),
	regexp.MustCompile(`grade\s*point\s*average\s*[:\-]?\s*(\d+\.?\d*)`),
}

// ParseGPA extracts a GPA requirement, capped at MaxGPA.
// Only the upper bound is clamped.
func ParseGPA(text string) *float64 {
	text = strings.ToLower(text)
	for _, re := range gpaPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		gpa, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		gpa = min(gpa, MaxGPA)
		return &gpa
	}
	return nil
}

// ParseCountry returns the first gazetteer entry found in text, or ""
func ParseCountry(text string) string {
	text = strings.ToLower(text)
	for _, c := range Countries {
		if strings.Contains(text, strings.ToLower(c)) {
			return c
		}
	}
	return ""
}
