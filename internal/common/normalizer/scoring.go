package normalizer

import (
	"strings"
)

// CategoryOther marks a record no category keyword matched
const CategoryOther = "other"

type keywordGroup struct {
	name     string
	keywords []string
}

// Categories in match priority; the first group with a hit wins
var categories = []keywordGroup{
	{"website", []string{"website", "web development", "landing page", "html", "css"}},
	{"scraping", []string{"scraping", "web scraping", "data extraction", "scraper"}},
	{"writing", []string{"writing", "content", "blog", "article", "copywriting"}},
	{"data", []string{"data entry", "research", "excel", "spreadsheet", "data analysis"}},
	{"graphics", []string{"logo", "graphic design", "social media", "banner"}},
	{"api", []string{"api", "integration", "webhook", "automation"}},
}

var tagKeywords = []keywordGroup{
	{"HTML", []string{"html", "web page"}},
	{"CSS", []string{"css", "styling", "design"}},
	{"JavaScript", []string{"javascript", "js", "interactive"}},
	{"Python", []string{"python", "scraping", "automation"}},
	{"SEO", []string{"seo", "search engine"}},
	{"Mobile", []string{"mobile", "responsive"}},
	{"Quick", []string{"urgent", "asap", "fast", "quick"}},
	{"PDF", []string{"pdf", "document"}},
	{"API", []string{"api", "integration"}},
}

const maxTags = 6

var (
	clarityWords = []string{"need", "must", "deadline", "specific", "example", "attached"}
	quickWords   = []string{"simple", "quick", "basic", "small", "short"}
	lightWords   = []string{"simple", "quick", "basic", "small"}
	mediumWords  = []string{"medium", "standard", "regular"}
)

// Categorize returns the first category whose keywords occur in the title or
// description, or CategoryOther.
func Categorize(title, description string) string {
	text := strings.ToLower(title + " " + description)
	for _, c := range categories {
		if containsAny(text, c.keywords) {
			return c.name
		}
	}
	return CategoryOther
}

// CalculateScore rates a job 0-100: up to 40 for budget, 30 for clarity
// and 30 for how quick it looks.
func CalculateScore(budget int, description string) int {
	score := 0
	switch {
	case budget >= 150:
		score += 40
	case budget >= 100:
		score += 30
	case budget >= 50:
		score += 20
	}

	desc := strings.ToLower(description)
	score += min(countHits(desc, clarityWords)*5, 30)
	score += min(countHits(desc, quickWords)*6, 30)

	return min(score, 100)
}

// EstimateEffort guesses the hours a job needs
func EstimateEffort(description string) float64 {
	desc := strings.ToLower(description)
	switch {
	case containsAny(desc, lightWords):
		return 1.5
	case containsAny(desc, mediumWords):
		return 2.5
	default:
		return 4
	}
}

// ExtractTags returns at most six tags whose keywords occur in the description
func ExtractTags(description string) []string {
	desc := strings.ToLower(description)
	tags := make([]string, 0, maxTags)
	for _, t := range tagKeywords {
		if len(tags) == maxTags {
			break
		}
		if containsAny(desc, t.keywords) {
			tags = append(tags, t.name)
		}
	}
	return tags
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func countHits(text string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			n++
		}
	}
	return n
}
