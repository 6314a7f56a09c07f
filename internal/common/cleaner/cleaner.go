package cleaner

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/project-tktt/request-relay/internal/domain"
)

var spaceRun = regexp.MustCompile(`[ \t\r\f\v]+`)
var blankLines = regexp.MustCompile(`\n{3,}`)

// Cleaner sanitizes submitted text using Bluemonday
type Cleaner struct {
	policy *bluemonday.Policy
	strict *bluemonday.Policy
}

// NewCleaner creates a cleaner that keeps basic formatting for Clean
func NewCleaner() *Cleaner {
	// Basic formatting only; scripts, styles and handlers are dropped
	policy := bluemonday.NewPolicy()
	policy.AllowElements("p", "br", "div", "span")
	policy.AllowElements("strong", "b", "em", "i", "u")
	policy.AllowElements("ul", "ol", "li")

	// Links without javascript:
	policy.AllowAttrs("href").OnElements("a")
	policy.RequireParseableURLs(true)
	policy.AllowURLSchemes("http", "https", "mailto")

	return &Cleaner{policy: policy, strict: bluemonday.StrictPolicy()}
}

// NewStrictCleaner creates a cleaner that strips ALL HTML, also in Clean
func NewStrictCleaner() *Cleaner {
	strict := bluemonday.StrictPolicy()
	return &Cleaner{policy: strict, strict: strict}
}

// Clean sanitizes HTML content
func (c *Cleaner) Clean(s string) string {
	return c.policy.Sanitize(s)
}

// CleanToText removes all HTML and returns plain text with collapsed whitespace
func (c *Cleaner) CleanToText(s string) string {
	// bluemonday escapes entities in its output
	text := html.UnescapeString(c.strict.Sanitize(s))

	text = spaceRun.ReplaceAllString(text, " ")
	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// CleanRecord returns rec with its text fields reduced to plain text
func (c *Cleaner) CleanRecord(rec domain.JobRecord) domain.JobRecord {
	rec.Title = c.CleanToText(rec.Title)
	rec.Description = c.CleanToText(rec.Description)
	return rec
}
