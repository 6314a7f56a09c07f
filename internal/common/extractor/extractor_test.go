package extractor

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/project-tktt/request-relay/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func parseDoc(t *testing.T, body string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	require.NoError(t, err)
	return doc
}

func defaultExtractor(t *testing.T) *CardExtractor {
	t.Helper()
	e, err := NewFromProfile(DefaultProfile(), zerolog.Nop())
	require.NoError(t, err)
	return e
}

func TestExtractJobs_Scenario(t *testing.T) {
	desc30 := "Need a clean logo for my cafe."
	require.Equal(t, 30, len(desc30))

	doc := parseDoc(t, `<html><body>
		<div class="buyer-request-card">
			<h3>Logo Design</h3>
			<p>`+desc30+`</p>
			<span class="budget-label">Budget: $250</span>
		</div>
		<div class="buyer-request-card">
			<p>Too short.</p>
		</div>
		<div class="buyer-request-card">
			<div class="request-body">Write five blog posts about home fitness routines.</div>
		</div>
	</body></html>`)

	jobs := defaultExtractor(t).ExtractJobs(doc)

	require.Len(t, jobs, 2)
	assert.Equal(t, domain.JobRecord{Title: "Logo Design", Description: desc30, Budget: 250}, jobs[0])
	assert.Equal(t, "Job Request #3", jobs[1].Title)
	assert.Equal(t, "Write five blog posts about home fitness routines.", jobs[1].Description)
	assert.Equal(t, 100, jobs[1].Budget)
}

func TestExtractJobs_NoSelectorMatches(t *testing.T) {
	doc := parseDoc(t, `<html><body><div class="unrelated"><p>Nothing to see here at all, really.</p></div></body></html>`)

	jobs := defaultExtractor(t).ExtractJobs(doc)

	assert.Empty(t, jobs)
}

func TestExtractJobs_NilDocument(t *testing.T) {
	assert.Empty(t, defaultExtractor(t).ExtractJobs(nil))
}

func TestExtractJobs_PrefersEarlierSelector(t *testing.T) {
	doc := parseDoc(t, `<html><body>
		<article><h4>Generic article</h4><p>This article should never be chosen as a card.</p></article>
		<div class="request-card"><h4>Specific card</h4><p>This card matches the more specific selector.</p></div>
	</body></html>`)

	jobs := defaultExtractor(t).ExtractJobs(doc)

	require.Len(t, jobs, 1)
	assert.Equal(t, "Specific card", jobs[0].Title)
}

func TestExtractJobs_DescriptionFilter(t *testing.T) {
	tests := []struct {
		name string
		desc string
		keep bool
	}{
		{name: "empty", desc: "", keep: false},
		{name: "19 chars", desc: strings.Repeat("a", 19), keep: false},
		{name: "20 chars", desc: strings.Repeat("a", 20), keep: true},
		{name: "padded short", desc: "   short text   ", keep: false},
		{name: "multibyte 20 runes", desc: strings.Repeat("é", 20), keep: true},
		// lengths count runes; each emoji is one
		{name: "12 emoji", desc: strings.Repeat("😀", 12), keep: false},
		{name: "20 emoji", desc: strings.Repeat("😀", 20), keep: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := parseDoc(t, `<div class="request-card"><h3>T</h3><p>`+tt.desc+`</p></div>`)
			jobs := defaultExtractor(t).ExtractJobs(doc)
			if tt.keep {
				assert.Len(t, jobs, 1)
			} else {
				assert.Empty(t, jobs)
			}
		})
	}
}

func TestExtractJobs_MissingDescriptionDropsCard(t *testing.T) {
	doc := parseDoc(t, `<div class="request-card"><h3>Only a title here</h3></div>`)

	assert.Empty(t, defaultExtractor(t).ExtractJobs(doc))
}

func TestExtractJobs_Truncation(t *testing.T) {
	longTitle := strings.Repeat("T", 450)
	longDesc := strings.Repeat("ж", 1200)

	doc := parseDoc(t, `<div class="request-card"><h3>`+longTitle+`</h3><p>`+longDesc+`</p></div>`)
	jobs := defaultExtractor(t).ExtractJobs(doc)

	require.Len(t, jobs, 1)
	assert.Equal(t, 200, utf8.RuneCountInString(jobs[0].Title))
	assert.Equal(t, 500, utf8.RuneCountInString(jobs[0].Description))
	assert.True(t, utf8.ValidString(jobs[0].Description))
}

func TestExtractJobs_TruncatesAstralRunesWhole(t *testing.T) {
	doc := parseDoc(t, `<div class="request-card"><h3>`+strings.Repeat("🚀", 201)+`</h3><p>`+strings.Repeat("😀", 501)+`</p></div>`)
	jobs := defaultExtractor(t).ExtractJobs(doc)

	require.Len(t, jobs, 1)
	assert.Equal(t, strings.Repeat("🚀", 200), jobs[0].Title)
	assert.Equal(t, strings.Repeat("😀", 500), jobs[0].Description)
}

func TestExtractJobs_FallbackTitleCountsFilteredCards(t *testing.T) {
	doc := parseDoc(t, `<html><body>
		<article><p>short</p></article>
		<article><p>short</p></article>
		<article><p>This one is long enough to be kept.</p></article>
		<article><h5>   </h5><p>Blank headings also fall back to numbering.</p></article>
	</body></html>`)

	jobs := defaultExtractor(t).ExtractJobs(doc)

	require.Len(t, jobs, 2)
	assert.Equal(t, "Job Request #3", jobs[0].Title)
	assert.Equal(t, "Job Request #4", jobs[1].Title)
}

func TestParseBudget(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{text: "Budget: $250", want: 250},
		{text: "49.99", want: 49},
		{text: "€1,200", want: 1},
		{text: "negotiable", want: 100},
		{text: "", want: 100},
		{text: "up to 99999999999999999999999", want: 100},
		{text: "  75 USD ", want: 75},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, parseBudget(tt.text))
		})
	}
}

func TestExtractJobs_BudgetField(t *testing.T) {
	doc := parseDoc(t, `<html><body>
		<div class="request-card"><p>A description that is long enough.</p><b class="price-tag">$49.99</b></div>
		<div class="request-card"><p>A description that is long enough.</p><b class="amount">ask me</b></div>
	</body></html>`)

	jobs := defaultExtractor(t).ExtractJobs(doc)

	require.Len(t, jobs, 2)
	assert.Equal(t, 49, jobs[0].Budget)
	assert.Equal(t, 100, jobs[1].Budget)
}

type countingStrategy struct {
	Strategy
	calls int
}

func (c *countingStrategy) Find(root *goquery.Selection) *goquery.Selection {
	c.calls++
	return c.Strategy.Find(root)
}

func TestSelectorChain_StopsAtFirstHit(t *testing.T) {
	mk := func(sel string) *countingStrategy {
		s, err := NewCSSStrategy(sel)
		require.NoError(t, err)
		return &countingStrategy{Strategy: s}
	}
	missing, hit, later := mk(".missing"), mk(".card"), mk("div")

	doc := parseDoc(t, `<div class="card">x</div><div class="card">y</div>`)
	s, found, ok := SelectorChain{missing, hit, later}.Resolve(doc.Selection)

	require.True(t, ok)
	assert.Equal(t, ".card", s.Name())
	assert.Equal(t, 2, found.Length())
	assert.Equal(t, 1, missing.calls)
	assert.Equal(t, 1, hit.calls)
	assert.Equal(t, 0, later.calls)
}

// boomMatcher panics when asked to search inside a card marked data-boom
type boomMatcher struct {
	goquery.Matcher
}

func (b boomMatcher) MatchAll(n *html.Node) []*html.Node {
	if n.Parent != nil {
		for _, a := range n.Parent.Attr {
			if a.Key == "data-boom" {
				panic("boom")
			}
		}
	}
	return b.Matcher.MatchAll(n)
}

func TestExtractJobs_RecoversPerCard(t *testing.T) {
	chain, fields, err := DefaultProfile().Compile()
	require.NoError(t, err)
	fields.Title = boomMatcher{Matcher: fields.Title}

	doc := parseDoc(t, `<html><body>
		<div class="request-card" data-boom="1"><h3>Broken</h3><p>This card makes the title lookup panic.</p></div>
		<div class="request-card"><h3>Fine</h3><p>This card parses without any trouble.</p></div>
	</body></html>`)

	jobs := New(chain, fields, zerolog.Nop()).ExtractJobs(doc)

	require.Len(t, jobs, 1)
	assert.Equal(t, "Fine", jobs[0].Title)
}

func TestExtractFrom_ReaderLoader(t *testing.T) {
	loader := NewReaderLoader("inline", strings.NewReader(
		`<div class="offer-card"><h4>Scrape a shop</h4><p>Extract 200 product names and prices to CSV.</p><span class="price">$80</span></div>`))

	jobs, err := defaultExtractor(t).ExtractFrom(context.Background(), loader)

	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, domain.JobRecord{
		Title:       "Scrape a shop",
		Description: "Extract 200 product names and prices to CSV.",
		Budget:      80,
	}, jobs[0])
}

func TestExtractFrom_LoadError(t *testing.T) {
	_, err := defaultExtractor(t).ExtractFrom(context.Background(), NewFileLoader("/does/not/exist.html"))

	assert.Error(t, err)
}
