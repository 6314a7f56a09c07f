package extractor

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/project-tktt/request-relay/internal/domain"
	"github.com/project-tktt/request-relay/internal/logx"
	"github.com/rs/zerolog"
)

// DocumentLoader produces the document to scan.
// Two implementations: CollyLoader (fetches a URL) and ReaderLoader (saved pages, tests)
type DocumentLoader interface {
	// Load fetches and parses the page
	Load(ctx context.Context) (*goquery.Document, error)

	// Name returns a short description used in logs
	Name() string
}

var digitRun = regexp.MustCompile(`\d+`)

// CardExtractor turns listing cards into job records.
type CardExtractor struct {
	chain  SelectorChain
	fields FieldSelectors
	log    zerolog.Logger
}

// New creates an extractor from an explicit chain and field selectors.
func New(chain SelectorChain, fields FieldSelectors, logger zerolog.Logger) *CardExtractor {
	return &CardExtractor{
		chain:  chain,
		fields: fields,
		log:    logx.Component(logger, "extractor"),
	}
}

// NewFromProfile compiles p and creates an extractor.
func NewFromProfile(p Profile, logger zerolog.Logger) (*CardExtractor, error) {
	chain, fields, err := p.Compile()
	if err != nil {
		return nil, err
	}
	return New(chain, fields, logger), nil
}

// ExtractFrom loads a document through loader and extracts its records.
// Only the load can fail; extraction itself never does.
func (e *CardExtractor) ExtractFrom(ctx context.Context, loader DocumentLoader) ([]domain.JobRecord, error) {
	doc, err := loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", loader.Name(), err)
	}
	return e.ExtractJobs(doc), nil
}

// ExtractJobs scans doc and returns the records in document order.
// Cards that fail to parse or carry too short a description are skipped.
func (e *CardExtractor) ExtractJobs(doc *goquery.Document) []domain.JobRecord {
	if doc == nil {
		return nil
	}

	strategy, cards, ok := e.chain.Resolve(doc.Selection)
	if !ok {
		e.log.Debug().Msg("no candidate selector matched")
		return nil
	}
	e.log.Debug().Str("selector", strategy.Name()).Int("cards", cards.Length()).Msg("selector resolved")

	jobs := make([]domain.JobRecord, 0, cards.Length())
	cards.Each(func(idx int, card *goquery.Selection) {
		rec, keep, err := e.parseCard(idx, card)
		if err != nil {
			e.log.Warn().Err(err).Int("card", idx).Msg("skipping card")
			return
		}
		if keep {
			jobs = append(jobs, rec)
		}
	})

	e.log.Debug().Int("kept", len(jobs)).Int("scanned", cards.Length()).Msg("extraction finished")
	return jobs
}

// parseCard reads one card. keep is false when the description is too short.
func (e *CardExtractor) parseCard(idx int, card *goquery.Selection) (rec domain.JobRecord, keep bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec, keep, err = domain.JobRecord{}, false, fmt.Errorf("parse card: %v", r)
		}
	}()

	title := firstText(card, e.fields.Title)
	if title == "" {
		title = fmt.Sprintf("Job Request #%d", idx+1)
	}

	description := firstText(card, e.fields.Description)

	budget := domain.DefaultBudget
	if node := card.FindMatcher(e.fields.Budget).First(); node.Length() > 0 {
		budget = parseBudget(node.Text())
	}

	// Length check runs on the untruncated text
	if utf8.RuneCountInString(description) < domain.MinDescriptionLength {
		return domain.JobRecord{}, false, nil
	}

	return domain.JobRecord{
		Title:       truncate(title, domain.MaxTitleLength),
		Description: truncate(description, domain.MaxDescriptionLength),
		Budget:      budget,
	}, true, nil
}

// firstText returns the trimmed text of the first descendant matched by m
func firstText(card *goquery.Selection, m goquery.Matcher) string {
	node := card.FindMatcher(m).First()
	if node.Length() == 0 {
		return ""
	}
	return strings.TrimSpace(node.Text())
}

// parseBudget returns the first run of decimal digits in text, or the
// default budget when there is none or it does not fit an int.
func parseBudget(text string) int {
	run := digitRun.FindString(text)
	if run == "" {
		return domain.DefaultBudget
	}
	n, err := strconv.Atoi(run)
	if err != nil {
		return domain.DefaultBudget
	}
	return n
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
