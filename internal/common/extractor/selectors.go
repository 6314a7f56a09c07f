package extractor

import (
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"gopkg.in/yaml.v3"
)

// Default card selectors, most specific first. The generic "article"
// fallback stays near the end so precise matches win.
var DefaultCardSelectors = []string{
	".buyer-request-card",
	".request-card",
	".offer-card",
	`[data-cy*="buyer-request"]`,
	`[data-testid*="buyer-request"]`,
	"article",
	".co-buyer-request-offer",
}

// Default field selectors, matched against a card's descendants.
const (
	DefaultTitleSelector       = `h3, h4, h5, [class*="title"]`
	DefaultDescriptionSelector = `p, [class*="description"], [class*="body"]`
	DefaultBudgetSelector      = `[class*="budget"], [class*="price"], [class*="amount"]`
)

// Strategy locates candidate listing cards in a document.
type Strategy interface {
	Name() string
	Find(root *goquery.Selection) *goquery.Selection
}

// cssStrategy is a Strategy backed by a compiled CSS selector
type cssStrategy struct {
	selector string
	matcher  cascadia.Selector
}

// NewCSSStrategy compiles selector into a Strategy.
func NewCSSStrategy(selector string) (Strategy, error) {
	m, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("compile selector %q: %w", selector, err)
	}
	return &cssStrategy{selector: selector, matcher: m}, nil
}

func (s *cssStrategy) Name() string { return s.selector }

func (s *cssStrategy) Find(root *goquery.Selection) *goquery.Selection {
	return root.FindMatcher(s.matcher)
}

// SelectorChain is an ordered list of strategies tried in priority order.
type SelectorChain []Strategy

// Resolve returns the first strategy yielding at least one element, with its
// matches. Strategies after the first hit are never evaluated.
func (c SelectorChain) Resolve(root *goquery.Selection) (Strategy, *goquery.Selection, bool) {
	for _, s := range c {
		found := s.Find(root)
		if found.Length() > 0 {
			return s, found, true
		}
	}
	return nil, nil, false
}

// FieldSelectors locate the sub-elements of one card.
type FieldSelectors struct {
	Title       goquery.Matcher
	Description goquery.Matcher
	Budget      goquery.Matcher
}

// Profile is the user-editable selector configuration.
type Profile struct {
	Cards  []string     `yaml:"cards"`
	Fields FieldProfile `yaml:"fields"`
}

type FieldProfile struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Budget      string `yaml:"budget"`
}

// DefaultProfile returns the built-in selectors.
func DefaultProfile() Profile {
	cards := make([]string, len(DefaultCardSelectors))
	copy(cards, DefaultCardSelectors)
	return Profile{
		Cards: cards,
		Fields: FieldProfile{
			Title:       DefaultTitleSelector,
			Description: DefaultDescriptionSelector,
			Budget:      DefaultBudgetSelector,
		},
	}
}

// LoadProfile reads a YAML profile from path. Omitted sections keep their
// defaults; an empty path returns the defaults.
func LoadProfile(path string) (Profile, error) {
	if path == "" {
		return DefaultProfile(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}
	return ParseProfile(data)
}

// ParseProfile decodes and validates a YAML profile.
func ParseProfile(data []byte) (Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("parse profile: %w", err)
	}

	def := DefaultProfile()
	if len(p.Cards) == 0 {
		p.Cards = def.Cards
	}
	if strings.TrimSpace(p.Fields.Title) == "" {
		p.Fields.Title = def.Fields.Title
	}
	if strings.TrimSpace(p.Fields.Description) == "" {
		p.Fields.Description = def.Fields.Description
	}
	if strings.TrimSpace(p.Fields.Budget) == "" {
		p.Fields.Budget = def.Fields.Budget
	}

	if _, _, err := p.Compile(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Compile turns the profile into a chain and field selectors.
func (p Profile) Compile() (SelectorChain, FieldSelectors, error) {
	chain := make(SelectorChain, 0, len(p.Cards))
	for _, sel := range p.Cards {
		s, err := NewCSSStrategy(sel)
		if err != nil {
			return nil, FieldSelectors{}, fmt.Errorf("card %w", err)
		}
		chain = append(chain, s)
	}

	var fields FieldSelectors
	var err error
	if fields.Title, err = compileField("title", p.Fields.Title); err != nil {
		return nil, FieldSelectors{}, err
	}
	if fields.Description, err = compileField("description", p.Fields.Description); err != nil {
		return nil, FieldSelectors{}, err
	}
	if fields.Budget, err = compileField("budget", p.Fields.Budget); err != nil {
		return nil, FieldSelectors{}, err
	}
	return chain, fields, nil
}

func compileField(name, selector string) (goquery.Matcher, error) {
	m, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("%s selector %q: %w", name, selector, err)
	}
	return m, nil
}
