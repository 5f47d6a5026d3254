package feed

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"yanderss/internal/domain"
)

const (
	TierOriginal = "original"
	TierHighres  = "highres"
	TierPreview  = "preview"
)

var hrefRe = regexp.MustCompile(`href="([^"]*)"`)

// Page is a fetched entry page. The HTML document is parsed lazily, only
// when a selector tier needs it.
type Page struct {
	URL  string
	Body []byte

	doc    *goquery.Document
	docErr error
	parsed bool
}

func NewPage(pageURL string, body []byte) *Page {
	return &Page{URL: pageURL, Body: body}
}

func (p *Page) Document() (*goquery.Document, error) {
	if !p.parsed {
		p.doc, p.docErr = goquery.NewDocumentFromReader(bytes.NewReader(p.Body))
		p.parsed = true
	}

	return p.doc, p.docErr
}

// Match is what a tier found on a page. HasRef is false when the tier's
// signal is present but carries no href.
type Match struct {
	Ref    string
	HasRef bool
}

type Matcher interface {
	Match(page *Page) (Match, bool, error)
}

type Tier struct {
	Label   string
	Matcher Matcher
}

// RegexpMatcher signals a tier by a raw-markup pattern. The reference is the
// first href="..." inside the matched fragment.
type RegexpMatcher struct {
	signal *regexp.Regexp
}

func NewRegexpMatcher(pattern string) (*RegexpMatcher, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile tier pattern: %w", err)
	}

	return &RegexpMatcher{signal: re}, nil
}

func (m *RegexpMatcher) Match(page *Page) (Match, bool, error) {
	fragment := m.signal.Find(page.Body)
	if fragment == nil {
		return Match{}, false, nil
	}

	sub := hrefRe.FindSubmatch(fragment)
	if sub == nil {
		return Match{}, true, nil
	}

	return Match{Ref: html.UnescapeString(string(sub[1])), HasRef: true}, true, nil
}

func (m *RegexpMatcher) String() string {
	return m.signal.String()
}

// SelectorMatcher signals a tier by the first element matching a CSS
// selector; the reference is that element's href attribute.
type SelectorMatcher struct {
	selector string
}

func NewSelectorMatcher(selector string) (*SelectorMatcher, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return nil, errors.New("selector is empty")
	}

	return &SelectorMatcher{selector: selector}, nil
}

func (m *SelectorMatcher) Match(page *Page) (Match, bool, error) {
	doc, err := page.Document()
	if err != nil {
		return Match{}, false, fmt.Errorf("create document from reader: %w", err)
	}

	sel := doc.Find(m.selector).First()
	if sel.Length() == 0 {
		return Match{}, false, nil
	}

	href, ok := sel.Attr("href")
	if !ok {
		return Match{}, true, nil
	}

	return Match{Ref: href, HasRef: true}, true, nil
}

func (m *SelectorMatcher) String() string {
	return m.selector
}

// DefaultTiers returns the built-in tiers, best quality first.
func DefaultTiers() []Tier {
	return []Tier{
		{
			Label:   TierOriginal,
			Matcher: &RegexpMatcher{regexp.MustCompile(`<li><a class="original-file-unchanged" id="png"[^>]*>`)},
		},
		{
			Label:   TierHighres,
			Matcher: &RegexpMatcher{regexp.MustCompile(`<li><a class="original-file-changed" id="highres"[^>]*>`)},
		},
		{
			Label:   TierPreview,
			Matcher: &RegexpMatcher{regexp.MustCompile(`<li><a class="original-file-changed highres-show"[^>]*>`)},
		},
	}
}

type Extractor struct {
	tiers []Tier
}

func NewExtractor(tiers []Tier) *Extractor {
	if len(tiers) == 0 {
		tiers = DefaultTiers()
	}

	return &Extractor{tiers: tiers}
}

// Extract returns the asset link of the first tier whose signal is on the
// page. A signalled tier without an href ends the search: lower tiers are
// never consulted once a higher one matched.
func (e *Extractor) Extract(page *Page) (domain.AssetLink, error) {
	for _, tier := range e.tiers {
		m, found, err := tier.Matcher.Match(page)
		if err != nil {
			return domain.AssetLink{}, fmt.Errorf("%w: match tier %s: %w", ErrNoAssetFound, tier.Label, err)
		}
		if !found {
			continue
		}

		if !m.HasRef || strings.TrimSpace(m.Ref) == "" {
			return domain.AssetLink{}, fmt.Errorf("%w: tier %s has no href", ErrNoAssetFound, tier.Label)
		}

		assetURL, err := resolveReference(page.URL, m.Ref)
		if err != nil {
			return domain.AssetLink{}, fmt.Errorf("%w: tier %s: %w", ErrNoAssetFound, tier.Label, err)
		}

		return domain.AssetLink{URL: assetURL, Tier: tier.Label}, nil
	}

	return domain.AssetLink{}, fmt.Errorf("%w: no tier matched", ErrNoAssetFound)
}
