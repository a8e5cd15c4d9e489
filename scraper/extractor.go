package scraper

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"deal_scout/identity"
	"deal_scout/logging"
	"deal_scout/models"
)

const (
	maxCandidates  = 20
	maxTitleRunes  = 100
	minPriceDigits = 5
	placeholderLoc = "your area"
)

// ExtractResult is the deduplicated candidate list plus the number of pages
// that could not be fetched or parsed.
type ExtractResult struct {
	Candidates []models.ListingCandidate
	Skipped    int
}

// Extractor mines listing candidates out of source pages.
type Extractor struct {
	fetcher     Fetcher
	concurrency int
}

func NewExtractor(fetcher Fetcher, concurrency int) *Extractor {
	return &Extractor{fetcher: fetcher, concurrency: concurrency}
}

// Extract fetches every URL and folds the pages in input order. Failed pages
// are skipped; only cancellation of ctx is an error.
func (e *Extractor) Extract(ctx context.Context, query string, urls []string) (ExtractResult, error) {
	pages := fetchAll(ctx, e.concurrency, urls, e.fetcher.Fetch)
	if err := ctx.Err(); err != nil {
		return ExtractResult{}, fmt.Errorf("extract: %w", err)
	}

	var res ExtractResult
	var col Collection
	for i, page := range pages {
		source := urls[i]
		if page.err != nil {
			log.Printf("Extractor: skipping %s: %v", source, page.err)
			res.Skipped++
			continue
		}

		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.value))
		if err != nil {
			log.Printf("Extractor: skipping %s: parse: %v", source, err)
			res.Skipped++
			continue
		}

		before := col.Len()
		ExtractPage(doc, source, &col)

		if col.Len() == 0 {
			ph := Placeholder(query, source)
			col.Add(ph, ph.Title)
		}
		log.Printf("Extractor: %s yielded %d candidates", source, col.Len()-before)
	}

	res.Candidates = col.Items()
	return res, nil
}

// ExtractPage runs the selector table over one parsed page.
func ExtractPage(doc *goquery.Document, source string, col *Collection) {
	base, baseErr := url.Parse(source)

	for _, container := range listingSelectors.Containers {
		doc.Find(container).EachWithBreak(func(_ int, el *goquery.Selection) bool {
			if col.Full() {
				return false
			}

			title := firstText(el, listingSelectors.Title)
			price := identity.DigitsOnly(firstText(el, listingSelectors.Price))
			if title == "" || len(price) < minPriceDigits {
				logging.Debugf("Extractor: rejecting card on %s (title %q, price %q)", source, title, price)
				return true
			}

			link := source
			if href, ok := el.Find(listingSelectors.Link).First().Attr("href"); ok && baseErr == nil {
				if resolved, err := base.Parse(strings.TrimSpace(href)); err == nil {
					link = resolved.String()
				}
			}

			added := col.Add(models.ListingCandidate{
				Title:       truncateRunes(title, maxTitleRunes),
				PriceText:   price,
				Address:     title,
				SourceURL:   source,
				ResolvedURL: link,
			}, title)
			if !added {
				logging.Debugf("Extractor: duplicate %q on %s", title, source)
			}
			return true
		})
	}
}

// Placeholder stands in for a page that yielded nothing.
func Placeholder(query, source string) models.ListingCandidate {
	return models.ListingCandidate{
		Title:       "Properties in " + identity.Location(query, placeholderLoc),
		PriceText:   "0",
		Address:     source,
		SourceURL:   source,
		ResolvedURL: source,
	}
}

func firstText(el *goquery.Selection, selectors []string) string {
	for _, sel := range selectors {
		if text := strings.TrimSpace(el.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// Collection is the run's candidate list: capped at 20, first seen wins.
// Two candidates are duplicates when their full titles match ignoring case
// or their resolved URLs are identical.
type Collection struct {
	items  []models.ListingCandidate
	titles map[string]bool
	urls   map[string]bool
}

// Add reports whether cand was appended. fullTitle is the title before
// truncation.
func (c *Collection) Add(cand models.ListingCandidate, fullTitle string) bool {
	if c.Full() {
		return false
	}
	if c.titles == nil {
		c.titles = make(map[string]bool)
		c.urls = make(map[string]bool)
	}

	title := identity.NormalizeTitle(fullTitle)
	if c.titles[title] || c.urls[cand.ResolvedURL] {
		return false
	}

	c.titles[title] = true
	c.urls[cand.ResolvedURL] = true
	c.items = append(c.items, cand)
	return true
}

func (c *Collection) Full() bool { return len(c.items) >= maxCandidates }

func (c *Collection) Len() int { return len(c.items) }

func (c *Collection) Items() []models.ListingCandidate { return c.items }
