package scraper

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"deal_scout/config"
	"deal_scout/httputil"
	"deal_scout/identity"
	"deal_scout/logging"
)

const (
	maxDiscoveredURLs = 20
	maxScrapeURLs     = 10
	searchSuffix      = " real estate listings"
)

// DiscoveryResult holds raw allow-listed URLs in discovery order, duplicates
// included. Degraded is set when any fallback URL was synthesized.
type DiscoveryResult struct {
	URLs     []string
	Degraded bool
}

// Discovery turns search phrases into candidate listing pages on allow-listed
// hosts.
type Discovery struct {
	client      *http.Client
	searchURL   string
	sites       []*config.SiteConfig
	concurrency int
}

func NewDiscovery(client *http.Client, searchURL string, sites []*config.SiteConfig, concurrency int) *Discovery {
	return &Discovery{
		client:      client,
		searchURL:   searchURL,
		sites:       sites,
		concurrency: concurrency,
	}
}

// Discover searches every phrase and keeps at most 20 allow-listed URLs.
// Only cancellation of ctx is an error.
func (d *Discovery) Discover(ctx context.Context, query string, phrases []string) (DiscoveryResult, error) {
	pages := fetchAll(ctx, d.concurrency, phrases, d.search)
	if err := ctx.Err(); err != nil {
		return DiscoveryResult{}, fmt.Errorf("discover: %w", err)
	}

	var res DiscoveryResult
	for i, page := range pages {
		if page.err != nil {
			log.Printf("Discovery: search failed for %q: %v", phrases[i], page.err)
			if len(res.URLs) == 0 {
				res.URLs = append(res.URLs, d.FallbackURLs(identity.Location(phrases[i], identity.DefaultLocation))...)
				res.Degraded = true
			}
			continue
		}

		for _, href := range page.value {
			if len(res.URLs) >= maxDiscoveredURLs {
				break
			}
			if d.allowed(href) {
				res.URLs = append(res.URLs, href)
			} else {
				logging.Debugf("Discovery: dropping off-list result %s", href)
			}
		}
	}

	if len(res.URLs) == 0 {
		log.Printf("Discovery: no allow-listed results for %q, using direct site searches", query)
		res.URLs = d.FallbackURLs(identity.Location(query, identity.DefaultLocation))
		res.Degraded = true
	}
	return res, nil
}

// search fetches one results page and returns its resolved anchor targets.
func (d *Discovery) search(ctx context.Context, phrase string) ([]string, error) {
	u, err := url.Parse(d.searchURL)
	if err != nil {
		return nil, fmt.Errorf("parse search url: %w", err)
	}
	q := u.Query()
	q.Set("q", phrase+searchSuffix)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httputil.SetSearchHeaders(req)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("search status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}
	return ResultLinks(doc, u), nil
}

// ResultLinks returns the absolute result targets of a search page in
// document order.
func ResultLinks(doc *goquery.Document, base *url.URL) []string {
	anchors := doc.Find(resultAnchorSelector)
	if anchors.Length() == 0 {
		anchors = doc.Find(resultFallbackSelector)
	}

	var links []string
	anchors.Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		target, err := base.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		links = append(links, unwrapRedirect(target).String())
	})
	return links
}

// unwrapRedirect follows "/l/?uddg=<target>" style click-tracking links.
func unwrapRedirect(u *url.URL) *url.URL {
	wrapped := u.Query().Get("uddg")
	if wrapped == "" {
		return u
	}
	target, err := url.Parse(wrapped)
	if err != nil || target.Host == "" {
		return u
	}
	return target
}

func (d *Discovery) allowed(raw string) bool {
	host := identity.Host(raw)
	if host == "" {
		return false
	}
	for _, site := range d.sites {
		if strings.Contains(host, site.Host) {
			return true
		}
	}
	return false
}

// FallbackURLs builds direct search URLs for every site with a fallback
// template, in site order.
func (d *Discovery) FallbackURLs(location string) []string {
	escaped := url.PathEscape(location)
	var urls []string
	for _, site := range d.sites {
		if site.FallbackURL == "" {
			continue
		}
		urls = append(urls, strings.ReplaceAll(site.FallbackURL, "{location}", escaped))
	}
	return urls
}

// DedupURLs keeps the first occurrence of each normalized URL, up to 10.
func DedupURLs(urls []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, u := range urls {
		if len(out) >= maxScrapeURLs {
			break
		}
		key := identity.NormalizeURL(u)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, u)
	}
	return out
}
