package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"deal_scout/config"
	"deal_scout/httputil"
	"deal_scout/identity"
)

const maxPageBytes = 8 << 20

// Fetcher returns the HTML of one page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher is a plain GET with browser-like headers.
type HTTPFetcher struct {
	client *http.Client
}

func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	return &HTTPFetcher{client: client}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httputil.SetBrowserHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
}

// FetcherSet routes a URL to the fetcher its site is configured with.
type FetcherSet struct {
	Default Fetcher
	Browser Fetcher // nil when BROWSER_ENABLED is off
	sites   []*config.SiteConfig
}

func NewFetcherSet(sites []*config.SiteConfig, def, browser Fetcher) *FetcherSet {
	return &FetcherSet{Default: def, Browser: browser, sites: sites}
}

func (s *FetcherSet) For(url string) Fetcher {
	if s.Browser == nil {
		return s.Default
	}
	host := identity.Host(url)
	for _, site := range s.sites {
		if site.Fetcher == "browser" && strings.Contains(host, site.Host) {
			return s.Browser
		}
	}
	return s.Default
}

func (s *FetcherSet) Fetch(ctx context.Context, url string) ([]byte, error) {
	return s.For(url).Fetch(ctx, url)
}
