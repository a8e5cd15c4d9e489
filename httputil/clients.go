package httputil

import (
	"net/http"
	"net/url"
	"time"

	"deal_scout/config"
)

const (
	UserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	AcceptHTML   = "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8"
	AcceptLang   = "en-US,en;q=0.9"
	searchAccept = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
)

type Clients struct {
	Search *http.Client // web search surface
	Scrape *http.Client // listing hosts, proxied when configured
	Model  *http.Client // generative model API
	Voice  *http.Client // text-to-speech collaborator
}

func NewClients(cfg *config.Config) *Clients {
	scrapeTransport := http.DefaultTransport
	if cfg.Proxy.URL != "" {
		if proxyURL, err := url.Parse(cfg.Proxy.URL); err == nil {
			t := http.DefaultTransport.(*http.Transport).Clone()
			t.Proxy = http.ProxyURL(proxyURL)
			scrapeTransport = t
		}
	}

	return &Clients{
		Search: &http.Client{Timeout: cfg.Search.Timeout},
		Scrape: &http.Client{Timeout: cfg.Scraper.Timeout, Transport: scrapeTransport},
		Model:  &http.Client{Timeout: cfg.LLM.Timeout},
		Voice:  &http.Client{Timeout: 30 * time.Second},
	}
}

// SetBrowserHeaders makes a request look like it came from a desktop browser.
func SetBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", AcceptHTML)
	req.Header.Set("Accept-Language", AcceptLang)
}

// SetSearchHeaders is the lighter header set used against the search surface.
func SetSearchHeaders(req *http.Request) {
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", searchAccept)
}
