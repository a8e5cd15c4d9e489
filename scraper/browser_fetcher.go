package scraper

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"deal_scout/httputil"
)

// BrowserFetcher renders JavaScript-heavy listing pages in headless Chromium.
// The browser is launched on first use and shared across fetches.
type BrowserFetcher struct {
	timeout time.Duration

	mu          sync.Mutex
	pw          *playwright.Playwright
	browser     playwright.Browser
	initialized bool
}

func NewBrowserFetcher(timeout time.Duration) *BrowserFetcher {
	return &BrowserFetcher{timeout: timeout}
}

func (f *BrowserFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := f.ensureBrowser(); err != nil {
		return nil, err
	}

	bctx, err := f.browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String(httputil.UserAgent),
		Locale:    playwright.String("en-US"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create context: %w", err)
	}
	defer bctx.Close()

	page, err := bctx.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	// Navigation is not context-aware; close the page if the run is abandoned.
	stop := context.AfterFunc(ctx, func() { page.Close() })
	defer stop()

	if _, err := page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(float64(f.timeout.Milliseconds())),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return nil, fmt.Errorf("goto %s: %w", url, err)
	}

	handleConsent(page)

	content, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	if trigger := detectBlock(content); trigger != "" {
		return nil, fmt.Errorf("blocked by %s (%q)", url, trigger)
	}
	return []byte(content), nil
}

func (f *BrowserFetcher) ensureBrowser() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.initialized {
		return nil
	}

	var err error
	f.pw, err = playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	f.browser, err = f.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		f.pw.Stop()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	log.Println("Browser: chromium launched")
	f.initialized = true
	return nil
}

func (f *BrowserFetcher) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser != nil {
		f.browser.Close()
	}
	if f.pw != nil {
		f.pw.Stop()
	}
	f.initialized = false
}

// detectBlock returns the bot-wall phrase found in content, or "".
func detectBlock(content string) string {
	triggers := []string{
		"Request unsuccessful. Incapsula",
		"Incapsula incident ID",
		"Access Denied",
		"This request was blocked",
		"Press & Hold to confirm you are",
		"px-captcha",
	}
	for _, t := range triggers {
		if strings.Contains(content, t) {
			return t
		}
	}
	return ""
}

func handleConsent(page playwright.Page) {
	consentSelectors := []string{
		"button:has-text('Accept')",
		"button:has-text('Accept All')",
		"button:has-text('I Accept')",
		"button[id*='accept']",
		"button[class*='consent']",
		"#onetrust-accept-btn-handler",
	}

	for _, selector := range consentSelectors {
		btn := page.Locator(selector).First()
		if visible, _ := btn.IsVisible(); visible {
			log.Printf("Browser: clicking consent button %s", selector)
			btn.Click()
			page.WaitForTimeout(1000)
			break
		}
	}
}
