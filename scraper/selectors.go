package scraper

// selectorTable drives listing extraction. Containers are scanned in order;
// within a container the first selector yielding non-empty text wins for each
// field. New site layouts are added here, not in control flow.
type selectorTable struct {
	Containers []string
	Title      []string
	Price      []string
	Link       string
}

var listingSelectors = selectorTable{
	Containers: []string{
		`[data-testid*="property"]`,
		`[data-testid*="listing"]`,
		`.property-card`,
		`.property-tile`,
		`.listing-card`,
		`.search-result`,
		`.PropertyCard`,
		`.srp-item`,
	},
	Title: []string{
		`[data-testid*="address"]`,
		`[data-testid*="property-address"]`,
		`.property-address`,
		`.property-address-full`,
		`h2 a`,
		`h3 a`,
		`.address`,
		`a[data-rf-test-id="property-link"]`,
	},
	Price: []string{
		`[data-testid*="price"]`,
		`.property-price`,
		`.price`,
		`.PropertyCard__price`,
		`.srp-item-price`,
	},
	Link: `a[href]`,
}

// Search result anchors on the HTML search surface.
const (
	resultAnchorSelector   = "a.result__a"
	resultFallbackSelector = ".result a[href]"
)
