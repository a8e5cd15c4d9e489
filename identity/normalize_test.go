package identity

import (
	"testing"

	"deal_scout/models"
)

func TestLocation(t *testing.T) {
	cases := []struct {
		text     string
		fallback string
		want     string
	}{
		{"condos in Austin under 300k", DefaultLocation, "Austin under"},
		{"houses in Miami", DefaultLocation, "Miami"},
		{"homes NEAR Miami Beach, FL", DefaultLocation, "Miami Beach, FL"},
		{"apartments at Seattle", DefaultLocation, "Seattle"},
		{"cheap duplexes", DefaultLocation, "Los Angeles"},
		{"flat in 90210", "your area", "your area"},
		{"investing tips", "your area", "your area"},
	}
	for _, tc := range cases {
		if got := Location(tc.text, tc.fallback); got != tc.want {
			t.Fatalf("Location(%q): expected %q, got %q", tc.text, tc.want, got)
		}
	}
}

func TestLocation_IgnoresWordFragments(t *testing.T) {
	// "flat" ends in "at" but is not the preposition.
	if got := Location("flat downtown", DefaultLocation); got != DefaultLocation {
		t.Fatalf("expected fallback, got %q", got)
	}
}

func TestDigitsOnly(t *testing.T) {
	if got := DigitsOnly("$1,249,900+"); got != "1249900" {
		t.Fatalf("expected 1249900, got %s", got)
	}
	if got := DigitsOnly("Contact agent"); got != "" {
		t.Fatalf("expected empty, got %s", got)
	}
}

func TestNormalizeTitle(t *testing.T) {
	if NormalizeTitle("  123 Main St\n  Austin, TX ") != NormalizeTitle("123 MAIN ST AUSTIN, tx") {
		t.Fatalf("expected titles to normalize equal")
	}
}

func TestNormalizeURL(t *testing.T) {
	cases := map[string]string{
		"HTTPS://WWW.Zillow.com:443/homes/Austin_rb/#map": "https://www.zillow.com/homes/Austin_rb/",
		"https://redfin.com":                              "https://redfin.com/",
		"http://example.com:8080/a?b=1":                   "http://example.com:8080/a?b=1",
		"not a url":                                       "not a url",
	}
	for in, want := range cases {
		if got := NormalizeURL(in); got != want {
			t.Fatalf("NormalizeURL(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestNormalizeAddress(t *testing.T) {
	got := NormalizeAddress("1200 North Lamar Boulevard, Suite 4")
	if got != "1200 n lamar blvd ste 4" {
		t.Fatalf("unexpected normalization %q", got)
	}
}

func TestFingerprint_StableAcrossFormatting(t *testing.T) {
	a := &models.ListingCandidate{Address: "12 Ocean Drive", ResolvedURL: "https://www.zillow.com/homedetails/1/#x", PriceText: "450000"}
	b := &models.ListingCandidate{Address: "12 ocean dr.", ResolvedURL: "https://WWW.zillow.com/homedetails/1/", PriceText: "450000"}
	if Fingerprint(a) != Fingerprint(b) {
		t.Fatalf("expected equal fingerprints")
	}
	c := *b
	c.PriceText = "460000"
	if Fingerprint(&c) == Fingerprint(b) {
		t.Fatalf("expected price change to alter fingerprint")
	}
}
