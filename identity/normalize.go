package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"regexp"
	"strings"

	"deal_scout/models"
)

var (
	streetReplacements = map[string]string{
		"street":    "st",
		"avenue":    "ave",
		"drive":     "dr",
		"road":      "rd",
		"boulevard": "blvd",
		"lane":      "ln",
		"court":     "ct",
		"place":     "pl",
		"circle":    "cir",
		"terrace":   "ter",
		"highway":   "hwy",
		"parkway":   "pkwy",
		"square":    "sq",
		"north":     "n",
		"south":     "s",
		"east":      "e",
		"west":      "w",
		"northeast": "ne",
		"northwest": "nw",
		"southeast": "se",
		"southwest": "sw",
		"apartment": "apt",
		"suite":     "ste",
		"floor":     "fl",
		"building":  "bldg",
	}
	multiSpaceRegex = regexp.MustCompile(`\s+`)
	nonAlnumRegex   = regexp.MustCompile(`[^a-z0-9\s]`)
	nonDigitRegex   = regexp.MustCompile(`[^0-9]`)

	// "in Austin", "near Miami Beach, FL" ...
	locationRegex = regexp.MustCompile(`(?i)\b(?:in|at|near)\s+([A-Za-z\s,]+)`)
)

// DefaultLocation is used by query expansion and URL synthesis when a query
// names no place.
const DefaultLocation = "Los Angeles"

// Location pulls the place name following "in", "at" or "near" out of free
// text. It returns fallback when nothing usable follows.
func Location(text, fallback string) string {
	m := locationRegex.FindStringSubmatch(text)
	if len(m) < 2 {
		return fallback
	}
	loc := strings.Trim(multiSpaceRegex.ReplaceAllString(m[1], " "), " ,")
	if loc == "" {
		return fallback
	}
	return loc
}

// DigitsOnly strips everything but 0-9.
func DigitsOnly(s string) string {
	return nonDigitRegex.ReplaceAllString(s, "")
}

// NormalizeTitle is the case-insensitive comparison key for listing titles.
func NormalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(multiSpaceRegex.ReplaceAllString(title, " ")))
}

// NormalizeURL canonicalizes an absolute URL for set membership: lowercase
// scheme and host, default ports and fragments dropped. Unparseable input is
// returned trimmed.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		host = host + ":" + port
	}
	u.Host = host
	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}

// NormalizeAddress lowercases, strips punctuation and abbreviates street
// vocabulary word by word.
func NormalizeAddress(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	addr = nonAlnumRegex.ReplaceAllString(addr, " ")
	words := strings.Fields(addr)
	for i, w := range words {
		if abbrev, ok := streetReplacements[w]; ok {
			words[i] = abbrev
		}
	}
	return strings.Join(words, " ")
}

// Fingerprint identifies a listing across runs for the deal archive.
func Fingerprint(c *models.ListingCandidate) string {
	input := NormalizeAddress(c.Address) + "|" + NormalizeURL(c.ResolvedURL) + "|" + c.PriceText
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:16])
}

// Host returns the lowercase hostname of raw, or "" if it has none.
func Host(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
