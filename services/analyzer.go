package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"deal_scout/identity"
	"deal_scout/llm"
	"deal_scout/models"
)

const (
	movRate        = 0.03
	closingRate    = 0.04
	fallbackARV    = 1.2
	fallbackRepair = 0.1

	// EstimatedNote marks heuristic (non-model) analyses.
	EstimatedNote = "Estimated calculation"
)

const analystSystem = "You are a real estate investment analyst. Always respond with valid JSON only, no markdown formatting."

const analystPrompt = `You are a real estate investment expert. Analyze this property:

Property Details: %s
Listed Price: $%s
Location: %s

For a property investment analysis, provide realistic estimates:
1. ARV (After Repair Value) - What the property could sell for after renovations
2. Estimated Repair Costs - Typical renovation costs needed
3. MOV (Market Operating Value) - 3%% of ARV (standard real estate agent commission)
4. Additional Costs - Closing costs (2-3%% of purchase), holding costs, etc.
5. Total Profit Calculation - ARV minus (Purchase Price + Repairs + MOV + Additional Costs)

Use realistic market data. For properties in good condition, repairs might be 5-10%% of price.
For fixer-uppers, repairs could be 20-40%% of price.
The buyer's original request was: %q

Return ONLY valid JSON (no markdown, no code blocks):
{
  "arv": number (estimated after repair value),
  "repairs": number (estimated repair costs),
  "mov": number (3%% of ARV),
  "additionalCosts": number (closing, holding, etc - roughly 3-5%% of purchase),
  "profit": number (calculated profit: arv - price - repairs - mov - additionalCosts),
  "analysis": "One sentence explaining the investment potential"
}`

var printer = message.NewPrinter(language.English)

// DealAnalyzer estimates flip economics for one listing.
type DealAnalyzer struct {
	gen llm.Generator
}

func NewDealAnalyzer(gen llm.Generator) *DealAnalyzer {
	return &DealAnalyzer{gen: gen}
}

// Analyze always returns a property. Degraded reports that the deterministic
// fallback was used.
func (a *DealAnalyzer) Analyze(ctx context.Context, c models.ListingCandidate, query string) (prop models.AnalyzedProperty, degraded bool) {
	price := PurchasePrice(c.PriceText)

	prop, err := a.analyzeWithModel(ctx, c, price, query)
	if err != nil {
		log.Printf("Analyzer: fallback for %q: %v", c.Title, err)
		return FallbackAnalysis(c), true
	}
	return prop, false
}

func (a *DealAnalyzer) analyzeWithModel(ctx context.Context, c models.ListingCandidate, price float64, query string) (models.AnalyzedProperty, error) {
	address := c.Address
	if address == "" {
		address = "Unknown"
	}
	prompt := fmt.Sprintf(analystPrompt, c.Title, printer.Sprintf("%d", int64(price)), address, query)

	text, err := a.gen.Generate(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: analystSystem},
			{Role: llm.RoleUser, Content: prompt},
		},
		Temperature: 0.7,
		JSON:        true,
	})
	if err != nil {
		return models.AnalyzedProperty{}, err
	}

	var fields map[string]json.RawMessage
	if err := llm.DecodeJSON(text, &fields, "arv", "repairs"); err != nil {
		return models.AnalyzedProperty{}, err
	}

	arv, _ := coerce(fields["arv"])
	repairs, _ := coerce(fields["repairs"])
	mov, ok := coerce(fields["mov"])
	if !ok {
		mov = arv * movRate
	}
	additional, ok := coerce(fields["additionalCosts"])
	if !ok {
		additional = price * closingRate
	}

	prop := models.AnalyzedProperty{
		ListingCandidate: c,
		PurchasePrice:    price,
		ARV:              arv,
		Repairs:          repairs,
		MOV:              mov,
		AdditionalCosts:  additional,
		Profit:           models.ComputeProfit(arv, price, repairs, mov, additional),
	}
	if p, ok := coerce(fields["profit"]); ok {
		prop.ModelProfit = &p
	}
	if raw, ok := fields["analysis"]; ok {
		var note string
		if json.Unmarshal(raw, &note) == nil {
			prop.Analysis = note
		}
	}
	return prop, nil
}

// FallbackAnalysis is the deterministic estimate used when the model is
// unavailable or unparseable.
func FallbackAnalysis(c models.ListingCandidate) models.AnalyzedProperty {
	price := PurchasePrice(c.PriceText)
	arv := price * fallbackARV
	repairs := price * fallbackRepair
	mov := arv * movRate
	additional := price * closingRate

	return models.AnalyzedProperty{
		ListingCandidate: c,
		PurchasePrice:    price,
		ARV:              arv,
		Repairs:          repairs,
		MOV:              mov,
		AdditionalCosts:  additional,
		Profit:           models.ComputeProfit(arv, price, repairs, mov, additional),
		Analysis:         EstimatedNote,
		Estimated:        true,
	}
}

// PurchasePrice reads the digits of priceText; no digits means 0.
func PurchasePrice(priceText string) float64 {
	digits := identity.DigitsOnly(priceText)
	if digits == "" {
		return 0
	}
	v, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return 0
	}
	return v
}

// coerce accepts a JSON number as-is. Anything else is read as the leading
// integer of its text; a zero or missing integer counts as absent.
func coerce(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}

	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		return num, true
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return 0, false
	}
	n, ok := leadingInt(text)
	if !ok || n == 0 {
		return 0, false
	}
	return float64(n), true
}

// leadingInt parses an optional sign and the digits that follow leading
// whitespace, ignoring whatever comes after ("12000 USD" -> 12000).
func leadingInt(s string) (int64, bool) {
	s = strings.TrimLeft(s, " \t\n\r")
	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}

	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}

	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0, false
	}
	if neg {
		n = -n
	}
	return n, true
}
