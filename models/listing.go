package models

// ListingCandidate is one listing pulled out of a source page.
type ListingCandidate struct {
	Title       string `json:"title"`
	PriceText   string `json:"price"` // digits only
	Address     string `json:"address"`
	SourceURL   string `json:"sourceUrl"`
	ResolvedURL string `json:"url"`
}

// AnalyzedProperty is a candidate merged with its deal economics.
type AnalyzedProperty struct {
	ListingCandidate

	PurchasePrice   float64  `json:"purchasePrice"`
	ARV             float64  `json:"arv"`
	Repairs         float64  `json:"repairs"`
	MOV             float64  `json:"mov"`
	AdditionalCosts float64  `json:"additionalCosts"`
	Profit          float64  `json:"profit"`
	ModelProfit     *float64 `json:"modelProfit,omitempty"`
	Analysis        string   `json:"analysis"`
	Estimated       bool     `json:"estimated"`
}

// MinProfit is the result-set threshold.
const MinProfit = 15000

// ComputeProfit is the single profit formula used everywhere.
func ComputeProfit(arv, purchasePrice, repairs, mov, additionalCosts float64) float64 {
	return arv - purchasePrice - repairs - mov - additionalCosts
}
