package models

type Category string

const (
	CategorySearch       Category = "search"
	CategoryConversation Category = "conversation"
)

// IntentResult is the classifier's verdict for one query.
type IntentResult struct {
	IsPropertySearch bool     `json:"isPropertySearch"`
	Category         Category `json:"type"`
	Reasoning        string   `json:"reasoning"`
}

// IsConversation mirrors the routing rule: only an explicit non-search
// conversation verdict skips the property pipeline.
func (r IntentResult) IsConversation() bool {
	return !r.IsPropertySearch && r.Category == CategoryConversation
}
