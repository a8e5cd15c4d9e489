package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"deal_scout/identity"
	"deal_scout/llm"
)

const expanderSystem = "You are a helpful assistant that generates search queries. Always respond with valid JSON only."

const expanderPrompt = `Generate 8-10 different search query variations for finding properties based on this request: %q

Create variations like:
- [property type] in [location]
- [property type] for sale in [location]
- [property type] listings [location]
- etc.

Return a JSON object with a "queries" array: {"queries": ["query1", "query2", ...]}`

var fallbackTemplates = []string{
	"condos in %s",
	"apartments in %s",
	"houses for sale in %s",
	"townhouses in %s",
	"luxury homes in %s",
	"investment properties in %s",
	"real estate listings in %s",
	"properties for sale in %s",
}

// Expansion is the ordered phrase list for one query. Degraded is set when
// the templated fallback was used.
type Expansion struct {
	Phrases  []string
	Degraded bool
}

type QueryExpander struct {
	gen llm.Generator
}

func NewQueryExpander(gen llm.Generator) *QueryExpander {
	return &QueryExpander{gen: gen}
}

// Expand never fails: any model problem yields FallbackPhrases.
func (e *QueryExpander) Expand(ctx context.Context, query string) Expansion {
	phrases, err := e.generate(ctx, query)
	if err != nil {
		log.Printf("Expander: falling back to templates: %v", err)
		return Expansion{Phrases: FallbackPhrases(query), Degraded: true}
	}
	return Expansion{Phrases: phrases}
}

func (e *QueryExpander) generate(ctx context.Context, query string) ([]string, error) {
	text, err := e.gen.Generate(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: expanderSystem},
			{Role: llm.RoleUser, Content: fmt.Sprintf(expanderPrompt, query)},
		},
		Temperature: 1,
		JSON:        true,
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Queries []string `json:"queries"`
	}
	if err := llm.DecodeJSON(text, &payload, "queries"); err != nil {
		return nil, err
	}

	var phrases []string
	for _, q := range payload.Queries {
		if q = strings.TrimSpace(q); q != "" {
			phrases = append(phrases, q)
		}
	}
	if len(phrases) == 0 {
		return nil, fmt.Errorf("%w: no queries", llm.ErrMalformed)
	}
	return phrases, nil
}

// FallbackPhrases is deterministic for a given location.
func FallbackPhrases(query string) []string {
	location := identity.Location(query, identity.DefaultLocation)
	phrases := make([]string, len(fallbackTemplates))
	for i, tmpl := range fallbackTemplates {
		phrases[i] = fmt.Sprintf(tmpl, location)
	}
	return phrases
}
