package services

import (
	"context"
	"fmt"
	"math"
	"strings"

	"deal_scout/llm"
	"deal_scout/models"
)

const (
	assistantSystem = "You are Jarvis, an advanced AI real estate assistant. Provide helpful, concise responses about real estate."
	summarySystem   = "You are Jarvis, an advanced AI assistant. Be concise, helpful, and natural."
	maxReplyTokens  = 8192
)

// Responder produces the plain-text replies: conversational answers and the
// closing summary of a property search.
type Responder struct {
	gen llm.Generator
}

func NewResponder(gen llm.Generator) *Responder {
	return &Responder{gen: gen}
}

func (r *Responder) Reply(ctx context.Context, query string) (string, error) {
	text, err := r.gen.Generate(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: assistantSystem},
			{Role: llm.RoleUser, Content: query},
		},
		Temperature: 1,
		MaxTokens:   maxReplyTokens,
	})
	if err != nil {
		return "", fmt.Errorf("conversation reply: %w", err)
	}
	return strings.TrimSpace(text), nil
}

func (r *Responder) Summarize(ctx context.Context, query string, props []models.AnalyzedProperty) (string, error) {
	text, err := r.gen.Generate(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: summarySystem},
			{Role: llm.RoleUser, Content: SummaryPrompt(query, props)},
		},
		Temperature: 1,
		MaxTokens:   maxReplyTokens,
	})
	if err != nil {
		return "", fmt.Errorf("summary: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// SummaryPrompt lists one row per property: title, price and profit.
func SummaryPrompt(query string, props []models.AnalyzedProperty) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Based on the property search for %q, I found %d properties that meet the $%s profit requirement.\n\n",
		query, len(props), printer.Sprintf("%d", models.MinProfit))
	b.WriteString("Properties:\n")
	for i, p := range props {
		fmt.Fprintf(&b, "%d. %s - Price: $%s - Estimated Profit: $%s\n",
			i+1, p.Title, p.PriceText, printer.Sprintf("%d", int64(math.Round(p.Profit))))
	}
	b.WriteString("\nProvide a natural, conversational response as Jarvis explaining these findings. Ask if the user wants to open the property links.")
	return b.String()
}
