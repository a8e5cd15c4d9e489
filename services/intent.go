package services

import (
	"context"
	"fmt"
	"strings"

	"deal_scout/llm"
	"deal_scout/models"
)

const intentPrompt = `Analyze the following query and determine if it's a property search request or a normal conversation.
Query: %q

Respond in JSON format:
{
  "type": "search" | "conversation",
  "isPropertySearch": true/false,
  "reasoning": "brief explanation"
}`

// IntentClassifier decides whether a query should enter the property pipeline.
type IntentClassifier struct {
	gen llm.Generator
}

func NewIntentClassifier(gen llm.Generator) *IntentClassifier {
	return &IntentClassifier{gen: gen}
}

type intentPayload struct {
	Type             string `json:"type"`
	IsPropertySearch bool   `json:"isPropertySearch"`
	Reasoning        string `json:"reasoning"`
}

// Classify returns an error wrapping ErrClassification when the model call
// fails or its output is not the expected shape.
func (c *IntentClassifier) Classify(ctx context.Context, query string) (*models.IntentResult, error) {
	text, err := c.gen.Generate(ctx, llm.Request{
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: fmt.Sprintf(intentPrompt, query)}},
		Temperature: 0.7,
		JSON:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClassification, err)
	}

	var payload intentPayload
	if err := llm.DecodeJSON(text, &payload, "type", "isPropertySearch"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClassification, err)
	}

	category := models.Category(strings.ToLower(strings.TrimSpace(payload.Type)))
	if category != models.CategorySearch && category != models.CategoryConversation {
		return nil, fmt.Errorf("%w: unknown type %q", ErrClassification, payload.Type)
	}

	return &models.IntentResult{
		IsPropertySearch: payload.IsPropertySearch,
		Category:         category,
		Reasoning:        payload.Reasoning,
	}, nil
}
