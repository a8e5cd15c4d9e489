package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"deal_scout/llm"
	"deal_scout/models"
)

func TestReply(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		return req.Temperature == 1 && req.MaxTokens == maxReplyTokens && !req.JSON
	})).Return("  Hello! How can I help with real estate today?\n", nil)

	text, err := NewResponder(gen).Reply(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello! How can I help with real estate today?", text)
}

func TestReply_Error(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("down"))

	_, err := NewResponder(gen).Reply(context.Background(), "hi")
	assert.Error(t, err)
}

func TestSummaryPrompt(t *testing.T) {
	props := []models.AnalyzedProperty{
		{ListingCandidate: models.ListingCandidate{Title: "12 Elm St", PriceText: "300000"}, Profit: 42000.4},
		{ListingCandidate: models.ListingCandidate{Title: "9 Oak Ave", PriceText: "250000"}, Profit: 18000},
	}

	prompt := SummaryPrompt("houses in Austin", props)
	assert.Contains(t, prompt, "I found 2 properties that meet the $15,000 profit requirement")
	assert.Contains(t, prompt, "1. 12 Elm St - Price: $300000 - Estimated Profit: $42,000")
	assert.Contains(t, prompt, "2. 9 Oak Ave - Price: $250000 - Estimated Profit: $18,000")
}

func TestSummarize(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Generate", mock.Anything, promptContains("Estimated Profit")).Return("Found two good ones.", nil)

	text, err := NewResponder(gen).Summarize(context.Background(), "q", []models.AnalyzedProperty{
		{ListingCandidate: models.ListingCandidate{Title: "A", PriceText: "1"}, Profit: 20000},
	})
	require.NoError(t, err)
	assert.Equal(t, "Found two good ones.", text)
}
