package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"deal_scout/config"
)

const (
	RoleSystem = openai.ChatMessageRoleSystem
	RoleUser   = openai.ChatMessageRoleUser
)

// ErrNotConfigured is returned when no API key was provided.
var ErrNotConfigured = errors.New("model API key is not configured")

type Message struct {
	Role    string
	Content string
}

// Request is one role-tagged exchange. JSON asks the provider to constrain
// its output to a JSON object.
type Request struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
	JSON        bool
}

// Generator is the generative text service every model-backed stage talks to.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Client speaks the OpenAI-compatible chat completions protocol (Groq,
// OpenAI, OpenRouter, local gateways).
type Client struct {
	api     *openai.Client
	apiKey  string
	model   string
	timeout time.Duration
}

func NewClient(cfg config.LLMConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	oc.HTTPClient = httpClient

	return &Client{
		api:     openai.NewClientWithConfig(oc),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}
}

func (c *Client) Configured() bool {
	return c.apiKey != ""
}

func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.api.CreateChatCompletion(ctx, chatRequest(c.model, req))
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from model")
	}

	return resp.Choices[0].Message.Content, nil
}

func chatRequest(model string, req Request) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	out := openai.ChatCompletionRequest{
		Model:               model,
		Messages:            msgs,
		Temperature:         float32(req.Temperature),
		MaxCompletionTokens: req.MaxTokens,
	}
	if req.JSON {
		out.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return out
}
