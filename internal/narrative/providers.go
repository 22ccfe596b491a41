package narrative

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"google.golang.org/genai"
)

const temperature = 0.2

var errEmptyCompletion = errors.New("no text content in response")

// Gemini completes prompts with the Google Gen AI SDK.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini provider. baseURL overrides the API endpoint
// when non-empty.
func NewGemini(ctx context.Context, apiKey, model, baseURL string) (*Gemini, error) {
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) Complete(ctx context.Context, system string, history []Turn, prompt string) (string, error) {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, t := range history {
		role := genai.RoleUser
		if t.Role == RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(t.Text, genai.Role(role)))
	}
	contents = append(contents, genai.NewContentFromText(prompt, genai.RoleUser))

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       genai.Ptr[float32](temperature),
	})
	if err != nil {
		return "", fmt.Errorf("gemini API error: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errEmptyCompletion
	}
	return text, nil
}

// Anthropic completes prompts with the Anthropic Messages API.
type Anthropic struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropic creates an Anthropic provider. Extra request options such as
// option.WithBaseURL may be appended.
func NewAnthropic(apiKey, model string, opts ...option.RequestOption) *Anthropic {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Anthropic{
		client:    anthropic.NewClient(opts...),
		model:     anthropic.Model(model),
		maxTokens: 1024,
	}
}

func (a *Anthropic) Name() string { return "anthropic" }

func (a *Anthropic) Complete(ctx context.Context, system string, history []Turn, prompt string) (string, error) {
	msgs := make([]anthropic.MessageParam, 0, len(history)+1)
	for _, t := range history {
		if t.Role == RoleModel {
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(t.Text)))
		} else {
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(t.Text)))
		}
	}
	msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)))

	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System: []anthropic.TextBlockParam{
			{Type: "text", Text: system},
		},
		Messages:    msgs,
		Temperature: anthropic.Float(temperature),
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}
	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", errEmptyCompletion
}

// Passthrough answers without a model: it returns the profile listing from
// the prompt so the service stays usable when no provider is configured.
type Passthrough struct{}

func (Passthrough) Name() string { return "none" }

func (Passthrough) Complete(_ context.Context, _ string, _ []Turn, prompt string) (string, error) {
	_, listing, ok := strings.Cut(prompt, "Profiles retrieved:\n")
	if !ok {
		return prompt, nil
	}
	listing, _, _ = strings.Cut(listing, "\nQuestion:")
	return strings.TrimSpace(listing), nil
}
