package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/ksattari/souschef/config"
	"github.com/ksattari/souschef/internal/gateway"
)

const gatewayName = "llm"

// OpenAIProvider implements Provider against the OpenAI chat-completions API.
type OpenAIProvider struct {
	config  config.LLMProvider
	routing config.LLMRoutingConfig
	client  *gateway.HTTPClient
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(cfg config.LLMProvider, routing config.LLMRoutingConfig) *OpenAIProvider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIProvider{
		config:  cfg,
		routing: routing,
		client:  gateway.NewHTTPClient(timeout, cfg.MaxRetries, 500*time.Millisecond),
	}
}

// NewProvider builds the configured LLM provider. Only the openai type is
// wired today; the indirection keeps call sites off the concrete type.
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	for name, p := range cfg.Providers {
		if p.Type == "openai" || name == "openai" {
			return NewOpenAIProvider(p, cfg.Routing), nil
		}
	}
	return nil, errors.New("no openai provider configured")
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete sends one chat-completion request for the given stage.
func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (string, Usage, error) {
	apiKey := p.config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return "", Usage{}, gateway.NewError(gatewayName, gateway.KindUnauthorized, errors.New("OpenAI API key not configured"))
	}

	modelKey := p.routing.ModelFor(string(req.Stage))
	m, ok := p.config.Models[modelKey]
	if !ok {
		return "", Usage{}, fmt.Errorf("model %q not configured for stage %s", modelKey, req.Stage)
	}
	apiModel := m.APIName
	if apiModel == "" {
		apiModel = m.Name
	}

	temperature := m.Temperature
	if req.Temperature != 0 {
		temperature = req.Temperature
	}
	maxTokens := m.MaxTokens
	if req.MaxTokens != 0 {
		maxTokens = req.MaxTokens
	}

	var messages []chatMessage
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body := chatRequest{
		Model:       apiModel,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
	if req.JSONMode {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	baseURL := p.config.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	headers := map[string]string{
		"Authorization": "Bearer " + apiKey,
	}

	var out chatResponse
	if err := p.client.DoJSON(ctx, gatewayName, http.MethodPost, baseURL+"/chat/completions", headers, body, &out); err != nil {
		return "", Usage{}, err
	}
	if len(out.Choices) == 0 {
		return "", Usage{}, gateway.NewError(gatewayName, gateway.KindMalformedResponse, errors.New("no choices in response"))
	}

	usage := Usage{
		Model:            modelKey,
		PromptTokens:     out.Usage.PromptTokens,
		CompletionTokens: out.Usage.CompletionTokens,
		TotalTokens:      out.Usage.TotalTokens,
		Cost:             p.CalculateCost(out.Usage.PromptTokens, out.Usage.CompletionTokens, modelKey),
	}
	return out.Choices[0].Message.Content, usage, nil
}

// CalculateCost calculates the cost for a given number of tokens
func (p *OpenAIProvider) CalculateCost(inputTokens, outputTokens int, model string) float64 {
	m, ok := p.config.Models[model]
	if !ok {
		return 0.0
	}
	inputCost := float64(inputTokens) / 1000.0 * m.CostPer1K
	outputCost := float64(outputTokens) / 1000.0 * m.CostPer1KOutput
	return inputCost + outputCost
}
