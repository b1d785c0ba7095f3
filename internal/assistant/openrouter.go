package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

// OpenRouter answers through OpenRouter's OpenAI-compatible /chat/completions.
type OpenRouter struct {
	endpoint   string
	model      string
	apiKey     string
	leads      LeadCounter
	httpClient *http.Client
	logger     *log.Logger
}

// NewOpenRouter falls back to OPENROUTER_API_KEY when apiKey is empty.
func NewOpenRouter(endpoint, model, apiKey string, leads LeadCounter, logger *log.Logger) (*OpenRouter, error) {
	ep := strings.TrimSpace(endpoint)
	if ep == "" {
		ep = "https://openrouter.ai/api/v1"
	}
	key := strings.TrimSpace(apiKey)
	if key == "" {
		key = strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY"))
	}
	if key == "" {
		return nil, fmt.Errorf("openrouter: api key required (set assistant.api_key or OPENROUTER_API_KEY)")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("openrouter: model is required")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &OpenRouter{
		endpoint:   strings.TrimRight(ep, "/"),
		model:      strings.TrimSpace(model),
		apiKey:     key,
		leads:      leads,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}, nil
}

// Answer implements Responder.
func (o *OpenRouter) Answer(ctx context.Context, question string) (string, error) {
	msgs, err := promptMessages(ctx, o.leads, question)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(struct {
		Model     string        `json:"model"`
		Messages  []chatMessage `json:"messages"`
		MaxTokens int           `json:"max_tokens,omitempty"`
	}{Model: o.model, Messages: msgs, MaxTokens: 400})
	if err != nil {
		return "", fmt.Errorf("openrouter: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("openrouter: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("openrouter: request error: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("openrouter: status %d: %s", resp.StatusCode, truncateBody(string(body), 400))
	}

	var parsed struct {
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
		Usage struct {
			TotalTokens int `json:"total_tokens"`
		} `json:"usage"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error,omitempty"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("openrouter: decode response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("openrouter: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openrouter: empty choices")
	}
	answer := strings.TrimSpace(parsed.Choices[0].Message.Content)
	tokens := parsed.Usage.TotalTokens
	if tokens <= 0 {
		tokens = EstimateTokens(answer)
	}
	o.logger.Printf("openrouter: answered with %d tokens", tokens)
	return answer, nil
}
