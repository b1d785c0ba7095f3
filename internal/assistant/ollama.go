package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// Ollama answers through a local Ollama server's /api/chat.
type Ollama struct {
	endpoint   string
	model      string
	leads      LeadCounter
	httpClient *http.Client
	logger     *log.Logger
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func NewOllama(endpoint, model string, leads LeadCounter, logger *log.Logger) (*Ollama, error) {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = "http://localhost:11434"
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("ollama: model is required")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Ollama{
		endpoint:   strings.TrimRight(endpoint, "/"),
		model:      strings.TrimSpace(model),
		leads:      leads,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}, nil
}

// Answer implements Responder.
func (o *Ollama) Answer(ctx context.Context, question string) (string, error) {
	msgs, err := promptMessages(ctx, o.leads, question)
	if err != nil {
		return "", err
	}

	type thinking struct {
		Type string `json:"type"`
	}
	payload := struct {
		Model    string        `json:"model"`
		Messages []chatMessage `json:"messages"`
		Stream   bool          `json:"stream"`
		Thinking thinking      `json:"thinking"`
	}{Model: o.model, Messages: msgs, Thinking: thinking{Type: "disabled"}}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("ollama: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("ollama: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama: request error: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("ollama: status %d: %s", resp.StatusCode, truncateBody(string(body), 300))
	}

	var parsed struct {
		Message chatMessage `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("ollama: decode response: %w", err)
	}
	answer := stripThinking(parsed.Message.Content)
	if answer == "" {
		return "", fmt.Errorf("ollama: empty answer")
	}
	o.logger.Printf("ollama: answered with ~%d tokens", EstimateTokens(answer))
	return answer, nil
}

// HealthCheck performs a lightweight GET /api/tags.
func (o *Ollama) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.endpoint+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ollama health: status %d: %s", resp.StatusCode, truncateBody(string(body), 200))
	}
	return nil
}

// promptMessages frames the question with the system prompt and current counts.
func promptMessages(ctx context.Context, leads LeadCounter, question string) ([]chatMessage, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmpty
	}
	system := SystemPrompt
	if leads != nil {
		snap, err := TakeSnapshot(ctx, leads)
		if err != nil {
			return nil, err
		}
		system += "\n\n" + snap.Describe()
	}
	return []chatMessage{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: question},
	}, nil
}

var thinkingBlock = regexp.MustCompile(`(?is)<\s*think(?:ing)?\s*>.*?<\s*/\s*think(?:ing)?\s*>`)

// stripThinking removes <think> and <thinking> blocks some models emit.
func stripThinking(s string) string {
	return strings.TrimSpace(thinkingBlock.ReplaceAllString(s, ""))
}
