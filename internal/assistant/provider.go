package assistant

import (
	"context"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/nilcar/leads-console/internal/lead"
)

// Responder answers internal chat questions on the backend side.
type Responder interface {
	Answer(ctx context.Context, question string) (string, error)
}

// LeadCounter is the read side of the lead store the responders consult.
type LeadCounter interface {
	ListLeads(ctx context.Context, q lead.Query) (*lead.Page, error)
}

// ProviderConfig selects and configures a responder.
type ProviderConfig struct {
	Provider string `mapstructure:"provider"` // "local" | "ollama" | "openrouter"
	Endpoint string `mapstructure:"endpoint"`
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
}

// SystemPrompt frames remote models as the dealership's internal assistant.
const SystemPrompt = "Você é o assistente interno de uma concessionária de veículos. " +
	"Responda em português, de forma curta e objetiva, usando apenas os números de leads fornecidos."

// Build constructs the responder named by cfg. An empty provider is the local one.
func Build(cfg ProviderConfig, leads LeadCounter, logger *log.Logger) (Responder, error) {
	switch normalize(cfg.Provider) {
	case "local":
		return NewLocal(leads, logger), nil
	case "ollama":
		return NewOllama(cfg.Endpoint, cfg.Model, leads, logger)
	case "openrouter":
		return NewOpenRouter(cfg.Endpoint, cfg.Model, cfg.APIKey, leads, logger)
	default:
		return nil, fmt.Errorf("unknown assistant provider: %s", cfg.Provider)
	}
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "local", "stub", "local_stub":
		return "local"
	}
	return s
}

// Snapshot is the lead counts a responder reasons over.
type Snapshot struct {
	Total         int64
	ByStatus      map[int]int64
	ByTemperature map[int]int64
}

// TakeSnapshot counts leads per status and temperature with one page-size-1
// query per code.
func TakeSnapshot(ctx context.Context, leads LeadCounter) (Snapshot, error) {
	snap := Snapshot{ByStatus: map[int]int64{}, ByTemperature: map[int]int64{}}
	count := func(f lead.Filters) (int64, error) {
		page, err := leads.ListLeads(ctx, lead.Query{Filters: f, Sort: lead.DefaultSort, Size: 1})
		if err != nil {
			return 0, err
		}
		if page.Page == nil {
			return int64(len(page.Content)), nil
		}
		return page.Page.TotalElements, nil
	}

	total, err := count(lead.Filters{})
	if err != nil {
		return snap, fmt.Errorf("count leads: %w", err)
	}
	snap.Total = total
	for _, e := range lead.Status.Entries() {
		n, err := count(lead.Filters{Status: e.Code})
		if err != nil {
			return snap, fmt.Errorf("count status %s: %w", e.Symbol, err)
		}
		snap.ByStatus[e.Code] = n
	}
	for _, e := range lead.Temperature.Entries() {
		n, err := count(lead.Filters{Temperature: e.Code})
		if err != nil {
			return snap, fmt.Errorf("count temperature %s: %w", e.Symbol, err)
		}
		snap.ByTemperature[e.Code] = n
	}
	return snap, nil
}

// Describe renders the snapshot as context lines for a model prompt.
func (s Snapshot) Describe() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Total de leads: %d\n", s.Total)
	for _, e := range lead.Status.Entries() {
		fmt.Fprintf(&sb, "Status %s: %d\n", e.Label, s.ByStatus[e.Code])
	}
	for _, e := range lead.Temperature.Entries() {
		fmt.Fprintf(&sb, "Temperatura %s: %d\n", e.Label, s.ByTemperature[e.Code])
	}
	return sb.String()
}

// truncateBody cuts s to at most max bytes without splitting a rune.
func truncateBody(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max] + "..."
}
