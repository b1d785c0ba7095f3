package assistant

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/nilcar/leads-console/internal/lead"
)

// Local answers from keyword heuristics over the current lead counts.
type Local struct {
	leads  LeadCounter
	logger *log.Logger
}

func NewLocal(leads LeadCounter, logger *log.Logger) *Local {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Local{leads: leads, logger: logger}
}

// Answer implements Responder.
func (l *Local) Answer(ctx context.Context, question string) (string, error) {
	q := fold(question)
	if q == "" {
		return "", ErrEmpty
	}

	if !mentionsLeads(q) {
		return "Posso ajudar com números de leads: total, por status (aguardando contato, " +
			"venda realizada, encerrado) ou por temperatura (fria, morna, quente, super lead).", nil
	}

	snap, err := TakeSnapshot(ctx, l.leads)
	if err != nil {
		return "", err
	}

	for _, e := range lead.Status.Entries() {
		if strings.Contains(q, fold(e.Label)) || strings.Contains(q, fold(e.Symbol)) {
			return fmt.Sprintf("Há %d leads com status %q.", snap.ByStatus[e.Code], e.Label), nil
		}
	}
	for _, e := range lead.Temperature.Entries() {
		if strings.Contains(q, fold(e.Label)) || strings.Contains(q, fold(e.Symbol)) {
			return fmt.Sprintf("Há %d leads com temperatura %q.", snap.ByTemperature[e.Code], e.Label), nil
		}
	}
	if strings.Contains(q, "status") {
		var parts []string
		for _, e := range lead.Status.Entries() {
			parts = append(parts, fmt.Sprintf("%s: %d", e.Label, snap.ByStatus[e.Code]))
		}
		return "Leads por status: " + strings.Join(parts, "; ") + ".", nil
	}
	if strings.Contains(q, "temperatura") {
		var parts []string
		for _, e := range lead.Temperature.Entries() {
			parts = append(parts, fmt.Sprintf("%s: %d", e.Label, snap.ByTemperature[e.Code]))
		}
		return "Leads por temperatura: " + strings.Join(parts, "; ") + ".", nil
	}
	return fmt.Sprintf("Há %d leads cadastrados, %d aguardando contato.",
		snap.Total, snap.ByStatus[statusCode("WAITING_CONTACT")]), nil
}

func mentionsLeads(q string) bool {
	for _, kw := range []string{"lead", "status", "temperatura", "venda", "contato", "encerrad", "quente", "fria", "morna"} {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

func statusCode(symbol string) int {
	code, _ := lead.Status.CodeOf(symbol)
	return code
}

// fold lower-cases and strips the Portuguese accents so "Não" matches "nao".
func fold(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return accentFolder.Replace(strings.ReplaceAll(s, "_", " "))
}

var accentFolder = strings.NewReplacer(
	"á", "a", "à", "a", "â", "a", "ã", "a",
	"é", "e", "ê", "e",
	"í", "i",
	"ó", "o", "ô", "o", "õ", "o",
	"ú", "u", "ü", "u",
	"ç", "c",
)
