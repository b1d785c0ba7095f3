package ingest

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nilcar/leads-console/internal/lead"
)

// fieldAliases maps the Portuguese and legacy names portals export onto the
// lead wire names.
var fieldAliases = map[string]string{
	"nome":          "name",
	"telefone":      "phone",
	"phoneNumber":   "phone",
	"celular":       "phone",
	"nascimento":    "birthday",
	"dataEnvio":     "sendDate",
	"send_date":     "sendDate",
	"mensagem":      "message",
	"assunto":       "subject",
	"temperatura":   "temperature",
	"veiculo":       "vehicle",
	"placa":         "licensePlate",
	"license_plate": "licensePlate",
}

// Parser turns raw lead records into validated leads.
type Parser struct {
	now func() time.Time
}

func NewParser() *Parser {
	return &Parser{now: time.Now}
}

// ParseLead decodes one record. Codes may be integers or symbolic names.
// A missing status means "waiting for contact"; a missing send date is now.
func (p *Parser) ParseLead(raw []byte) (lead.Lead, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return lead.Lead{}, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	for alias, name := range fieldAliases {
		v, ok := fields[alias]
		if !ok {
			continue
		}
		if _, taken := fields[name]; !taken {
			fields[name] = v
		}
		delete(fields, alias)
	}
	normalized, err := json.Marshal(fields)
	if err != nil {
		return lead.Lead{}, fmt.Errorf("failed to normalize record: %w", err)
	}

	var l lead.Lead
	if err := json.Unmarshal(normalized, &l); err != nil {
		return lead.Lead{}, err
	}
	return p.normalize(l)
}

func (p *Parser) normalize(l lead.Lead) (lead.Lead, error) {
	l.Name = strings.TrimSpace(l.Name)
	if l.Name == "" {
		return lead.Lead{}, fmt.Errorf("lead name is required")
	}
	l.Email = strings.TrimSpace(l.Email)
	l.Phone = strings.TrimSpace(l.Phone)
	l.Vehicle = strings.TrimSpace(l.Vehicle)
	l.LicensePlate = strings.ToUpper(strings.TrimSpace(l.LicensePlate))

	if l.Status == 0 {
		l.Status, _ = lead.Status.CodeOf("WAITING_CONTACT")
	}
	if !lead.Status.Valid(l.Status) {
		return lead.Lead{}, fmt.Errorf("unknown status code %d", l.Status)
	}
	if l.Temperature != 0 && !lead.Temperature.Valid(l.Temperature) {
		return lead.Lead{}, fmt.Errorf("unknown temperature code %d", l.Temperature)
	}
	if l.SendDate.IsZero() {
		l.SendDate = lead.Time{Time: p.now().Truncate(time.Second)}
	}
	return l, nil
}
