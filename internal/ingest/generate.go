package ingest

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/nilcar/leads-console/internal/lead"
)

var (
	firstNames = []string{"Ana", "Bruno", "Carla", "Diego", "Eduarda", "Felipe", "Gabriela", "Henrique", "Isabela", "João", "Larissa", "Marcos", "Natália", "Otávio", "Paula", "Rafael"}
	lastNames  = []string{"Silva", "Souza", "Oliveira", "Santos", "Pereira", "Lima", "Carvalho", "Ferreira", "Almeida", "Costa"}
	vehicles   = []string{"Fiat Argo 1.0", "VW Polo TSI", "Chevrolet Onix LT", "Hyundai HB20 Comfort", "Toyota Corolla XEi", "Jeep Compass Longitude", "Honda Civic EXL", "Renault Kwid Zen", ""}
	messages   = []string{
		"Tenho interesse no veículo, aceita troca?",
		"Qual o valor à vista?",
		"Gostaria de agendar um test drive.",
		"Vocês financiam em 60 vezes?",
		"",
	}
)

// Generator produces plausible demo leads.
type Generator struct {
	rng *rand.Rand
	now func() time.Time
}

// NewGenerator seeds a generator; a fixed seed gives a reproducible sequence.
func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed)), now: time.Now}
}

// Lead returns one random lead sent within the last 30 days.
func (g *Generator) Lead() lead.Lead {
	first := firstNames[g.rng.Intn(len(firstNames))]
	last := lastNames[g.rng.Intn(len(lastNames))]
	sent := g.now().UTC().Add(-time.Duration(g.rng.Int63n(int64(30 * 24 * time.Hour)))).Truncate(time.Second)
	birthday := time.Date(1960+g.rng.Intn(45), time.Month(1+g.rng.Intn(12)), 1+g.rng.Intn(28), 0, 0, 0, 0, time.UTC)

	l := lead.Lead{
		Name:        first + " " + last,
		Email:       strings.ToLower(asciiFold(first)+"."+asciiFold(last)) + fmt.Sprintf("%d@exemplo.com.br", g.rng.Intn(100)),
		Phone:       fmt.Sprintf("11 9%04d-%04d", g.rng.Intn(10000), g.rng.Intn(10000)),
		CPF:         fmt.Sprintf("%03d.%03d.%03d-%02d", g.rng.Intn(1000), g.rng.Intn(1000), g.rng.Intn(1000), g.rng.Intn(100)),
		Birthday:    lead.Time{Time: birthday},
		SendDate:    lead.Time{Time: sent},
		Message:     messages[g.rng.Intn(len(messages))],
		Subject:     pick(g.rng, lead.Subject),
		Status:      pick(g.rng, lead.Status),
		Temperature: pick(g.rng, lead.Temperature),
		Portal:      pick(g.rng, lead.Portal),
		Vehicle:     vehicles[g.rng.Intn(len(vehicles))],
	}
	if l.Vehicle != "" {
		l.LicensePlate = fmt.Sprintf("%c%c%c%d%c%02d", 'A'+g.rng.Intn(26), 'A'+g.rng.Intn(26), 'A'+g.rng.Intn(26), g.rng.Intn(10), 'A'+g.rng.Intn(26), g.rng.Intn(100))
	}
	return l
}

// Leads returns n random leads.
func (g *Generator) Leads(n int) []lead.Lead {
	out := make([]lead.Lead, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, g.Lead())
	}
	return out
}

func pick(rng *rand.Rand, axis *lead.Axis) int {
	entries := axis.Entries()
	return entries[rng.Intn(len(entries))].Code
}

var asciiFolder = strings.NewReplacer("á", "a", "ã", "a", "â", "a", "é", "e", "ê", "e", "í", "i", "ó", "o", "ô", "o", "ú", "u", "ç", "c", "Á", "A", "É", "E", "Í", "I", "Ó", "O", "Ú", "U")

func asciiFold(s string) string { return asciiFolder.Replace(s) }
