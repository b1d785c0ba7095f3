package lead

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// UnknownLabel is rendered for codes outside an axis enumeration.
const UnknownLabel = "Desconhecido"

// Entry is one code of a classification axis.
type Entry struct {
	Code   int    `json:"code"`
	Symbol string `json:"symbol"`
	Label  string `json:"label"`
}

// Axis is a closed enumeration of integer codes with labels and symbolic names.
// Axes are built once at package init and never mutated.
type Axis struct {
	name     string
	entries  []Entry
	byCode   map[int]Entry
	bySymbol map[string]Entry
	byLabel  map[string]Entry
}

func newAxis(name string, entries ...Entry) *Axis {
	a := &Axis{
		name:     name,
		byCode:   make(map[int]Entry, len(entries)),
		bySymbol: make(map[string]Entry, len(entries)),
		byLabel:  make(map[string]Entry, len(entries)),
	}
	for _, e := range entries {
		if _, dup := a.byCode[e.Code]; dup {
			panic(fmt.Sprintf("lead: duplicate %s code %d", name, e.Code))
		}
		if _, dup := a.bySymbol[e.Symbol]; dup {
			panic(fmt.Sprintf("lead: duplicate %s symbol %s", name, e.Symbol))
		}
		a.byCode[e.Code] = e
		a.bySymbol[e.Symbol] = e
		a.byLabel[strings.ToLower(e.Label)] = e
		a.entries = append(a.entries, e)
	}
	sort.Slice(a.entries, func(i, j int) bool { return a.entries[i].Code < a.entries[j].Code })
	return a
}

// Name returns the axis name, which is also its query parameter name.
func (a *Axis) Name() string { return a.name }

// Entries returns the defined codes in ascending order.
func (a *Axis) Entries() []Entry {
	out := make([]Entry, len(a.entries))
	copy(out, a.entries)
	return out
}

// Label returns the human-readable label, or UnknownLabel.
func (a *Axis) Label(code int) string {
	if e, ok := a.byCode[code]; ok {
		return e.Label
	}
	return UnknownLabel
}

// Symbol returns the symbolic name for code.
func (a *Axis) Symbol(code int) (string, bool) {
	e, ok := a.byCode[code]
	return e.Symbol, ok
}

// CodeOf resolves a symbolic name back to its code.
func (a *Axis) CodeOf(symbol string) (int, bool) {
	e, ok := a.bySymbol[strings.ToUpper(strings.TrimSpace(symbol))]
	return e.Code, ok
}

// Valid reports whether code belongs to the axis.
func (a *Axis) Valid(code int) bool {
	_, ok := a.byCode[code]
	return ok
}

// Parse accepts an integer code, a symbolic name or a label (case-insensitive).
func (a *Axis) Parse(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty %s value", a.name)
	}
	if n, err := strconv.Atoi(s); err == nil {
		if !a.Valid(n) {
			return 0, fmt.Errorf("unknown %s code %d", a.name, n)
		}
		return n, nil
	}
	if code, ok := a.CodeOf(s); ok {
		return code, nil
	}
	if e, ok := a.byLabel[strings.ToLower(s)]; ok {
		return e.Code, nil
	}
	return 0, fmt.Errorf("unknown %s value %q", a.name, s)
}

// Classification axes.
var (
	Status = newAxis("status",
		Entry{1, "WAITING_CONTACT", "Aguardando contato"},
		Entry{5, "SALE_MADE", "Venda realizada"},
		Entry{7, "CLOSED", "Encerrado"},
	)

	Temperature = newAxis("temperature",
		Entry{1, "COLD", "Fria"},
		Entry{2, "WARM", "Morna"},
		Entry{3, "HOT", "Quente"},
		Entry{4, "SUPER_LEAD", "Super Lead"},
	)

	Portal = newAxis("portal",
		Entry{1, "OLX", "OLX"},
		Entry{2, "WEBMOTORS", "WebMotors"},
		Entry{3, "VRUM", "Vrum"},
		Entry{4, "MERCADO_LIVRE", "Mercado Livre"},
		Entry{5, "ICARROS", "ICarros"},
		Entry{6, "MEUCARANGO", "MeuCarango"},
		Entry{7, "OQTDB", "OQTDB"},
		Entry{8, "TRIBUNA_DO_NORTE", "Tribuna do Norte"},
		Entry{9, "CARANGO", "Carango"},
		Entry{10, "AUTOLINE", "Autoline"},
		Entry{11, "FACEBOOK", "Facebook"},
		Entry{12, "INSTAGRAM", "Instagram"},
		Entry{13, "YOUTUBE", "Youtube"},
		Entry{14, "WHATSAPP", "Whatsapp"},
		Entry{15, "SITE_PROPRIO", "Site Próprio"},
		Entry{16, "MEU_CARRO_NOVO", "Meu Carro Novo"},
		Entry{17, "BOMDAPESTE", "BomDaPeste"},
		Entry{18, "MOTO_COM_BR", "Moto.com.br"},
		Entry{19, "PORTAL_MONTADORA", "Portal Montadora"},
		Entry{20, "TROVIT", "TROVIT"},
		Entry{21, "SEMINOVOS_BH", "Seminovos BH"},
		Entry{22, "OUTROS", "Outros"},
		Entry{23, "GOOGLE", "Google"},
		Entry{24, "MOBIAUTO", "Mobiauto"},
		Entry{25, "USADOS_PONTO_BR", "Usados.br"},
		Entry{26, "USADOS_BR", "Usados BR"},
		Entry{27, "USADOSBR", "Usadosbr"},
		Entry{28, "NAPISTA", "Napista"},
	)

	Subject = newAxis("subject",
		Entry{1, "LIGAMOS_PARA_VOCE", "Ligamos para você"},
		Entry{2, "VENDER_VEICULO", "Vender veículo"},
		Entry{3, "SOLICITE_O_SEU_CARRO", "Solicite o seu carro"},
		Entry{4, "NAO_ENCONTROU_O_SEU_VEICULO", "Não encontrou o seu veículo"},
		Entry{5, "SIMULAR_FINANCIAMENTO", "Simular financiamento"},
		Entry{6, "ESTOU_INTERESSADO", "Estou interessado"},
		Entry{7, "FALE_CONOSCO", "Fale conosco"},
		Entry{8, "TRABALHE_CONOSCO", "Trabalhe conosco"},
		Entry{9, "ENVIAR_PROPOSTA", "Enviar proposta"},
		Entry{10, "COMPRAR_TROCAR_VEICULO", "Comprar/trocar veículo"},
		Entry{11, "CONTATO_CLASSIFICADOS", "Contato Classificados"},
		Entry{12, "CONTATO_VIA_CHAT", "Contato via chat"},
		Entry{13, "AGENCIAMENTO", "Agenciamento"},
		Entry{14, "CHATBOT", "Chatbot"},
		Entry{15, "LOJA", "Loja"},
		Entry{16, "LEADS_UTALK", "Leads UTalk"},
		Entry{17, "SIMULACAO_VIA_CREDERE", "Simulação via Credere"},
	)
)

// Axes lists every classification axis in filter order.
func Axes() []*Axis {
	return []*Axis{Status, Temperature, Portal, Subject}
}

// AxisByName returns the axis whose query parameter is name.
func AxisByName(name string) (*Axis, bool) {
	for _, a := range Axes() {
		if a.name == name {
			return a, true
		}
	}
	return nil, false
}
