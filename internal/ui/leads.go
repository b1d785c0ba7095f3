package ui

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/nilcar/leads-console/internal/api"
	"github.com/nilcar/leads-console/internal/lead"
	"github.com/nilcar/leads-console/internal/leadlist"
	"github.com/nilcar/leads-console/internal/validate"
)

const (
	overlayDetail   = "lead-detail"
	overlayTemplate = "lead-template"
)

const (
	listDateLayout   = "02/01/2006 15:04"
	detailDateLayout = "02/01/2006"
	noVehicle        = "Não especificado"
	allOption        = "Todos"
)

var columnTitles = map[string]string{
	"name":        "Nome",
	"vehicle":     "Veículo",
	"sendDate":    "Data",
	"temperature": "Temperatura",
	"status":      "Status",
}

// leadsScreen renders the lead list state and forwards input to its controller.
type leadsScreen struct {
	ui   *UI
	ctrl *leadlist.Controller

	root   *tview.Flex
	search *tview.InputField
	drops  map[lead.Field]*tview.DropDown
	table  *tview.Table
	pager  *tview.TextView

	state leadlist.State
	// suppress stops widget callbacks from feeding programmatic changes back.
	suppress bool
	closed   bool
}

func newLeadsScreen(ui *UI) *leadsScreen {
	ls := &leadsScreen{ui: ui, drops: make(map[lead.Field]*tview.DropDown)}
	ls.ctrl = leadlist.New(ui.ctx, ui.backend, leadlist.Config{
		PageSize: ui.opts.PageSize,
		Debounce: ui.opts.Debounce,
		Sort:     ui.opts.Sort,
		Logger:   ui.logger,
		OnChange: func(st leadlist.State) {
			ui.queue(func() { ls.render(st) })
		},
	})
	ls.build()
	return ls
}

func (ls *leadsScreen) build() {
	t := ls.ui.theme
	ls.suppress = true
	defer func() { ls.suppress = false }()

	ls.search = tview.NewInputField().
		SetLabel("Buscar: ").
		SetFieldWidth(24).
		SetPlaceholder("nome, e-mail, veículo").
		SetChangedFunc(func(text string) {
			if ls.suppress {
				return
			}
			_ = ls.ctrl.SetFilter(lead.FieldSearch, text)
		}).
		SetDoneFunc(func(tcell.Key) { ls.ui.app.SetFocus(ls.table) })
	ls.search.SetFieldBackgroundColor(t.SelectionBg)
	ls.search.SetFieldTextColor(t.TextPrimary)

	filters := tview.NewFlex().AddItem(ls.search, 0, 2, false)
	for _, field := range lead.Fields {
		axis := field.Axis()
		if axis == nil {
			continue
		}
		field, entries := field, axis.Entries()
		options := []string{allOption}
		for _, e := range entries {
			options = append(options, e.Label)
		}
		dd := tview.NewDropDown().SetLabel(filterLabel(field) + ": ")
		dd.SetOptions(options, func(_ string, index int) {
			if ls.suppress {
				return
			}
			value := ""
			if index > 0 {
				value = entries[index-1].Symbol
			}
			if err := ls.ctrl.SetFilter(field, value); err != nil {
				ls.ui.setStatusDirect("[%s]%s[-]", ls.ui.theme.TagError, tview.Escape(err.Error()))
			}
			ls.ui.app.SetFocus(ls.table)
		})
		dd.SetCurrentOption(0)
		dd.SetFieldBackgroundColor(t.SelectionBg)
		dd.SetFieldTextColor(t.TextPrimary)
		ls.drops[field] = dd
		filters.AddItem(dd, 0, 1, false)
	}

	ls.table = tview.NewTable().
		SetBorders(false).
		SetSelectable(true, false).
		SetFixed(1, 0)
	ls.table.SetBorder(true).SetTitle(" Leads ").SetTitleAlign(tview.AlignLeft)
	ls.table.SetBorderColor(t.Border)
	ls.table.SetSelectedStyle(tcell.StyleDefault.Background(t.SelectionBg).Foreground(t.SelectionFg))
	ls.table.SetSelectedFunc(func(row, _ int) {
		if row > 0 {
			ls.ctrl.OpenDetail(row - 1)
		}
	})
	ls.table.SetInputCapture(ls.handleKey)

	ls.pager = tview.NewTextView().SetDynamicColors(true)

	ls.root = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(filters, 1, 0, false).
		AddItem(ls.table, 0, 1, true).
		AddItem(ls.pager, 1, 0, false)
}

func filterLabel(f lead.Field) string {
	switch f {
	case lead.FieldStatus:
		return "Status"
	case lead.FieldTemperature:
		return "Temperatura"
	case lead.FieldPortal:
		return "Portal"
	case lead.FieldSubject:
		return "Assunto"
	}
	return string(f)
}

func (ls *leadsScreen) handleKey(ev *tcell.EventKey) *tcell.EventKey {
	if ev.Key() != tcell.KeyRune {
		return ev
	}
	switch r := ev.Rune(); {
	case r == '/':
		ls.ui.app.SetFocus(ls.search)
	case r >= '1' && r <= '5':
		ls.ctrl.SetSort(lead.SortFields[r-'1'])
	case r == 'n':
		ls.ctrl.NextPage()
	case r == 'p':
		ls.ctrl.PrevPage()
	case r == 'c':
		ls.clearFilters()
	case r == 'r':
		ls.ctrl.Refresh()
	case r == 'f':
		ls.focusFilters()
	default:
		return ev
	}
	return nil
}

func (ls *leadsScreen) focusFilters() {
	if dd, ok := ls.drops[lead.FieldStatus]; ok {
		ls.ui.app.SetFocus(dd)
	}
}

// clearFilters resets the widgets without echoing each reset to the controller.
func (ls *leadsScreen) clearFilters() {
	ls.suppress = true
	ls.search.SetText("")
	for _, dd := range ls.drops {
		dd.SetCurrentOption(0)
	}
	ls.suppress = false
	ls.ctrl.ClearFilters()
}

func (ls *leadsScreen) start() { ls.ctrl.Start() }

// close abandons in-flight fetches. Close waits for them, so it must not
// block the goroutine that may be delivering their results.
func (ls *leadsScreen) close() {
	ls.closed = true
	go ls.ctrl.Close()
}

// detailClosed tells the controller the overlay was dismissed by the user.
func (ls *leadsScreen) detailClosed() {
	if ls.suppress {
		return
	}
	ls.ctrl.CloseDetail()
}

// render draws st. It never calls back into the controller: it may run inside
// the controller's change notification.
func (ls *leadsScreen) render(st leadlist.State) {
	if ls.closed || st.Version < ls.state.Version {
		return
	}
	ls.state = st
	t := ls.ui.theme

	if st.Err != nil && api.IsUnauthorized(st.Err) {
		ls.ui.handleError(st.Err)
		return
	}

	ls.table.Clear()
	for col, field := range lead.SortFields {
		title := columnTitles[field]
		if st.Sort.Field == field {
			if st.Sort.Direction == lead.Asc {
				title += " ▲"
			} else {
				title += " ▼"
			}
		}
		ls.table.SetCell(0, col, tview.NewTableCell(title).
			SetTextColor(t.TableHeader).
			SetBackgroundColor(t.TableHeaderBg).
			SetSelectable(false).
			SetExpansion(1))
	}

	switch {
	case st.Loading:
		ls.messageRow(fmt.Sprintf("[%s]Carregando leads...[-]", t.TagMuted))
	case st.Err != nil:
		ls.messageRow(fmt.Sprintf("[%s]Erro ao carregar leads: %s[-] [%s](r tenta novamente)[-]",
			t.TagError, tview.Escape(api.Message(st.Err)), t.TagMuted))
	case len(st.Leads) == 0:
		ls.messageRow(fmt.Sprintf("[%s]Nenhum lead encontrado.[-]", t.TagMuted))
	default:
		for i, l := range st.Leads {
			row := i + 1
			bg := t.TableZebra1
			if i%2 == 1 {
				bg = t.TableZebra2
			}
			vehicle := l.Vehicle
			if strings.TrimSpace(vehicle) == "" {
				vehicle = noVehicle
			}
			cells := []*tview.TableCell{
				tview.NewTableCell(tview.Escape(l.Name)),
				tview.NewTableCell(tview.Escape(vehicle)),
				tview.NewTableCell(l.SendDate.Format(listDateLayout)),
				tview.NewTableCell(lead.Temperature.Label(l.Temperature)).SetTextColor(t.temperatureColor(l.Temperature)),
				tview.NewTableCell(lead.Status.Label(l.Status)),
			}
			for col, c := range cells {
				if col != 3 {
					c.SetTextColor(t.TextPrimary)
				}
				ls.table.SetCell(row, col, c.SetBackgroundColor(bg).SetExpansion(1))
			}
		}
	}

	pages := st.TotalPages
	if pages < 1 {
		pages = 1
	}
	summary := fmt.Sprintf(" Página %d de %d · %d leads", st.Page+1, pages, st.TotalElements)
	if active := activeFilters(st.Filters); active != "" {
		summary += fmt.Sprintf("  [%s]filtros: %s[-]", t.TagAccent, tview.Escape(active))
	}
	if st.SearchInput != st.Filters.SearchText {
		summary += fmt.Sprintf("  [%s]buscando...[-]", t.TagMuted)
	}
	ls.pager.SetText(summary)

	ls.syncDetail(st.Selected)
}

func (ls *leadsScreen) messageRow(text string) {
	ls.table.SetCell(1, 0, tview.NewTableCell(text).SetSelectable(false).SetExpansion(1))
}

// syncDetail opens or closes the detail overlay to match the selection.
func (ls *leadsScreen) syncDetail(selected *lead.Lead) {
	open := ls.ui.hasOverlay(overlayDetail)
	switch {
	case selected != nil && !open:
		ls.showDetail(*selected)
	case selected == nil && open:
		ls.suppress = true
		ls.ui.closeOverlay(overlayDetail)
		ls.suppress = false
	}
}

func activeFilters(f lead.Filters) string {
	var parts []string
	if f.SearchText != "" {
		parts = append(parts, fmt.Sprintf("%q", f.SearchText))
	}
	for _, field := range lead.Fields {
		if axis := field.Axis(); axis != nil {
			if code := f.Code(field); code != 0 {
				parts = append(parts, filterLabel(field)+"="+axis.Label(code))
			}
		}
	}
	return strings.Join(parts, ", ")
}

func (ls *leadsScreen) showDetail(l lead.Lead) {
	t := ls.ui.theme
	view := tview.NewTextView().
		SetDynamicColors(true).
		SetWordWrap(true).
		SetText(detailText(l) + fmt.Sprintf("\n\n[%s]w envia mensagem  Esc fecha[-]", t.TagMuted))
	view.SetBorder(true).
		SetTitle(fmt.Sprintf(" Lead #%d ", l.ID)).
		SetTitleAlign(tview.AlignLeft).
		SetBorderColor(t.FocusBorder)
	view.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if ev.Key() == tcell.KeyRune && ev.Rune() == 'w' {
			ls.showTemplateForm(l)
			return nil
		}
		return ev
	})
	ls.ui.showOverlay(overlayDetail, view, 72, 22)
}

// detailText lists every lead field, labels resolved and blanks shown as "-".
func detailText(l lead.Lead) string {
	or := func(s string) string {
		if strings.TrimSpace(s) == "" {
			return "-"
		}
		return tview.Escape(s)
	}
	vehicle := l.Vehicle
	if strings.TrimSpace(vehicle) == "" {
		vehicle = noVehicle
	}
	message := l.Message
	if strings.TrimSpace(message) == "" {
		message = "Nenhuma mensagem."
	}
	rows := [][2]string{
		{"Nome", or(l.Name)},
		{"E-mail", or(l.Email)},
		{"Telefone", or(l.Phone)},
		{"CPF", or(l.CPF)},
		{"Nascimento", or(l.Birthday.Format(detailDateLayout))},
		{"Enviado em", or(l.SendDate.Format(listDateLayout))},
		{"Veículo", tview.Escape(vehicle)},
		{"Placa", or(l.LicensePlate)},
		{"Assunto", lead.Subject.Label(l.Subject)},
		{"Portal", lead.Portal.Label(l.Portal)},
		{"Status", lead.Status.Label(l.Status)},
		{"Temperatura", lead.Temperature.Label(l.Temperature)},
	}
	var b strings.Builder
	for _, r := range rows {
		fmt.Fprintf(&b, "[::b]%s:[::-] %s\n", r[0], r[1])
	}
	fmt.Fprintf(&b, "\n[::b]Mensagem[::-]\n%s", tview.Escape(message))
	return b.String()
}

// parseVariables reads "1=Ana; 2=Civic" into template variables.
func parseVariables(s string) (map[string]string, error) {
	vars := make(map[string]string)
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == '\n' }) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, validate.Errors{"variables": fmt.Sprintf("Variável inválida: %q.", part)}
		}
		vars[key] = strings.TrimSpace(value)
	}
	return vars, nil
}

func (ls *leadsScreen) showTemplateForm(l lead.Lead) {
	ui := ls.ui
	form := tview.NewForm()
	messages := newMessageView()
	msg := api.TemplateMessage{To: l.Phone}
	var rawVars string
	form.
		AddInputField("Telefone", l.Phone, 24, nil, func(t string) { msg.To = t }).
		AddInputField("Template SID", "", 36, nil, func(t string) { msg.TemplateSID = t }).
		AddInputField("Variáveis", "", 36, nil, func(t string) { rawVars = t }).
		AddButton("Enviar", func() { ls.submitTemplate(msg, rawVars, messages) }).
		AddButton("Cancelar", func() { ui.closeOverlay(overlayTemplate) })
	panel := ui.formPanel("Enviar mensagem", form, messages)
	ui.showOverlay(overlayTemplate, panel, 66, 16)
}

func (ls *leadsScreen) submitTemplate(msg api.TemplateMessage, rawVars string, messages *tview.TextView) {
	ui := ls.ui
	vars, err := parseVariables(rawVars)
	if err == nil {
		msg.Variables = vars
		err = validate.Template{To: msg.To, TemplateSID: msg.TemplateSID, Variables: vars}.Validate()
	}
	if err != nil {
		messages.SetText(formatErrors(err, ui.theme))
		return
	}
	messages.SetText(fmt.Sprintf("[%s]Enviando...[-]", ui.theme.TagMuted))
	ui.async(func() {
		err := ui.backend.SendTemplate(ui.ctx, msg)
		ui.queue(func() {
			if api.IsUnauthorized(err) {
				ui.handleError(err)
				return
			}
			if err != nil {
				messages.SetText(formatErrors(err, ui.theme))
				return
			}
			ui.closeOverlay(overlayTemplate)
			ui.setStatusDirect("[%s]Mensagem enviada para %s.[-]", ui.theme.TagSuccess, tview.Escape(validate.Digits(msg.To)))
		})
	})
}
