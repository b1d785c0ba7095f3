package ui

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/nilcar/leads-console/internal/api"
	"github.com/nilcar/leads-console/internal/assistant"
	"github.com/nilcar/leads-console/internal/bus"
	"github.com/nilcar/leads-console/internal/guard"
	"github.com/nilcar/leads-console/internal/lead"
	"github.com/nilcar/leads-console/internal/session"
)

// Backend is the slice of the leads API the screens use. *api.Client satisfies it.
type Backend interface {
	Login(ctx context.Context, creds api.Credentials) (string, error)
	Validate(ctx context.Context) error
	Signup(ctx context.Context, req api.SignupRequest) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password, confirm string) error
	ListLeads(ctx context.Context, q lead.Query) (*lead.Page, error)
	ListUsers(ctx context.Context) ([]api.User, error)
	UpdateUser(ctx context.Context, u api.User) (*api.User, error)
	DeleteUser(ctx context.Context, id int64) error
	InternalChat(ctx context.Context, message string) (string, error)
	SendTemplate(ctx context.Context, msg api.TemplateMessage) error
}

// Options configures the UI. Backend and Session are required.
type Options struct {
	Backend  Backend
	Session  *session.Session
	Bus      bus.Bus
	Logger   *log.Logger
	PageSize int
	Debounce time.Duration
	Sort     lead.Sort
	Theme    string
}

// Screen paths.
const (
	pathLogin    = "/login"
	pathForgot   = "/forgot"
	pathReset    = "/reset"
	pathLeads    = "/leads"
	pathChat     = "/chat"
	pathUsers    = "/users"
	pathRegister = "/register"
)

type route struct {
	title     string
	protected bool
	admin     bool
}

var routes = map[string]route{
	pathLogin:    {title: "Login"},
	pathForgot:   {title: "Recuperar senha"},
	pathReset:    {title: "Redefinir senha"},
	pathLeads:    {title: "Leads", protected: true},
	pathChat:     {title: "Chat interno", protected: true},
	pathUsers:    {title: "Usuários", protected: true, admin: true},
	pathRegister: {title: "Cadastrar usuário", protected: true, admin: true},
}

// UI is the terminal front end of the console.
type UI struct {
	app     *tview.Application
	backend Backend
	session *session.Session
	guard   *guard.Guard
	bus     bus.Bus
	logger  *log.Logger
	opts    Options

	// pages holds "main" plus any overlays on top of it.
	pages     *tview.Pages
	body      *tview.Pages
	statusBar *tview.TextView

	// Protected layout: header, side menu and the active screen.
	layout  *tview.Flex
	header  *tview.TextView
	menu    *tview.List
	content *tview.Pages

	theme     Theme
	themeName string

	path       string
	returnPath string
	mounted    bool
	leads      *leadsScreen
	users      *usersScreen
	chat       *chatScreen
	conv       *assistant.Conversation
	overlays   []string
	lastFocus  tview.Primitive
	lastStatus string

	running bool
	// async runs blocking work off the UI goroutine.
	async func(func())

	ctx    context.Context
	cancel context.CancelFunc
}

// NewUI builds the application and wires the session and guard callbacks.
func NewUI(ctx context.Context, opts Options) *UI {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	uiCtx, cancel := context.WithCancel(ctx)

	ui := &UI{
		app:     tview.NewApplication(),
		backend: opts.Backend,
		session: opts.Session,
		bus:     opts.Bus,
		logger:  logger,
		opts:    opts,
		conv:    assistant.NewConversation(opts.Backend, logger),
		async:   func(f func()) { go f() },
		ctx:     uiCtx,
		cancel:  cancel,
	}
	ui.themeName, ui.theme = themeByName(opts.Theme)
	ui.guard = guard.New(opts.Session, opts.Backend, logger)
	ui.guard.OnRedirect(func(from string) {
		ui.queue(func() {
			ui.showLogin(from, "")
		})
	})
	opts.Session.OnLogout(func() {
		ui.queue(func() {
			ui.showLogin(pathLeads, "Sessão encerrada.")
		})
	})

	ui.setupLayout()
	ui.setupKeybindings()
	ui.applyTheme()
	return ui
}

// Start opens the first screen and runs the event loop until Stop or ctx is done.
func (ui *UI) Start(ctx context.Context) error {
	ui.logger.Println("Starting TUI application")

	if ui.bus != nil {
		go func() {
			if err := ui.bus.Subscribe(ui.ctx, ui.handleBusEvent); err != nil && ui.ctx.Err() == nil {
				ui.logger.Printf("event subscription ended: %v", err)
			}
		}()
	}

	go func() {
		select {
		case <-ctx.Done():
			ui.logger.Println("External context cancelled, stopping TUI")
		case <-ui.ctx.Done():
		}
		ui.cancel()
		ui.app.Stop()
	}()

	// Updates queued before Run are applied once the loop starts.
	ui.running = true
	ui.navigate(pathLeads)
	ui.startRedrawHeartbeat()

	err := ui.app.Run()
	ui.running = false
	ui.closeScreens()
	ui.logger.Printf("app.Run() returned: %v", err)
	return err
}

// Stop ends the event loop.
func (ui *UI) Stop() {
	ui.logger.Println("Stopping TUI application")
	ui.running = false
	ui.closeScreens()
	ui.cancel()
	ui.app.Stop()
}

// queue applies f on the UI goroutine. When the app is not running (unit
// tests) f runs directly.
func (ui *UI) queue(f func()) {
	if ui.running {
		ui.app.QueueUpdateDraw(f)
		return
	}
	f()
}

func (ui *UI) setupLayout() {
	ui.statusBar = tview.NewTextView().SetDynamicColors(true)

	ui.header = tview.NewTextView().SetDynamicColors(true)
	ui.header.SetBorder(false)

	ui.menu = tview.NewList().ShowSecondaryText(false)
	ui.menu.SetBorder(true).SetTitle(" Menu ").SetTitleAlign(tview.AlignLeft)

	ui.content = tview.NewPages()

	validating := tview.NewTextView().SetTextAlign(tview.AlignCenter).SetText("\n\nValidando sessão...")
	validating.SetBorder(true)

	ui.layout = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(ui.header, 1, 0, false).
		AddItem(tview.NewFlex().
			AddItem(ui.menu, 24, 0, false).
			AddItem(ui.content, 0, 1, true), 0, 1, true)

	ui.body = tview.NewPages().
		AddPage("validating", validating, true, false).
		AddPage("protected", ui.layout, true, false)

	main := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(ui.body, 0, 1, true).
		AddItem(ui.statusBar, 1, 0, false)
	ui.pages = tview.NewPages().AddPage("main", main, true, true)
	ui.app.SetRoot(ui.pages, true)
}

func (ui *UI) setupKeybindings() {
	ui.app.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		switch ev.Key() {
		case tcell.KeyF1:
			ui.showHelp()
			return nil
		case tcell.KeyF2:
			ui.cycleTheme()
			return nil
		case tcell.KeyEsc:
			if len(ui.overlays) > 0 {
				ui.closeOverlay(ui.overlays[len(ui.overlays)-1])
				return nil
			}
		}
		if ui.isDialogActive() {
			return ev
		}
		if ev.Key() == tcell.KeyRune && ev.Rune() == 'q' {
			ui.Stop()
			return nil
		}
		if ev.Key() == tcell.KeyTab && ui.mounted {
			ui.cycleFocus()
			return nil
		}
		return ev
	})
}

// navigate shows path. Entering the protected area from outside runs the guard once.
func (ui *UI) navigate(path string) {
	r, ok := routes[path]
	if !ok {
		path, r = pathLeads, routes[pathLeads]
	}
	ui.logger.Printf("navigate %s (mounted=%v)", path, ui.mounted)
	if !r.protected {
		ui.unmountProtected()
		ui.showPublic(path, "")
		return
	}
	if !ui.mounted {
		ui.mountProtected(path)
		return
	}
	ui.showProtected(path)
}

func (ui *UI) mountProtected(path string) {
	ui.path = path
	ui.body.SwitchToPage("validating")
	ui.setStatusDirect("[%s]Validando sessão...[-]", ui.theme.TagWarning)
	ui.async(func() {
		if ui.guard.Evaluate(ui.ctx, path) != guard.Valid {
			// The redirect callback shows the login screen.
			return
		}
		ui.queue(func() {
			if ui.path != path || ui.mounted {
				return
			}
			ui.mounted = true
			ui.refreshChrome()
			ui.body.SwitchToPage("protected")
			ui.showProtected(path)
		})
	})
}

func (ui *UI) showProtected(path string) {
	r := routes[path]
	if r.admin && !ui.session.IsAdmin(ui.ctx) {
		ui.setStatusDirect("[%s]Acesso restrito a administradores.[-]", ui.theme.TagWarning)
		path, r = pathLeads, routes[pathLeads]
	}
	if path != pathLeads && ui.leads != nil {
		ui.leads.close()
		ui.leads = nil
	}
	ui.path = path

	var screen tview.Primitive
	switch path {
	case pathLeads:
		if ui.leads == nil {
			ui.leads = newLeadsScreen(ui)
			ui.leads.start()
		}
		screen = ui.leads.root
	case pathChat:
		ui.chat = newChatScreen(ui, ui.conv)
		screen = ui.chat.root
	case pathUsers:
		ui.users = newUsersScreen(ui)
		ui.users.load()
		screen = ui.users.root
	case pathRegister:
		screen = ui.registerScreen()
	}
	ui.content.AddAndSwitchToPage(path, screen, true)
	ui.selectMenu(path)
	ui.app.SetFocus(screen)
	ui.setStatusDirect("%s", r.title)
}

func (ui *UI) showPublic(path, notice string) {
	ui.path = path
	var screen tview.Primitive
	switch path {
	case pathForgot:
		screen = ui.forgotScreen()
	case pathReset:
		screen = ui.resetScreen()
	default:
		ui.path = pathLogin
		screen = ui.loginScreen(notice)
	}
	ui.body.AddAndSwitchToPage("public", screen, true)
	ui.app.SetFocus(screen)
	if notice != "" {
		ui.setStatusDirect("[%s]%s[-]", ui.theme.TagWarning, notice)
	} else {
		ui.setStatusDirect("%s", routes[ui.path].title)
	}
}

// showLogin leaves the protected area and remembers where to return.
func (ui *UI) showLogin(returnPath, notice string) {
	if r, ok := routes[returnPath]; ok && r.protected {
		ui.returnPath = returnPath
	}
	ui.unmountProtected()
	ui.showPublic(pathLogin, notice)
}

func (ui *UI) unmountProtected() {
	for len(ui.overlays) > 0 {
		ui.closeOverlay(ui.overlays[len(ui.overlays)-1])
	}
	if !ui.mounted && ui.leads == nil {
		return
	}
	ui.closeScreens()
	ui.mounted = false
	ui.guard.Reset()
	ui.conv.Reset()
	for _, name := range ui.content.GetPageNames(false) {
		ui.content.RemovePage(name)
	}
}

func (ui *UI) closeScreens() {
	if ui.leads != nil {
		ui.leads.close()
		ui.leads = nil
	}
	ui.users = nil
	ui.chat = nil
}

// refreshChrome rebuilds the header and the role-dependent menu.
func (ui *UI) refreshChrome() {
	user, role := "?", roleLabel(ui.session.IsAdmin(ui.ctx))
	if claims, err := ui.session.Claims(ui.ctx); err == nil && claims.Subject != "" {
		user = claims.Subject
	}
	ui.header.SetText(fmt.Sprintf(" [%s]leads-console[-]  [%s]%s (%s)[-]",
		ui.theme.TagAccent, ui.theme.TagMuted, tview.Escape(user), role))

	ui.menu.Clear()
	for _, item := range ui.menuItems() {
		item := item
		ui.menu.AddItem(item.label, "", item.key, func() {
			if item.path == "" {
				ui.logout()
				return
			}
			ui.navigate(item.path)
		})
	}
}

type menuItem struct {
	label string
	key   rune
	path  string
}

// menuItems lists what the current role may open. An empty path is Logout.
func (ui *UI) menuItems() []menuItem {
	items := []menuItem{
		{"Leads", 'l', pathLeads},
		{"Chat interno", 'c', pathChat},
	}
	if ui.session.IsAdmin(ui.ctx) {
		items = append(items,
			menuItem{"Usuários", 'u', pathUsers},
			menuItem{"Cadastrar usuário", 'n', pathRegister})
	}
	return append(items, menuItem{"Sair", 's', ""})
}

func (ui *UI) selectMenu(path string) {
	for i, item := range ui.menuItems() {
		if item.path == path && i < ui.menu.GetItemCount() {
			ui.menu.SetCurrentItem(i)
			return
		}
	}
}

func roleLabel(admin bool) string {
	if admin {
		return "ADMIN"
	}
	return "USER"
}

func (ui *UI) logout() {
	ui.async(func() {
		if err := ui.session.Logout(ui.ctx); err != nil {
			ui.logger.Printf("logout: %v", err)
		}
	})
}

// handleError routes unauthorized errors to login and shows the rest.
func (ui *UI) handleError(err error) {
	if err == nil {
		return
	}
	if api.IsUnauthorized(err) {
		ui.showLogin(ui.path, api.Message(err))
		return
	}
	ui.setStatusDirect("[%s]%s[-]", ui.theme.TagError, tview.Escape(api.Message(err)))
}

func (ui *UI) handleBusEvent(ctx context.Context, ev bus.Event) error {
	switch ev.Kind {
	case bus.KindLogout:
		if ui.session.LoggedIn(ctx) {
			return nil
		}
		ui.queue(func() {
			if ui.mounted {
				ui.showLogin(ui.path, "Sessão encerrada em outro console.")
			}
		})
	case bus.KindLogin:
		ui.queue(func() {
			ui.setStatusDirect("[%s]Login realizado em outro console.[-]", ui.theme.TagMuted)
		})
	case bus.KindLeadsChanged:
		ui.queue(func() {
			if ui.leads != nil {
				ui.leads.ctrl.Refresh()
				ui.setStatusDirect("[%s]%s novos leads recebidos.[-]", ui.theme.TagSuccess, tview.Escape(ev.Subject))
			}
		})
	}
	return nil
}

// showOverlay puts p centered above the current screen.
func (ui *UI) showOverlay(name string, p tview.Primitive, width, height int) {
	if len(ui.overlays) == 0 {
		ui.lastFocus = ui.app.GetFocus()
	}
	grid := tview.NewGrid().
		SetColumns(0, width, 0).
		SetRows(0, height, 0).
		AddItem(p, 1, 1, 1, 1, 0, 0, true)
	ui.pages.AddPage(name, grid, true, true)
	ui.overlays = append(ui.overlays, name)
	ui.app.SetFocus(p)
}

func (ui *UI) closeOverlay(name string) {
	idx := -1
	for i, n := range ui.overlays {
		if n == name {
			idx = i
		}
	}
	if idx < 0 {
		return
	}
	ui.overlays = append(ui.overlays[:idx], ui.overlays[idx+1:]...)
	ui.pages.RemovePage(name)
	if name == overlayDetail && ui.leads != nil {
		ui.leads.detailClosed()
	}
	if len(ui.overlays) == 0 && ui.lastFocus != nil {
		ui.app.SetFocus(ui.lastFocus)
		ui.lastFocus = nil
	}
}

func (ui *UI) hasOverlay(name string) bool {
	for _, n := range ui.overlays {
		if n == name {
			return true
		}
	}
	return false
}

// showModal displays a message with a single close button.
func (ui *UI) showModal(title, text string) {
	name := "modal"
	modal := tview.NewModal().
		SetText(text).
		AddButtons([]string{"Fechar"}).
		SetDoneFunc(func(int, string) { ui.closeOverlay(name) })
	modal.SetTitle(fmt.Sprintf(" %s ", title))
	ui.styleModal(modal)
	ui.pages.AddPage(name, modal, true, true)
	if len(ui.overlays) == 0 {
		ui.lastFocus = ui.app.GetFocus()
	}
	ui.overlays = append(ui.overlays, name)
	ui.app.SetFocus(modal)
}

// confirm asks a yes/no question; onYes runs only for "Sim".
func (ui *UI) confirm(text string, onYes func()) {
	name := "confirm"
	modal := tview.NewModal().
		SetText(text).
		AddButtons([]string{"Sim", "Não"}).
		SetDoneFunc(func(_ int, label string) {
			ui.closeOverlay(name)
			if label == "Sim" {
				onYes()
			}
		})
	ui.styleModal(modal)
	ui.pages.AddPage(name, modal, true, true)
	if len(ui.overlays) == 0 {
		ui.lastFocus = ui.app.GetFocus()
	}
	ui.overlays = append(ui.overlays, name)
	ui.app.SetFocus(modal)
}

func (ui *UI) styleModal(m *tview.Modal) {
	m.SetBackgroundColor(ui.theme.Surface)
	m.SetTextColor(ui.theme.TextPrimary)
	m.SetBorderColor(ui.theme.FocusBorder)
	m.SetButtonBackgroundColor(ui.theme.SelectionBg)
	m.SetButtonTextColor(ui.theme.SelectionFg)
}

func (ui *UI) showHelp() {
	var b strings.Builder
	b.WriteString("F1 ajuda  F2 tema  Esc fecha janelas  Tab alterna foco  q sai\n\n")
	b.WriteString("Leads: / busca, 1-5 ordena por coluna, n/p página, c limpa filtros, r recarrega, Enter detalhes\n")
	b.WriteString("Usuários: Enter edita, d exclui, r recarrega\n")
	b.WriteString("Chat: Enter envia")
	ui.showModal("Ajuda", b.String())
}

// isDialogActive is true when keys belong to a form or an overlay.
func (ui *UI) isDialogActive() bool {
	if len(ui.overlays) > 0 {
		return true
	}
	switch ui.app.GetFocus().(type) {
	case *tview.Form, *tview.Modal, *tview.InputField, *tview.TextArea, *tview.DropDown, *tview.Button:
		return true
	}
	return false
}

// cycleFocus moves between the menu and the active screen.
func (ui *UI) cycleFocus() {
	if ui.app.GetFocus() == ui.menu {
		if p, ok := ui.currentScreen(); ok {
			ui.app.SetFocus(p)
		}
		return
	}
	ui.app.SetFocus(ui.menu)
}

func (ui *UI) currentScreen() (tview.Primitive, bool) {
	_, p := ui.content.GetFrontPage()
	return p, p != nil
}

// startRedrawHeartbeat requests a periodic redraw for terminals that miss repaints.
func (ui *UI) startRedrawHeartbeat() {
	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ui.ctx.Done():
				return
			case <-ticker.C:
				if ui.running {
					ui.app.QueueUpdateDraw(func() {})
				}
			}
		}
	}()
}

// setStatusDirect writes the status bar. Call it on the UI goroutine.
func (ui *UI) setStatusDirect(format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	ui.lastStatus = message
	ui.statusBar.SetText(fmt.Sprintf("[%s]%s[-] [%s]|[-] %s [%s]|[-] %s",
		ui.theme.TagMuted, time.Now().Format("15:04:05"),
		ui.theme.TagTextPrimary, message,
		ui.theme.TagMuted, ui.shortcutHints()))
}

func (ui *UI) shortcutHints() string {
	switch ui.path {
	case pathLeads:
		return "/ busca  1-5 ordena  n/p página  Enter detalhes  F1 ajuda"
	case pathUsers:
		return "Enter edita  d exclui  r recarrega  F1 ajuda"
	case pathChat:
		return "Enter envia  Tab menu  F1 ajuda"
	}
	return "Tab próximo campo  Enter confirma  F1 ajuda"
}

func (ui *UI) cycleTheme() {
	next := "light"
	if ui.themeName == "light" {
		next = "dark"
	}
	ui.themeName, ui.theme = themeByName(next)
	ui.applyTheme()
	if ui.leads != nil {
		ui.leads.render(ui.leads.state)
	}
	ui.setStatusDirect("Tema: %s", ui.themeName)
}

func (ui *UI) applyTheme() {
	t := ui.theme
	tview.Styles.PrimitiveBackgroundColor = t.Bg
	tview.Styles.ContrastBackgroundColor = t.Surface
	tview.Styles.MoreContrastBackgroundColor = t.SelectionBg
	tview.Styles.BorderColor = t.Border
	tview.Styles.TitleColor = t.TextPrimary
	tview.Styles.PrimaryTextColor = t.TextPrimary
	tview.Styles.SecondaryTextColor = t.TextMuted

	ui.statusBar.SetBackgroundColor(t.Surface)
	ui.statusBar.SetTextColor(t.TextPrimary)
	ui.header.SetBackgroundColor(t.Surface)
	ui.menu.SetBackgroundColor(t.Bg)
	ui.menu.SetBorderColor(t.Border)
	ui.menu.SetMainTextColor(t.TextPrimary)
	ui.menu.SetSelectedTextColor(t.SelectionFg)
	ui.menu.SetSelectedBackgroundColor(t.SelectionBg)
}
