package ui

import (
	"context"
	"errors"
	"log"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rivo/tview"

	"github.com/nilcar/leads-console/internal/api"
	"github.com/nilcar/leads-console/internal/bus"
	"github.com/nilcar/leads-console/internal/lead"
	"github.com/nilcar/leads-console/internal/leadlist"
	"github.com/nilcar/leads-console/internal/session"
)

// fakeBackend records calls. ListLeads blocks until its context ends so that
// rendering in tests is driven only by explicit render calls.
type fakeBackend struct {
	mu            sync.Mutex
	validateErr   error
	validateCalls int
	loginToken    string
	loginErr      error
	loginCalls    int
	signups       []api.SignupRequest
	chats         []string
	chatAnswer    string
	templates     []api.TemplateMessage
	users         []api.User
}

func (f *fakeBackend) Login(_ context.Context, _ api.Credentials) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginCalls++
	return f.loginToken, f.loginErr
}

func (f *fakeBackend) Validate(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validateCalls++
	return f.validateErr
}

func (f *fakeBackend) Signup(_ context.Context, req api.SignupRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signups = append(f.signups, req)
	return nil
}

func (f *fakeBackend) ForgotPassword(context.Context, string) error { return nil }

func (f *fakeBackend) ResetPassword(context.Context, string, string, string) error { return nil }

func (f *fakeBackend) ListLeads(ctx context.Context, _ lead.Query) (*lead.Page, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (f *fakeBackend) ListUsers(context.Context) ([]api.User, error) {
	return f.users, nil
}

func (f *fakeBackend) UpdateUser(_ context.Context, u api.User) (*api.User, error) { return &u, nil }

func (f *fakeBackend) DeleteUser(context.Context, int64) error { return nil }

func (f *fakeBackend) InternalChat(_ context.Context, message string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats = append(f.chats, message)
	return f.chatAnswer, nil
}

func (f *fakeBackend) SendTemplate(_ context.Context, msg api.TemplateMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.templates = append(f.templates, msg)
	return nil
}

func signedToken(t *testing.T, sub, role string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  sub,
		"role": role,
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte("ui-test"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

type harness struct {
	ui      *UI
	backend *fakeBackend
	session *session.Session
	storage *session.MemoryStorage
}

// newHarness builds a UI whose async work runs inline.
func newHarness(t *testing.T) *harness {
	t.Helper()
	storage := session.NewMemoryStorage()
	sess := session.New(storage, nil)
	if err := sess.Initialize(context.Background()); err != nil {
		t.Fatalf("session init: %v", err)
	}
	backend := &fakeBackend{chatAnswer: "Há 4 leads cadastrados."}
	ui := NewUI(context.Background(), Options{
		Backend: backend,
		Session: sess,
		Logger:  log.New(os.Stdout, "[TEST] ", 0),
	})
	ui.async = func(f func()) { f() }
	t.Cleanup(ui.Stop)
	return &harness{ui: ui, backend: backend, session: sess, storage: storage}
}

func (h *harness) loginAs(t *testing.T, role string) {
	t.Helper()
	if _, err := h.session.LoginWithToken(context.Background(), signedToken(t, "ana", role)); err != nil {
		t.Fatalf("login: %v", err)
	}
}

func frontPage(p *tview.Pages) string {
	name, _ := p.GetFrontPage()
	return name
}

func TestProtectedRouteWithoutTokenRedirectsToLogin(t *testing.T) {
	h := newHarness(t)

	h.ui.navigate(pathUsers)

	if h.ui.path != pathLogin {
		t.Fatalf("expected login screen, got %s", h.ui.path)
	}
	if h.ui.returnPath != pathUsers {
		t.Errorf("expected return path %s, got %q", pathUsers, h.ui.returnPath)
	}
	if h.ui.mounted {
		t.Error("protected area must not be mounted")
	}
	if h.backend.validateCalls != 0 {
		t.Errorf("no token means no validation request, got %d", h.backend.validateCalls)
	}
	if got := frontPage(h.ui.body); got != "public" {
		t.Errorf("expected public page, got %q", got)
	}
}

func TestValidTokenMountsOnceAcrossNavigation(t *testing.T) {
	h := newHarness(t)
	h.loginAs(t, "ROLE_ADMIN")

	h.ui.navigate(pathLeads)
	if !h.ui.mounted || h.ui.leads == nil {
		t.Fatal("expected the leads screen to be mounted")
	}
	if got := frontPage(h.ui.body); got != "protected" {
		t.Fatalf("expected protected page, got %q", got)
	}

	h.backend.users = []api.User{{ID: 1, Username: "admin", Role: "ROLE_ADMIN"}}
	h.ui.navigate(pathChat)
	h.ui.navigate(pathUsers)

	if h.backend.validateCalls != 1 {
		t.Errorf("expected one validation per mount, got %d", h.backend.validateCalls)
	}
	if h.ui.path != pathUsers {
		t.Errorf("expected users screen, got %s", h.ui.path)
	}
	if h.ui.leads != nil {
		t.Error("leaving the leads screen should close it")
	}
	if got := h.ui.users.table.GetCell(1, 4).Text; got != "ADMIN" {
		t.Errorf("expected normalized role, got %q", got)
	}
	if !strings.Contains(h.ui.header.GetText(true), "ana (ADMIN)") {
		t.Errorf("header should show the user, got %q", h.ui.header.GetText(true))
	}
}

func TestNonAdminCannotOpenAdminScreens(t *testing.T) {
	h := newHarness(t)
	h.loginAs(t, "ROLE_USER")
	h.ui.navigate(pathLeads)

	for _, item := range h.ui.menuItems() {
		if item.path == pathUsers || item.path == pathRegister {
			t.Errorf("menu should not offer %s to a regular user", item.path)
		}
	}

	h.ui.navigate(pathRegister)
	if h.ui.path != pathLeads {
		t.Errorf("expected fallback to leads, got %s", h.ui.path)
	}
	if !strings.Contains(h.ui.lastStatus, "restrito") {
		t.Errorf("expected restriction notice, got %q", h.ui.lastStatus)
	}
}

func TestRejectedTokenRedirectsWithReturnPath(t *testing.T) {
	h := newHarness(t)
	h.loginAs(t, "ROLE_USER")
	h.backend.validateErr = &api.StatusError{Endpoint: "POST /auth/validate", Code: 401}

	h.ui.navigate(pathChat)

	if h.ui.path != pathLogin {
		t.Fatalf("expected login, got %s", h.ui.path)
	}
	if h.ui.returnPath != pathChat {
		t.Errorf("expected return path %s, got %q", pathChat, h.ui.returnPath)
	}
	if h.backend.validateCalls != 1 {
		t.Errorf("expected one validation, got %d", h.backend.validateCalls)
	}
}

func TestLoginStoresSessionAndReturns(t *testing.T) {
	h := newHarness(t)
	h.ui.navigate(pathChat)
	h.backend.loginToken = signedToken(t, "admin", "ROLE_ADMIN")

	messages := newMessageView()
	h.ui.submitLogin("admin", "Senha@123", messages)

	if !h.session.LoggedIn(context.Background()) {
		t.Fatal("token should be stored")
	}
	if !h.session.IsAdmin(context.Background()) {
		t.Error("role should be decoded from the token")
	}
	if h.ui.path != pathChat || !h.ui.mounted {
		t.Errorf("expected to return to %s, got %s (mounted=%v)", pathChat, h.ui.path, h.ui.mounted)
	}
	if h.ui.returnPath != "" {
		t.Errorf("return path should be consumed, got %q", h.ui.returnPath)
	}
}

func TestLoginValidationAndFailure(t *testing.T) {
	h := newHarness(t)
	h.ui.navigate(pathLogin)

	messages := newMessageView()
	h.ui.submitLogin("", "", messages)
	if h.backend.loginCalls != 0 {
		t.Fatalf("empty form must not reach the backend")
	}
	if !strings.Contains(messages.GetText(true), "Informe a senha.") {
		t.Errorf("expected field errors, got %q", messages.GetText(true))
	}

	h.backend.loginErr = &api.StatusError{Endpoint: "POST /auth", Code: 401}
	h.ui.submitLogin("ana", "errada", messages)
	if got := messages.GetText(true); !strings.Contains(got, "Usuário ou senha inválidos.") {
		t.Errorf("expected credentials message, got %q", got)
	}
	if h.session.LoggedIn(context.Background()) {
		t.Error("failed login must not store a token")
	}
}

func testLeads() []lead.Lead {
	sent, _ := lead.ParseTime("2024-03-05 14:30:00")
	return []lead.Lead{
		{ID: 1, Name: "Ana", Vehicle: "Civic", SendDate: sent, Temperature: 3, Status: 1},
		{ID: 2, Name: "Bruno", SendDate: sent, Temperature: 4, Status: 7},
	}
}

func TestLeadsRenderStates(t *testing.T) {
	h := newHarness(t)
	h.loginAs(t, "ROLE_USER")
	h.ui.navigate(pathLeads)
	ls := h.ui.leads
	if ls == nil {
		t.Fatal("leads screen not mounted")
	}

	ls.render(leadlist.State{
		Version:       100,
		Sort:          lead.DefaultSort,
		Page:          1,
		TotalPages:    3,
		TotalElements: 25,
		Leads:         testLeads(),
	})
	if got := ls.table.GetCell(0, 2).Text; got != "Data ▼" {
		t.Errorf("expected sort marker on Data, got %q", got)
	}
	if got := ls.table.GetCell(1, 2).Text; got != "05/03/2024 14:30" {
		t.Errorf("unexpected date cell %q", got)
	}
	if got := ls.table.GetCell(1, 3).Text; got != "Quente" {
		t.Errorf("expected temperature label, got %q", got)
	}
	if got := ls.table.GetCell(2, 1).Text; got != noVehicle {
		t.Errorf("expected vehicle placeholder, got %q", got)
	}
	if got := ls.table.GetCell(2, 4).Text; got != "Encerrado" {
		t.Errorf("expected status label, got %q", got)
	}
	if got := ls.pager.GetText(true); !strings.Contains(got, "Página 2 de 3 · 25 leads") {
		t.Errorf("unexpected pager %q", got)
	}

	ls.render(leadlist.State{Version: 101, Sort: lead.DefaultSort, Loading: true})
	if got := ls.table.GetCell(1, 0).Text; !strings.Contains(got, "Carregando leads...") {
		t.Errorf("expected loading row, got %q", got)
	}

	ls.render(leadlist.State{Version: 102, Sort: lead.DefaultSort, Err: errors.New("boom")})
	if got := ls.table.GetCell(1, 0).Text; !strings.Contains(got, "Erro ao carregar leads") {
		t.Errorf("expected error row, got %q", got)
	}

	ls.render(leadlist.State{Version: 103, Sort: lead.DefaultSort})
	if got := ls.table.GetCell(1, 0).Text; !strings.Contains(got, "Nenhum lead encontrado.") {
		t.Errorf("expected empty row, got %q", got)
	}

	// An older snapshot never overwrites a newer one.
	ls.render(leadlist.State{Version: 50, Sort: lead.DefaultSort, Loading: true})
	if got := ls.table.GetCell(1, 0).Text; !strings.Contains(got, "Nenhum lead encontrado.") {
		t.Errorf("stale state was rendered: %q", got)
	}
}

func TestLeadsUnauthorizedRedirects(t *testing.T) {
	h := newHarness(t)
	h.loginAs(t, "ROLE_USER")
	h.ui.navigate(pathLeads)

	h.ui.leads.render(leadlist.State{Version: 100, Err: &api.StatusError{Endpoint: "GET /leads", Code: 401}})

	if h.ui.path != pathLogin || h.ui.mounted {
		t.Fatalf("expected redirect to login, got %s (mounted=%v)", h.ui.path, h.ui.mounted)
	}
	if h.ui.returnPath != pathLeads {
		t.Errorf("expected return path %s, got %q", pathLeads, h.ui.returnPath)
	}
}

func TestLeadDetailOverlayFollowsSelection(t *testing.T) {
	h := newHarness(t)
	h.loginAs(t, "ROLE_USER")
	h.ui.navigate(pathLeads)
	ls := h.ui.leads
	leads := testLeads()

	ls.render(leadlist.State{Version: 100, Leads: leads, Selected: &leads[0]})
	if !h.ui.hasOverlay(overlayDetail) {
		t.Fatal("expected detail overlay")
	}
	ls.render(leadlist.State{Version: 101, Leads: leads})
	if h.ui.hasOverlay(overlayDetail) {
		t.Error("detail overlay should close with the selection")
	}
}

func TestDetailText(t *testing.T) {
	l := testLeads()[1]
	l.Portal = 14
	l.Subject = 6
	text := detailText(l)
	for _, want := range []string{"Bruno", noVehicle, "Nenhuma mensagem.", "Whatsapp", "Estou interessado", "Super Lead", "Encerrado", "CPF:[::-] -"} {
		if !strings.Contains(text, want) {
			t.Errorf("detail text missing %q:\n%s", want, text)
		}
	}
}

func TestParseVariables(t *testing.T) {
	vars, err := parseVariables("1=Ana; 2 = Civic 2020\n3=")
	if err != nil {
		t.Fatalf("parseVariables: %v", err)
	}
	if vars["1"] != "Ana" || vars["2"] != "Civic 2020" || vars["3"] != "" || len(vars) != 3 {
		t.Errorf("unexpected variables %v", vars)
	}

	empty, err := parseVariables("  ")
	if err != nil || len(empty) != 0 {
		t.Errorf("blank input should give no variables, got %v %v", empty, err)
	}

	if _, err := parseVariables("1=Ana; sem-igual"); err == nil {
		t.Error("expected an error for a part without '='")
	}
}

func TestTemplateSubmitValidatesBeforeSending(t *testing.T) {
	h := newHarness(t)
	h.loginAs(t, "ROLE_USER")
	h.ui.navigate(pathLeads)
	ls := h.ui.leads
	messages := newMessageView()

	ls.submitTemplate(api.TemplateMessage{To: "123", TemplateSID: ""}, "", messages)
	if len(h.backend.templates) != 0 {
		t.Fatal("invalid form must not be sent")
	}

	ls.submitTemplate(api.TemplateMessage{To: "(11) 98888-7777", TemplateSID: "HX123"}, "1=Ana", messages)
	if len(h.backend.templates) != 1 {
		t.Fatalf("expected one template, got %d", len(h.backend.templates))
	}
	if got := h.backend.templates[0].Variables["1"]; got != "Ana" {
		t.Errorf("expected variable to be sent, got %q", got)
	}
}

func TestChatSendAppendsTranscript(t *testing.T) {
	h := newHarness(t)
	h.loginAs(t, "ROLE_USER")
	h.ui.navigate(pathChat)
	cs := h.ui.chat

	cs.send("   ")
	if len(h.backend.chats) != 0 {
		t.Fatal("blank input must not be sent")
	}

	cs.send("Quantos leads temos?")
	if len(h.backend.chats) != 1 {
		t.Fatalf("expected one request, got %d", len(h.backend.chats))
	}
	if n := len(h.ui.conv.Messages()); n != 2 {
		t.Errorf("expected question and answer, got %d messages", n)
	}
	if got := cs.transcript.GetText(true); !strings.Contains(got, "Há 4 leads cadastrados.") {
		t.Errorf("transcript missing answer: %q", got)
	}
}

func TestLogoutFromOtherConsoleRedirects(t *testing.T) {
	h := newHarness(t)
	h.loginAs(t, "ROLE_USER")
	h.ui.navigate(pathLeads)

	// Still logged in here: the event is ignored.
	_ = h.ui.handleBusEvent(context.Background(), bus.Event{Kind: bus.KindLogout})
	if !h.ui.mounted {
		t.Fatal("event must be ignored while the token is present")
	}

	_ = h.storage.Delete(context.Background(), session.KeyToken)
	_ = h.ui.handleBusEvent(context.Background(), bus.Event{Kind: bus.KindLogout})
	if h.ui.path != pathLogin {
		t.Errorf("expected login after remote logout, got %s", h.ui.path)
	}
	if !strings.Contains(h.ui.lastStatus, "outro console") {
		t.Errorf("unexpected status %q", h.ui.lastStatus)
	}
}

func TestLogoutClearsSessionAndRedirects(t *testing.T) {
	h := newHarness(t)
	h.loginAs(t, "ROLE_ADMIN")
	h.ui.navigate(pathUsers)

	h.ui.logout()

	if h.session.LoggedIn(context.Background()) {
		t.Error("token should be cleared")
	}
	if h.ui.path != pathLogin || h.ui.mounted {
		t.Errorf("expected login screen, got %s (mounted=%v)", h.ui.path, h.ui.mounted)
	}
}

func TestRegisterValidatesBeforeSignup(t *testing.T) {
	h := newHarness(t)
	h.loginAs(t, "ROLE_ADMIN")
	h.ui.navigate(pathRegister)
	messages := newMessageView()

	h.ui.submitRegister(api.SignupRequest{Username: "novo", Password: "fraca", Role: "USER"}, tview.NewForm(), messages)
	if len(h.backend.signups) != 0 {
		t.Fatal("invalid form must not be sent")
	}
	got := messages.GetText(true)
	if !strings.Contains(got, "Informe e-mail ou telefone.") || !strings.Contains(got, "Senha fraca") {
		t.Errorf("expected field errors, got %q", got)
	}

	h.ui.submitRegister(api.SignupRequest{
		Username: "novo",
		Email:    "novo@leads.local",
		Password: "Senha@123",
		Role:     "ADMIN",
	}, tview.NewForm(), messages)
	if len(h.backend.signups) != 1 {
		t.Fatalf("expected one signup, got %d", len(h.backend.signups))
	}
	if !strings.Contains(messages.GetText(true), "cadastrado") {
		t.Errorf("expected success message, got %q", messages.GetText(true))
	}
}

func TestPasswordChecklistMarksRules(t *testing.T) {
	theme := themeDark()
	text := passwordChecklist("Senha@123", theme)
	if strings.Contains(text, "·") {
		t.Errorf("all rules should be met: %q", text)
	}
	if !strings.Contains(passwordChecklist("abc", theme), "·") {
		t.Error("weak password should leave rules pending")
	}
}
