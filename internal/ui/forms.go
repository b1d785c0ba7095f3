package ui

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rivo/tview"

	"github.com/nilcar/leads-console/internal/api"
	"github.com/nilcar/leads-console/internal/validate"
)

// fieldLabels names validation fields the way the forms show them.
var fieldLabels = map[string]string{
	"identifier":  "Identificador",
	"password":    "Senha",
	"username":    "Usuário",
	"email":       "E-mail",
	"phone":       "Telefone",
	"contact":     "Contato",
	"role":        "Perfil",
	"token":       "Token",
	"confirm":     "Confirmação",
	"to":          "Telefone",
	"templateSid": "Template",
	"variables":   "Variáveis",
	"id":          "Usuário",
}

// formatErrors renders validation errors one per line, any other error as its message.
func formatErrors(err error, t Theme) string {
	if err == nil {
		return ""
	}
	var verr validate.Errors
	if !errors.As(err, &verr) {
		return fmt.Sprintf("[%s]%s[-]", t.TagError, tview.Escape(api.Message(err)))
	}
	keys := make([]string, 0, len(verr))
	for k := range verr {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		label := fieldLabels[k]
		if label == "" {
			label = k
		}
		fmt.Fprintf(&b, "[%s]• %s: %s[-]\n", t.TagError, label, tview.Escape(verr[k]))
	}
	return strings.TrimRight(b.String(), "\n")
}

// passwordChecklist marks each password rule as met or pending.
func passwordChecklist(pw string, t Theme) string {
	var b strings.Builder
	for _, r := range validate.PasswordRules {
		if r.Test(pw) {
			fmt.Fprintf(&b, "[%s]✓ %s[-]\n", t.TagSuccess, r.Label)
		} else {
			fmt.Fprintf(&b, "[%s]· %s[-]\n", t.TagMuted, r.Label)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// formPanel stacks a form above a message area inside a titled border.
func (ui *UI) formPanel(title string, form *tview.Form, extra ...tview.Primitive) *tview.Flex {
	form.SetBorder(false)
	form.SetButtonsAlign(tview.AlignLeft)
	form.SetFieldBackgroundColor(ui.theme.SelectionBg)
	form.SetFieldTextColor(ui.theme.TextPrimary)
	form.SetButtonBackgroundColor(ui.theme.SelectionBg)
	form.SetButtonTextColor(ui.theme.SelectionFg)

	inner := tview.NewFlex().SetDirection(tview.FlexRow).AddItem(form, 0, 1, true)
	for _, p := range extra {
		inner.AddItem(p, 0, 1, false)
	}
	inner.SetBorder(true).SetTitle(" " + title + " ").SetTitleAlign(tview.AlignLeft)
	inner.SetBorderColor(ui.theme.FocusBorder)

	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(inner, 64, 0, true).
		AddItem(nil, 0, 1, false)
}

func newMessageView() *tview.TextView {
	tv := tview.NewTextView().SetDynamicColors(true).SetWordWrap(true)
	tv.SetBorderPadding(0, 0, 1, 1)
	return tv
}

type loginForm struct {
	form     *tview.Form
	messages *tview.TextView
}

func (ui *UI) loginScreen(notice string) tview.Primitive {
	lf := &loginForm{form: tview.NewForm(), messages: newMessageView()}
	var identifier, password string
	lf.form.
		AddInputField("Usuário, e-mail ou telefone", "", 36, nil, func(t string) { identifier = t }).
		AddPasswordField("Senha", "", 36, '*', func(t string) { password = t }).
		AddButton("Entrar", func() { ui.submitLogin(identifier, password, lf.messages) }).
		AddButton("Esqueci minha senha", func() { ui.navigate(pathForgot) }).
		AddButton("Tenho um token", func() { ui.navigate(pathReset) })
	if notice != "" {
		lf.messages.SetText(fmt.Sprintf("[%s]%s[-]", ui.theme.TagWarning, tview.Escape(notice)))
	}
	return ui.formPanel("Entrar", lf.form, lf.messages)
}

// submitLogin validates locally, authenticates, stores the session and
// returns to the screen that required login.
func (ui *UI) submitLogin(identifier, password string, messages *tview.TextView) {
	if err := validate.Login(identifier, password); err != nil {
		messages.SetText(formatErrors(err, ui.theme))
		return
	}
	messages.SetText(fmt.Sprintf("[%s]Entrando...[-]", ui.theme.TagMuted))
	ui.async(func() {
		token, err := ui.backend.Login(ui.ctx, api.Credentials{Identifier: strings.TrimSpace(identifier), Password: password})
		if err == nil {
			_, err = ui.session.LoginWithToken(ui.ctx, token)
		}
		ui.queue(func() {
			if err != nil {
				msg := api.Message(err)
				if api.IsUnauthorized(err) {
					msg = "Usuário ou senha inválidos."
				}
				ui.logger.Printf("login failed: %v", err)
				messages.SetText(fmt.Sprintf("[%s]%s[-]", ui.theme.TagError, tview.Escape(msg)))
				return
			}
			target := ui.returnPath
			ui.returnPath = ""
			if r, ok := routes[target]; !ok || !r.protected {
				target = pathLeads
			}
			ui.navigate(target)
		})
	})
}

// forgotNotice is shown whatever the backend answers.
const forgotNotice = "Se o e-mail estiver cadastrado, você receberá as instruções de recuperação."

func (ui *UI) forgotScreen() tview.Primitive {
	form := tview.NewForm()
	messages := newMessageView()
	var email string
	form.
		AddInputField("E-mail", "", 36, nil, func(t string) { email = t }).
		AddButton("Enviar", func() { ui.submitForgot(email, messages) }).
		AddButton("Voltar", func() { ui.navigate(pathLogin) })
	return ui.formPanel("Recuperar senha", form, messages)
}

func (ui *UI) submitForgot(email string, messages *tview.TextView) {
	if msg := validate.Email(email); msg != "" {
		messages.SetText(formatErrors(validate.Errors{"email": msg}, ui.theme))
		return
	}
	messages.SetText(fmt.Sprintf("[%s]Enviando...[-]", ui.theme.TagMuted))
	ui.async(func() {
		if err := ui.backend.ForgotPassword(ui.ctx, email); err != nil {
			ui.logger.Printf("forgot password: %v", err)
		}
		ui.queue(func() {
			messages.SetText(fmt.Sprintf("[%s]%s[-]", ui.theme.TagSuccess, forgotNotice))
		})
	})
}

func (ui *UI) resetScreen() tview.Primitive {
	form := tview.NewForm()
	messages := newMessageView()
	checklist := newMessageView().SetText(passwordChecklist("", ui.theme))
	var token, password, confirm string
	form.
		AddInputField("Token", "", 40, nil, func(t string) { token = t }).
		AddPasswordField("Nova senha", "", 36, '*', func(t string) {
			password = t
			checklist.SetText(passwordChecklist(t, ui.theme))
		}).
		AddPasswordField("Confirmar senha", "", 36, '*', func(t string) { confirm = t }).
		AddButton("Redefinir", func() { ui.submitReset(token, password, confirm, messages) }).
		AddButton("Voltar", func() { ui.navigate(pathLogin) })
	return ui.formPanel("Redefinir senha", form, checklist, messages)
}

func (ui *UI) submitReset(token, password, confirm string, messages *tview.TextView) {
	if err := (validate.Reset{Token: token, Password: password, Confirm: confirm}).Validate(); err != nil {
		messages.SetText(formatErrors(err, ui.theme))
		return
	}
	messages.SetText(fmt.Sprintf("[%s]Enviando...[-]", ui.theme.TagMuted))
	ui.async(func() {
		err := ui.backend.ResetPassword(ui.ctx, token, password, confirm)
		ui.queue(func() {
			if err != nil {
				messages.SetText(formatErrors(err, ui.theme))
				return
			}
			ui.showLogin("", "Senha redefinida. Faça login com a nova senha.")
		})
	})
}

var roleOptions = []string{validate.RoleUser, validate.RoleAdmin}

func (ui *UI) registerScreen() tview.Primitive {
	form := tview.NewForm()
	messages := newMessageView()
	checklist := newMessageView().SetText(passwordChecklist("", ui.theme))
	req := api.SignupRequest{Role: validate.RoleUser}
	form.
		AddInputField("Usuário", "", 32, nil, func(t string) { req.Username = t }).
		AddInputField("E-mail", "", 36, nil, func(t string) { req.Email = t }).
		AddInputField("Telefone", "", 20, nil, func(t string) { req.PhoneNumber = t }).
		AddPasswordField("Senha", "", 32, '*', func(t string) {
			req.Password = t
			checklist.SetText(passwordChecklist(t, ui.theme))
		}).
		AddDropDown("Perfil", roleOptions, 0, func(option string, _ int) { req.Role = option }).
		AddButton("Cadastrar", func() { ui.submitRegister(req, form, messages) })
	return ui.formPanel("Cadastrar usuário", form, checklist, messages)
}

func (ui *UI) submitRegister(req api.SignupRequest, form *tview.Form, messages *tview.TextView) {
	if err := req.Validate(); err != nil {
		messages.SetText(formatErrors(err, ui.theme))
		return
	}
	messages.SetText(fmt.Sprintf("[%s]Enviando...[-]", ui.theme.TagMuted))
	ui.async(func() {
		err := ui.backend.Signup(ui.ctx, req)
		ui.queue(func() {
			if api.IsUnauthorized(err) {
				ui.handleError(err)
				return
			}
			if err != nil {
				messages.SetText(formatErrors(err, ui.theme))
				return
			}
			for _, label := range []string{"Usuário", "E-mail", "Telefone", "Senha"} {
				if item := form.GetFormItemByLabel(label); item != nil {
					if input, ok := item.(*tview.InputField); ok {
						input.SetText("")
					}
				}
			}
			messages.SetText(fmt.Sprintf("[%s]Usuário %s cadastrado.[-]", ui.theme.TagSuccess, tview.Escape(req.Username)))
			ui.setStatusDirect("[%s]Usuário cadastrado.[-]", ui.theme.TagSuccess)
		})
	})
}
