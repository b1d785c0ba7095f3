package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/nilcar/leads-console/internal/api"
	"github.com/nilcar/leads-console/internal/validate"
)

const overlayUserEdit = "user-edit"

// usersScreen lists accounts for administrators.
type usersScreen struct {
	ui    *UI
	root  *tview.Flex
	table *tview.Table
	info  *tview.TextView
	users []api.User
}

func newUsersScreen(ui *UI) *usersScreen {
	t := ui.theme
	us := &usersScreen{ui: ui}
	us.table = tview.NewTable().SetSelectable(true, false).SetFixed(1, 0)
	us.table.SetBorder(true).SetTitle(" Usuários ").SetTitleAlign(tview.AlignLeft)
	us.table.SetBorderColor(t.Border)
	us.table.SetSelectedStyle(tcell.StyleDefault.Background(t.SelectionBg).Foreground(t.SelectionFg))
	us.table.SetSelectedFunc(func(row, _ int) {
		if u, ok := us.userAt(row); ok {
			us.showEdit(u)
		}
	})
	us.table.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if ev.Key() != tcell.KeyRune {
			return ev
		}
		switch ev.Rune() {
		case 'r':
			us.load()
		case 'd':
			row, _ := us.table.GetSelection()
			if u, ok := us.userAt(row); ok {
				us.confirmDelete(u)
			}
		default:
			return ev
		}
		return nil
	})
	us.info = tview.NewTextView().SetDynamicColors(true)
	us.root = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(us.table, 0, 1, true).
		AddItem(us.info, 1, 0, false)
	return us
}

func (us *usersScreen) userAt(row int) (api.User, bool) {
	if row < 1 || row > len(us.users) {
		return api.User{}, false
	}
	return us.users[row-1], true
}

func (us *usersScreen) load() {
	ui := us.ui
	us.info.SetText(fmt.Sprintf(" [%s]Carregando usuários...[-]", ui.theme.TagMuted))
	ui.async(func() {
		users, err := ui.backend.ListUsers(ui.ctx)
		ui.queue(func() {
			if ui.users != us {
				return
			}
			if err != nil {
				us.info.SetText(fmt.Sprintf(" [%s]%s[-]", ui.theme.TagError, tview.Escape(api.Message(err))))
				ui.handleError(err)
				return
			}
			us.render(users)
		})
	})
}

func (us *usersScreen) render(users []api.User) {
	t := us.ui.theme
	us.users = users
	us.table.Clear()
	for col, title := range []string{"ID", "Usuário", "E-mail", "Telefone", "Perfil"} {
		us.table.SetCell(0, col, tview.NewTableCell(title).
			SetTextColor(t.TableHeader).
			SetBackgroundColor(t.TableHeaderBg).
			SetSelectable(false).
			SetExpansion(1))
	}
	for i, u := range users {
		bg := t.TableZebra1
		if i%2 == 1 {
			bg = t.TableZebra2
		}
		for col, text := range []string{
			strconv.FormatInt(u.ID, 10),
			u.Username,
			u.Email,
			u.PhoneNumber,
			validate.NormalizeRole(u.Role),
		} {
			us.table.SetCell(i+1, col, tview.NewTableCell(tview.Escape(text)).
				SetTextColor(t.TextPrimary).
				SetBackgroundColor(bg).
				SetExpansion(1))
		}
	}
	us.info.SetText(fmt.Sprintf(" %d usuários  [%s]Enter edita  d exclui  r recarrega[-]", len(users), t.TagMuted))
}

func (us *usersScreen) showEdit(u api.User) {
	ui := us.ui
	form := tview.NewForm()
	messages := newMessageView()
	edited := u
	roleIndex := 0
	if u.IsAdmin() {
		roleIndex = 1
	}
	edited.Role = roleOptions[roleIndex]
	form.
		AddInputField("Usuário", u.Username, 32, nil, func(t string) { edited.Username = t }).
		AddInputField("E-mail", u.Email, 36, nil, func(t string) { edited.Email = t }).
		AddInputField("Telefone", u.PhoneNumber, 20, nil, func(t string) { edited.PhoneNumber = t }).
		AddDropDown("Perfil", roleOptions, roleIndex, func(option string, _ int) { edited.Role = option }).
		AddButton("Salvar", func() { us.submitEdit(edited, messages) }).
		AddButton("Cancelar", func() { ui.closeOverlay(overlayUserEdit) })
	ui.showOverlay(overlayUserEdit, ui.formPanel(fmt.Sprintf("Editar usuário #%d", u.ID), form, messages), 66, 18)
}

// validateUser checks the fields an administrator may change.
func validateUser(u api.User) error {
	errs := validate.Errors{}
	if strings.TrimSpace(u.Username) == "" {
		errs["username"] = "Usuário é obrigatório."
	}
	if strings.TrimSpace(u.Email) != "" {
		if msg := validate.Email(u.Email); msg != "" {
			errs["email"] = msg
		}
	}
	if strings.TrimSpace(u.PhoneNumber) != "" {
		if msg := validate.Phone(u.PhoneNumber); msg != "" {
			errs["phone"] = msg
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func (us *usersScreen) submitEdit(u api.User, messages *tview.TextView) {
	ui := us.ui
	if err := validateUser(u); err != nil {
		messages.SetText(formatErrors(err, ui.theme))
		return
	}
	messages.SetText(fmt.Sprintf("[%s]Salvando...[-]", ui.theme.TagMuted))
	ui.async(func() {
		_, err := ui.backend.UpdateUser(ui.ctx, u)
		ui.queue(func() {
			if api.IsUnauthorized(err) {
				ui.handleError(err)
				return
			}
			if err != nil {
				messages.SetText(formatErrors(err, ui.theme))
				return
			}
			ui.closeOverlay(overlayUserEdit)
			ui.setStatusDirect("[%s]Usuário %s atualizado.[-]", ui.theme.TagSuccess, tview.Escape(u.Username))
			us.load()
		})
	})
}

func (us *usersScreen) confirmDelete(u api.User) {
	ui := us.ui
	ui.confirm(fmt.Sprintf("Excluir o usuário %s?", u.Username), func() {
		ui.async(func() {
			err := ui.backend.DeleteUser(ui.ctx, u.ID)
			ui.queue(func() {
				if err != nil {
					ui.handleError(err)
					return
				}
				ui.setStatusDirect("[%s]Usuário %s excluído.[-]", ui.theme.TagSuccess, tview.Escape(u.Username))
				us.load()
			})
		})
	})
}
