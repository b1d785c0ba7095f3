package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/nilcar/leads-console/internal/api"
	"github.com/nilcar/leads-console/internal/assistant"
)

// chatScreen shows the internal assistant transcript with an input line.
type chatScreen struct {
	ui         *UI
	conv       *assistant.Conversation
	root       *tview.Flex
	transcript *tview.TextView
	input      *tview.InputField
	pending    string
}

func newChatScreen(ui *UI, conv *assistant.Conversation) *chatScreen {
	t := ui.theme
	cs := &chatScreen{ui: ui, conv: conv}
	cs.transcript = tview.NewTextView().
		SetDynamicColors(true).
		SetWordWrap(true).
		SetScrollable(true)
	cs.transcript.SetBorder(true).SetTitle(" Chat interno ").SetTitleAlign(tview.AlignLeft)
	cs.transcript.SetBorderColor(t.Border)

	cs.input = tview.NewInputField().
		SetLabel("> ").
		SetPlaceholder("Pergunte sobre os leads")
	cs.input.SetFieldBackgroundColor(t.SelectionBg)
	cs.input.SetFieldTextColor(t.TextPrimary)
	cs.input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			cs.send(cs.input.GetText())
		}
	})

	cs.root = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(cs.transcript, 0, 1, false).
		AddItem(cs.input, 1, 0, true)
	cs.renderTranscript()
	return cs
}

// send asks one question. Blank input and input while waiting are ignored.
func (cs *chatScreen) send(text string) {
	ui := cs.ui
	text = strings.TrimSpace(text)
	if text == "" || cs.conv.Busy() || cs.pending != "" {
		return
	}
	cs.pending = text
	cs.input.SetText("")
	cs.renderTranscript()
	ui.async(func() {
		_, err := cs.conv.Send(ui.ctx, text)
		ui.queue(func() {
			cs.pending = ""
			if api.IsUnauthorized(err) {
				ui.handleError(err)
				return
			}
			if err != nil && !errors.Is(err, assistant.ErrBusy) && !errors.Is(err, assistant.ErrEmpty) {
				ui.setStatusDirect("[%s]%s[-]", ui.theme.TagError, tview.Escape(api.Message(err)))
			}
			cs.renderTranscript()
		})
	})
}

func (cs *chatScreen) renderTranscript() {
	t := cs.ui.theme
	var b strings.Builder
	msgs := cs.conv.Messages()
	if len(msgs) == 0 && cs.pending == "" {
		fmt.Fprintf(&b, "[%s]Nenhuma mensagem ainda. Digite uma pergunta e pressione Enter.[-]", t.TagMuted)
	}
	for _, m := range msgs {
		who, color := "Você", t.TagAccent
		if m.Role == assistant.RoleAssistant {
			who, color = "Assistente", t.TagSuccess
		}
		fmt.Fprintf(&b, "[%s]%s[-] [%s]%s[-]\n%s\n\n", color, who, t.TagMuted, m.Timestamp.Format("15:04"), tview.Escape(m.Content))
	}
	if cs.pending != "" && !lastIsUser(msgs, cs.pending) {
		fmt.Fprintf(&b, "[%s]Você[-]\n%s\n\n", t.TagAccent, tview.Escape(cs.pending))
	}
	if cs.pending != "" {
		fmt.Fprintf(&b, "[%s]Assistente está digitando...[-]", t.TagMuted)
	} else if err := cs.conv.Err(); err != nil {
		fmt.Fprintf(&b, "[%s]Falha ao obter resposta: %s[-]", t.TagError, tview.Escape(api.Message(err)))
	}
	cs.transcript.SetText(b.String())
	cs.transcript.ScrollToEnd()
}

func lastIsUser(msgs []assistant.Message, text string) bool {
	if len(msgs) == 0 {
		return false
	}
	last := msgs[len(msgs)-1]
	return last.Role == assistant.RoleUser && last.Content == text
}
