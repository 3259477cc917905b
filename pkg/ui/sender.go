package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	appevents "github.com/rescp17/sneakvlc/internal/app_events"
	senderEvent "github.com/rescp17/sneakvlc/internal/app_events/sender"
	"github.com/rescp17/sneakvlc/internal/style"
	"github.com/rescp17/sneakvlc/internal/util"
	"github.com/rescp17/sneakvlc/pkg/failure"
)

// senderState defines the different states of the sender UI.
type senderState int

const (
	registering senderState = iota
	registered
	withdrawn
	registrationFailed
)

type senderModel struct {
	state       senderState
	spinner     spinner.Model
	reg         senderEvent.RegisteredMsg
	lastRefresh time.Time
	lastError   error
}

type senderKeyMap struct {
	Withdraw key.Binding
	Quit     key.Binding
}

// SenderKeyMap provides the sender key bindings.
var SenderKeyMap = senderKeyMap{
	Withdraw: key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "withdraw")),
	Quit:     key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
}

func initSenderModel() senderModel {
	return senderModel{
		spinner: style.NewSpinner(),
		state:   registering,
	}
}

func (m *model) initSender() tea.Cmd {
	return tea.Batch(m.sender.spinner.Tick, m.listenForAppMessages(), tick())
}

func (m *model) updateSender(msg tea.Msg) (tea.Model, tea.Cmd) {
	if cmd, processed := m.handleSenderAppEvent(msg); processed {
		return m, cmd
	}

	switch msg := msg.(type) {
	case tickMsg:
		return m, tick()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.sender.spinner, cmd = m.sender.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, SenderKeyMap.Quit):
			return m, tea.Sequence(m.sendEvent(appevents.QuitEvent{}), tea.Quit)
		case key.Matches(msg, SenderKeyMap.Withdraw):
			if m.sender.state == registered {
				return m, m.sendEvent(senderEvent.WithdrawEvent{})
			}
		case msg.Type == tea.KeyEnter:
			if m.sender.state == withdrawn || m.sender.state == registrationFailed {
				return m, tea.Quit
			}
		}
	}
	return m, nil
}

func (m *model) handleSenderAppEvent(msg tea.Msg) (tea.Cmd, bool) {
	switch msg := msg.(type) {
	case senderEvent.RegisteredMsg:
		m.sender.reg = msg
		m.sender.state = registered
		m.sender.lastError = nil
		m.sender.lastRefresh = m.now()
	case senderEvent.RefreshedMsg:
		m.sender.lastRefresh = msg.At
	case senderEvent.WithdrawnMsg:
		m.sender.state = withdrawn
	case appevents.ErrorMsg:
		m.sender.lastError = msg.Err
		if m.sender.state == registering {
			m.sender.state = registrationFailed
		}
	case appevents.StatusUpdateMsg:
	default:
		return nil, false
	}
	return m.listenForAppMessages(), true
}

func (m *model) senderView() string {
	s := m.sender
	var b strings.Builder
	b.WriteString(style.TitleStyle.Render("SneakVLC sender") + "\n\n")

	switch s.state {
	case registering:
		fmt.Fprintf(&b, "%s Registering with the rendezvous server...\n", s.spinner.View())
	case registered:
		f := s.reg.File
		fmt.Fprintf(&b, "%s %s (%s, %s)\n", style.LabelStyle.Render("File"),
			style.HighlightFontStyle.Render(f.Name), util.FormatSize(f.Size), f.MimeType)
		fmt.Fprintf(&b, "%s %s\n\n", style.LabelStyle.Render("Hash"), util.ShortHash(f.Checksum, 16))
		if s.reg.QR != "" {
			b.WriteString(s.reg.QR + "\n")
		}
		fmt.Fprintf(&b, "%s\n\n", style.HighlightFontStyle.Render(s.reg.Descriptor))
		fmt.Fprintf(&b, "%s %s  %s\n", s.spinner.View(), style.LabelStyle.Render("Offering, last refresh"), util.FormatAge(m.now(), s.lastRefresh))
		help := fmt.Sprintf("%s %s  %s %s",
			SenderKeyMap.Withdraw.Help().Key, SenderKeyMap.Withdraw.Help().Desc,
			SenderKeyMap.Quit.Help().Key, SenderKeyMap.Quit.Help().Desc)
		b.WriteString(style.HelpStyle.Render(help) + "\n")
	case withdrawn:
		b.WriteString("Offer withdrawn.\n\nPress Enter to exit.\n")
	case registrationFailed:
		b.WriteString("Could not register the file.\n\nPress Enter to exit.\n")
	}
	if s.lastError != nil {
		b.WriteString("\n" + style.ErrorStyle.Render(failure.Message(s.lastError)) + "\n")
	}
	return b.String()
}
