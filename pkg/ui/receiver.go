package ui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	appevents "github.com/rescp17/sneakvlc/internal/app_events"
	receiverEvent "github.com/rescp17/sneakvlc/internal/app_events/receiver"
	"github.com/rescp17/sneakvlc/internal/style"
	"github.com/rescp17/sneakvlc/internal/util"
	"github.com/rescp17/sneakvlc/pkg/descriptor"
	"github.com/rescp17/sneakvlc/pkg/failure"
	"github.com/rescp17/sneakvlc/pkg/feed"
	"github.com/rescp17/sneakvlc/pkg/rendezvous"
	"github.com/rescp17/sneakvlc/pkg/transfer"
)

type receiverModel struct {
	watchOnly    bool
	table        table.Model
	input        textinput.Model
	inputFocused bool
	spinner      spinner.Model
	bar          progress.Model

	entries   []rendezvous.Entry
	feedState feed.State
	status    *transfer.Status
	finished  bool
	lastError error
}

type receiverKeyMap struct {
	Connect  key.Binding
	Input    key.Binding
	Cancel   key.Binding
	Withdraw key.Binding
	Quit     key.Binding
}

// ReceiverKeyMap provides the dashboard key bindings.
var ReceiverKeyMap = receiverKeyMap{
	Connect:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "receive")),
	Input:    key.NewBinding(key.WithKeys("tab", "/"), key.WithHelp("/", "paste descriptor")),
	Cancel:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel transfer")),
	Withdraw: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "withdraw entry")),
	Quit:     key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
}

var entryColumns = []table.Column{
	{Title: "ID", Width: 10},
	{Title: "Hash", Width: 14},
	{Title: "Address", Width: 22},
	{Title: "Seen", Width: 9},
}

func initReceiverModel(watchOnly bool) receiverModel {
	t := table.New(
		table.WithColumns(entryColumns),
		table.WithRows([]table.Row{}),
		table.WithFocused(true),
		table.WithHeight(1),
	)
	t.SetStyles(style.NewTableStyles())

	in := textinput.New()
	in.Placeholder = descriptor.Scheme + "://<hash>?ip=<ip>&port=<port>"
	in.CharLimit = 512
	in.Width = 60

	return receiverModel{
		watchOnly: watchOnly,
		table:     t,
		input:     in,
		spinner:   style.NewSpinner(),
		bar:       style.NewProgress(),
		entries:   []rendezvous.Entry{},
	}
}

func (m *model) initReceiver() tea.Cmd {
	return tea.Batch(m.receiver.spinner.Tick, m.listenForAppMessages(), tick())
}

func (r *receiverModel) sessionActive() bool {
	return r.status != nil && !r.finished && !r.status.State.IsTerminal()
}

func (m *model) refreshEntryRows() {
	now := m.now()
	rows := make([]table.Row, 0, len(m.receiver.entries))
	for _, e := range m.receiver.entries {
		rows = append(rows, table.Row{
			util.ShortHash(e.ID, 8),
			util.ShortHash(e.Hash, 12),
			e.Descriptor().Address(),
			util.FormatAge(now, e.LastSeen),
		})
	}
	m.receiver.table.SetRows(rows)
	m.receiver.table.SetHeight(max(len(rows), 1) + 1)
	if c := m.receiver.table.Cursor(); c >= len(rows) && len(rows) > 0 {
		m.receiver.table.SetCursor(len(rows) - 1)
	}
}

func (m *model) selectedEntry() (rendezvous.Entry, bool) {
	i := m.receiver.table.Cursor()
	if i < 0 || i >= len(m.receiver.entries) {
		return rendezvous.Entry{}, false
	}
	return m.receiver.entries[i], true
}

func (m *model) updateReceiver(msg tea.Msg) (tea.Model, tea.Cmd) {
	if cmd, processed := m.handleReceiverAppEvent(msg); processed {
		return m, cmd
	}

	switch msg := msg.(type) {
	case tickMsg:
		m.refreshEntryRows()
		return m, tick()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.receiver.spinner, cmd = m.receiver.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if m.receiver.inputFocused {
			return m, m.updateDescriptorInput(msg)
		}
		return m, m.updateDashboardKeys(msg)
	}
	return m, nil
}

func (m *model) handleReceiverAppEvent(msg tea.Msg) (tea.Cmd, bool) {
	switch msg := msg.(type) {
	case receiverEvent.EntriesUpdateMsg:
		m.receiver.entries = msg.Entries
		m.refreshEntryRows()
	case receiverEvent.FeedStateMsg:
		m.receiver.feedState = msg.State
	case receiverEvent.SessionUpdateMsg:
		st := msg.Status
		if st.State == transfer.StateConnecting {
			m.receiver.lastError = nil
		}
		m.receiver.status = &st
		m.receiver.finished = false
	case receiverEvent.SessionFinishedMsg:
		st := msg.Status
		m.receiver.status = &st
		m.receiver.finished = true
		if msg.Err != nil && !errors.Is(msg.Err, transfer.ErrSessionDisposed) {
			m.receiver.lastError = msg.Err
		}
	case appevents.ErrorMsg:
		m.receiver.lastError = msg.Err
	case appevents.StatusUpdateMsg:
	default:
		return nil, false
	}
	return m.listenForAppMessages(), true
}

func (m *model) updateDescriptorInput(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEnter:
		raw := strings.TrimSpace(m.receiver.input.Value())
		m.receiver.input.Reset()
		m.receiver.input.Blur()
		m.receiver.inputFocused = false
		m.receiver.table.Focus()
		if raw == "" {
			return nil
		}
		return m.sendEvent(receiverEvent.ConnectEvent{Descriptor: raw})
	case tea.KeyEsc:
		m.receiver.input.Blur()
		m.receiver.inputFocused = false
		m.receiver.table.Focus()
		return nil
	}
	var cmd tea.Cmd
	m.receiver.input, cmd = m.receiver.input.Update(msg)
	return cmd
}

func (m *model) updateDashboardKeys(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, ReceiverKeyMap.Quit):
		return tea.Sequence(m.sendEvent(appevents.QuitEvent{}), tea.Quit)
	case key.Matches(msg, ReceiverKeyMap.Cancel):
		if m.receiver.sessionActive() {
			return m.sendEvent(receiverEvent.CancelTransferEvent{})
		}
		return nil
	case key.Matches(msg, ReceiverKeyMap.Withdraw):
		if e, ok := m.selectedEntry(); ok {
			return m.sendEvent(receiverEvent.WithdrawEntryEvent{ID: e.ID})
		}
		return nil
	}
	if !m.receiver.watchOnly {
		switch {
		case key.Matches(msg, ReceiverKeyMap.Input):
			m.receiver.inputFocused = true
			m.receiver.table.Blur()
			return m.receiver.input.Focus()
		case key.Matches(msg, ReceiverKeyMap.Connect):
			if e, ok := m.selectedEntry(); ok {
				return m.sendEvent(receiverEvent.ConnectEvent{Descriptor: descriptor.Encode(e.Descriptor())})
			}
			return nil
		}
	}
	var cmd tea.Cmd
	m.receiver.table, cmd = m.receiver.table.Update(msg)
	return cmd
}

func (m model) receiverView() string {
	var b strings.Builder
	r := m.receiver

	indicator := "○ offline"
	if r.feedState == feed.Connected {
		indicator = "● live"
	}
	fmt.Fprintf(&b, "%s  %s  %s\n\n",
		style.TitleStyle.Render("SneakVLC"),
		style.FeedStateStyle(r.feedState).Render(indicator),
		style.LabelStyle.Render(strconv.Itoa(len(r.entries))+" sender(s)"),
	)

	if len(r.entries) == 0 {
		b.WriteString(style.HelpStyle.Render("  No senders registered yet.") + "\n")
	} else {
		b.WriteString(style.BaseStyle.Render(r.table.View()) + "\n")
	}

	if !r.watchOnly {
		b.WriteString("\n" + r.input.View() + "\n")
		if r.status != nil {
			b.WriteString("\n" + m.sessionView() + "\n")
		}
	}
	if r.lastError != nil {
		b.WriteString("\n" + style.ErrorStyle.Render(failure.Message(r.lastError)) + "\n")
	}
	b.WriteString("\n" + style.HelpStyle.Render(m.receiverHelp()) + "\n")
	return b.String()
}

func (m model) sessionView() string {
	st := m.receiver.status
	var b strings.Builder
	label := func(s string) string { return style.LabelStyle.Render(util.PadRight(s, 8)) }

	state := style.SessionStateStyle(st.State).Render(st.State.String())
	if m.receiver.sessionActive() {
		state = m.receiver.spinner.View() + " " + state
	}
	fmt.Fprintf(&b, "%s%s\n", label("State"), state)
	if st.Target.Port != 0 {
		fmt.Fprintf(&b, "%s%s  %s\n", label("Sender"), st.Target.Address(), util.ShortHash(st.Target.Hash, 12))
	}
	if st.File.Name != "" {
		fmt.Fprintf(&b, "%s%s (%s, %s)\n", label("File"),
			style.HighlightFontStyle.Render(st.File.Name), util.FormatSize(st.File.Size), st.File.MimeType)
	}
	switch st.State {
	case transfer.StateTransferring, transfer.StateCompleted:
		fmt.Fprintf(&b, "%s%s %s\n", label("Progress"), m.receiver.bar.ViewAs(st.Progress/100), util.PadLeft(fmt.Sprintf("%.0f%%", st.Progress), 4))
		if st.State == transfer.StateTransferring && st.TransferRate > 0 {
			fmt.Fprintf(&b, "%s%s/s  ETA %s\n", label("Rate"), util.FormatSize(int64(st.TransferRate)), st.ETA.Round(time.Second))
		}
	}
	if st.State == transfer.StateCompleted {
		b.WriteString(style.SuccessStyle.Render("Transfer complete!") + "\n")
	}
	if m.receiver.finished && !st.State.IsTerminal() {
		b.WriteString(style.HelpStyle.Render("Transfer cancelled.") + "\n")
	}
	return b.String()
}

func (m model) receiverHelp() string {
	bindings := []key.Binding{ReceiverKeyMap.Withdraw, ReceiverKeyMap.Quit}
	if !m.receiver.watchOnly {
		bindings = []key.Binding{ReceiverKeyMap.Connect, ReceiverKeyMap.Input, ReceiverKeyMap.Cancel, ReceiverKeyMap.Withdraw, ReceiverKeyMap.Quit}
	}
	if m.receiver.inputFocused {
		return "enter connect  esc back"
	}
	parts := make([]string, 0, len(bindings))
	for _, kb := range bindings {
		parts = append(parts, kb.Help().Key+" "+kb.Help().Desc)
	}
	return strings.Join(parts, "  ")
}
