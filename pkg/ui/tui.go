package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	appevents "github.com/rescp17/sneakvlc/internal/app_events"
)

type mode int

const (
	None mode = iota
	Sender
	Receiver
)

// tickMsg refreshes relative times in the views.
type tickMsg time.Time

type model struct {
	mode          mode
	appController AppController
	now           func() time.Time
	sender        senderModel
	receiver      receiverModel
}

// NewSenderModel builds the UI shown by `send`.
func NewSenderModel(c AppController) tea.Model {
	return model{mode: Sender, appController: c, now: time.Now, sender: initSenderModel()}
}

// NewReceiverModel builds the dashboard shown by `receive` and `watch`.
// With watchOnly set the descriptor input and transfer keys are hidden.
func NewReceiverModel(c AppController, watchOnly bool) tea.Model {
	return model{mode: Receiver, appController: c, now: time.Now, receiver: initReceiverModel(watchOnly)}
}

func (m model) Init() tea.Cmd {
	switch m.mode {
	case Sender:
		return m.initSender()
	case Receiver:
		return m.initReceiver()
	default:
		return nil
	}
}

func (m model) View() string {
	var s string
	switch m.mode {
	case Sender:
		s += m.senderView()
	case Receiver:
		s += m.receiverView()
	default:
		return ""
	}
	s += "\nPress ctrl + c to quit"
	return s
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyCtrlC {
		return m, tea.Sequence(m.sendEvent(appevents.QuitEvent{}), tea.Quit)
	}
	switch m.mode {
	case Sender:
		return m.updateSender(msg)
	case Receiver:
		return m.updateReceiver(msg)
	}
	return m, nil
}

// listenForAppMessages is a command that listens for messages from the app controller.
func (m *model) listenForAppMessages() tea.Cmd {
	ch := m.appController.UIMessages()
	return func() tea.Msg {
		return <-ch
	}
}

// eventTimeout bounds how long a key press waits for a busy or stopped app.
const eventTimeout = time.Second

// sendEvent delivers ev off the UI goroutine.
func (m *model) sendEvent(ev appevents.AppEvent) tea.Cmd {
	ch := m.appController.AppEvents()
	return func() tea.Msg {
		select {
		case ch <- ev:
		case <-time.After(eventTimeout):
		}
		return nil
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
