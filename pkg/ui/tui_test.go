package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	appevents "github.com/rescp17/sneakvlc/internal/app_events"
	receiverEvent "github.com/rescp17/sneakvlc/internal/app_events/receiver"
	senderEvent "github.com/rescp17/sneakvlc/internal/app_events/sender"
	"github.com/rescp17/sneakvlc/pkg/descriptor"
	"github.com/rescp17/sneakvlc/pkg/feed"
	"github.com/rescp17/sneakvlc/pkg/fileInfo"
	"github.com/rescp17/sneakvlc/pkg/rendezvous"
	"github.com/rescp17/sneakvlc/pkg/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeController struct {
	ui     chan tea.Msg
	events chan appevents.AppEvent
}

func newFakeController() *fakeController {
	return &fakeController{ui: make(chan tea.Msg, 10), events: make(chan appevents.AppEvent, 10)}
}

func (f *fakeController) UIMessages() <-chan tea.Msg             { return f.ui }
func (f *fakeController) AppEvents() chan<- appevents.AppEvent { return f.events }

var fixedNow = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func newReceiver(t *testing.T, c *fakeController, watchOnly bool) *model {
	t.Helper()
	m := NewReceiverModel(c, watchOnly).(model)
	m.now = func() time.Time { return fixedNow }
	return &m
}

func update(t *testing.T, m *model, msg tea.Msg) (*model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	switch v := next.(type) {
	case *model:
		return v, cmd
	case model:
		return &v, cmd
	}
	t.Fatalf("unexpected model type %T", next)
	return nil, nil
}

func runCmd(cmd tea.Cmd) {
	if cmd != nil {
		cmd()
	}
}

func nextEvent(t *testing.T, c *fakeController) appevents.AppEvent {
	t.Helper()
	select {
	case ev := <-c.events:
		return ev
	default:
		t.Fatal("no event sent")
		return nil
	}
}

var testEntries = []rendezvous.Entry{
	{ID: "11111111-aaaa", Hash: "deadbeefdeadbeef", IP: "10.0.0.1", Port: 9000, LastSeen: fixedNow.Add(-5 * time.Second)},
	{ID: "22222222-bbbb", Hash: "cafe", IP: "10.0.0.2", Port: 9001, LastSeen: fixedNow.Add(-2 * time.Minute)},
}

func TestReceiverModel_ListsEntries(t *testing.T) {
	c := newFakeController()
	m := newReceiver(t, c, false)

	m, cmd := update(t, m, receiverEvent.FeedStateMsg{State: feed.Connected})
	assert.NotNil(t, cmd, "must keep listening")
	m, _ = update(t, m, receiverEvent.EntriesUpdateMsg{Entries: testEntries})

	view := m.View()
	assert.Contains(t, view, "live")
	assert.Contains(t, view, "2 sender(s)")
	assert.Contains(t, view, "10.0.0.1:9000")
	assert.Contains(t, view, "5s ago")
	assert.Contains(t, view, "2m ago")
}

func TestReceiverModel_EnterConnectsToSelectedEntry(t *testing.T) {
	c := newFakeController()
	m := newReceiver(t, c, false)
	m, _ = update(t, m, receiverEvent.EntriesUpdateMsg{Entries: testEntries})

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	runCmd(cmd)
	_, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	runCmd(cmd)

	ev := nextEvent(t, c)
	connect, ok := ev.(receiverEvent.ConnectEvent)
	require.True(t, ok, "got %T", ev)
	d, err := descriptor.Decode(connect.Descriptor)
	require.NoError(t, err)
	assert.Equal(t, "cafe", d.Hash)
	assert.Equal(t, 9001, d.Port)
}

func TestReceiverModel_PastedDescriptor(t *testing.T) {
	c := newFakeController()
	m := newReceiver(t, c, false)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	require.True(t, m.receiver.inputFocused)
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("sneakvlc://ab?ip=h&port=1")})
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	runCmd(cmd)

	assert.False(t, m.receiver.inputFocused)
	assert.Equal(t, receiverEvent.ConnectEvent{Descriptor: "sneakvlc://ab?ip=h&port=1"}, nextEvent(t, c))
}

func TestReceiverModel_EscCancelsOnlyActiveSession(t *testing.T) {
	c := newFakeController()
	m := newReceiver(t, c, false)

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Nil(t, cmd)

	m, _ = update(t, m, receiverEvent.SessionUpdateMsg{Status: transfer.Status{
		State: transfer.StateTransferring, Progress: 40,
		File: transfer.Metadata{Name: "clip.mp4", Size: 2048, MimeType: "video/mp4"},
	}})
	assert.Contains(t, m.View(), "clip.mp4")
	assert.Contains(t, m.View(), "40%")

	_, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	runCmd(cmd)
	assert.Equal(t, receiverEvent.CancelTransferEvent{}, nextEvent(t, c))
}

func TestReceiverModel_FinishedSession(t *testing.T) {
	c := newFakeController()
	m := newReceiver(t, c, false)

	m, _ = update(t, m, receiverEvent.SessionFinishedMsg{
		Status: transfer.Status{State: transfer.StateFailed},
		Err:    &transfer.SessionError{Op: "decode", Err: &descriptor.DecodeError{Reason: "missing port"}},
	})
	assert.Contains(t, m.View(), "missing port")

	m, _ = update(t, m, receiverEvent.SessionFinishedMsg{
		Status: transfer.Status{State: transfer.StateTransferring},
		Err:    transfer.ErrSessionDisposed,
	})
	assert.Contains(t, m.View(), "Transfer cancelled.")
}

func TestReceiverModel_WatchOnlyIgnoresConnect(t *testing.T) {
	c := newFakeController()
	m := newReceiver(t, c, true)
	m, _ = update(t, m, receiverEvent.EntriesUpdateMsg{Entries: testEntries})

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	runCmd(cmd)
	assert.Empty(t, c.events)

	_, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")})
	runCmd(cmd)
	assert.Equal(t, receiverEvent.WithdrawEntryEvent{ID: "11111111-aaaa"}, nextEvent(t, c))
}

func TestSenderModel_Flow(t *testing.T) {
	c := newFakeController()
	base := NewSenderModel(c).(model)
	base.now = func() time.Time { return fixedNow }
	m := &base

	assert.Contains(t, m.View(), "Registering")

	m, _ = update(t, m, senderEvent.RegisteredMsg{
		ID:         "a",
		Descriptor: "sneakvlc://abcd?ip=10.0.0.1&port=9000",
		QR:         "QRART",
		File:       fileInfo.FileNode{Name: "movie.mkv", Size: 1536, Checksum: "abcd"},
	})
	view := m.View()
	assert.Contains(t, view, "movie.mkv")
	assert.Contains(t, view, "1.5 KB")
	assert.Contains(t, view, "QRART")
	assert.Contains(t, view, "sneakvlc://abcd?ip=10.0.0.1&port=9000")

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("w")})
	runCmd(cmd)
	assert.Equal(t, senderEvent.WithdrawEvent{}, nextEvent(t, c))

	m, _ = update(t, m, senderEvent.WithdrawnMsg{})
	assert.True(t, strings.Contains(m.View(), "withdrawn"))
}

func TestSenderModel_RegistrationError(t *testing.T) {
	c := newFakeController()
	base := NewSenderModel(c).(model)
	m := &base

	m, _ = update(t, m, appevents.ErrorMsg{Err: errors.Join(errors.New("punch"), rendezvous.ErrTableFull)})
	assert.Equal(t, registrationFailed, m.sender.state)
	assert.Contains(t, m.View(), "table is full")
}
