package appevents

// AppEvent is a marker interface for events sent from the TUI to an App.
// The unexported method means only types embedding Event satisfy it.
type AppEvent interface {
	isAppEvent()
}

// Event can be embedded in other event types to satisfy AppEvent.
type Event struct{}

func (Event) isAppEvent() {}

// AppUIMessage is a marker interface for messages sent from an App to the TUI.
type AppUIMessage interface {
	isUIMessage()
}

// UIMessage can be embedded in other types to satisfy AppUIMessage.
type UIMessage struct{}

func (UIMessage) isUIMessage() {}

// --- App Events (from TUI to App) ---

// QuitEvent asks the App to release what it holds before the TUI exits.
type QuitEvent struct {
	Event
}

// --- UI Messages (from App to TUI) ---

// ErrorMsg reports a failure the user should see.
type ErrorMsg struct {
	UIMessage
	Err error
}

// StatusUpdateMsg carries a one-line status for the footer.
type StatusUpdateMsg struct {
	UIMessage
	Message string
}

var (
	_ AppEvent     = QuitEvent{}
	_ AppUIMessage = ErrorMsg{}
	_ AppUIMessage = StatusUpdateMsg{}
)
