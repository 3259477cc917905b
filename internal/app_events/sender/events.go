package sender

import (
	"time"

	appevents "github.com/rescp17/sneakvlc/internal/app_events"
	"github.com/rescp17/sneakvlc/pkg/fileInfo"
)

// --- App Events (from TUI to App) ---

// WithdrawEvent removes the registration and stops refreshing it.
type WithdrawEvent struct {
	appevents.Event
}

var _ appevents.AppEvent = WithdrawEvent{}

// --- UI Messages (from App to TUI) ---

// RegisteredMsg is sent after the server accepted the offer.
type RegisteredMsg struct {
	appevents.UIMessage
	ID         string
	Descriptor string
	QR         string
	File       fileInfo.FileNode
}

// RefreshedMsg is sent after every successful keep-alive.
type RefreshedMsg struct {
	appevents.UIMessage
	At time.Time
}

// WithdrawnMsg is sent once the registration is gone.
type WithdrawnMsg struct {
	appevents.UIMessage
}

var (
	_ appevents.AppUIMessage = RegisteredMsg{}
	_ appevents.AppUIMessage = RefreshedMsg{}
	_ appevents.AppUIMessage = WithdrawnMsg{}
)
