package receiver

import (
	appevents "github.com/rescp17/sneakvlc/internal/app_events"
	"github.com/rescp17/sneakvlc/pkg/feed"
	"github.com/rescp17/sneakvlc/pkg/rendezvous"
	"github.com/rescp17/sneakvlc/pkg/transfer"
)

// --- UI to App Events ---

// ConnectEvent starts a transfer session for a pasted or selected descriptor.
type ConnectEvent struct {
	appevents.Event
	Descriptor string
}

// CancelTransferEvent disposes the running session.
type CancelTransferEvent struct {
	appevents.Event
}

// WithdrawEntryEvent asks the server, over the feed, to drop an entry.
type WithdrawEntryEvent struct {
	appevents.Event
	ID string
}

var (
	_ appevents.AppEvent = ConnectEvent{}
	_ appevents.AppEvent = CancelTransferEvent{}
	_ appevents.AppEvent = WithdrawEntryEvent{}
)

// --- App to UI Messages ---

// EntriesUpdateMsg carries the latest table received over the feed.
type EntriesUpdateMsg struct {
	appevents.UIMessage
	Entries []rendezvous.Entry
}

// FeedStateMsg reports a feed connection change.
type FeedStateMsg struct {
	appevents.UIMessage
	State feed.State
}

// SessionUpdateMsg is a snapshot of the running session.
type SessionUpdateMsg struct {
	appevents.UIMessage
	Status transfer.Status
}

// SessionFinishedMsg is sent once the session reached a terminal state or
// was disposed.
type SessionFinishedMsg struct {
	appevents.UIMessage
	Status transfer.Status
	Err    error
}

var (
	_ appevents.AppUIMessage = EntriesUpdateMsg{}
	_ appevents.AppUIMessage = FeedStateMsg{}
	_ appevents.AppUIMessage = SessionUpdateMsg{}
	_ appevents.AppUIMessage = SessionFinishedMsg{}
)
