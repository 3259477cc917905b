package receiver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rescp17/sneakvlc/internal/app"
	appevents "github.com/rescp17/sneakvlc/internal/app_events"
	"github.com/rescp17/sneakvlc/internal/app_events/receiver"
	"github.com/rescp17/sneakvlc/pkg/concurrency"
	"github.com/rescp17/sneakvlc/pkg/feed"
	"github.com/rescp17/sneakvlc/pkg/rendezvous"
	"github.com/rescp17/sneakvlc/pkg/transfer"
	"golang.org/x/sync/errgroup"
)

// FeedClient is the live table subscription the receiver watches.
// *feed.Client satisfies it.
type FeedClient interface {
	Run(ctx context.Context) error
	Updates() <-chan []rendezvous.Entry
	States() <-chan feed.State
	SendMessage(payload any)
}

var _ FeedClient = (*feed.Client)(nil)

// TransportFactory returns a fresh transport for every session.
type TransportFactory func() transfer.Transport

// Option customizes an App.
type Option func(*App)

// WithTransportFactory replaces the simulated transport.
func WithTransportFactory(f TransportFactory) Option {
	return func(a *App) {
		a.newTransport = f
	}
}

// WithSessionConfig sets the config every session is created with.
func WithSessionConfig(cfg transfer.Config) Option {
	return func(a *App) {
		a.sessionCfg = cfg
	}
}

// WithLogger sets the app logger.
func WithLogger(log *slog.Logger) Option {
	return func(a *App) {
		a.log = log
	}
}

// WithInitialDescriptor starts a session for raw as soon as Run begins.
func WithInitialDescriptor(raw string) Option {
	return func(a *App) {
		a.initial = raw
	}
}

// App is the main application logic controller for the receiver. It owns
// the feed client for its whole lifetime and runs at most one transfer
// session at a time.
type App struct {
	client       FeedClient
	guard        *concurrency.ConcurrencyGuard
	stateManager *app.StateManager
	newTransport TransportFactory
	sessionCfg   transfer.Config
	log          *slog.Logger
	initial      string

	uiMessages chan tea.Msg            // App -> TUI
	appEvents  chan appevents.AppEvent // TUI -> App
	sessionWG  sync.WaitGroup
}

// NewApp creates a receiver around client.
func NewApp(client FeedClient, opts ...Option) *App {
	a := &App{
		client:       client,
		guard:        concurrency.NewConcurrencyGuard(),
		stateManager: app.NewStateManager(),
		newTransport: func() transfer.Transport { return transfer.NewSimulatedTransport() },
		sessionCfg:   transfer.DefaultConfig(),
		log:          slog.Default(),
		uiMessages:   make(chan tea.Msg, 10),
		appEvents:    make(chan appevents.AppEvent),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.With(slog.String("component", "receiver"))
	return a
}

// UIMessages returns the channel for the UI to listen on for updates.
func (a *App) UIMessages() <-chan tea.Msg {
	return a.uiMessages
}

// AppEvents returns a write-only channel for the TUI to send events to the app.
func (a *App) AppEvents() chan<- appevents.AppEvent {
	return a.appEvents
}

// Session returns the running session, or nil.
func (a *App) Session() *transfer.Session {
	return a.stateManager.Current()
}

// Run drives the feed client and the event loop until ctx is done or the
// UI quits. The active session is disposed on the way out.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.client.Run(ctx)
	})

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case entries := <-a.client.Updates():
				a.send(ctx, receiver.EntriesUpdateMsg{Entries: entries})
			}
		}
	})

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case state := <-a.client.States():
				a.send(ctx, receiver.FeedStateMsg{State: state})
			}
		}
	})

	if a.initial != "" {
		a.startSession(ctx, a.initial)
	}

	g.Go(func() error {
		defer a.sessionWG.Wait()
		for {
			select {
			case <-ctx.Done():
				a.disposeSession()
				return nil
			case event := <-a.appEvents:
				switch e := event.(type) {
				case receiver.ConnectEvent:
					a.startSession(ctx, e.Descriptor)
				case receiver.CancelTransferEvent:
					a.disposeSession()
				case receiver.WithdrawEntryEvent:
					a.log.Info("Withdrawing entry", slog.String("id", e.ID))
					a.client.SendMessage(feed.Command{Action: feed.ActionWithdraw, ID: e.ID})
				case appevents.QuitEvent:
					cancel()
				default:
					a.log.Warn("Received unhandled app event", slog.Any("event", event))
				}
			}
		}
	})
	return g.Wait()
}

// startSession runs a session for raw in the background. A second request
// while one is running is refused with concurrency.ErrBusy.
func (a *App) startSession(ctx context.Context, raw string) {
	if a.guard.Busy() {
		a.sendAndLogError(ctx, "Cannot start transfer", concurrency.ErrBusy)
		return
	}
	a.sessionWG.Add(1)
	go func() {
		defer a.sessionWG.Done()
		err := a.guard.ExecuteWithContext(ctx, func(ctx context.Context) error {
			return a.runSession(ctx, raw)
		})
		if errors.Is(err, concurrency.ErrBusy) {
			a.sendAndLogError(ctx, "Cannot start transfer", err)
		}
	}()
}

func (a *App) runSession(ctx context.Context, raw string) error {
	session, err := transfer.NewSession(a.newTransport(),
		transfer.WithConfig(a.sessionCfg),
		transfer.WithLogger(a.log),
		transfer.WithListener(func(st transfer.Status) {
			a.send(ctx, receiver.SessionUpdateMsg{Status: st})
		}),
	)
	if err != nil {
		a.sendAndLogError(ctx, "Failed to create session", err)
		return err
	}
	if err := a.stateManager.Start(session); err != nil {
		a.sendAndLogError(ctx, "Cannot start transfer", err)
		return err
	}
	defer a.stateManager.Finish(session)

	a.log.Info("Session started", slog.String("session", session.ID()))
	err = session.Run(ctx, raw)
	switch {
	case err == nil:
	case errors.Is(err, transfer.ErrSessionDisposed):
		a.log.Info("Session cancelled", slog.String("session", session.ID()))
	default:
		a.log.Warn("Session ended with error", slog.String("session", session.ID()), slog.Any("error", err))
	}
	a.send(ctx, receiver.SessionFinishedMsg{Status: session.Status(), Err: err})
	return err
}

func (a *App) disposeSession() {
	if err := a.stateManager.Dispose(); err != nil {
		a.log.Warn("Failed to dispose session", slog.Any("error", err))
	}
}

// send gives up once ctx is done so a departed UI never wedges a session.
func (a *App) send(ctx context.Context, msg tea.Msg) {
	select {
	case a.uiMessages <- msg:
	case <-ctx.Done():
	}
}

// sendAndLogError is a helper function to both log an error and send it to the UI.
func (a *App) sendAndLogError(ctx context.Context, baseMessage string, err error) {
	a.log.Error(baseMessage, slog.Any("error", err))
	a.send(ctx, appevents.ErrorMsg{Err: fmt.Errorf("%s: %w", baseMessage, err)})
}
