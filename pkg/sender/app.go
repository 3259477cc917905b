package sender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rescp17/sneakvlc/api"
	appevents "github.com/rescp17/sneakvlc/internal/app_events"
	"github.com/rescp17/sneakvlc/internal/app_events/sender"
	"github.com/rescp17/sneakvlc/internal/util"
	"github.com/rescp17/sneakvlc/pkg/fileInfo"
	"github.com/rescp17/sneakvlc/pkg/rendezvous"
	"github.com/rescp17/sneakvlc/pkg/system"
	"github.com/skip2/go-qrcode"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// Registry is the part of the rendezvous API a sender needs. *api.Client
// satisfies it.
type Registry interface {
	Punch(ctx context.Context, hash, ip string, port int) (api.PunchResponse, error)
	Refresh(ctx context.Context, id string) error
	Withdraw(ctx context.Context, id string) error
}

var _ Registry = (*api.Client)(nil)

// Config describes what is offered and how often it is kept alive.
type Config struct {
	Path string
	// IP is the advertised address. Empty means the first private LAN
	// address of this host.
	IP              string
	Port            int
	RefreshInterval time.Duration
}

// Option customizes an App.
type Option func(*App)

// WithFs replaces the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(a *App) {
		a.fs = fs
	}
}

// WithLogger sets the app logger.
func WithLogger(log *slog.Logger) Option {
	return func(a *App) {
		a.log = log
	}
}

// WithLocalIP replaces system.LocalIPv4.
func WithLocalIP(fn func() (net.IP, error)) Option {
	return func(a *App) {
		a.localIP = fn
	}
}

const withdrawTimeout = 3 * time.Second

// App is the application logic controller for the sender.
type App struct {
	cfg        Config
	registry   Registry
	fs         afero.Fs
	log        *slog.Logger
	localIP    func() (net.IP, error)
	uiMessages chan tea.Msg            // App -> TUI
	appEvents  chan appevents.AppEvent // TUI -> App

	mu sync.Mutex
	id string
}

// NewApp creates a sender for cfg.Path that registers through registry.
func NewApp(registry Registry, cfg Config, opts ...Option) *App {
	a := &App{
		cfg:        cfg,
		registry:   registry,
		fs:         afero.NewOsFs(),
		log:        slog.Default(),
		localIP:    system.LocalIPv4,
		uiMessages: make(chan tea.Msg, 10),
		appEvents:  make(chan appevents.AppEvent),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.With(slog.String("component", "sender"))
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

// ID returns the rendezvous entry id, empty while unregistered.
func (a *App) ID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.id
}

// Run registers the file, keeps the entry alive until ctx is done or the
// user withdraws, then withdraws it.
func (a *App) Run(ctx context.Context) error {
	if a.cfg.RefreshInterval <= 0 {
		return fmt.Errorf("refresh interval must be positive, got %v", a.cfg.RefreshInterval)
	}
	node, err := a.describe()
	if err != nil {
		a.sendAndLogError(ctx, "Failed to read file", err)
		return err
	}
	ip, err := a.advertisedIP()
	if err != nil {
		a.sendAndLogError(ctx, "Failed to find a LAN address", err)
		return err
	}
	if err := a.register(ctx, node, ip); err != nil {
		a.sendAndLogError(ctx, "Registration failed", err)
		return err
	}
	defer a.withdraw()

	ctx, stop := context.WithCancel(ctx)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.keepAlive(ctx, node, ip)
	})

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case event := <-a.appEvents:
				switch event.(type) {
				case sender.WithdrawEvent, appevents.QuitEvent:
					stop()
					return nil
				}
			}
		}
	})
	return g.Wait()
}

// describe hashes the offered file and detects its MIME type.
func (a *App) describe() (fileInfo.FileNode, error) {
	if _, err := util.CheckFile(a.fs, a.cfg.Path); err != nil {
		return fileInfo.FileNode{}, err
	}
	return fileInfo.CreateNodeFs(a.fs, a.cfg.Path)
}

func (a *App) advertisedIP() (string, error) {
	if a.cfg.IP != "" {
		return a.cfg.IP, nil
	}
	ip, err := a.localIP()
	if err != nil {
		return "", err
	}
	return ip.String(), nil
}

func (a *App) register(ctx context.Context, node fileInfo.FileNode, ip string) error {
	resp, err := a.registry.Punch(ctx, node.Checksum, ip, a.cfg.Port)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.id = resp.ID
	a.mu.Unlock()

	qr, err := qrcode.New(resp.Descriptor, qrcode.Medium)
	var art string
	if err != nil {
		a.log.Warn("Could not render QR code", slog.Any("error", err))
	} else {
		art = qr.ToSmallString(false)
	}

	a.log.Info("Registered", slog.String("id", resp.ID), slog.String("descriptor", resp.Descriptor))
	a.send(ctx, sender.RegisteredMsg{ID: resp.ID, Descriptor: resp.Descriptor, QR: art, File: node})
	return nil
}

// keepAlive refreshes the entry every interval. An entry the server has
// already evicted is registered again.
func (a *App) keepAlive(ctx context.Context, node fileInfo.FileNode, ip string) error {
	ticker := time.NewTicker(a.cfg.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			err := a.registry.Refresh(ctx, a.ID())
			switch {
			case err == nil:
				a.send(ctx, sender.RefreshedMsg{At: time.Now()})
			case errors.Is(err, rendezvous.ErrNotFound):
				a.log.Warn("Entry expired on the server, registering again", slog.String("id", a.ID()))
				if err := a.register(ctx, node, ip); err != nil {
					a.sendAndLogError(ctx, "Re-registration failed", err)
				}
			case ctx.Err() != nil:
				return nil
			default:
				a.sendAndLogError(ctx, "Refresh failed", err)
			}
		}
	}
}

// withdraw runs on its own short deadline since ctx is usually done by now.
func (a *App) withdraw() {
	a.mu.Lock()
	id := a.id
	a.id = ""
	a.mu.Unlock()
	if id == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), withdrawTimeout)
	defer cancel()
	if err := a.registry.Withdraw(ctx, id); err != nil && !errors.Is(err, rendezvous.ErrNotFound) {
		a.log.Warn("Withdraw failed", slog.String("id", id), slog.Any("error", err))
	} else {
		a.log.Info("Withdrawn", slog.String("id", id))
	}
	select {
	case a.uiMessages <- sender.WithdrawnMsg{}:
	default:
	}
}

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
