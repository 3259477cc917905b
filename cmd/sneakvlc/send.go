package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rescp17/sneakvlc/api"
	"github.com/rescp17/sneakvlc/pkg/sender"
	"github.com/rescp17/sneakvlc/pkg/ui"
)

const defaultSenderPort = 9000

func newSendCmd(gf *globalFlags) *cobra.Command {
	var (
		ip   string
		port int
	)
	cmd := &cobra.Command{
		Use:   "send <file>",
		Short: "Offer a file and show its descriptor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, gf)
			if err != nil {
				return err
			}
			log, closer, err := fileLogger(cfg)
			if err != nil {
				return err
			}
			defer closer.Close()

			ctx := cmd.Context()
			server, err := resolveServer(ctx, cfg, gf, log)
			if err != nil {
				return err
			}
			client := api.NewClient(server, uuid.NewString())
			app := sender.NewApp(client, sender.Config{
				Path:            args[0],
				IP:              ip,
				Port:            port,
				RefreshInterval: time.Duration(cfg.CleanupInterval) * time.Second / 2,
			}, sender.WithLogger(log))

			log.Info("Starting sender", slog.String("server", server), slog.String("file", args[0]))
			return runTUI(ctx, app, ui.NewSenderModel(app))
		},
	}
	cmd.Flags().StringVar(&ip, "ip", "", "address to advertise (default: first private LAN address)")
	cmd.Flags().IntVar(&port, "port", defaultSenderPort, "port the stream is served on")
	return cmd
}

// runnable is an app controller with a lifetime.
type runnable interface {
	Run(ctx context.Context) error
}

// runTUI runs app next to the terminal UI. Quitting the UI stops the app.
func runTUI(ctx context.Context, app runnable, model tea.Model) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var g errgroup.Group
	g.Go(func() error {
		return app.Run(ctx)
	})

	p := tea.NewProgram(model, tea.WithContext(ctx))
	_, uiErr := p.Run()
	cancel()
	appErr := g.Wait()

	if errors.Is(uiErr, tea.ErrProgramKilled) {
		uiErr = nil
	}
	if uiErr != nil {
		return fmt.Errorf("terminal UI: %w", uiErr)
	}
	if appErr != nil && !errors.Is(appErr, context.Canceled) {
		return appErr
	}
	return nil
}
