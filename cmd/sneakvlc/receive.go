package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rescp17/sneakvlc/internal/config"
	"github.com/rescp17/sneakvlc/pkg/feed"
	"github.com/rescp17/sneakvlc/pkg/receiver"
	"github.com/rescp17/sneakvlc/pkg/transfer"
	"github.com/rescp17/sneakvlc/pkg/ui"
)

func newReceiveCmd(gf *globalFlags) *cobra.Command {
	var dial bool
	cmd := &cobra.Command{
		Use:   "receive [descriptor]",
		Short: "Browse live senders and receive from one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var initial string
			if len(args) == 1 {
				initial = args[0]
			}
			return runDashboard(cmd, gf, false, initial, dial)
		},
	}
	cmd.Flags().BoolVar(&dial, "dial", false, "check the sender is reachable over TCP before receiving")
	return cmd
}

func newWatchCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Show the live rendezvous table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDashboard(cmd, gf, true, "", false)
		},
	}
}

func runDashboard(cmd *cobra.Command, gf *globalFlags, watchOnly bool, initial string, dial bool) error {
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
	url, err := feed.FeedURL(server)
	if err != nil {
		return err
	}

	// The client lives for the whole program and is closed by app.Run.
	client := feed.NewClient(url,
		feed.WithReconnectPolicy(cfg.ReconnectPolicy()),
		feed.WithClientLogger(log),
	)
	app := receiver.NewApp(client, receiverOptions(cfg, log, initial, dial)...)

	log.Info("Starting receiver", slog.String("feed", url), slog.Bool("watch_only", watchOnly))
	return runTUI(ctx, app, ui.NewReceiverModel(app, watchOnly))
}

func receiverOptions(cfg config.Config, log *slog.Logger, initial string, dial bool) []receiver.Option {
	opts := []receiver.Option{
		receiver.WithLogger(log),
		receiver.WithSessionConfig(cfg.TransferConfig()),
		receiver.WithTransportFactory(func() transfer.Transport {
			t := transfer.NewSimulatedTransport()
			t.Dial = dial
			return t
		}),
	}
	if initial != "" {
		opts = append(opts, receiver.WithInitialDescriptor(initial))
	}
	return opts
}
