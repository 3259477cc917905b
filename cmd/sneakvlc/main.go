package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/rescp17/sneakvlc/api"
	"github.com/rescp17/sneakvlc/internal/config"
	"github.com/rescp17/sneakvlc/pkg/discovery"
)

const (
	logFile         = "sneakvlc.log"
	discoverTimeout = 5 * time.Second
)

// globalFlags are shared by every command.
type globalFlags struct {
	configPath string
	envPath    string
	logLevel   string
	server     string
	discover   bool
}

func main() {
	var gf globalFlags
	root := &cobra.Command{
		Use:     "sneakvlc",
		Short:   "Rendezvous server and peers for video-stream file exchange",
		Version: api.Version,
	}
	root.PersistentFlags().StringVar(&gf.configPath, "config", "", "YAML configuration file")
	root.PersistentFlags().StringVar(&gf.envPath, "env", ".env", "dotenv file with SNEAKVLC_* overrides")
	root.PersistentFlags().StringVar(&gf.logLevel, "log-level", "", "debug, info, warn or error")
	root.PersistentFlags().StringVar(&gf.server, "server", "", "rendezvous server URL")
	root.PersistentFlags().BoolVar(&gf.discover, "discover", false, "find the rendezvous server with mDNS")

	root.AddCommand(
		newServeCmd(&gf),
		newSendCmd(&gf),
		newReceiveCmd(&gf),
		newWatchCmd(&gf),
		newDecodeCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := fang.Execute(ctx, root); err != nil {
		os.Exit(1)
	}
}

// loadConfig applies defaults, the config file, dotenv and environment,
// then the flags the user actually set.
func loadConfig(cmd *cobra.Command, gf *globalFlags) (config.Config, error) {
	cfg, err := config.Load(afero.NewOsFs(), gf.configPath, gf.envPath)
	if err != nil {
		return config.Config{}, err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = gf.logLevel
	}
	if flags.Changed("server") {
		cfg.Server = gf.server
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// fileLogger keeps the terminal clean for the TUI commands.
func fileLogger(cfg config.Config) (*slog.Logger, io.Closer, error) {
	f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot open log file: %w", err)
	}
	log := cfg.NewLogger(f)
	slog.SetDefault(log)
	return log, f, nil
}

// resolveServer returns the configured server URL, or browses for one when
// --discover is set.
func resolveServer(ctx context.Context, cfg config.Config, gf *globalFlags, log *slog.Logger) (string, error) {
	if !gf.discover {
		return cfg.Server, nil
	}
	discovery.Quiet()
	ctx, cancel := context.WithTimeout(ctx, discoverTimeout)
	defer cancel()
	svc, err := discovery.FindServer(ctx, &discovery.MDNSAdapter{Log: log})
	if err != nil {
		return "", fmt.Errorf("no rendezvous server found on the local network: %w", err)
	}
	log.Info("Discovered rendezvous server", slog.String("name", svc.Name), slog.String("url", svc.URL()))
	return svc.URL(), nil
}
