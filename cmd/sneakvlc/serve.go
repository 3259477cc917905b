package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rescp17/sneakvlc/api"
	"github.com/rescp17/sneakvlc/internal/config"
	"github.com/rescp17/sneakvlc/internal/mirror"
	"github.com/rescp17/sneakvlc/pkg/discovery"
	"github.com/rescp17/sneakvlc/pkg/feed"
	"github.com/rescp17/sneakvlc/pkg/rendezvous"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(gf *globalFlags) *cobra.Command {
	var (
		listen          string
		maxTableSize    int
		cleanupInterval int
		rotate          bool
		redisURL        string
		noMDNS          bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the rendezvous server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, gf)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("listen") {
				cfg.Listen = listen
			}
			if flags.Changed("max-table-size") {
				cfg.MaxTableSize = maxTableSize
			}
			if flags.Changed("cleanup-interval") {
				cfg.CleanupInterval = cleanupInterval
			}
			if flags.Changed("rotate") {
				cfg.Rotate = rotate
			}
			if flags.Changed("redis-url") {
				cfg.RedisURL = redisURL
			}
			if noMDNS {
				cfg.MDNS = false
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, cfg.NewLogger(os.Stderr))
		},
	}
	cmd.Flags().StringVar(&listen, "listen", config.DefaultListen, "address to listen on")
	cmd.Flags().IntVar(&maxTableSize, "max-table-size", rendezvous.DefaultTableSize, "maximum number of entries (5-50)")
	cmd.Flags().IntVar(&cleanupInterval, "cleanup-interval", int(rendezvous.DefaultCleanupInterval/time.Second), "sweep period in seconds (10-300)")
	cmd.Flags().BoolVar(&rotate, "rotate", false, "evict the oldest entry instead of rejecting when full")
	cmd.Flags().StringVar(&redisURL, "redis-url", "", "mirror every snapshot to this redis server")
	cmd.Flags().BoolVar(&noMDNS, "no-mdns", false, "do not announce the server on the local network")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	tableCfg := cfg.TableConfig()
	table, err := rendezvous.NewTable(tableCfg, rendezvous.WithLogger(log))
	if err != nil {
		return err
	}
	pub := feed.NewPublisher(table, log)
	table.OnChange(pub.Publish)

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.NewServer(table, pub, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	port, err := listenPort(cfg.Listen)
	if err != nil {
		return err
	}

	var (
		mir *mirror.Mirror
		rdb *redis.Client
	)
	if cfg.RedisURL != "" {
		if mir, rdb, err = mirror.Open(ctx, cfg.RedisURL, tableCfg.TTL(), log); err != nil {
			return err
		}
		log.Info("Mirroring snapshots to redis", slog.String("key", mirror.KeyEntries))
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return table.Run(ctx)
	})
	g.Go(func() error {
		return pub.Run(ctx, tableCfg.CleanupInterval)
	})
	g.Go(func() error {
		log.Info("Rendezvous server listening", slog.String("addr", cfg.Listen),
			slog.Int("max_table_size", tableCfg.MaxSize), slog.Duration("ttl", tableCfg.TTL()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	if cfg.MDNS {
		discovery.Quiet()
		adapter := &discovery.MDNSAdapter{Log: log}
		g.Go(func() error {
			host, _ := os.Hostname()
			err := adapter.Announce(ctx, discovery.ServiceInfo{
				Name: "sneakvlc-" + host,
				Port: port,
				Text: map[string]string{"version": api.Version},
			})
			if err != nil {
				log.Warn("mDNS announcement stopped", slog.Any("error", err))
			}
			return nil
		})
	}

	if mir != nil {
		sub := pub.Subscribe()
		g.Go(func() error {
			defer rdb.Close()
			defer pub.Unsubscribe(sub)
			return mir.Run(ctx, sub)
		})
	}

	return g.Wait()
}

func listenPort(addr string) (int, error) {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return 0, fmt.Errorf("invalid listen port %q: %w", p, err)
	}
	return port, nil
}
