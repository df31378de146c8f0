package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/lifecycle"
	"github.com/spf13/cobra"

	"github.com/aretw0/notely"
	lifecycleadapter "github.com/aretw0/notely/pkg/adapters/lifecycle"
	"github.com/aretw0/notely/pkg/api"
	"github.com/aretw0/notely/pkg/core"
)

var (
	serveAddr    string
	serveVault   string
	serveAdapter string
	serveWatch   bool
	serveSeed    bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the notes API",
	Long: `Serve the JSON API under /api. With the fs adapter the vault is
created when missing and, with --watch, edits made to its files outside of
notely are picked up and reported.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sc := cfg.Server
		if cmd.Flags().Changed("addr") {
			sc.Addr = serveAddr
		}
		if cmd.Flags().Changed("vault") {
			sc.Vault = serveVault
		}
		if cmd.Flags().Changed("adapter") {
			sc.Adapter = serveAdapter
		}

		logger := slog.Default()
		svc, err := openService(ctx, sc,
			notely.WithAutoInit(true),
			notely.WithWatcherErrorHandler(func(err error) {
				logger.Warn("vault watcher error", "error", err)
			}),
		)
		if err != nil {
			fatal("Failed to open storage", err)
		}
		defer notely.Release(svc.Repository())

		if serveSeed {
			res, err := svc.Seed(notely.WithChangeReason(ctx, seedReason))
			if err != nil {
				fatal("Failed to seed", err)
			}
			logger.Info("seeded", "categories", len(res.Categories), "user", res.User.Username)
		}

		metrics := api.NewMetrics()
		opts := []api.Option{
			api.WithLogger(logger),
			api.WithMetrics(metrics),
			api.WithSessions(api.NewSessionStore(sc.SessionTTL, nil)),
			api.WithAllowedOrigins(sc.AllowedOrigins...),
			api.WithPageSize(sc.PageSize),
			api.WithSecureCookies(sc.SecureCookies),
		}
		if c, ok := svc.Repository().(api.Component); ok {
			opts = append(opts, api.WithComponent("repository", c))
		}
		server := api.New(svc, opts...)

		sources := []lifecycle.Source{lifecycleadapter.NewSource(svc.Subscribe(ctx))}
		if serveWatch {
			events, err := svc.Watch(ctx, "*.md")
			if err != nil {
				logger.Warn("external changes will not be picked up", "error", err)
			} else {
				sources = append(sources, lifecycleadapter.NewSource(events, lifecycleadapter.WithKinds(core.KindNote)))
			}
		}
		for _, src := range sources {
			if err := relay(ctx, src, metrics, logger); err != nil {
				fatal("Failed to start event relay", err)
			}
		}

		if err := server.Serve(ctx, sc.Addr); err != nil {
			fatal("Server failed", err)
		}
	},
}

// relay logs every change event of src and counts it in metrics.
func relay(ctx context.Context, src lifecycle.Source, metrics *api.Metrics, logger *slog.Logger) error {
	if err := src.Start(ctx); err != nil {
		return err
	}
	lifecycle.Go(ctx, func(ctx context.Context) error {
		for ev := range src.Events() {
			if e, ok := ev.(core.Event); ok {
				metrics.ObserveEvent(e)
				logger.Debug("change", "type", e.Type, "kind", e.Kind, "id", e.ID)
				continue
			}
			logger.Debug("change", "event", ev.String())
		}
		return nil
	}, lifecycle.WithErrorHandler(func(err error) {
		logger.Error("event relay failed", "error", err)
	}))
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8000", "Listen address")
	serveCmd.Flags().StringVar(&serveVault, "vault", "./vault", "Vault directory (fs adapter)")
	serveCmd.Flags().StringVar(&serveAdapter, "adapter", "fs", "Storage adapter: fs or postgres")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "Pick up edits made to vault files outside notely")
	serveCmd.Flags().BoolVar(&serveSeed, "seed", false, "Ensure the default categories and demo user on start")
}
