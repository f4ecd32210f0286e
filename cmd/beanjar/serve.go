package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/beanjar/internal/metrics"
	"github.com/dukerupert/beanjar/internal/oracle"
	"github.com/dukerupert/beanjar/internal/push"
	"github.com/dukerupert/beanjar/internal/server"
)

func newServeCmd(rt *runtime) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				rt.cfg.Port = port
			}
			return serve(cmd.Context(), rt)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (overrides BEANJAR_PORT)")
	return cmd
}

func serve(ctx context.Context, rt *runtime) error {
	logger := rt.logger

	db, cleanup, err := openDB(rt)
	if err != nil {
		return err
	}
	defer cleanup()

	m := metrics.New()

	var o oracle.Oracle = oracle.Heuristic{}
	if rt.cfg.Oracle.URL != "" {
		o = &oracle.Fallback{
			Primary:   oracle.NewClient(oracle.Config{BaseURL: rt.cfg.Oracle.URL, Model: rt.cfg.Oracle.Model, APIKey: rt.cfg.Oracle.APIKey}, m),
			Secondary: oracle.Heuristic{},
			Logger:    logger.With("component", "oracle"),
		}
		logger.Info("oracle configured", "url", rt.cfg.Oracle.URL, "model", rt.cfg.Oracle.Model)
	} else {
		logger.Info("no oracle url set, using heuristic judge")
	}

	var pushSvc *push.Service
	pushCfg := push.Config{
		VAPIDPublicKey:  rt.cfg.Push.VAPIDPublicKey,
		VAPIDPrivateKey: rt.cfg.Push.VAPIDPrivateKey,
		Subject:         rt.cfg.Push.Subject,
	}
	if pushCfg.Enabled() {
		pushSvc = push.NewService(pushCfg)
		logger.Info("web push enabled")
	}
	notifier := push.NewNotifier(pushSvc, db, logger.With("component", "push"))

	srv := server.New(db, server.Options{
		Oracle:      o,
		Push:        pushSvc,
		Notifier:    notifier,
		Metrics:     m,
		CORSOrigins: rt.cfg.CORSOrigins,
		Logger:      logger,
	})

	httpServer := &http.Server{
		Addr:         ":" + rt.cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("beanjar running", "addr", "http://localhost:"+rt.cfg.Port, "db", rt.cfg.DBPath)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		srv.RateLimiter().Run(gctx, time.Minute)
		return nil
	})

	g.Go(func() error {
		notifier.Run(gctx)
		return nil
	})

	if snaps := newSnapshotManager(rt, db); snaps.Enabled() && rt.cfg.Snapshot.Interval > 0 {
		logger.Info("snapshot schedule enabled", "interval", rt.cfg.Snapshot.Interval, "retention", rt.cfg.Snapshot.Retention)
		g.Go(func() error {
			snaps.Run(gctx, rt.cfg.Snapshot.Interval, rt.cfg.Snapshot.Retention)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
