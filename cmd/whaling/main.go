package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"whaling/internal/amqp"
	"whaling/internal/backend"
	"whaling/internal/cli"
	"whaling/internal/config"
	"whaling/internal/events"
	apphttp "whaling/internal/http"
	applog "whaling/internal/log"
	"whaling/internal/metrics"
	"whaling/internal/view"
)

func main() {
	cfg, logger := cli.Init(applog.ComponentApp, os.Stdout, true)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server exited with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *applog.Logger) error {
	ctx, stop := cli.ShutdownContext(context.Background(), logger)
	defer stop()

	m := metrics.New()

	be, err := backend.Open(ctx, backend.ConfigFromAppConfig(cfg))
	if err != nil {
		return err
	}
	defer be.Close()

	loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	recs, err := be.Source.Load(loadCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("load records from %s: %w", cfg.DataBackend, err)
	}
	if len(recs) == 0 {
		return fmt.Errorf("%w: backend %s", view.ErrNoRecords, cfg.DataBackend)
	}
	m.SetRecordsLoaded(len(recs))
	logger.Info("Records loaded",
		applog.FieldBackend, cfg.DataBackend,
		applog.FieldRecords, len(recs))

	hub := events.NewHub(64)
	hub.OnSubscriberCount(m.SetSubscribers)
	board := view.NewBoard(len(recs), hub)

	sync := view.NewSynchronizer(recs, board.Collaborators(), view.Config{
		InitialYear:  cfg.InitialYear,
		InitialDelay: cfg.InitialDelay,
		FadeOutDelay: cfg.FadeOutDelay,
		RefreshDelay: cfg.RefreshDelay,
		FadeInDelay:  cfg.FadeInDelay,
	}, view.WithMetrics(m))
	if err := sync.Start(ctx); err != nil {
		return fmt.Errorf("start view: %w", err)
	}
	defer sync.Stop()

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Sync:    sync,
		Board:   board,
		Hub:     hub,
		Metrics: m,
		Logger:  logger,
		Ready:   be.Ready,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting whaling server", "port", cfg.Port, applog.FieldBackend, cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", cfg.Port, err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.AMQPURL != "" {
		g.Go(func() error {
			consumeRemoteSelections(gctx, cfg, sync, m)
			return nil
		})
	} else {
		logger.Info("Remote year selection disabled - no AMQP_URL provided")
	}

	return g.Wait()
}

// consumeRemoteSelections feeds AMQP year selections into the view until ctx
// is done. A broker that cannot be used is logged and the HTTP server keeps
// serving.
func consumeRemoteSelections(ctx context.Context, cfg *config.Config, sync *view.Synchronizer, m *metrics.Metrics) {
	log := applog.FromContext(ctx).WithComponent(applog.ComponentAMQP)
	dial := func() (*amqp.Client, error) {
		return amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	}
	handle := func(ctx context.Context, msg *amqp.YearSelectedMessage) error {
		if err := sync.Dispatch(ctx, msg.Selection()); err != nil {
			m.ObserveAMQPMessage("rejected")
			return err
		}
		m.ObserveAMQPMessage("applied")
		return nil
	}

	err := amqp.Run(ctx, dial, handle)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Remote year selection stopped", applog.FieldError, err)
		return
	}
	log.Info("Remote year selection stopped", applog.FieldYear, sync.CurrentYear())
}
