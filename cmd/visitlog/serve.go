package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"visitlog/internal/geocode"
	"visitlog/internal/ingest"
	"visitlog/internal/server"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		listen  string
		consume bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and ingestion endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(a *app) error {
				if listen == "" {
					listen = a.cfg.Listen
				}
				return serve(cmd.Context(), a, listen, consume)
			})
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides config)")
	cmd.Flags().BoolVar(&consume, "consume", false, "also consume fixes from Kafka")
	return cmd
}

func serve(ctx context.Context, a *app, listen string, consume bool) error {
	if consume && !a.cfg.KafkaEnabled() {
		return errors.New("--consume needs kafka.brokers and kafka.topic")
	}

	exporter, err := a.exporter(ctx, "")
	if err != nil {
		return err
	}

	srv := server.New(a.engine, a.logger, server.Options{
		Exporter: exporter,
		Geocoder: geocode.NewService(a.db, a.cfg.Geocode.BaseURL, a.cfg.Geocode.UserAgent, a.logger),
		Metrics:  a.metrics.Handler(),
	})
	httpServer := &http.Server{
		Addr:              listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("starting server", zap.String("addr", listen))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if consume {
		consumer := ingest.NewConsumer(
			ingest.NewReader(a.cfg.Kafka.Brokers, a.cfg.Kafka.Topic, a.cfg.Kafka.GroupID),
			a.engine, a.logger,
		)
		defer consumer.Close()
		g.Go(func() error { return consumer.Run(ctx) })
	}

	return g.Wait()
}
