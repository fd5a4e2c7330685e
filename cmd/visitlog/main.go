// Command visitlog records GPS fixes into a deduplicated list of visited
// places and serves them over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"visitlog/internal/config"
	"visitlog/internal/export"
	"visitlog/internal/logging"
	"visitlog/internal/metrics"
	"visitlog/internal/status"
	"visitlog/internal/store"
	"visitlog/internal/visits"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	dbPath     string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "visitlog",
		Short:         "Aggregate GPS fixes into visited places",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/visitlog/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.dbPath, "db", "", "database path (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (overrides config)")

	cmd.AddCommand(
		newServeCmd(opts),
		newConsumeCmd(opts),
		newRecordCmd(opts),
		newPlacesCmd(opts),
		newFixesCmd(opts),
		newNamesCmd(opts),
		newExportCmd(opts),
		newImportCmd(opts),
		newStatusCmd(opts),
	)
	return cmd
}

// app holds everything a command needs once configuration is loaded.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	db      *store.DB
	engine  *visits.Engine
	metrics *metrics.Collector
	redis   *redis.Client
	mirror  *status.RedisMirror
}

func openApp(opts *rootOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.dbPath != "" {
		cfg.DB = opts.dbPath
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, err
	}

	db, err := store.Open(cfg.DB)
	if err != nil {
		logger.Sync()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, db: db, metrics: metrics.New()}
	observers := []visits.Observer{a.metrics}
	if cfg.RedisEnabled() {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.mirror = status.NewRedisMirror(a.redis, cfg.Redis.Key, logger)
		observers = append(observers, a.mirror)
	}
	a.engine = visits.NewEngine(db, logger, observers...)

	logger.Debug("opened database", zap.String("path", cfg.DB), zap.Bool("redis", a.redis != nil))
	return a, nil
}

// exporter builds an exporter for the configured sink. dir, when set,
// forces a local directory.
func (a *app) exporter(ctx context.Context, dir string) (*export.Exporter, error) {
	var sink export.Sink = export.DirSink{Dir: a.cfg.Export.Dir}
	switch {
	case dir != "":
		sink = export.DirSink{Dir: dir}
	case a.cfg.Export.S3.Bucket != "":
		s3Sink, err := export.NewS3Sink(ctx, a.cfg.Export.S3.Region, a.cfg.Export.S3.Bucket, a.cfg.Export.S3.Prefix)
		if err != nil {
			return nil, err
		}
		sink = s3Sink
	}
	return export.NewExporter(a.engine, sink, a.logger), nil
}

func (a *app) Close() error {
	var err error
	if a.redis != nil {
		err = multierr.Append(err, a.redis.Close())
	}
	err = multierr.Append(err, a.db.Close())
	// Sync fails on terminals; the error carries no information.
	_ = a.logger.Sync()
	return err
}

// withApp opens the app for the duration of fn.
func withApp(opts *rootOptions, fn func(a *app) error) (err error) {
	a, err := openApp(opts)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, a.Close()) }()
	return fn(a)
}
