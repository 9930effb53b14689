package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/speedwagon-io/wificonnector/internal/buffer"
	"github.com/speedwagon-io/wificonnector/internal/collector"
	"github.com/speedwagon-io/wificonnector/internal/config"
	"github.com/speedwagon-io/wificonnector/internal/controller"
	"github.com/speedwagon-io/wificonnector/internal/health"
	"github.com/speedwagon-io/wificonnector/internal/lib/logger/sl"
	"github.com/speedwagon-io/wificonnector/internal/metrics"
	"github.com/speedwagon-io/wificonnector/internal/retry"
	"github.com/speedwagon-io/wificonnector/internal/writer"
)

const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to config file")
	once := flag.Bool("once", false, "run a single collection cycle and exit")
	dryRun := flag.Bool("dry-run", false, "log points instead of writing them")
	check := flag.Bool("check", false, "verify controller login and store health, then exit")
	flag.Parse()

	cfg := config.MustLoad(*configPath)

	log := sl.SetupLogger(cfg.Log.Level, cfg.Log.Format)

	log.Info("starting wireless connector",
		slog.String("env", cfg.Env),
		slog.String("controller", cfg.Controller.BaseURL),
		slog.String("bucket", cfg.Store.Bucket),
		slog.Bool("dry_run", *dryRun),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	policy := retry.Policy{
		MaxAttempts:  cfg.Retry.MaxAttempts,
		InitialDelay: cfg.Retry.InitialDelay,
		MaxDelay:     cfg.Retry.MaxDelay,
		Multiplier:   cfg.Retry.Multiplier,
	}

	client := controller.NewClient(log, &cfg.Controller)
	defer client.Close()

	session := controller.NewSessionManager(log, client, cfg.Controller.Username, cfg.Controller.Password)
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer closeCancel()
		session.Close(closeCtx)
	}()

	paginator := controller.NewPaginator(log, client, session, policy, cfg.Controller.QueryMethod, cfg.Controller.MaxPages)

	var store writer.PointStore
	if *dryRun {
		store = writer.NewLogStore(log)
		log.Info("dry-run mode: points will be logged instead of written")
	} else {
		influx := writer.NewInfluxStore(log, &cfg.Store)
		if cfg.Store.CreateBucket {
			if err := influx.EnsureBucket(ctx); err != nil {
				log.Error("failed to ensure bucket", sl.Err(err))
				_ = influx.Close()
				return 1
			}
		}
		store = influx
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("failed to close store", sl.Err(err))
		}
	}()

	if *check {
		return runCheck(ctx, log, session, store)
	}

	var opts []writer.Option
	var buf buffer.Buffer
	if cfg.Buffer.Enabled && !*dryRun {
		sqliteBuf, err := buffer.NewSQLiteBuffer(log, cfg.Buffer.Path)
		if err != nil {
			log.Error("failed to create buffer", sl.Err(err))
			return 1
		}
		buf = sqliteBuf
		defer func() {
			if err := buf.Close(); err != nil {
				log.Error("failed to close buffer", sl.Err(err))
			}
		}()
		opts = append(opts, writer.WithBuffer(buf, cfg.Buffer.MaxAge))
		log.Info("buffer enabled", slog.String("path", cfg.Buffer.Path))
	}

	w := writer.New(log, store, policy, cfg.Store.BatchSize, opts...)
	m := metrics.New()

	pipeline := collector.NewPipeline(log, session, paginator, w, m, collector.Options{
		PageSize:     cfg.Controller.PageSize,
		TopHosts:     cfg.Collection.TopHosts,
		SLAThreshold: cfg.Collection.SLAThreshold,
		Retry:        policy,
	})
	scheduler := collector.NewScheduler(log, pipeline, cfg.Collection.Interval, m)

	if *once || cfg.Collection.RunOnce {
		report, err := scheduler.RunOnce(ctx)
		if err != nil || report == nil || report.Result() == collector.ResultFailed {
			return 1
		}
		return 0
	}

	var healthServer *health.Server
	if cfg.Health.Enabled {
		healthServer = health.NewServer(log, cfg.Health.Address, health.WithMetrics(m.Handler()))
		healthServer.AddChecker(health.NewStoreHealthChecker(w.Health))
		healthServer.AddChecker(health.NewCycleHealthChecker(scheduler.LastSuccess, 3*cfg.Collection.Interval))
		if buf != nil {
			healthServer.AddChecker(health.NewBufferHealthChecker(buf.Count))
		}

		if err := healthServer.Start(); err != nil {
			log.Error("failed to start health server", sl.Err(err))
			return 1
		}
	}

	scheduler.Start(ctx)

	if healthServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := healthServer.Stop(shutdownCtx); err != nil {
			log.Error("failed to stop health server", sl.Err(err))
		}
	}

	log.Info("connector stopped", slog.Int64("skipped_ticks", scheduler.Skipped()))
	return 0
}

func runCheck(ctx context.Context, log *slog.Logger, session *controller.SessionManager, store writer.PointStore) int {
	code := 0

	if _, err := session.EnsureSession(ctx); err != nil {
		log.Error("controller check failed", sl.Err(err))
		code = 1
	} else {
		log.Info("controller check passed")
	}

	if err := store.Health(ctx); err != nil {
		log.Error("store check failed", sl.Err(err))
		code = 1
	} else {
		log.Info("store check passed")
	}

	return code
}
