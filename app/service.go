package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/kilianp07/fieldassign/api/assignments"
	"github.com/kilianp07/fieldassign/config"
	"github.com/kilianp07/fieldassign/core/assignment"
	"github.com/kilianp07/fieldassign/core/assignment/logging"
	"github.com/kilianp07/fieldassign/core/commit"
	"github.com/kilianp07/fieldassign/core/engineerstatus"
	coremetrics "github.com/kilianp07/fieldassign/core/metrics"
	coremon "github.com/kilianp07/fieldassign/core/monitoring"
	"github.com/kilianp07/fieldassign/core/scheduler"
	"github.com/kilianp07/fieldassign/infra/directory"
	"github.com/kilianp07/fieldassign/infra/logger"
	"github.com/kilianp07/fieldassign/infra/metrics"
	"github.com/kilianp07/fieldassign/infra/monitoring"
	"github.com/kilianp07/fieldassign/infra/mqtt"
	"github.com/kilianp07/fieldassign/infra/redis"
	"github.com/kilianp07/fieldassign/infra/telemetry"
	"github.com/kilianp07/fieldassign/internal/eventbus"
)

// Service wires the directory, committer, sinks and engine together and
// serves them over HTTP.
type Service struct {
	Engine    *assignment.Engine
	Directory *directory.MemoryDirectory
	Handler   http.Handler

	cfg     *config.Config
	mqtt    *mqtt.PahoCommitter
	tracker *telemetry.LocationTracker
	sched   *scheduler.Scheduler
	redis   *redis.Client
	sink    coremetrics.MetricsSink
	bus     eventbus.EventBus
	log     logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")
	if cfg.Directory.SnapshotPath == "" {
		return nil, fmt.Errorf("directory.snapshot_path is required")
	}
	snap, err := directory.LoadSnapshot(cfg.Directory.SnapshotPath)
	if err != nil {
		return nil, fmt.Errorf("directory: %w", err)
	}
	dir := directory.NewMemoryDirectory(snap)
	logg.Infof("loaded %d calls and %d engineers from %s", len(snap.Calls), len(snap.Engineers), cfg.Directory.SnapshotPath)

	svc := &Service{Directory: dir, cfg: cfg, log: logg, bus: eventbus.New()}

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	var committer commit.Committer = dir
	if cfg.Commit.Mode == config.CommitMQTT {
		client, err := mqtt.NewPahoCommitter(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt committer: %w", err)
		}
		svc.mqtt = client
		committer = client
	}

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		svc.disconnect()
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	svc.sink = sink

	engine, err := assignment.NewEngine(cfg.Assignment, dir, dir, committer, sink, svc.bus, logger.New("assignment"))
	if err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("assignment engine: %w", err)
	}
	svc.Engine = engine
	engine.SetDefaultActor(cfg.Commit.DefaultActor)
	status := engineerstatus.NewMemoryStore()
	engine.SetStatusStore(status)

	var store logging.LogStore
	if cfg.Logging.Enabled() {
		store, err = logging.NewStore(cfg.Logging.Module())
		if err != nil {
			_ = svc.Close()
			return nil, fmt.Errorf("log store: %w", err)
		}
		engine.SetLogStore(store)
	}

	if cfg.Telemetry.Enabled {
		tracker := telemetry.NewLocationTracker(cfg.Telemetry, prometheus.DefaultRegisterer)
		if err := tracker.Connect(cfg.MQTT); err != nil {
			_ = svc.Close()
			return nil, fmt.Errorf("telemetry: %w", err)
		}
		svc.tracker = tracker
		engine.AddEnricher(tracker)
	}

	if cfg.Scheduler.Enabled {
		if err := svc.setupScheduler(); err != nil {
			_ = svc.Close()
			return nil, err
		}
	}

	svc.Handler = assignments.NewRouter(engine, store, assignments.Options{
		Token:   cfg.API.Token,
		Timeout: cfg.API.Timeout(),
		Status:  status,
	}, logger.New("api"))
	return svc, nil
}

// Run starts the HTTP, metrics and telemetry loops and blocks until the
// context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	metrics.StartEventCollector(ctx, s.bus, s.sink)
	if s.cfg.Metrics.PrometheusPort != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusPort, nil); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if s.sched != nil {
		go func() {
			defer coremon.Recover()
			_ = s.sched.Run(ctx)
		}()
	}
	if s.tracker != nil {
		go func() {
			if err := s.tracker.Start(ctx); err != nil {
				s.log.Errorf("telemetry: %v", err)
			}
		}()
	}

	srv := &http.Server{Addr: s.cfg.API.Address, Handler: s.Handler, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("serving assignment API on %s", s.cfg.API.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Service) setupScheduler() error {
	var lock scheduler.Lock
	if s.cfg.Scheduler.Lock == scheduler.LockRedis {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client, err := redis.New(ctx, s.cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		s.redis = client
		lock, err = redis.NewLock(client, s.cfg.Scheduler.LockKey, s.cfg.Scheduler.LockTTL())
		if err != nil {
			return fmt.Errorf("sweep lock: %w", err)
		}
	}
	sched, err := scheduler.New(s.cfg.Scheduler, s.Engine, s.Directory, lock, prometheus.DefaultRegisterer, logger.New("scheduler"))
	if err != nil {
		return err
	}
	s.sched = sched
	return nil
}

func (s *Service) disconnect() {
	if s.mqtt != nil {
		s.mqtt.Disconnect()
		s.mqtt = nil
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	var err error
	if s.Engine != nil {
		err = multierr.Append(err, s.Engine.Close())
	} else if s.bus != nil {
		s.bus.Close()
	}
	if c, ok := s.sink.(io.Closer); ok {
		err = multierr.Append(err, c.Close())
	}
	s.disconnect()
	if s.redis != nil {
		err = multierr.Append(err, s.redis.Close())
		s.redis = nil
	}
	coremon.Flush(2 * time.Second)
	return err
}
