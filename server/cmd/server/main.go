package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cocoaplant/cocoaplant/pkg/ingest"
	"github.com/cocoaplant/cocoaplant/pkg/rules"
	"github.com/cocoaplant/cocoaplant/server/internal/alerts"
	"github.com/cocoaplant/cocoaplant/server/internal/api"
	"github.com/cocoaplant/cocoaplant/server/internal/audit"
	"github.com/cocoaplant/cocoaplant/server/internal/auth"
	"github.com/cocoaplant/cocoaplant/server/internal/config"
	"github.com/cocoaplant/cocoaplant/server/internal/metrics"
	"github.com/cocoaplant/cocoaplant/server/internal/queue"
	"github.com/cocoaplant/cocoaplant/server/internal/report"
	"github.com/cocoaplant/cocoaplant/server/internal/store"
	"github.com/cocoaplant/cocoaplant/server/internal/stream"
	"github.com/cocoaplant/cocoaplant/server/internal/ws"
)

const (
	hubInterval   = 5 * time.Second
	cacheInterval = time.Minute
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	seed := flag.Int64("seed", 0, "sensor stream seed; 0 picks a random one")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	s := cfg.Server

	var level slog.LevelVar
	level.Set(logLevel(s.LogLevel))
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: &level}))
	slog.SetDefault(logger)

	slog.Info("cocoaplant-server starting",
		"config", *configPath,
		"http_port", s.HTTPPort,
		"auth_mode", s.Auth.Mode,
		"report_provider", s.Report.Provider,
		"stream", s.Stream.Enabled,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := metrics.New()

	snapshots := store.NewSnapshots(s.Snapshot.TTL)
	for _, d := range store.SeedDrying() {
		snapshots.Put(d)
	}
	batches := store.NewBatches(store.SeedHistory())

	pipeline := ingest.New(ingest.Options{
		DemoMode: s.Ingest.DemoMode,
		DemoRows: s.Ingest.DemoRows,
		MaxRows:  s.Ingest.MaxRows,
	})

	alertEngine := alerts.New(s.Alerts, s.Rules, reg)
	reports := report.NewService(newGenerator(ctx, s.Report), report.Options{
		CacheTTL:    s.Report.CacheTTL,
		Timeout:     s.Report.Timeout,
		MinInterval: s.Report.MinInterval,
		Metrics:     reg,
	})
	jobs := queue.New(s.Queue.Tick, s.Queue.Retention, reg)
	auditLog := audit.New()

	var compliance atomic.Pointer[[]rules.ExportRule]
	compliance.Store(&s.Compliance.Rules)

	// The hub greets every client with the active alert list and then
	// relays engine and queue events.
	hub := ws.New(func() any { return alertEngine.Active() }, hubInterval)
	alertEngine.OnEvent(func(ev alerts.Event) {
		if ev.Kind == alerts.EventResolved {
			hub.Publish(ws.EventAlerts, alertEngine.Active())
			return
		}
		hub.Publish(ev.Kind, ev.Data)
	})
	cancelJobs := jobs.Subscribe(func(list []queue.Job) { hub.Publish("jobs", list) })
	defer cancelJobs()

	var (
		sim     *stream.Simulator
		monitor *stream.Monitor
	)
	if s.Stream.Enabled {
		sim = stream.NewSimulator(s.Stream.Interval, *seed)
		monitor = stream.NewMonitor(stream.MonitorOptions{
			Snapshots:    snapshots,
			Batches:      batches,
			Rules:        alertEngine,
			Publisher:    hub,
			Metrics:      reg,
			Window:       s.Stream.Window,
			Sigma:        s.Stream.Sigma,
			HistoryDepth: s.Rules.ConsecutiveBatches,
		})
		detach := monitor.Attach(sim)
		defer detach()
		sim.Connect()
	}

	reg.Gauge(metrics.BatchesGauge, func() float64 { return float64(batches.Count()) })
	reg.Gauge(metrics.WSClientsGauge, func() float64 { return float64(hub.Count()) })

	apiHandler := api.New(api.Deps{
		Batches:        batches,
		Snapshots:      snapshots,
		Pipeline:       pipeline,
		Alerts:         alertEngine,
		Reports:        reports,
		Queue:          jobs,
		Audit:          auditLog,
		Monitor:        monitor,
		Stream:         sim,
		Metrics:        reg,
		Compliance:     func() []rules.ExportRule { return *compliance.Load() },
		MaxUploadBytes: s.Ingest.MaxUploadBytes,
		Auth: auth.Options{
			Mode:       s.Auth.Mode,
			KeyHeader:  s.Auth.EffectiveHeader(),
			Key:        s.Auth.Key(),
			RoleHeader: s.Auth.RoleHeader,
		},
	})

	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", apiHandler)
	httpMux.Handle("/ws/stream", hub)
	httpMux.Handle("/metrics", reg)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.HTTPPort),
		Handler:           httpMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("HTTP server listening", "port", s.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error { snapshots.Run(gctx); return nil })
	g.Go(func() error { reports.Cache().Run(gctx, cacheInterval); return nil })
	g.Go(func() error { hub.Run(gctx); return nil })
	g.Go(func() error {
		err := config.Watch(gctx, *configPath, func(next *config.Config) {
			level.Set(logLevel(next.Server.LogLevel))
			alertEngine.SetThresholds(next.Server.Rules)
			compliance.Store(&next.Server.Compliance.Rules)
			slog.Info("config reloaded", "log_level", next.Server.LogLevel, "compliance_rules", len(next.Server.Compliance.Rules))
		})
		if err != nil {
			slog.Warn("config watch disabled", "err", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("cocoaplant-server shutting down")
		shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server stopped", "err", err)
	}

	if sim != nil {
		sim.Disconnect()
	}
	jobs.Close()
	alertEngine.Wait()
}

// newGenerator returns the report generator for cfg, falling back to the
// static generator when the provider is off or no key is set.
func newGenerator(ctx context.Context, cfg config.ReportConfig) report.Generator {
	if cfg.Provider != "genai" {
		return report.Static{}
	}
	key := cfg.APIKey()
	if key == "" {
		slog.Warn("report: no API key set, reports use fallback text", "env", cfg.APIKeyEnv)
		return report.Static{}
	}
	gen, err := report.NewGenAI(ctx, key, cfg.Model)
	if err != nil {
		slog.Error("report: generator unavailable, reports use fallback text", "err", err)
		return report.Static{}
	}
	return gen
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
