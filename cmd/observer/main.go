package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/KimMachineGun/automemlimit"
	_ "go.uber.org/automaxprocs"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/kubeadapt/kueue-observer/internal/collector"
	"github.com/kubeadapt/kueue-observer/internal/config"
	"github.com/kubeadapt/kueue-observer/internal/discovery"
	"github.com/kubeadapt/kueue-observer/internal/enrichment"
	"github.com/kubeadapt/kueue-observer/internal/errors"
	"github.com/kubeadapt/kueue-observer/internal/health"
	"github.com/kubeadapt/kueue-observer/internal/kueue"
	"github.com/kubeadapt/kueue-observer/internal/observability"
	"github.com/kubeadapt/kueue-observer/internal/observer"
	"github.com/kubeadapt/kueue-observer/internal/server"
	"github.com/kubeadapt/kueue-observer/internal/snapshot"
	"github.com/kubeadapt/kueue-observer/internal/transport"
)

func main() {
	// 1. Load and validate config.
	cfg := config.Load()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// 2. Create context with signal handling.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	slog.Info("kueue-observer starting",
		"version", cfg.ObserverVersion,
		"observer_id", cfg.ObserverID,
		"poll_interval", cfg.PollInterval,
		"refresh_interval", cfg.RefreshInterval,
	)

	// 3. Build Kubernetes clients.
	restCfg, err := buildKubeConfig(cfg)
	if err != nil {
		slog.Error("failed to build kubernetes config", "error", err)
		os.Exit(1)
	}
	kubeClient, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		slog.Error("failed to create kubernetes client", "error", err)
		os.Exit(1)
	}

	// 4. Detect API capabilities.
	caps, err := discovery.Detect(kubeClient.Discovery(), cfg.QueueGroupVersion)
	if err != nil {
		slog.Error("failed to detect API capabilities", "error", err)
		os.Exit(1)
	}
	if !caps.LocalQueues {
		slog.Warn("localqueues not served; the queue list will stay in error until it is",
			"group_version", cfg.QueueGroupVersion)
	}
	if cfg.VisibilityGroupVersion == "" {
		cfg.VisibilityGroupVersion = caps.VisibilityGroupVersion
		if cfg.VisibilityGroupVersion == "" {
			cfg.VisibilityGroupVersion = kueue.DefaultVisibilityGroupVersion
			slog.Warn("no visibility API detected, falling back to default",
				"group_version", cfg.VisibilityGroupVersion)
		}
	}
	slog.Info("API capabilities detected",
		"queue_group_version", cfg.QueueGroupVersion,
		"visibility_group_version", cfg.VisibilityGroupVersion,
		"local_queues", caps.LocalQueues,
	)

	denied, err := discovery.CheckAccess(ctx, kubeClient, discovery.RequiredAccess(cfg.QueueGroupVersion, cfg.VisibilityGroupVersion))
	if err != nil {
		slog.Warn("access review failed", "error", err)
	}
	for _, rule := range denied {
		slog.Warn("missing permission, dependent queries will fail", "rule", rule.String())
	}

	// 5. Create shared infrastructure.
	metrics := observability.NewMetrics()
	errCollector := errors.NewErrorCollector(errors.RealClock{})

	rt, err := rest.TransportFor(restCfg)
	if err != nil {
		slog.Error("failed to build API transport", "error", err)
		os.Exit(1)
	}
	httpClient := transport.NewClient(rt, transport.Options{
		BaseURL:        restCfg.Host,
		RequestTimeout: cfg.RequestTimeout,
		MaxRetries:     cfg.MaxRetries,
		UserAgent:      fmt.Sprintf("kueue-observer/%s", cfg.ObserverVersion),
		Logger:         slog.Default(),
	}, metrics)
	api := kueue.NewClient(httpClient, kueue.Paths{
		QueueGroupVersion:      cfg.QueueGroupVersion,
		VisibilityGroupVersion: cfg.VisibilityGroupVersion,
	})

	// 6. Build enricher, snapshot builder, and observer.
	enricher := enrichment.NewEnricher(api, enrichment.Config{
		SubmitterLabel: cfg.SubmitterLabel,
		RetryInterval:  cfg.DetailRetryInterval,
		RequestTimeout: cfg.RequestTimeout,
	}, metrics, errCollector, errors.RealClock{})
	builder := snapshot.NewSnapshotBuilder(&cfg, enricher, metrics, errCollector, errors.RealClock{})
	registry := collector.NewRegistry()
	obs := observer.NewObserver(&cfg, api, registry, builder, observer.NewStateMachine(metrics), errCollector, metrics)

	// 7. Start health and view servers.
	healthSrv := health.NewServer(cfg.HealthPort, metrics, obs, obs, obs, enricher, cfg.DebugEndpoints)
	if err := healthSrv.Start(); err != nil {
		slog.Error("failed to start health server", "error", err)
		os.Exit(1)
	}

	viewSrv, err := server.NewServer(obs, metrics, server.Options{
		Port:           cfg.ServerPort,
		AllowedOrigins: cfg.AllowedOrigins,
	})
	if err != nil {
		slog.Error("failed to create view server", "error", err)
		os.Exit(1)
	}
	if err := viewSrv.Start(); err != nil {
		slog.Error("failed to start view server", "error", err)
		os.Exit(1)
	}
	slog.Info("servers listening", "health", healthSrv.Addr(), "view", viewSrv.Addr())

	// 8. Run observer (blocks until context is canceled).
	if err := obs.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("observer exited with error", "error", err)
	}

	// 9. Graceful shutdown.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := viewSrv.Stop(shutdownCtx); err != nil {
		slog.Error("view server shutdown error", "error", err)
	}
	if err := healthSrv.Stop(shutdownCtx); err != nil {
		slog.Error("health server shutdown error", "error", err)
	}

	slog.Info("kueue-observer stopped")
}

// buildKubeConfig resolves the API server config. An explicit API URL
// (e.g. a kubectl proxy) wins; otherwise in-cluster config, then kubeconfig.
func buildKubeConfig(cfg config.Config) (*rest.Config, error) {
	if cfg.APIURL != "" {
		return &rest.Config{Host: cfg.APIURL}, nil
	}

	restCfg, err := rest.InClusterConfig()
	if err == nil {
		return restCfg, nil
	}

	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if cfg.Kubeconfig != "" {
		rules.ExplicitPath = cfg.Kubeconfig
	}
	restCfg, err = clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, &clientcmd.ConfigOverrides{}).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("no in-cluster config and kubeconfig failed: %w", err)
	}
	return restCfg, nil
}
