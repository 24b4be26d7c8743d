package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"browserctl/internal/action"
	"browserctl/internal/api/rest"
	"browserctl/internal/api/tooladapter"
	"browserctl/internal/browserpool"
	"browserctl/internal/config"
	"browserctl/internal/contextreg"
	"browserctl/internal/controlplane"
	"browserctl/internal/fabric"
	"browserctl/internal/logging"
	"browserctl/internal/metrics"
	"browserctl/internal/mux"
	"browserctl/internal/pagemanager"
	"browserctl/internal/session"
	"browserctl/pkg/models"
)

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "browserctl",
		Short: "browserctl runs the browser-automation control plane",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "path to the YAML config file")

	root.AddCommand(newServeCmd())
	root.AddCommand(newVersionCmd())
	root.AddCommand(newHealthcheckCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the control plane server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version and exit",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("browserctl " + rest.Version())
		},
	}
}

func newHealthcheckCmd() *cobra.Command {
	var address string
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Probe a running server's /health endpoint and exit non-zero on failure",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := http.Client{Timeout: 5 * time.Second}
			resp, err := client.Get("http://" + address + "/health")
			if err != nil {
				return fmt.Errorf("healthcheck request failed: %w", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
			}
			fmt.Println("ok")
			return nil
		},
	}
	cmd.Flags().StringVar(&address, "address", "localhost:8080", "host:port of the server to probe")
	return cmd
}

func runServe() error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logging.InitializeLogging(cfg); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.CloseLogging()

	logger := logging.GetGlobalLogger()
	logger.Info("starting browserctl control plane")

	watcher, err := config.NewWatcher(configPath)
	if err != nil {
		// configPath may not exist (LoadConfig tolerates that and falls back
		// to defaults/env vars); hot-reload is then simply unavailable.
		logger.Warn("config watcher unavailable, continuing without hot-reload", map[string]interface{}{"error": err.Error()})
		watcher, _ = config.NewWatcher("")
	}
	watcher.OnReload(func(reloaded *config.Config) {
		level := logging.ParseLogLevel(reloaded.Logging.Level)
		logger.SetLevel(level)
		logger.Info("configuration reloaded", map[string]interface{}{"log_level": level.String()})
	})
	watcher.Start()
	defer watcher.Stop()

	pool := browserpool.New(cfg.BrowserPool)
	if err := pool.Warm(); err != nil {
		return fmt.Errorf("failed to warm browser pool: %w", err)
	}

	var persister session.Persister
	var redisPersister *session.RedisPersister
	if cfg.Session.Persist {
		redisPersister, err = session.NewRedisPersister(context.Background(), cfg.Redis)
		if err != nil {
			logger.Error("failed to initialize redis persister, continuing without persistence", map[string]interface{}{"error": err.Error()})
			redisPersister = nil
		} else {
			persister = redisPersister
		}
	}
	store := session.NewStore(cfg.Session, persister)

	contexts := contextreg.NewRegistry()
	pages := pagemanager.NewManager(pool)

	registry := action.NewRegistry()
	limiter := action.NewLimiter(*cfg)
	limiter.OnTripped(func(actionType models.ActionType) {
		logger.Warn("action circuit opened", map[string]interface{}{"action_type": string(actionType)})
	})
	executor := action.NewExecutor(*cfg, pages, registry, limiter)

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.New()
	}

	fab := fabric.New(*cfg, store)

	svc := controlplane.NewService(pool, store, contexts, pages, executor, collector, fab)

	tools := tooladapter.NewRegistry()
	if err := tooladapter.RegisterControlPlaneTools(tools, svc, cfg.Session.TTLDefault); err != nil {
		return fmt.Errorf("failed to register tool-adapter tools: %w", err)
	}
	logger.Info("tool adapter ready", map[string]interface{}{"tool_count": len(tools.List())})

	if collector != nil {
		go reportFabricMetrics(fab, collector)
	}

	router := rest.NewRouter(cfg, svc, pool, collector, fab)
	multiplexer := mux.NewMultiplexer(cfg, svc, router)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := multiplexer.Stop(); err != nil {
			logger.Error("error stopping multiplexer", map[string]interface{}{"error": err.Error()})
		}
		if err := pool.Shutdown(shutdownCtx); err != nil {
			logger.Error("error shutting down browser pool", map[string]interface{}{"error": err.Error()})
		}
		store.Close()
		if redisPersister != nil {
			if err := redisPersister.Close(); err != nil {
				logger.Error("error closing redis persister", map[string]interface{}{"error": err.Error()})
			}
		}

		logger.Info("shutdown complete")
	}()

	address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("listening", map[string]interface{}{"address": address})

	if err := multiplexer.Start(address); err != nil {
		return fmt.Errorf("multiplexer failed to start: %w", err)
	}
	multiplexer.Wait()
	return nil
}

// reportFabricMetrics samples the fabric's connection/subscription counts
// onto the Prometheus gauges every few seconds, mirroring the pool and
// action metrics which are pushed from their own event hooks instead.
func reportFabricMetrics(fab *fabric.Fabric, collector *metrics.Collector) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		collector.FabricConnections.Set(float64(fab.ConnectionCount()))
		collector.FabricSubscribers.Set(float64(fab.SubscriptionCount()))
	}
}
