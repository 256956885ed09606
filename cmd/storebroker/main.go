/*
Command storebroker runs the store-actor daemon: it loads one or more
StoreSpec manifests, starts a store actor per manifest on a shared
in-process bus, and serves Prometheus metrics plus health/readiness/
liveness endpoints. Grounded on the teacher's cmd/warren/main.go manager
startup sequence (metrics collector, HTTP metrics server, signal-driven
shutdown), generalized from a container orchestrator daemon to a store
actor host.
*/
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

	"github.com/cuemby/storebroker/pkg/backend"
	"github.com/cuemby/storebroker/pkg/bus"
	"github.com/cuemby/storebroker/pkg/command"
	"github.com/cuemby/storebroker/pkg/config"
	"github.com/cuemby/storebroker/pkg/log"
	"github.com/cuemby/storebroker/pkg/metrics"
	"github.com/cuemby/storebroker/pkg/storeactor"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "storebroker",
	Short:   "storebroker runs replicated store actors",
	Version: Version,
	RunE:    runServe,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("storebroker version %s (%s)\n", Version, Commit))
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.Flags().StringArrayP("file", "f", nil, "Store manifest file (repeatable)")
	rootCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address for the metrics/health HTTP server")
	cobra.OnInitialize(initLogging)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOut})
}

func runServe(cmd *cobra.Command, _ []string) error {
	files, _ := cmd.Flags().GetStringArray("file")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	if len(files) == 0 {
		return fmt.Errorf("at least one -f manifest is required")
	}

	b := bus.New()
	registry := storeactor.NewRegistry()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	actors, closers, err := startStores(ctx, b, registry, files)
	if err != nil {
		cancel()
		return err
	}
	defer func() {
		for _, c := range closers {
			c()
		}
	}()

	collector := metrics.NewCollector(registry, 10*time.Second)
	collector.Start()
	defer collector.Stop()
	metrics.SetVersion(Version)
	metrics.RegisterComponent("bus", true, "in-process")
	metrics.RegisterComponent("storeactor", true, fmt.Sprintf("%d running", len(actors)))

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())
	server := &http.Server{Addr: metricsAddr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()
	fmt.Printf("storebroker running %d store(s), metrics at http://%s/metrics\n", len(actors), metricsAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		fmt.Println("shutting down...")
	case err := <-errCh:
		fmt.Fprintf(os.Stderr, "%v\n", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)

	cancel()
	for _, a := range actors {
		a.Stop()
	}
	return nil
}

// startStores loads every manifest, opens its backend, and starts its
// store actor, returning the live actors plus their backend-close
// closers so callers can release persistent backends on shutdown.
func startStores(ctx context.Context, b *bus.Bus, registry *storeactor.Registry, files []string) ([]*storeactor.Actor, []func(), error) {
	var actors []*storeactor.Actor
	var closers []func()

	for _, f := range files {
		cfg, err := config.LoadFile(f)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", f, err)
		}

		be, err := config.OpenBackend(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", f, err)
		}
		closers = append(closers, func(be backend.Backend) func() {
			return func() { be.Close() }
		}(be))

		actor := buildActor(b, cfg, be)
		go actor.Run(ctx)
		registry.Add(actor)
		actors = append(actors, actor)

		log.WithStore(cfg.Name).Info().
			Str("role", cfg.Role).
			Str("backend", string(cfg.Backend.Kind)).
			Msg("store actor started")
	}
	return actors, closers, nil
}

func buildActor(b *bus.Bus, cfg config.StoreConfig, be backend.Backend) *storeactor.Actor {
	actorCfg := storeactor.Config{
		StoreName:    cfg.Name,
		Backend:      be,
		Bus:          b,
		TickInterval: cfg.TickInterval,
		Self:         command.EntityID{Endpoint: "local", Object: cfg.Name},
	}
	if cfg.Role == "clone" {
		actorCfg.Role = storeactor.RoleClone
		actorCfg.CloneID = cfg.CloneID
		actorCfg.MasterEntity = command.EntityID{Endpoint: cfg.MasterEndpoint, Object: cfg.MasterObject}
	} else {
		actorCfg.Role = storeactor.RoleMaster
	}
	return storeactor.New(actorCfg)
}
