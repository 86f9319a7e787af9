package main

import (
	"context"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthonyhuangg/QuantFlow/internal/api/rest"
	"github.com/anthonyhuangg/QuantFlow/internal/config"
	"github.com/anthonyhuangg/QuantFlow/internal/feed"
	"github.com/anthonyhuangg/QuantFlow/internal/infra/health"
	"github.com/anthonyhuangg/QuantFlow/internal/infra/http/middleware"
	"github.com/anthonyhuangg/QuantFlow/internal/infra/log"
	"github.com/anthonyhuangg/QuantFlow/internal/infra/metrics"
	"github.com/anthonyhuangg/QuantFlow/internal/infra/netutil"
	"github.com/anthonyhuangg/QuantFlow/internal/infra/runner"
	"github.com/anthonyhuangg/QuantFlow/internal/infra/vault"
	"github.com/anthonyhuangg/QuantFlow/internal/infra/version"
	"github.com/anthonyhuangg/QuantFlow/internal/instrument"
	"github.com/anthonyhuangg/QuantFlow/internal/publish"
	"github.com/anthonyhuangg/QuantFlow/internal/replica"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Load()
	logger := log.NewLogger(cfg)
	secrets := vault.EnvStore{Prefix: "QUANTFLOW_"}

	// Instrument catalog comes from config; gateway discovery replaces it
	// when enabled so the replica tracks whatever the feed actually serves.
	cat := cfg.Catalog()
	if cfg.Feed.Mode == "websocket" && cfg.Feed.DiscoverInstruments {
		discCtx, cancelDisc := context.WithTimeout(ctx, 10*time.Second)
		list, err := feed.DiscoverInstruments(discCtx, cfg, logger)
		cancelDisc()
		if err != nil {
			logger.Warn().Err(err).Msg("instrument discovery failed, using configured instruments")
		} else {
			cat = instrument.NewCatalog(list)
			logger.Info().Int("instruments", cat.Len()).Msg("instruments discovered from gateway")
		}
	}

	manager := replica.NewManager(cfg, cat, logger)

	source, err := feed.New(cfg, cat, manager, secrets, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("mode", cfg.Feed.Mode).Msg("feed source init failed")
	}

	// Init metrics and start HTTP endpoint
	registry := metrics.Init(logger)
	mux := http.NewServeMux()
	// admin endpoints (metrics, pprof) behind IP allowlist gate
	adminCIDRs := netutil.MustParseCIDRs(cfg.Server.AdminAllowCIDRs)
	mux.Handle("/metrics", middleware.AdminGate(adminCIDRs, metrics.Handler(registry)))
	mux.HandleFunc("/healthz", health.Healthz)
	mux.HandleFunc("/readyz", health.Readyz)
	mux.HandleFunc("/version", version.Handler)
	if cfg.Server.Pprof {
		mux.Handle("/debug/pprof/", middleware.AdminGate(adminCIDRs, http.HandlerFunc(pprof.Index)))
		mux.Handle("/debug/pprof/cmdline", middleware.AdminGate(adminCIDRs, http.HandlerFunc(pprof.Cmdline)))
		mux.Handle("/debug/pprof/profile", middleware.AdminGate(adminCIDRs, http.HandlerFunc(pprof.Profile)))
		mux.Handle("/debug/pprof/symbol", middleware.AdminGate(adminCIDRs, http.HandlerFunc(pprof.Symbol)))
		mux.Handle("/debug/pprof/trace", middleware.AdminGate(adminCIDRs, http.HandlerFunc(pprof.Trace)))
	}
	api := rest.New(manager,
		time.Duration(cfg.Server.PushIntervalMs)*time.Millisecond,
		time.Duration(cfg.Network.WSKeepAliveSeconds)*time.Second,
		logger)
	mux.Handle("/", api.Handler())

	// wrap mux with middlewares (request id and logging)
	handler := middleware.RequestID(middleware.Logger(logger)(mux))

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.Server.IdleTimeoutSeconds) * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	logger.Info().
		Str("mode", cfg.Feed.Mode).
		Str("addr", cfg.Server.Addr).
		Int("instruments", cat.Len()).
		Msg("QuantFlow replica started")

	// start workers and monitor exits
	g := &runner.Group{}
	g.Run(ctx, "replica", manager.Run)
	g.Run(ctx, "feed/"+source.Name(), source.Run)
	if cfg.Publish.Enabled {
		pub, err := publish.New(cfg, manager, secrets, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("publisher init failed")
		}
		g.Run(ctx, "publisher", pub.Run)
	}

	// mark ready after initialization completes
	health.SetReady(true)

	// Wait for termination signals or a worker failure. A clean worker
	// exit (a replay source reaching end of recording) keeps the process
	// up so the final books stay queryable.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
wait:
	for {
		select {
		case <-ctx.Done():
			break wait
		case s := <-sigCh:
			logger.Info().Str("signal", s.String()).Msg("shutdown signal received")
			break wait
		case res := <-g.Exits():
			if res.Err != nil {
				logger.Error().Err(res.Err).Str("worker", res.Name).Msg("worker error")
				health.SetReady(false)
				break wait
			}
			logger.Info().Str("worker", res.Name).Msg("worker finished")
		}
	}

	// mark not ready before shutdown
	health.SetReady(false)
	cancel()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	g.Wait()
	logger.Info().Msg("shutdown complete")
}
