package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/internal/metrics"
	"github.com/aretw0/parley/pkg/adapters/clock"
	httpAdapter "github.com/aretw0/parley/pkg/adapters/http"
	"github.com/aretw0/parley/pkg/adapters/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dialogue authority server",
	Long: `Starts Parley as the authority of every session it hosts, exposing a JSON API
and SSE streams over HTTP, a WebSocket endpoint for peers and Prometheus metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m, err := metrics.New(reg)
		if err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}

		eng, err := newEngine(cfg, logger, parley.WithLifecycleHooks(m.Hooks()))
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		hub := websocket.NewHub(websocket.WithLogger(logger))
		defer hub.Close()
		b, err := newBackend(ctx, cfg, logger, hub)
		if err != nil {
			return err
		}
		defer b.Close()

		sched := clock.New()
		defer sched.Stop()
		h := newHost(cfg, eng, sched, b, logger)

		handlerOpts := []httpAdapter.Option{
			httpAdapter.WithLogger(logger),
			httpAdapter.WithVersion(strings.TrimSpace(parley.Version)),
			httpAdapter.WithMetrics(metrics.Handler(reg)),
		}
		if b.transport == hub {
			handlerOpts = append(handlerOpts, httpAdapter.WithPeers(hub))
		}
		srv := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           httpAdapter.NewHandler(h, handlerOpts...),
			ReadHeaderTimeout: 10 * time.Second,
		}
		servers := []*http.Server{srv}
		if cfg.Server.MetricsAddr != "" && cfg.Server.MetricsAddr != cfg.Server.Addr {
			servers = append(servers, &http.Server{
				Addr:              cfg.Server.MetricsAddr,
				Handler:           metrics.Handler(reg),
				ReadHeaderTimeout: 10 * time.Second,
			})
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, s := range servers {
			g.Go(func() error {
				logger.Info("listening", "addr", s.Addr)
				if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("listen %s: %w", s.Addr, err)
				}
				return nil
			})
		}
		g.Go(func() error {
			if err := h.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			changes, err := eng.Watch(gctx)
			if err != nil {
				logger.Debug("hot reload disabled", "err", err)
				return nil
			}
			for name := range changes {
				logger.Info("dialogue repository changed", "document", name)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			h.Shutdown(shutdownCtx)
			var errs []error
			for _, s := range servers {
				if err := s.Shutdown(shutdownCtx); err != nil {
					errs = append(errs, fmt.Errorf("shutdown %s: %w", s.Addr, err))
					_ = s.Close()
				}
			}
			return errors.Join(errs...)
		})

		logger.Info("serving dialogues", "dir", cfg.Graphs.Dir, "version", strings.TrimSpace(parley.Version))
		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (overrides server.addr)")
}
