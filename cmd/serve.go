package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/okian/yecs/internal/adapters/http/api"
	"github.com/okian/yecs/internal/adapters/http/swagger"
	app "github.com/okian/yecs/internal/app"
	"github.com/okian/yecs/internal/config"
	"github.com/okian/yecs/internal/mockserver"
	"github.com/okian/yecs/pkg/logger"
	"github.com/okian/yecs/pkg/metrics"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 90 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
	mockStartupDelay  = 100 * time.Millisecond
)

var (
	serveAddr string
	serveMock bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scoring engine HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "HTTP listen address (overrides config)")
	serveCmd.Flags().BoolVar(&serveMock, "mock", false, "Start an in-process mock score server and connect to it")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := bootstrap()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Addr = serveAddr
	}
	if serveMock {
		cfg.MockMode = true
	}
	if cfg.MockMode {
		cfg.ChannelURL = mockChannelURL(cfg.MockAddr)
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg)
}

// serve runs the API, and the mock server when enabled, until ctx ends.
func serve(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()
	g, ctx := errgroup.WithContext(ctx)

	if cfg.MockMode {
		ms := mockserver.New()
		g.Go(func() error { return ms.Run(ctx, cfg.MockAddr) })
		// Let the listener come up before sessions start dialing it.
		time.Sleep(mockStartupDelay)
	}

	svc := app.New(app.WithConfig(cfg), app.WithLogger(log.Named("service")))
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer svc.Stop()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(ctx, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g.Go(func() error {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info(ctx, "shutting down server...")

		// Graceful shutdown with timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error(ctx, "server shutdown failed", logger.Error(err))
		}
		return nil
	})

	g.Go(func() error {
		startSystemMetricsUpdater(ctx)
		return nil
	})

	g.Go(func() error {
		startServiceMetricsUpdater(ctx, svc)
		return nil
	})

	err := g.Wait()
	log.Info(context.Background(), "server stopped")
	return err
}

func newRouter(ctx context.Context, svc *app.Service) *mux.Router {
	r := mux.NewRouter()
	swagger.Register(ctx, r)
	api.NewServer(svc).Register(ctx, r)
	return r
}

// mockChannelURL points a local client at the mock server's listen address.
func mockChannelURL(addr string) string {
	host := addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	return "ws://" + host + "/ws"
}

// startSystemMetricsUpdater refreshes system gauges until ctx ends.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystem(m.Alloc, runtime.NumGoroutine())
}

// startServiceMetricsUpdater publishes queue and store gauges until ctx ends.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// GetStats refreshes the gauges as a side effect.
func updateServiceMetrics(svc *app.Service) {
	_ = svc.GetStats()
}
