package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"butterfly/internal/catalog"
	"butterfly/internal/config"
	"butterfly/internal/errors"
	"butterfly/internal/expansion"
	"butterfly/internal/handler"
	"butterfly/internal/logger"
	"butterfly/internal/metrics"
	"butterfly/internal/remote"
	"butterfly/internal/repository/sqlite"
	"butterfly/internal/session"
)

var (
	serveAddr     string
	serveEmbedded bool
	serveNoCat    bool
	serveSource   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the session API",
	Long: `Start the session API.

Sessions fetch related articles from remote.base_url. The bundled catalog is
mounted under /catalog unless --no-catalog is given; with --embedded the
sessions read it in-process instead of over HTTP.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "HTTP listen address (overrides server.addr)")
	serveCmd.Flags().BoolVar(&serveEmbedded, "embedded", false, "use the bundled catalog in-process instead of remote.base_url")
	serveCmd.Flags().BoolVar(&serveNoCat, "no-catalog", false, "do not mount the bundled catalog")
	serveCmd.Flags().StringVar(&serveSource, "catalog-source", "", "catalog file to load (overrides catalog.source)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.Named("serve")
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if serveSource != "" {
		cfg.Catalog.Source = serveSource
	}
	if serveEmbedded && serveNoCat {
		return errors.New("--embedded needs the bundled catalog; drop --no-catalog")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	collector := metrics.NewCollector("butterfly")
	mux := http.NewServeMux()

	var (
		fetcher expansion.Fetcher
		seeder  session.Seeder
	)
	if !serveNoCat {
		svc, closeCatalog, err := openCatalog(ctx, cfg, collector, logger.Named("catalog"))
		if err != nil {
			return err
		}
		defer closeCatalog()
		catalog.NewHandler(svc, logger.Named("catalog")).Register(mux)
		if serveEmbedded {
			fetcher, seeder = svc, svc
		}
	}
	if fetcher == nil {
		client, err := remote.New(remoteConfig(cfg, collector), logger.Named("remote"))
		if err != nil {
			return errors.WithHint(err, "check remote.base_url")
		}
		fetcher, seeder = client, client
		log.Infow("Using remote related-articles service", "base_url", cfg.Remote.BaseURL)
	}

	manager := session.NewManager(ctx, fetcher, seeder, session.OptionsFromConfig(cfg),
		cfg.Server.MaxSessions, collector, logger.Named("session"))
	if idle := cfg.Server.SessionIdle.Duration(); idle > 0 {
		go manager.RunReaper(ctx, idle, idle/4)
	}

	handler.NewSessionHandler(manager, logger.Named("handler")).Register(mux)
	mux.Handle("GET /metrics", collector.Handler())

	return listen(ctx, cfg, mux, collector, log, manager.Shutdown)
}

// openCatalog prepares the bundled catalog and starts its reload watcher
func openCatalog(ctx context.Context, c *config.Config, m *metrics.Collector, log *zap.SugaredLogger) (*catalog.Service, func(), error) {
	repo, err := sqlite.New(c.Catalog.DBPath)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "open catalog database %s", c.Catalog.DBPath)
	}
	svc := catalog.NewService(repo, catalog.Options{
		ArticleURL: c.Catalog.ArticleURL,
		RandomYear: c.Catalog.RandomYear,
	}, m, log)

	if src := c.Catalog.Source; src != "" {
		if _, err := svc.Load(ctx, src); err != nil {
			repo.Close()
			return nil, nil, errors.WithHintf(err, "fix or remove catalog source %s", src)
		}
		if c.Catalog.Watch {
			go func() {
				if err := svc.Watch(ctx, src, c.Catalog.Debounce.Duration()); err != nil && !errors.Is(err, context.Canceled) {
					log.Errorw("Catalog watcher stopped", "error", err)
				}
			}()
		}
	} else if n, err := repo.Count(ctx); err == nil {
		log.Infow("Catalog opened", "db", c.Catalog.DBPath, "articles", n)
	}
	return svc, func() { repo.Close() }, nil
}

func remoteConfig(c *config.Config, rec remote.Recorder) remote.Config {
	b := c.Remote.Breaker
	return remote.Config{
		BaseURL: c.Remote.BaseURL,
		Timeout: c.Remote.Timeout.Duration(),
		Rate:    c.Remote.Rate,
		Burst:   c.Remote.Burst,
		Breaker: remote.BreakerConfig{
			MaxRequests:      b.MaxRequests,
			Interval:         b.Interval.Duration(),
			Timeout:          b.Timeout.Duration(),
			FailureThreshold: b.FailureThreshold,
			MinRequests:      b.MinRequests,
		},
		Recorder: rec,
	}
}

// listen serves mux until SIGINT or SIGTERM, then shuts down gracefully
func listen(ctx context.Context, c *config.Config, mux *http.ServeMux, m *metrics.Collector, log *zap.SugaredLogger, onShutdown func()) error {
	finalHandler := handler.Chain(mux,
		handler.Recover,
		handler.CORS,
		handler.Logger(logger.Named("http"), m),
	)

	// No WriteTimeout: SSE and WebSocket streams stay open
	server := &http.Server{
		Addr:              c.Server.Addr,
		Handler:           finalHandler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       c.Server.ReadTimeout.Duration(),
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		log.Infow("Server listening", "addr", c.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
		close(errc)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		log.Infow("Shutting down server", "signal", sig.String())
	case err := <-errc:
		if err != nil {
			return errors.Wrap(err, "server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), c.Server.ShutdownTimeout.Duration())
	defer cancel()

	// Sessions close first so streaming handlers return and Shutdown can drain
	if onShutdown != nil {
		onShutdown()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnw("Server shutdown error", "error", err)
	}

	log.Info("Server stopped")
	return nil
}
