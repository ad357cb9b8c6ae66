// Package app wires configuration, logging, metrics and routing into a
// container and serves the router over HTTP.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/km-arc/go-ioc/framework/config"
	"github.com/km-arc/go-ioc/framework/container"
	"github.com/km-arc/go-ioc/framework/logger"
	"github.com/km-arc/go-ioc/framework/metrics"
	"github.com/km-arc/go-ioc/framework/providers"
	"github.com/km-arc/go-ioc/framework/routing"
)

// Version of the framework.
const Version = "0.2.0"

const (
	metricsNamespace = "goioc"
	shutdownTimeout  = 5 * time.Second
)

// Application is the top-level container. It embeds the Container and the
// ProviderRegistry so callers can Bind, Singleton and Register directly.
type Application struct {
	*container.Container
	Providers *container.ProviderRegistry

	cfg     *config.Config
	log     *logger.Logger
	metrics *metrics.Collector
}

// New loads the configuration and creates the application.
//
//	application, err := app.New(config.WithEnvFiles(".env"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	application.Register(&billing.Provider{})
func New(opts ...config.Option) (*Application, error) {
	cfg, err := config.Load(opts...)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig creates the application from an already loaded config.
// The framework providers are registered in order: config, logging,
// metrics, routing.
func NewWithConfig(cfg *config.Config) (*Application, error) {
	log := logger.New(&cfg.Log, cfg.App.Name)
	collector := metrics.NewCollector(metricsNamespace)

	opts := append(cfg.ContainerOptions(log), container.WithObserver(collector))
	c := container.New(opts...)

	a := &Application{
		Container: c,
		Providers: container.NewProviderRegistry(c),
		cfg:       cfg,
		log:       log.WithComponent("app"),
		metrics:   collector,
	}

	core := []container.ServiceProvider{
		&providers.ConfigServiceProvider{Config: cfg},
		&providers.LoggingServiceProvider{Logger: log},
		&providers.MetricsServiceProvider{Collector: collector},
		&providers.RoutingServiceProvider{},
	}
	for _, p := range core {
		if err := a.Register(p); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Register adds a ServiceProvider to the application.
func (a *Application) Register(provider container.ServiceProvider) error {
	return a.Providers.Register(provider)
}

// Boot runs the Boot phase of every registered provider.
func (a *Application) Boot() error {
	if err := a.Providers.Boot(); err != nil {
		return err
	}
	a.log.Debug("application booted", logger.Fields("providers", len(a.Providers.Providers())))
	return nil
}

// ── Accessors ─────────────────────────────────────────────────────────────────

func (a *Application) Config() *config.Config      { return a.cfg }
func (a *Application) Log() *logger.Logger         { return a.log }
func (a *Application) Metrics() *metrics.Collector { return a.metrics }

// Router resolves the shared router.
func (a *Application) Router() (*routing.Router, error) {
	return container.Resolve[*routing.Router](a.Container, providers.RouterID)
}

func (a *Application) Environment() string { return a.cfg.App.Env }
func (a *Application) IsLocal() bool       { return a.Environment() == "local" }
func (a *Application) IsProduction() bool  { return a.Environment() == "production" }
func (a *Application) IsTesting() bool     { return a.Environment() == "testing" }
func (a *Application) IsDebug() bool       { return a.cfg.App.Debug }

// ── Serve ─────────────────────────────────────────────────────────────────────

// Run boots the application if needed and serves the router on the
// configured port until ctx is done, then shuts the server down gracefully.
func (a *Application) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.cfg.Addr(), err)
	}
	return a.Serve(ctx, listener)
}

// Serve is like Run on an existing listener.
func (a *Application) Serve(ctx context.Context, listener net.Listener) error {
	if !a.Providers.Booted() {
		if err := a.Boot(); err != nil {
			_ = listener.Close()
			return err
		}
	}
	router, err := a.Router()
	if err != nil {
		_ = listener.Close()
		return err
	}

	srv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()
	a.log.Info("http server started", logger.Fields(
		"addr", listener.Addr().String(),
		"env", a.cfg.App.Env,
	))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	a.log.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
