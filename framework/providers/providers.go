// Package providers holds the service providers every application
// registers: configuration, logging, metrics and routing.
package providers

import (
	"github.com/km-arc/go-ioc/framework/config"
	"github.com/km-arc/go-ioc/framework/container"
	"github.com/km-arc/go-ioc/framework/logger"
	"github.com/km-arc/go-ioc/framework/metrics"
	"github.com/km-arc/go-ioc/framework/routing"
)

// Identifiers bound by the framework providers.
const (
	ConfigID  = "config"
	LogID     = "log"
	MetricsID = "metrics"
	RouterID  = "router"
)

// ── ConfigServiceProvider ─────────────────────────────────────────────────────

// ConfigServiceProvider binds the application configuration.
//
// Bound ids:
//   - "config"        → *config.Config
//   - "configuration" → alias of "config"
//   - KeyOf[*config.Config]() → alias of "config"
//
// With Config set that value is bound. Otherwise it is loaded with Options
// on first resolution. Both survive Flush.
type ConfigServiceProvider struct {
	container.BaseProvider
	Config  *config.Config
	Options []config.Option
}

func (p *ConfigServiceProvider) Register(app *container.Container) error {
	if p.Config != nil {
		app.Singleton(ConfigID, container.Value{V: p.Config})
	} else {
		opts := p.Options
		app.Singleton(ConfigID, container.Factory(func(*container.Container) (any, error) {
			return config.Load(opts...)
		}))
	}
	if err := app.Alias(ConfigID, "configuration"); err != nil {
		return err
	}
	return app.Alias(ConfigID, container.KeyOf[*config.Config]())
}

// ── LoggingServiceProvider ────────────────────────────────────────────────────

// LoggingServiceProvider binds the application logger as "log". Without an
// explicit Logger the container's own logger is used.
type LoggingServiceProvider struct {
	container.BaseProvider
	Logger *logger.Logger
}

func (p *LoggingServiceProvider) Register(app *container.Container) error {
	log := p.Logger
	if log == nil {
		log = app.Logger()
	}
	app.Singleton(LogID, container.Value{V: log})
	return app.Alias(LogID, container.KeyOf[*logger.Logger]())
}

// ── MetricsServiceProvider ────────────────────────────────────────────────────

// MetricsServiceProvider binds the Prometheus collector as "metrics". The
// collector only observes the container if it was passed to container.New
// with container.WithObserver.
type MetricsServiceProvider struct {
	container.BaseProvider
	Collector *metrics.Collector
	Namespace string
}

func (p *MetricsServiceProvider) Register(app *container.Container) error {
	if p.Collector != nil {
		app.Singleton(MetricsID, container.Value{V: p.Collector})
	} else {
		ns := p.Namespace
		app.Singleton(MetricsID, container.Factory(func(*container.Container) (any, error) {
			return metrics.NewCollector(ns), nil
		}))
	}
	return app.Alias(MetricsID, container.KeyOf[*metrics.Collector]())
}

// ── RoutingServiceProvider ────────────────────────────────────────────────────

// RoutingServiceProvider binds the HTTP router as "router".
//
// When "metrics" is bound the router records request metrics and serves
// them on MetricsPath (default "/metrics"). Debug error bodies follow
// app.debug when "config" is bound.
type RoutingServiceProvider struct {
	container.BaseProvider
	MetricsPath string
}

func (p *RoutingServiceProvider) Register(app *container.Container) error {
	path := p.MetricsPath
	if path == "" {
		path = "/metrics"
	}

	app.Singleton(RouterID, container.Factory(func(c *container.Container) (any, error) {
		var opts []routing.Option
		if c.Has(ConfigID) {
			cfg, err := container.Resolve[*config.Config](c, ConfigID)
			if err != nil {
				return nil, err
			}
			opts = append(opts, routing.WithDebug(cfg.App.Debug))
		}

		router := routing.New(c, opts...)
		if c.Has(MetricsID) {
			collector, err := container.Resolve[*metrics.Collector](c, MetricsID)
			if err != nil {
				return nil, err
			}
			router.Middleware(collector.Middleware)
			router.Handle(path, collector.Handler())
		}
		return router, nil
	}))
	return app.Alias(RouterID, container.KeyOf[*routing.Router]())
}
