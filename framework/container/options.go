package container

import (
	"time"

	"github.com/km-arc/go-ioc/framework/logger"
)

// DefaultMaxDepth bounds nested resolutions within one top-level Make.
const DefaultMaxDepth = 128

// Observer receives resolution events. framework/metrics implements it
// with Prometheus collectors.
type Observer interface {
	// ObserveResolve is called once per Make that did not hit the cache.
	ObserveResolve(id string, shared bool, d time.Duration, err error)
	// ObserveBuild is called once per type descriptor construction.
	ObserveBuild(typeName string, d time.Duration, err error)
}

type options struct {
	maxDepth int
	log      *logger.Logger
	observer Observer
}

// Option configures a Container.
type Option func(*options)

// WithMaxDepth sets the maximum nesting of resolutions. Values below one
// are ignored.
func WithMaxDepth(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxDepth = n
		}
	}
}

// WithLogger sets the logger used for resolution and registration events.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithObserver installs an Observer.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

func defaultOptions() options {
	return options{
		maxDepth: DefaultMaxDepth,
		log:      logger.Nop(),
	}
}
