package container

import (
	"fmt"
	"sync"

	"github.com/km-arc/go-ioc/framework/logger"
)

// ── ServiceProvider interface ─────────────────────────────────────────────────

// ServiceProvider groups related registrations.
//
// Register only binds. Boot runs after every eager provider is registered,
// so it may resolve anything.
//
//	type MailProvider struct{ container.BaseProvider }
//
//	func (p *MailProvider) Register(app *container.Container) error {
//	    return app.DefineConstructor("mail.Mailer", mail.NewSMTP)
//	}
type ServiceProvider interface {
	// Register binds services into the container.
	Register(app *Container) error

	// Boot is called after all providers are registered.
	Boot(app *Container) error

	// Provides lists the ids a deferred provider registers.
	Provides() []string

	// IsDeferred reports whether Register should wait until one of
	// Provides() is first resolved.
	IsDeferred() bool
}

// ── BaseProvider ──────────────────────────────────────────────────────────────

// BaseProvider is an embeddable no-op implementation of Boot, Provides and
// IsDeferred.
type BaseProvider struct{}

func (p *BaseProvider) Boot(_ *Container) error { return nil }
func (p *BaseProvider) Provides() []string      { return nil }
func (p *BaseProvider) IsDeferred() bool        { return false }

// ── ProviderRegistry ──────────────────────────────────────────────────────────

// ProviderRegistry registers and boots ServiceProviders, loading deferred
// providers on first use.
type ProviderRegistry struct {
	app *Container
	log *logger.Logger

	mu         sync.Mutex
	eager      []ServiceProvider
	deferred   map[ServiceProvider]*deferredLoad
	registered map[ServiceProvider]bool
	booted     bool
}

type deferredLoad struct {
	once sync.Once
	err  error
}

// NewProviderRegistry creates a registry bound to app.
func NewProviderRegistry(app *Container) *ProviderRegistry {
	return &ProviderRegistry{
		app:        app.Root(),
		log:        app.reg.base.WithComponent("providers"),
		deferred:   make(map[ServiceProvider]*deferredLoad),
		registered: make(map[ServiceProvider]bool),
	}
}

// Register adds a provider. Eager providers are registered at once, and
// booted at once if the registry has already booted. Registering the same
// provider twice is a no-op.
func (r *ProviderRegistry) Register(provider ServiceProvider) error {
	r.mu.Lock()
	if r.registered[provider] {
		r.mu.Unlock()
		return nil
	}
	r.registered[provider] = true

	if provider.IsDeferred() {
		r.deferred[provider] = &deferredLoad{}
		r.mu.Unlock()
		r.interceptDeferred(provider)
		return nil
	}

	r.eager = append(r.eager, provider)
	booted := r.booted
	r.mu.Unlock()

	if err := provider.Register(r.app); err != nil {
		return fmt.Errorf("register %T: %w", provider, err)
	}
	r.log.Debug("provider registered", logger.Fields("provider", fmt.Sprintf("%T", provider)))

	if booted {
		if err := provider.Boot(r.app); err != nil {
			return fmt.Errorf("boot %T: %w", provider, err)
		}
	}
	return nil
}

// interceptDeferred binds a placeholder for each id a deferred provider
// provides. The first resolution of any of them registers the provider,
// which rebinds the id, and then resolves the real binding.
func (r *ProviderRegistry) interceptDeferred(provider ServiceProvider) {
	for _, id := range provider.Provides() {
		r.app.reg.bindDeferred(id, func() error {
			return r.loadDeferred(provider)
		})
	}
}

func (r *ProviderRegistry) loadDeferred(provider ServiceProvider) error {
	r.mu.Lock()
	load := r.deferred[provider]
	r.mu.Unlock()

	load.once.Do(func() {
		if err := provider.Register(r.app); err != nil {
			load.err = fmt.Errorf("register deferred %T: %w", provider, err)
			return
		}
		r.mu.Lock()
		booted := r.booted
		r.mu.Unlock()
		if booted {
			if err := provider.Boot(r.app); err != nil {
				load.err = fmt.Errorf("boot deferred %T: %w", provider, err)
				return
			}
		}
		r.log.Debug("deferred provider loaded", logger.Fields("provider", fmt.Sprintf("%T", provider)))
	})
	return load.err
}

// Boot boots every eager provider in registration order. Later calls are
// no-ops.
func (r *ProviderRegistry) Boot() error {
	r.mu.Lock()
	if r.booted {
		r.mu.Unlock()
		return nil
	}
	r.booted = true
	providers := append([]ServiceProvider(nil), r.eager...)
	r.mu.Unlock()

	for _, provider := range providers {
		if err := provider.Boot(r.app); err != nil {
			return fmt.Errorf("boot %T: %w", provider, err)
		}
	}
	return nil
}

// Booted reports whether Boot has been called.
func (r *ProviderRegistry) Booted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.booted
}

// Providers returns the eager providers in registration order.
func (r *ProviderRegistry) Providers() []ServiceProvider {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ServiceProvider(nil), r.eager...)
}
