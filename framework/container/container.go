package container

import (
	"slices"
	"sync"

	"github.com/km-arc/go-ioc/framework/logger"
)

// ── Container ─────────────────────────────────────────────────────────────────

// Container resolves identifiers into fully wired values.
//
// A *Container is a handle over a shared registry. New returns a root
// handle; factories, decorators and callbacks receive a handle bound to the
// resolution in progress, which carries the build stack for nested Make
// calls. All handles register into, and resolve from, the same registry.
type Container struct {
	reg *registry
	res *resolution
}

// registry holds everything registered with a container.
type registry struct {
	mu sync.RWMutex

	// id → binding
	bindings map[string]*binding

	// alias → id
	aliases map[string]string

	// tag → ordered ids
	tags map[string][]string

	// type name → descriptor
	types map[string]TypeDef

	// parameter name → value
	params map[string]any

	// consumer → dependency → concrete
	contextual map[string]map[string]Concrete

	// id → decorators, method directives, callbacks
	decorators     map[string][]Decorator
	methods        map[string][]methodDirective
	afterResolving map[string][]func(instance any, c *Container)
	onResolved     []func(id string, instance any)

	cacheMu    sync.RWMutex
	instances  map[string]any
	resolved   map[string]bool
	generation uint64

	flights flightGroup

	maxDepth int
	base     *logger.Logger
	log      *logger.Logger
	observer Observer
}

// New creates an empty container. The container registers itself as the
// instance "container".
func New(opts ...Option) *Container {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	c := &Container{reg: &registry{
		bindings:       make(map[string]*binding),
		aliases:        make(map[string]string),
		tags:           make(map[string][]string),
		types:          make(map[string]TypeDef),
		params:         make(map[string]any),
		contextual:     make(map[string]map[string]Concrete),
		decorators:     make(map[string][]Decorator),
		methods:        make(map[string][]methodDirective),
		afterResolving: make(map[string][]func(any, *Container)),
		instances:      make(map[string]any),
		resolved:       make(map[string]bool),
		maxDepth:       o.maxDepth,
		base:           o.log,
		log:            o.log.WithComponent("container"),
		observer:       o.observer,
	}}
	c.Instance(selfID, c)
	return c
}

const selfID = "container"

// Root returns a handle that is not bound to any resolution. Factories
// that keep the container beyond their own call should keep c.Root().
func (c *Container) Root() *Container {
	return &Container{reg: c.reg}
}

// Logger returns the logger the container was created with.
func (c *Container) Logger() *logger.Logger { return c.reg.base }

// ── Registration ──────────────────────────────────────────────────────────────

// Bind registers a non-shared binding: every Make builds a new value.
// A nil concrete binds id to the type registered under the same name.
//
//	c.Bind("mailer", container.Factory(func(c *container.Container) (any, error) {
//	    cfg, err := container.Resolve[*config.Config](c, "config")
//	    if err != nil {
//	        return nil, err
//	    }
//	    return mail.NewSMTP(cfg.Mail), nil
//	}))
func (c *Container) Bind(id string, concrete Concrete) {
	c.reg.bind(id, concrete, false)
}

// Singleton registers a shared binding: the first Make builds the value and
// later calls return the same one until Flush.
//
//	c.Singleton("cache", container.TypeRef("app.RedisCache"))
func (c *Container) Singleton(id string, concrete Concrete) {
	c.reg.bind(id, concrete, true)
}

func (r *registry) bind(id string, concrete Concrete, shared bool) {
	r.mu.Lock()
	key := r.canonical(id)
	if f, ok := concrete.(Factory); concrete == nil || (ok && f == nil) {
		concrete = TypeRef(key)
	}
	r.bindings[key] = &binding{concrete: concrete, shared: shared}
	r.mu.Unlock()

	// drop the value built from the previous binding
	r.cacheMu.Lock()
	delete(r.instances, key)
	delete(r.resolved, key)
	r.cacheMu.Unlock()

	r.log.Debug("bound", logger.Fields("id", key, "shared", shared))
}

// bindDeferred binds id to a placeholder that runs load on first
// resolution and then resolves the binding load registered.
func (r *registry) bindDeferred(id string, load func() error) {
	r.mu.Lock()
	key := r.canonical(id)
	r.bindings[key] = &binding{concrete: TypeRef(key), load: load}
	r.mu.Unlock()

	r.log.Debug("bound deferred", logger.Fields("id", key))
}

// Instance registers a pre-built value. It behaves like a shared binding
// that has already been resolved, and is cleared by Flush.
//
//	c.Instance("config", cfg)
func (c *Container) Instance(id string, value any) {
	r := c.reg
	r.mu.Lock()
	key := r.canonical(id)
	if b := r.bindings[key]; b != nil && b.load != nil {
		delete(r.bindings, key)
	}
	r.mu.Unlock()

	r.cacheMu.Lock()
	r.instances[key] = value
	r.cacheMu.Unlock()
}

// Alias makes alias resolve to id. Aliases may chain; an alias that would
// resolve back to itself is rejected.
//
//	c.Alias("cache", "cache.store")
func (c *Container) Alias(id, alias string) error {
	r := c.reg
	r.mu.Lock()
	defer r.mu.Unlock()

	if id == alias {
		r.log.Warn("alias rejected", logger.Fields("id", id, "alias", alias))
		return newConfigError(alias, "[%s] is aliased to itself", alias)
	}
	if r.reaches(id, alias) {
		r.log.Warn("alias rejected", logger.Fields("id", id, "alias", alias))
		return newConfigError(alias, "alias [%s] -> [%s] would form a cycle", alias, id)
	}
	r.aliases[alias] = id
	return nil
}

// Tag adds ids to a named group. Order is preserved.
//
//	c.Tag([]string{"reports.cpu", "reports.memory"}, "reports")
func (c *Container) Tag(ids []string, tag string) {
	r := c.reg
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tags[tag] = append(r.tags[tag], ids...)
}

// Tagged resolves every id in a tag group, in registration order.
func (c *Container) Tagged(tag string) ([]any, error) {
	r := c.reg
	r.mu.RLock()
	ids := slices.Clone(r.tags[tag])
	r.mu.RUnlock()

	out := make([]any, 0, len(ids))
	for _, id := range ids {
		v, err := c.Make(id)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// AddGlobalParameter supplies value to every constructor or method
// parameter called name, ahead of any other resolution rule.
func (c *Container) AddGlobalParameter(name string, value any) {
	r := c.reg
	r.mu.Lock()
	defer r.mu.Unlock()
	r.params[name] = value
}

// Define registers a type descriptor. Its name becomes resolvable with Make
// even without a binding.
func (c *Container) Define(def TypeDef) error {
	if err := def.validate(); err != nil {
		c.reg.log.Warn("type definition rejected", logger.Fields("error", err))
		return err
	}
	r := c.reg
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[def.Name] = def
	return nil
}

// DefineConstructor is Constructor followed by Define.
//
//	c.DefineConstructor(container.KeyOf[*Mailer](), NewMailer)
func (c *Container) DefineConstructor(name string, fn any, names ...string) error {
	def, err := Constructor(name, fn, names...)
	if err != nil {
		return err
	}
	return c.Define(def)
}

// ── Introspection ─────────────────────────────────────────────────────────────

// Has reports whether id can be resolved: it has a binding, an instance or
// an instantiable type descriptor.
func (c *Container) Has(id string) bool {
	r := c.reg
	r.mu.RLock()
	key := r.canonical(id)
	_, bound := r.bindings[key]
	def, defined := r.types[key]
	r.mu.RUnlock()
	if bound || (defined && def.instantiable()) {
		return true
	}
	_, ok := r.cached(key)
	return ok
}

// IsResolved reports whether id has been resolved since the last Flush, or
// holds an instance.
func (c *Container) IsResolved(id string) bool {
	r := c.reg
	r.mu.RLock()
	key := r.canonical(id)
	r.mu.RUnlock()

	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	_, hasInstance := r.instances[key]
	return r.resolved[key] || hasInstance
}

// Bindings returns the sorted ids that have a binding or an instance.
func (c *Container) Bindings() []string {
	r := c.reg
	r.mu.RLock()
	out := make([]string, 0, len(r.bindings))
	for k := range r.bindings {
		out = append(out, k)
	}
	r.mu.RUnlock()

	r.cacheMu.RLock()
	for k := range r.instances {
		out = append(out, k)
	}
	r.cacheMu.RUnlock()

	slices.Sort(out)
	return slices.Compact(out)
}

// ── Cache management ──────────────────────────────────────────────────────────

// Forget removes the binding and any instance for id.
func (c *Container) Forget(id string) {
	r := c.reg
	r.mu.Lock()
	key := r.canonical(id)
	delete(r.bindings, key)
	r.mu.Unlock()
	r.forgetInstance(key)
}

// ForgetInstance drops the cached instance for id. A shared binding is
// built again on the next Make.
func (c *Container) ForgetInstance(id string) {
	r := c.reg
	r.mu.RLock()
	key := r.canonical(id)
	r.mu.RUnlock()
	r.forgetInstance(key)
}

func (r *registry) forgetInstance(key string) {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()
	delete(r.instances, key)
	delete(r.resolved, key)
}

// Flush clears every cached instance, including those registered with
// Instance, and every resolved marker. Bindings, aliases, tags, type
// descriptors, hooks and contextual overrides are kept. Constructions still
// in flight when Flush is called do not repopulate the cache.
func (c *Container) Flush() {
	r := c.reg
	r.cacheMu.Lock()
	r.instances = map[string]any{selfID: c.Root()}
	r.resolved = make(map[string]bool)
	r.generation++
	r.cacheMu.Unlock()

	r.log.Debug("flushed")
}

func (r *registry) cached(key string) (any, bool) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	v, ok := r.instances[key]
	return v, ok
}

func (r *registry) currentGeneration() uint64 {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return r.generation
}

// store caches a shared value unless the cache was flushed since gen.
func (r *registry) store(key string, v any, gen uint64) {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()
	if gen != r.generation {
		return
	}
	r.instances[key] = v
	r.resolved[key] = true
}

func (r *registry) markResolved(key string, gen uint64) {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()
	if gen == r.generation {
		r.resolved[key] = true
	}
}

// canonical follows the alias map to a fixed point. Must hold mu.
func (r *registry) canonical(id string) string {
	for range len(r.aliases) + 1 {
		target, ok := r.aliases[id]
		if !ok {
			return id
		}
		id = target
	}
	return id
}

// reaches reports whether following aliases from `from` passes through `to`.
// Must hold mu.
func (r *registry) reaches(from, to string) bool {
	for range len(r.aliases) + 1 {
		if from == to {
			return true
		}
		next, ok := r.aliases[from]
		if !ok {
			return false
		}
		from = next
	}
	return false
}

func (r *registry) canonicalID(id string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.canonical(id)
}
