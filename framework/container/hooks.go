package container

import (
	"maps"
	"slices"

	"github.com/km-arc/go-ioc/framework/logger"
)

// Decorator wraps or replaces a resolved value.
type Decorator func(instance any, c *Container) (any, error)

type methodDirective struct {
	method string
	args   map[string]any
}

// ── Decorators ────────────────────────────────────────────────────────────────

// Decorate registers fn to run on every value produced for id, after the
// value is built and before it is cached. Decorators run in registration
// order, so the last one registered is the outermost wrapper. A value that
// is already cached is decorated immediately.
//
//	c.Decorate("mailer", func(inst any, c *container.Container) (any, error) {
//	    return &LoggingMailer{Inner: inst.(Mailer)}, nil
//	})
func (c *Container) Decorate(id string, fn Decorator) error {
	r := c.reg
	key := r.canonicalID(id)

	r.cacheMu.RLock()
	inst, cached := r.instances[key]
	gen := r.generation
	r.cacheMu.RUnlock()

	if !cached {
		r.addDecorator(key, fn)
		return nil
	}

	res := r.newResolution()
	defer res.finished.Store(true)
	v, err := guard(key, res, func() (any, error) { return fn(inst, r.handle(res)) })
	if err != nil {
		return userError(key, res, err, "decorator for [%s] failed", key)
	}
	r.addDecorator(key, fn)

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()
	if _, still := r.instances[key]; still && gen == r.generation {
		r.instances[key] = v
	}
	return nil
}

func (r *registry) addDecorator(key string, fn Decorator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decorators[key] = append(r.decorators[key], fn)
}

func (r *registry) decorate(res *resolution, key string, v any) (any, error) {
	r.mu.RLock()
	decorators := slices.Clone(r.decorators[key])
	r.mu.RUnlock()

	for _, d := range decorators {
		in := v
		out, err := guard(key, res, func() (any, error) { return d(in, r.handle(res)) })
		if err != nil {
			return nil, userError(key, res, err, "decorator for [%s] failed", key)
		}
		v = out
	}
	return v, nil
}

// ── Method injection ──────────────────────────────────────────────────────────

// MethodInjection calls method on every value produced for id. Arguments
// are taken from args by parameter name (or type identifier) and resolved
// from the container otherwise. Registering the same method twice for one
// id is an error.
//
//	c.MethodInjection("report.service", "SetLogger", nil)
//	c.MethodInjection("report.service", "SetLimit", map[string]any{"limit": 100})
//
// Methods are looked up in the TypeDef first, then on the value itself.
func (c *Container) MethodInjection(id, method string, args map[string]any) error {
	r := c.reg
	r.mu.Lock()
	defer r.mu.Unlock()

	key := r.canonical(id)
	for _, d := range r.methods[key] {
		if d.method == method {
			r.log.Warn("method injection rejected", logger.Fields("id", key, "method", method))
			return newConfigError(key, "method [%s] is already injected for [%s]", method, key)
		}
	}
	r.methods[key] = append(r.methods[key], methodDirective{method: method, args: maps.Clone(args)})
	return nil
}

func (r *registry) injectMethods(res *resolution, key string, concrete Concrete, v any) error {
	r.mu.RLock()
	directives := slices.Clone(r.methods[key])
	defs := []TypeDef{r.types[key]}
	if ref, ok := concrete.(TypeRef); ok && string(ref) != key {
		defs = append(defs, r.types[string(ref)])
	}
	r.mu.RUnlock()

	for _, d := range directives {
		m, ok := lookupMethod(defs, v, d.method)
		if !ok {
			return newContainerError(key, res.snapshot(), nil, "method [%s] does not exist on [%s]", d.method, key)
		}

		args := make([]any, len(m.Params))
		for i, p := range m.Params {
			if a, ok := d.args[p.Name]; ok {
				args[i] = a
				continue
			}
			if a, ok := d.args[p.Type]; ok && p.Type != "" {
				args[i] = a
				continue
			}
			a, err := r.resolveDependency(res, p)
			if err != nil {
				return err
			}
			args[i] = a
		}

		_, err := guard(key, res, func() (any, error) { return nil, m.Invoke(v, args) })
		if err != nil {
			return userError(key, res, err, "method [%s] on [%s] failed", d.method, key)
		}
	}
	return nil
}

func lookupMethod(defs []TypeDef, v any, name string) (MethodDef, bool) {
	for _, def := range defs {
		if m, ok := def.Methods[name]; ok {
			return m, true
		}
	}
	return reflectMethod(v, name)
}

// ── Resolution callbacks ──────────────────────────────────────────────────────

// AfterResolving registers a callback run each time id is produced, after
// decorators and method injection, before caching.
func (c *Container) AfterResolving(id string, fn func(instance any, c *Container)) {
	r := c.reg
	r.mu.Lock()
	defer r.mu.Unlock()
	key := r.canonical(id)
	r.afterResolving[key] = append(r.afterResolving[key], fn)
}

// OnResolved registers a callback run after every production of any id,
// following that id's own AfterResolving callbacks.
func (c *Container) OnResolved(fn func(id string, instance any)) {
	r := c.reg
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onResolved = append(r.onResolved, fn)
}

func (r *registry) fireAfterResolving(res *resolution, key string, v any) error {
	r.mu.RLock()
	callbacks := slices.Clone(r.afterResolving[key])
	global := slices.Clone(r.onResolved)
	r.mu.RUnlock()

	for _, cb := range callbacks {
		if _, err := guard(key, res, func() (any, error) { cb(v, r.handle(res)); return nil, nil }); err != nil {
			return err
		}
	}
	for _, cb := range global {
		if _, err := guard(key, res, func() (any, error) { cb(key, v); return nil, nil }); err != nil {
			return err
		}
	}
	return nil
}
