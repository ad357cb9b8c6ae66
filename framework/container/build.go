package container

import (
	"slices"
	"time"
)

// build produces a value from a concrete on behalf of id.
func (r *registry) build(res *resolution, id string, concrete Concrete) (any, error) {
	switch cc := concrete.(type) {
	case Factory:
		v, err := guard(id, res, func() (any, error) { return cc(r.handle(res)) })
		if err != nil {
			return nil, userError(id, res, err, "factory for [%s] failed", id)
		}
		return v, nil
	case Value:
		return cc.V, nil
	case TypeRef:
		return r.buildType(res, string(cc), true)
	}
	return nil, newContainerError(id, res.snapshot(), nil, "unsupported concrete %T for [%s]", concrete, id)
}

// buildType constructs the type registered under name. When redirect is set
// and name has no descriptor, the concrete bound to name is built instead.
func (r *registry) buildType(res *resolution, name string, redirect bool) (any, error) {
	r.mu.RLock()
	def, ok := r.types[name]
	r.mu.RUnlock()

	if !ok {
		if redirect {
			return r.buildBound(res, name)
		}
		return nil, newNotFound(name, res.snapshot())
	}
	if slices.Contains(res.stack, name) {
		return nil, newCircular(name, append(res.snapshot(), name))
	}
	if !def.instantiable() {
		return nil, newContainerError(name, res.snapshot(), nil, "target [%s] is not instantiable", name)
	}
	if len(res.stack) >= r.maxDepth {
		return nil, newContainerError(name, res.snapshot(), nil,
			"maximum build depth (%d) exceeded while building [%s]", r.maxDepth, name)
	}

	res.stack = append(res.stack, name)
	defer func() { res.stack = res.stack[:len(res.stack)-1] }()

	start := time.Now()
	v, err := r.construct(res, def)
	if r.observer != nil {
		r.observer.ObserveBuild(name, time.Since(start), err)
	}
	return v, err
}

// buildBound builds the concrete bound to name without touching the
// instance cache. The bound id's own hooks do not run.
func (r *registry) buildBound(res *resolution, name string) (any, error) {
	r.mu.RLock()
	key := r.canonical(name)
	b := r.bindings[key]
	_, defined := r.types[key]
	r.mu.RUnlock()

	if b == nil {
		if defined && key != name {
			return r.buildType(res, key, false)
		}
		return nil, newNotFound(name, res.snapshot())
	}
	if b.load != nil {
		if err := r.loadPlaceholder(res, key, b); err != nil {
			return nil, err
		}
		return r.buildBound(res, key)
	}

	if res.calls >= r.maxDepth {
		return nil, newContainerError(key, res.snapshot(), nil,
			"maximum resolution depth (%d) exceeded while resolving [%s]", r.maxDepth, key)
	}
	res.calls++
	defer func() { res.calls-- }()

	if ref, ok := b.concrete.(TypeRef); ok && r.canonicalID(string(ref)) == key {
		return r.buildType(res, key, false)
	}
	return r.build(res, key, b.concrete)
}

func (r *registry) construct(res *resolution, def TypeDef) (any, error) {
	var args []any
	if len(def.Params) > 0 {
		args = make([]any, len(def.Params))
		for i, p := range def.Params {
			v, err := r.resolveDependency(res, p)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
	}

	v, err := guard(def.Name, res, func() (any, error) { return def.New(args) })
	if err != nil {
		return nil, userError(def.Name, res, err, "constructor of [%s] failed", def.Name)
	}
	return v, nil
}

// resolveDependency supplies one parameter. Rules, first match wins:
//
//  1. a global parameter with the same name
//  2. untyped: the default, else an error
//  3. object: a contextual override for the type being built, else Make;
//     when the type itself is not registered, the default, then nil if
//     nullable
//  4. primitive: a "$name" contextual override, the default, else an error
func (r *registry) resolveDependency(res *resolution, p Param) (any, error) {
	if v, ok := r.globalParam(p.Name); ok {
		return v, nil
	}

	consumer := res.top()

	if p.Type == "" {
		if p.HasDefault {
			return p.Default, nil
		}
		return nil, newContainerError(consumer, res.snapshot(), nil,
			"unresolvable dependency resolving [$%s] in [%s]", p.Name, consumer)
	}

	if !p.Primitive {
		if override, ok := r.contextualFor(consumer, p.Type); ok {
			return r.build(res, p.Type, override)
		}
		v, err := r.resolve(res, p.Type)
		if err == nil {
			return v, nil
		}
		if isNotFoundFor(err, r.canonicalID(p.Type)) {
			if p.HasDefault {
				return p.Default, nil
			}
			if p.Nullable {
				return nil, nil
			}
		}
		return nil, err
	}

	if override, ok := r.contextualFor(consumer, "$"+p.Name); ok {
		return r.build(res, "$"+p.Name, override)
	}
	if p.HasDefault {
		return p.Default, nil
	}
	return nil, newContainerError(consumer, res.snapshot(), nil,
		"unresolvable dependency resolving [$%s] in [%s]", p.Name, consumer)
}

func (r *registry) globalParam(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.params[name]
	return v, ok
}
