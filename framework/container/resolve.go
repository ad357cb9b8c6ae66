package container

import (
	"errors"
	"reflect"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/km-arc/go-ioc/framework/logger"
)

// resolution is the state of one top-level Make: the build stack, the
// nesting depth and the flight it is blocked on. It is never shared between
// top-level calls.
type resolution struct {
	trace    string
	stack    []string
	calls    int
	waiting  *flight // guarded by flightGroup.mu
	finished atomic.Bool
}

func (r *registry) newResolution() *resolution {
	res := &resolution{}
	if r.log.DebugEnabled() {
		res.trace = uuid.NewString()
	}
	return res
}

func (res *resolution) snapshot() []string { return slices.Clone(res.stack) }

func (res *resolution) top() string {
	if len(res.stack) == 0 {
		return ""
	}
	return res.stack[len(res.stack)-1]
}

// handle returns a container bound to res, for user callbacks.
func (r *registry) handle(res *resolution) *Container {
	return &Container{reg: r, res: res}
}

// ── Resolution ────────────────────────────────────────────────────────────────

// Make resolves id into a value.
//
// Aliases are followed first. A cached instance is returned as-is; otherwise
// the binding's concrete is built (or the type registered under id when
// there is no binding), decorators, method injections and after-resolving
// callbacks run in registration order, and the result is cached if the
// binding is shared.
//
//	mailer, err := c.Make("mailer")
func (c *Container) Make(id string) (any, error) {
	if c.res != nil && !c.res.finished.Load() {
		return c.reg.resolve(c.res, id)
	}
	res := c.reg.newResolution()
	defer res.finished.Store(true)
	return c.reg.resolve(res, id)
}

func (r *registry) resolve(res *resolution, id string) (any, error) {
	if res.calls >= r.maxDepth {
		return nil, newContainerError(id, res.snapshot(), nil,
			"maximum resolution depth (%d) exceeded while resolving [%s]", r.maxDepth, id)
	}
	res.calls++
	defer func() { res.calls-- }()

	r.mu.RLock()
	key := r.canonical(id)
	b := r.bindings[key]
	_, defined := r.types[key]
	r.mu.RUnlock()

	if v, ok := r.cached(key); ok {
		return v, nil
	}
	if b == nil && !defined {
		return nil, newNotFound(key, res.snapshot())
	}

	start := time.Now()
	shared := b != nil && b.shared

	var (
		v   any
		err error
	)
	if shared {
		v, err = r.flights.do(res, key, func() (any, error) {
			if v, ok := r.cached(key); ok {
				return v, nil
			}
			gen := r.currentGeneration()
			v, err := r.produce(res, key, b)
			if err == nil {
				r.store(key, v, gen)
			}
			return v, err
		})
	} else {
		gen := r.currentGeneration()
		v, err = r.produce(res, key, b)
		if err == nil {
			r.markResolved(key, gen)
		}
	}

	r.observeResolve(res, key, shared, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// produce builds a value for key and runs its lifecycle hooks.
func (r *registry) produce(res *resolution, key string, b *binding) (any, error) {
	if b != nil && b.load != nil {
		return r.loadAndResolve(res, key, b)
	}

	var concrete Concrete = TypeRef(key)
	if b != nil {
		concrete = b.concrete
	}

	var (
		v   any
		err error
	)
	switch cc := concrete.(type) {
	case TypeRef:
		if other := r.canonicalID(string(cc)); other != key {
			v, err = r.resolve(res, other)
		} else {
			v, err = r.buildType(res, key, false)
		}
	default:
		v, err = r.build(res, key, concrete)
	}
	if err != nil {
		return nil, err
	}

	if v, err = r.decorate(res, key, v); err != nil {
		return nil, err
	}
	if err = r.injectMethods(res, key, concrete, v); err != nil {
		return nil, err
	}
	if err = r.fireAfterResolving(res, key, v); err != nil {
		return nil, err
	}
	return v, nil
}

// loadAndResolve registers the deferred provider behind a placeholder and
// resolves the binding it left for key. Hooks run on that resolution only.
func (r *registry) loadAndResolve(res *resolution, key string, placeholder *binding) (any, error) {
	if err := r.loadPlaceholder(res, key, placeholder); err != nil {
		return nil, err
	}
	return r.resolve(res, key)
}

// loadPlaceholder runs a deferred provider and checks that it replaced the
// placeholder for key.
func (r *registry) loadPlaceholder(res *resolution, key string, placeholder *binding) error {
	if _, err := guard(key, res, func() (any, error) { return nil, placeholder.load() }); err != nil {
		return userError(key, res, err, "deferred provider for [%s] failed", key)
	}

	r.mu.RLock()
	current := r.bindings[key]
	r.mu.RUnlock()
	if current == placeholder {
		return newContainerError(key, res.snapshot(), nil,
			"deferred provider did not register [%s]", key)
	}
	return nil
}

func (r *registry) observeResolve(res *resolution, key string, shared bool, d time.Duration, err error) {
	if r.observer != nil {
		r.observer.ObserveResolve(key, shared, d, err)
	}
	if !r.log.DebugEnabled() {
		return
	}
	fields := logger.Fields(
		logger.FieldIdentifier, key,
		"shared", shared,
		logger.FieldTraceID, res.trace,
		logger.FieldDuration, d.Milliseconds(),
	)
	if err != nil {
		fields[logger.FieldError] = err
		r.log.Debug("resolve failed", fields)
		return
	}
	r.log.Debug("resolved", fields)
}

// guard runs user code, converting panics into container errors.
func guard(id string, res *resolution, fn func() (any, error)) (v any, err error) {
	defer func() {
		if p := recover(); p != nil {
			v, err = nil, recovered(id, res.snapshot(), p)
		}
	}()
	return fn()
}

// userError wraps an error returned by user code, leaving container errors
// untouched so their codes survive.
func userError(id string, res *resolution, err error, format string, args ...any) error {
	var cerr *Error
	if errors.As(err, &cerr) {
		return err
	}
	return newContainerError(id, res.snapshot(), err, format, args...)
}

// ── Generic helpers ───────────────────────────────────────────────────────────

// Resolve calls Make and asserts the result to T. A nil value yields the
// zero T.
//
//	repo, err := container.Resolve[UserRepository](c, container.KeyOf[UserRepository]())
func Resolve[T any](c *Container, id string) (T, error) {
	var zero T
	v, err := c.Make(id)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	typed, ok := v.(T)
	if !ok {
		return zero, newContainerError(id, nil, nil, "[%s] resolved to %T, not %s",
			id, v, reflect.TypeOf((*T)(nil)).Elem())
	}
	return typed, nil
}

// MustResolve is like Resolve but panics on error. Use it in bootstrap code
// where a missing service is a programming error.
func MustResolve[T any](c *Container, id string) T {
	v, err := Resolve[T](c, id)
	if err != nil {
		panic(err)
	}
	return v
}

// TryResolve is like Resolve but reports failure as false.
func TryResolve[T any](c *Container, id string) (T, bool) {
	v, err := Resolve[T](c, id)
	return v, err == nil
}
