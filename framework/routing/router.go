// Package routing wraps chi with helpers that resolve handlers from the
// container on every request.
package routing

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/km-arc/go-ioc/framework/container"
	"github.com/km-arc/go-ioc/framework/logger"
)

// Router wraps chi.Router and the container handlers are resolved from.
type Router struct {
	mux       chi.Router
	container *container.Container
	log       *logger.Logger
	debug     bool
}

// Option configures a Router.
type Option func(*Router)

// WithDebug includes resolution error details in error responses.
func WithDebug(debug bool) Option {
	return func(r *Router) { r.debug = debug }
}

// New creates a Router with request ids, real IPs, request logging and
// panic recovery. Every request context carries the container.
func New(c *container.Container, opts ...Option) *Router {
	r := &Router{
		mux:       chi.NewRouter(),
		container: c.Root(),
		log:       c.Logger().WithComponent("router"),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.mux.Use(middleware.RequestID)
	r.mux.Use(middleware.RealIP)
	r.mux.Use(r.requestLogger)
	r.mux.Use(middleware.Recoverer)
	r.mux.Use(r.withContainer)
	return r
}

// ── HTTP verbs ───────────────────────────────────────────────────────────────

func (r *Router) Get(pattern string, h http.HandlerFunc)    { r.mux.Get(pattern, h) }
func (r *Router) Post(pattern string, h http.HandlerFunc)   { r.mux.Post(pattern, h) }
func (r *Router) Put(pattern string, h http.HandlerFunc)    { r.mux.Put(pattern, h) }
func (r *Router) Patch(pattern string, h http.HandlerFunc)  { r.mux.Patch(pattern, h) }
func (r *Router) Delete(pattern string, h http.HandlerFunc) { r.mux.Delete(pattern, h) }

// Handle registers h for all methods.
func (r *Router) Handle(pattern string, h http.Handler) { r.mux.Handle(pattern, h) }

// Any registers a handler for all common HTTP methods.
func (r *Router) Any(pattern string, h http.HandlerFunc) {
	for _, m := range []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"} {
		r.mux.Method(m, pattern, h)
	}
}

// ── Container-resolved handlers ──────────────────────────────────────────────

// Resolve routes method and pattern to the http.Handler bound under id.
// The handler is resolved on each request, so non-shared bindings yield a
// fresh handler per request.
//
//	c.Bind("handlers.users.show", container.TypeRef("app.ShowUser"))
//	router.Resolve(http.MethodGet, "/users/{id}", "handlers.users.show")
func (r *Router) Resolve(method, pattern, id string) {
	r.mux.Method(method, pattern, r.resolved(id))
}

// ResourceController handles the standard RESTful actions of a resource.
//
//	GET    /photos           → Index
//	POST   /photos           → Store
//	GET    /photos/{id}      → Show
//	PUT    /photos/{id}      → Update
//	DELETE /photos/{id}      → Destroy
type ResourceController interface {
	Index(w http.ResponseWriter, r *http.Request)
	Store(w http.ResponseWriter, r *http.Request)
	Show(w http.ResponseWriter, r *http.Request)
	Update(w http.ResponseWriter, r *http.Request)
	Destroy(w http.ResponseWriter, r *http.Request)
}

// Resource registers the RESTful routes of the ResourceController bound
// under id, resolving the controller per request.
func (r *Router) Resource(pattern, id string) {
	action := func(pick func(ResourceController) http.HandlerFunc) http.Handler {
		return r.resolvedController(id, pick)
	}
	r.mux.Method(http.MethodGet, pattern, action(func(c ResourceController) http.HandlerFunc { return c.Index }))
	r.mux.Method(http.MethodPost, pattern, action(func(c ResourceController) http.HandlerFunc { return c.Store }))
	r.mux.Method(http.MethodGet, pattern+"/{id}", action(func(c ResourceController) http.HandlerFunc { return c.Show }))
	r.mux.Method(http.MethodPut, pattern+"/{id}", action(func(c ResourceController) http.HandlerFunc { return c.Update }))
	r.mux.Method(http.MethodPatch, pattern+"/{id}", action(func(c ResourceController) http.HandlerFunc { return c.Update }))
	r.mux.Method(http.MethodDelete, pattern+"/{id}", action(func(c ResourceController) http.HandlerFunc { return c.Destroy }))
}

func (r *Router) resolved(id string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		h, err := container.Resolve[http.Handler](r.container, id)
		if err == nil && h == nil {
			err = errNilHandler(id)
		}
		if err != nil {
			r.resolutionFailed(w, req, id, err)
			return
		}
		h.ServeHTTP(w, req)
	})
}

func (r *Router) resolvedController(id string, pick func(ResourceController) http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctrl, err := container.Resolve[ResourceController](r.container, id)
		if err == nil && ctrl == nil {
			err = errNilHandler(id)
		}
		if err != nil {
			r.resolutionFailed(w, req, id, err)
			return
		}
		pick(ctrl)(w, req)
	})
}

// ── Groups & Prefixes ────────────────────────────────────────────────────────

// Group creates an inline group sharing middleware.
func (r *Router) Group(fn func(r *Router)) {
	r.mux.Group(func(mx chi.Router) {
		fn(r.with(mx))
	})
}

// Prefix creates a sub-router with a URL prefix.
func (r *Router) Prefix(pattern string, fn func(r *Router)) {
	r.mux.Route(pattern, func(mx chi.Router) {
		fn(r.with(mx))
	})
}

func (r *Router) with(mx chi.Router) *Router {
	return &Router{mux: mx, container: r.container, log: r.log, debug: r.debug}
}

// ── Middleware ───────────────────────────────────────────────────────────────

// Middleware adds one or more middleware to the router.
func (r *Router) Middleware(mw ...func(http.Handler) http.Handler) {
	r.mux.Use(mw...)
}

type ctxKey struct{}

func (r *Router) withContainer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctx := context.WithValue(req.Context(), ctxKey{}, r.container)
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

func (r *Router) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		next.ServeHTTP(ww, req)
		r.log.Info("request", logger.Fields(
			"method", req.Method,
			"path", req.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"request_id", middleware.GetReqID(req.Context()),
			logger.FieldDuration, time.Since(start).Milliseconds(),
		))
	})
}

// FromContext returns the container attached to a request context by the
// router, or nil.
func FromContext(ctx context.Context) *container.Container {
	c, _ := ctx.Value(ctxKey{}).(*container.Container)
	return c
}

// ── Params ───────────────────────────────────────────────────────────────────

// Param extracts a URL param.
func Param(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

// ── Serve ────────────────────────────────────────────────────────────────────

// ServeHTTP implements http.Handler so Router can be passed to http.Server.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Handler returns the underlying http.Handler.
func (r *Router) Handler() http.Handler {
	return r.mux
}
