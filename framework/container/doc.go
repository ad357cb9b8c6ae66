// Package container provides a dependency-resolution container and a
// service provider system.
//
// # Overview
//
// The container maps string identifiers to concretes and builds fully wired
// values on demand. It supports shared and non-shared bindings, pre-built
// instances, aliases, tags, contextual overrides, decorators, method
// injection and resolution callbacks.
//
// Types the container can construct are described with a TypeDef: a name,
// ordered parameters and a constructor. Constructor derives a TypeDef from
// an ordinary Go constructor function.
//
// # Container Lifecycle
//
//  1. Create: c := container.New(container.WithLogger(log))
//  2. Register providers: registry.Register(&MyProvider{})
//  3. Boot: registry.Boot()
//  4. Serve requests: Make is safe for concurrent use
//
// # Bindings
//
//	// non-shared: a new value on every Make
//	c.Bind("report", container.TypeRef("app.Report"))
//
//	// shared: built once, reused until Flush
//	c.Singleton("cache", container.Factory(func(c *container.Container) (any, error) {
//	    cfg, err := container.Resolve[*config.Config](c, "config")
//	    if err != nil {
//	        return nil, err
//	    }
//	    return cache.New(cfg), nil
//	}))
//
//	// pre-built value
//	c.Instance("config", cfg)
//
//	// alias
//	c.Alias("cache", "cache.store")
//
// # Types
//
//	c.DefineConstructor(container.KeyOf[Repository](), NewSQLRepository)
//	c.DefineConstructor("app.Report", NewReport, "repo", "limit")
//	c.Make("app.Report") // NewReport(<Repository>, <limit>)
//
// Constructor parameters are resolved in order. A parameter whose type is
// not registered falls back to its default, then to nil when nullable.
// Primitive parameters come from global parameters, "$name" contextual
// overrides or defaults.
//
// # Contextual Binding
//
//	c.When("app.PhotoController").Needs("app.Filesystem").GiveType("app.S3Filesystem")
//
// # Tags
//
//	c.Tag([]string{"reports.cpu", "reports.memory"}, "reports")
//	reports, err := c.Tagged("reports")
//
// # Errors
//
// Every failure is a *Error whose Code is NOT_FOUND, CIRCULAR_DEPENDENCY,
// CONTAINER_ERROR or INVALID_CONFIGURATION; match with errors.Is against
// ErrNotFound and friends.
//
// # Deferred Providers
//
//	type HeavyProvider struct{ container.BaseProvider }
//
//	func (p *HeavyProvider) IsDeferred() bool   { return true }
//	func (p *HeavyProvider) Provides() []string { return []string{"heavy"} }
//	func (p *HeavyProvider) Register(app *container.Container) error {
//	    app.Singleton("heavy", container.Factory(heavySetup)) // on first Make("heavy")
//	    return nil
//	}
package container
