package container

// Concrete is what an identifier is bound to. It is one of:
//
//	container.Factory(func(c *container.Container) (any, error) { ... })
//	container.TypeRef("app.SmtpMailer")  // a type registered with Define
//	container.Value{V: cfg}              // a literal, returned as-is
//
// A concrete is only ever evaluated lazily, on resolution.
type Concrete interface {
	concrete()
}

// Factory builds a value. The container it receives is bound to the
// resolution in progress, so nested Make calls share its build stack.
// Factories that keep the container for later use should keep c.Root().
type Factory func(c *Container) (any, error)

// TypeRef names a type descriptor registered with Define.
type TypeRef string

// Value is a pre-built value.
type Value struct {
	V any
}

func (Factory) concrete() {}
func (TypeRef) concrete() {}
func (Value) concrete()   {}

// binding holds a registered concrete and whether it is shared.
type binding struct {
	concrete Concrete
	shared   bool

	// load is set on the placeholder of a deferred provider. It registers
	// the provider, which replaces this binding.
	load func() error
}
