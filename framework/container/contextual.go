package container

// ContextualBuilder implements the fluent contextual binding API.
//
//	c.When("app.PhotoController").Needs("app.Filesystem").Give(container.TypeRef("app.S3Filesystem"))
//	c.When("app.PhotoController").Needs("$root").GiveValue("/tmp/photos")
type ContextualBuilder struct {
	container *Container
	consumers []string
	needs     string
}

// When starts a contextual binding for one or more consumer types.
func (c *Container) When(consumers ...string) *ContextualBuilder {
	return &ContextualBuilder{container: c, consumers: consumers}
}

// Needs names the dependency to override: a type identifier, or "$name"
// for a primitive parameter.
func (b *ContextualBuilder) Needs(dependency string) *ContextualBuilder {
	b.needs = dependency
	return b
}

// Give sets what the consumers receive for the dependency. The concrete is
// built each time it is needed and never cached.
func (b *ContextualBuilder) Give(concrete Concrete) error {
	switch {
	case len(b.consumers) == 0:
		return newConfigError(b.needs, "contextual binding has no consumer")
	case b.needs == "":
		return newConfigError("", "contextual binding for %v has no dependency", b.consumers)
	case concrete == nil:
		return newConfigError(b.needs, "contextual binding for [%s] has no concrete", b.needs)
	}

	r := b.container.reg
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, consumer := range b.consumers {
		if _, ok := r.contextual[consumer]; !ok {
			r.contextual[consumer] = make(map[string]Concrete)
		}
		r.contextual[consumer][b.needs] = concrete
	}
	return nil
}

// GiveValue is a shorthand for Give(Value{V: value}).
func (b *ContextualBuilder) GiveValue(value any) error {
	return b.Give(Value{V: value})
}

// GiveType is a shorthand for Give(TypeRef(name)).
func (b *ContextualBuilder) GiveType(name string) error {
	return b.Give(TypeRef(name))
}

// GiveTagged gives the consumers every value tagged with tag, as []any.
func (b *ContextualBuilder) GiveTagged(tag string) error {
	return b.Give(Factory(func(c *Container) (any, error) {
		return c.Tagged(tag)
	}))
}

// contextualFor returns the override for dependency while building consumer.
func (r *registry) contextualFor(consumer, dependency string) (Concrete, bool) {
	if consumer == "" {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.contextual[consumer]
	if !ok {
		return nil, false
	}
	if c, ok := m[dependency]; ok {
		return c, true
	}
	c, ok := m[r.canonical(dependency)]
	return c, ok
}
