package container

import (
	"fmt"
	"reflect"
)

// Param describes one constructor or method parameter.
type Param struct {
	// Name matches global parameters, explicit method arguments and
	// "$name" contextual overrides.
	Name string
	// Type is the identifier resolved for object parameters. Empty means
	// the parameter is untyped.
	Type string
	// Primitive parameters (strings, numbers, ...) are never resolved
	// through Make.
	Primitive bool
	// Nullable parameters resolve to nil when their type is not registered.
	Nullable   bool
	Default    any
	HasDefault bool
}

// Dep declares an object parameter resolved through the container.
func Dep(name, id string) Param { return Param{Name: name, Type: id} }

// Scalar declares a primitive parameter of the given Go type name.
func Scalar(name, typ string) Param { return Param{Name: name, Type: typ, Primitive: true} }

// Untyped declares a parameter with no type information.
func Untyped(name string) Param { return Param{Name: name} }

// WithDefault returns a copy of p carrying a default value.
func (p Param) WithDefault(v any) Param {
	p.Default = v
	p.HasDefault = true
	return p
}

// OrNil returns a copy of p that resolves to nil when its type is missing.
func (p Param) OrNil() Param {
	p.Nullable = true
	return p
}

// MethodDef describes a method the container may call on a built instance.
type MethodDef struct {
	Params []Param
	Invoke func(instance any, args []any) error
}

// TypeDef describes how to construct a named type.
//
//	c.Define(container.TypeDef{
//	    Name:   "app.ReportService",
//	    Params: []container.Param{container.Dep("repo", "app.Repository"), container.Scalar("limit", "int").WithDefault(50)},
//	    New: func(args []any) (any, error) {
//	        return &ReportService{Repo: args[0].(Repository), Limit: args[1].(int)}, nil
//	    },
//	})
type TypeDef struct {
	Name   string
	Params []Param
	// New receives one argument per Param, in order.
	New func(args []any) (any, error)
	// Abstract marks interfaces and other non-instantiable types.
	Abstract bool
	Methods  map[string]MethodDef
}

func (d TypeDef) instantiable() bool { return !d.Abstract && d.New != nil }

func (d TypeDef) validate() error {
	if d.Name == "" {
		return newConfigError("", "type definition has no name")
	}
	for i, p := range d.Params {
		if p.Name == "" {
			return newConfigError(d.Name, "parameter %d of [%s] has no name", i, d.Name)
		}
	}
	for name, m := range d.Methods {
		if m.Invoke == nil {
			return newConfigError(d.Name, "method [%s] of [%s] has no Invoke func", name, d.Name)
		}
	}
	return nil
}

// ── Reflection helpers ────────────────────────────────────────────────────────

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Constructor derives a TypeDef from a Go constructor function returning T or
// (T, error). Parameter names default to the parameter's type key; pass
// names to override them positionally.
//
//	def, err := container.Constructor("app.Mailer", NewSmtpMailer, "transport", "from")
func Constructor(name string, fn any, names ...string) (TypeDef, error) {
	fv := reflect.ValueOf(fn)
	if fv.Kind() != reflect.Func || fv.IsNil() {
		return TypeDef{}, newConfigError(name, "constructor for [%s] must be a func, got %T", name, fn)
	}
	ft := fv.Type()
	if ft.IsVariadic() {
		return TypeDef{}, newConfigError(name, "constructor for [%s] must not be variadic", name)
	}
	switch {
	case ft.NumOut() == 1 && ft.Out(0) != errorType:
	case ft.NumOut() == 2 && ft.Out(1) == errorType:
	default:
		return TypeDef{}, newConfigError(name, "constructor for [%s] must return T or (T, error)", name)
	}

	return TypeDef{
		Name:   name,
		Params: paramsOf(ft, names),
		New: func(args []any) (any, error) {
			out, err := callFunc(fv, args)
			if err != nil {
				return nil, err
			}
			return splitResults(out)
		},
	}, nil
}

// MustConstructor is like Constructor but panics on an invalid function.
func MustConstructor(name string, fn any, names ...string) TypeDef {
	def, err := Constructor(name, fn, names...)
	if err != nil {
		panic(err)
	}
	return def
}

func paramsOf(ft reflect.Type, names []string) []Param {
	params := make([]Param, ft.NumIn())
	for i := range params {
		params[i] = paramOf(ft.In(i), i, names)
	}
	return params
}

func paramOf(t reflect.Type, i int, names []string) Param {
	var p Param
	if t.Kind() == reflect.Interface && t.NumMethod() == 0 {
		p.Name = fmt.Sprintf("arg%d", i)
	} else {
		p.Type = typeKey(t)
		p.Name = p.Type
		p.Primitive = isPrimitive(t)
		p.Nullable = isNillable(t)
	}
	if i < len(names) && names[i] != "" {
		p.Name = names[i]
	}
	return p
}

func isPrimitive(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	case reflect.Slice, reflect.Array, reflect.Map:
		return t.Name() == ""
	}
	return false
}

func isNillable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	}
	return false
}

func callFunc(fn reflect.Value, args []any) ([]reflect.Value, error) {
	ft := fn.Type()
	if len(args) != ft.NumIn() {
		return nil, fmt.Errorf("expected %d arguments, got %d", ft.NumIn(), len(args))
	}
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		v, err := argValue(a, ft.In(i))
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		in[i] = v
	}
	return fn.Call(in), nil
}

func argValue(a any, t reflect.Type) (reflect.Value, error) {
	if a == nil {
		return reflect.Zero(t), nil
	}
	v := reflect.ValueOf(a)
	if v.Type().AssignableTo(t) {
		return v, nil
	}
	if convertible(v.Type(), t) {
		return v.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("%T is not assignable to %s", a, t)
}

// convertible allows numeric widening and named scalar types, but not the
// int to string conversion reflect would otherwise accept.
func convertible(from, to reflect.Type) bool {
	if !from.ConvertibleTo(to) {
		return false
	}
	if from.Kind() == to.Kind() && isPrimitive(to) {
		return true
	}
	return isNumeric(from) && isNumeric(to)
}

func isNumeric(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func splitResults(out []reflect.Value) (any, error) {
	if n := len(out); n > 0 && out[n-1].Type() == errorType {
		if !out[n-1].IsNil() {
			return nil, out[n-1].Interface().(error)
		}
		out = out[:n-1]
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0].Interface(), nil
}

// reflectMethod exposes a method of instance as a MethodDef.
func reflectMethod(instance any, name string) (MethodDef, bool) {
	if instance == nil {
		return MethodDef{}, false
	}
	m := reflect.ValueOf(instance).MethodByName(name)
	if !m.IsValid() {
		return MethodDef{}, false
	}
	return MethodDef{
		Params: paramsOf(m.Type(), nil),
		Invoke: func(_ any, args []any) error {
			out, err := callFunc(m, args)
			if err != nil {
				return err
			}
			_, err = splitResults(out)
			return err
		},
	}, true
}

// ── Type keys ─────────────────────────────────────────────────────────────────

// TypeKey returns the package-qualified type name of v, useful as a stable
// identifier for interfaces and structs. Pointer types keep their "*", so
// T and *T are different identifiers. A pointer to an interface names the
// interface itself.
//
//	key := container.TypeKey((*UserRepository)(nil))  // "example.com/app.UserRepository"
//	key := container.TypeKey(&Mailer{})                // "*example.com/app.Mailer"
func TypeKey(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return ""
	}
	return typeKey(t)
}

// KeyOf returns the identifier for T. It agrees with the parameter types
// Constructor derives, so KeyOf[Repository]() is what a constructor taking a
// Repository will ask the container for, and KeyOf[*Mailer]() what one
// taking a *Mailer will.
func KeyOf[T any]() string {
	return typeKey(reflect.TypeOf((*T)(nil)).Elem())
}

func typeKey(t reflect.Type) string {
	if t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Interface {
		t = t.Elem()
	}
	if t.Kind() == reflect.Pointer && t.Elem().Name() != "" {
		return "*" + typeKey(t.Elem())
	}
	if t.Name() == "" {
		return t.String()
	}
	if t.PkgPath() == "" {
		return t.Name()
	}
	return t.PkgPath() + "." + t.Name()
}
