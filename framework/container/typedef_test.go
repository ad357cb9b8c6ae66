package container_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-ioc/framework/container"
)

type Options struct{ Verbose bool }

type Service struct {
	Log     Logger
	Name    string
	Opts    *Options
	Extra   any
	Retries int32
}

func NewService(l Logger, name string, opts *Options, extra any, retries int32) (*Service, error) {
	if name == "" {
		return nil, errors.New("name required")
	}
	return &Service{Log: l, Name: name, Opts: opts, Extra: extra, Retries: retries}, nil
}

func TestConstructor_DerivesParams(t *testing.T) {
	def, err := container.Constructor("svc", NewService, "", "name")
	require.NoError(t, err)

	require.Len(t, def.Params, 5)
	logParam, name, opts, extra, retries := def.Params[0], def.Params[1], def.Params[2], def.Params[3], def.Params[4]

	assert.Equal(t, loggerKey, logParam.Type)
	assert.Equal(t, loggerKey, logParam.Name)
	assert.False(t, logParam.Primitive)
	assert.True(t, logParam.Nullable)

	assert.Equal(t, "name", name.Name)
	assert.Equal(t, "string", name.Type)
	assert.True(t, name.Primitive)
	assert.False(t, name.Nullable)

	assert.Equal(t, container.KeyOf[*Options](), opts.Type)
	assert.True(t, opts.Nullable)

	assert.Empty(t, extra.Type, "any is untyped")
	assert.Equal(t, "arg3", extra.Name)

	assert.Equal(t, "int32", retries.Type)
	assert.True(t, retries.Primitive)
}

func TestConstructor_RejectsInvalidFunctions(t *testing.T) {
	cases := map[string]any{
		"not a func":      42,
		"nil func":        (func() *Service)(nil),
		"variadic":        func(...string) *Service { return nil },
		"no results":      func() {},
		"only error":      func() error { return nil },
		"second not err":  func() (*Service, int) { return nil, 0 },
		"too many values": func() (*Service, int, error) { return nil, 0, nil },
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := container.Constructor("x", fn)
			assert.ErrorIs(t, err, container.ErrInvalidConfiguration)
		})
	}

	assert.Panics(t, func() { container.MustConstructor("x", 42) })
}

func TestConstructor_ConvertsPrimitivesAndZeroesNil(t *testing.T) {
	c := container.New()
	require.NoError(t, c.DefineConstructor("svc", NewService, "", "name", "", "", "retries"))
	c.AddGlobalParameter("name", "billing")
	c.AddGlobalParameter("retries", 3)
	c.AddGlobalParameter("arg3", map[string]int{"a": 1})

	svc, err := container.Resolve[*Service](c, "svc")
	require.NoError(t, err)
	assert.Nil(t, svc.Log)
	assert.Nil(t, svc.Opts)
	assert.Equal(t, "billing", svc.Name)
	assert.Equal(t, int32(3), svc.Retries)
	assert.Equal(t, map[string]int{"a": 1}, svc.Extra)
}

func TestConstructor_ReturnedErrorPropagates(t *testing.T) {
	c := container.New()
	require.NoError(t, c.DefineConstructor("svc", NewService, "", "name"))
	c.AddGlobalParameter("name", "")
	c.AddGlobalParameter("arg3", nil)
	c.AddGlobalParameter("int32", int32(0))

	_, err := c.Make("svc")
	require.ErrorIs(t, err, container.ErrContainer)
	assert.Contains(t, err.Error(), "name required")
}

func TestConstructor_MismatchedArgument(t *testing.T) {
	c := container.New()
	require.NoError(t, c.DefineConstructor(mailerKey, NewMailer, "", "from"))
	c.AddGlobalParameter("from", 12)
	c.Bind(loggerKey, container.Value{V: nullLogger{}})

	_, err := c.Make(mailerKey)
	require.ErrorIs(t, err, container.ErrContainer)
	assert.Contains(t, err.Error(), "not assignable")
}

func TestDefine_Validates(t *testing.T) {
	c := container.New()

	assert.ErrorIs(t, c.Define(container.TypeDef{}), container.ErrInvalidConfiguration)
	assert.ErrorIs(t, c.Define(container.TypeDef{Name: "x", Params: []container.Param{{Type: "y"}}}), container.ErrInvalidConfiguration)
	assert.ErrorIs(t, c.Define(container.TypeDef{Name: "x", Methods: map[string]container.MethodDef{"Init": {}}}), container.ErrInvalidConfiguration)
	assert.ErrorIs(t, c.DefineConstructor("x", "nope"), container.ErrInvalidConfiguration)
}

func TestTypeKey_AgreesWithKeyOf(t *testing.T) {
	assert.Equal(t, container.KeyOf[*Mailer](), container.TypeKey(&Mailer{}))
	assert.Equal(t, container.KeyOf[Mailer](), container.TypeKey(Mailer{}))
	assert.Equal(t, container.KeyOf[Logger](), container.TypeKey((*Logger)(nil)))
	assert.Equal(t, "*github.com/km-arc/go-ioc/framework/container_test.Mailer", mailerKey)
	assert.Equal(t, "github.com/km-arc/go-ioc/framework/container_test.Mailer", container.KeyOf[Mailer]())
	assert.Equal(t, "int", container.KeyOf[int]())
	assert.Equal(t, "[]string", container.KeyOf[[]string]())
	assert.Equal(t, "", container.TypeKey(nil))
}

func TestConstructor_ValueAndPointerParamsAreDistinct(t *testing.T) {
	c := container.New()
	c.Instance(container.KeyOf[Mailer](), Mailer{From: "value"})
	c.Instance(container.KeyOf[*Mailer](), &Mailer{From: "pointer"})
	require.NoError(t, c.DefineConstructor("both", func(v Mailer, p *Mailer) string {
		return v.From + "/" + p.From
	}))

	got, err := c.Make("both")
	require.NoError(t, err)
	assert.Equal(t, "value/pointer", got)
}

func TestParamHelpers(t *testing.T) {
	p := container.Dep("repo", "Repository").OrNil().WithDefault("x")
	assert.Equal(t, container.Param{Name: "repo", Type: "Repository", Nullable: true, Default: "x", HasDefault: true}, p)

	s := container.Scalar("limit", "int")
	assert.True(t, s.Primitive)

	u := container.Untyped("opts")
	assert.Empty(t, u.Type)
}
