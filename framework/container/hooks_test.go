package container_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-ioc/framework/container"
)

func wrap(tag string) container.Decorator {
	return func(inst any, _ *container.Container) (any, error) {
		return tag + "(" + inst.(string) + ")", nil
	}
}

func TestDecorate_AppliedInRegistrationOrder(t *testing.T) {
	c := container.New()
	c.Bind("x", container.Value{V: "x"})
	require.NoError(t, c.Decorate("x", wrap("d1")))
	require.NoError(t, c.Decorate("x", wrap("d2")))
	require.NoError(t, c.Decorate("x", wrap("d3")))

	v, err := c.Make("x")
	require.NoError(t, err)
	assert.Equal(t, "d3(d2(d1(x)))", v)
}

func TestDecorate_ReappliesToCachedInstance(t *testing.T) {
	c := container.New()
	c.Singleton("x", container.Value{V: "x"})
	_, err := c.Make("x")
	require.NoError(t, err)

	require.NoError(t, c.Decorate("x", wrap("late")))

	v, err := c.Make("x")
	require.NoError(t, err)
	assert.Equal(t, "late(x)", v)
}

func TestDecorate_FailingOnCachedInstanceIsNotKept(t *testing.T) {
	c := container.New()
	c.Singleton("svc", container.Value{V: "svc"})
	_, err := c.Make("svc")
	require.NoError(t, err)

	err = c.Decorate("svc", func(any, *container.Container) (any, error) {
		return nil, errors.New("boom")
	})
	require.ErrorIs(t, err, container.ErrContainer)

	c.ForgetInstance("svc")
	v, err := c.Make("svc")
	require.NoError(t, err)
	assert.Equal(t, "svc", v)
}

func TestDecorate_ThroughAlias(t *testing.T) {
	c := container.New()
	c.Bind("x", container.Value{V: "x"})
	require.NoError(t, c.Alias("x", "alias"))
	require.NoError(t, c.Decorate("alias", wrap("d")))

	v, err := c.Make("x")
	require.NoError(t, err)
	assert.Equal(t, "d(x)", v)
}

func TestDecorate_ErrorAbortsResolution(t *testing.T) {
	c := container.New()
	errInvalid := errors.New("invalid")
	c.Singleton("x", container.Value{V: "x"})
	require.NoError(t, c.Decorate("x", func(any, *container.Container) (any, error) { return nil, errInvalid }))

	_, err := c.Make("x")
	assert.ErrorIs(t, err, errInvalid)
	assert.ErrorIs(t, err, container.ErrContainer)
	assert.False(t, c.IsResolved("x"))
}

// ── Method injection ──────────────────────────────────────────────────────────

type ReportService struct {
	Log   Logger
	Limit int
	Ready bool
}

func (s *ReportService) SetLogger(l Logger) { s.Log = l }
func (s *ReportService) SetLimit(limit int) { s.Limit = limit }
func (s *ReportService) Validate() error    { return errors.New("limit too low") }
func (s *ReportService) Configure(l Logger, limit int) {
	s.Log, s.Limit = l, limit
}

const reportKey = "report.service"

func newReports(t *testing.T) *container.Container {
	t.Helper()
	c := newWired(t)
	c.Bind(reportKey, container.Factory(func(*container.Container) (any, error) {
		return &ReportService{}, nil
	}))
	return c
}

func TestMethodInjection_ResolvesAndUsesExplicitArgs(t *testing.T) {
	c := newReports(t)
	require.NoError(t, c.MethodInjection(reportKey, "SetLogger", nil))
	require.NoError(t, c.MethodInjection(reportKey, "SetLimit", map[string]any{"int": 25}))

	s, err := container.Resolve[*ReportService](c, reportKey)
	require.NoError(t, err)
	assert.IsType(t, &fileLogger{}, s.Log)
	assert.Equal(t, 25, s.Limit)
}

func TestMethodInjection_ExplicitArgWinsOverResolution(t *testing.T) {
	c := newReports(t)
	require.NoError(t, c.MethodInjection(reportKey, "Configure", map[string]any{loggerKey: nullLogger{}, "int": 5}))

	s, err := container.Resolve[*ReportService](c, reportKey)
	require.NoError(t, err)
	assert.Equal(t, nullLogger{}, s.Log)
	assert.Equal(t, 5, s.Limit)
}

func TestMethodInjection_TypeDefMethodPreferred(t *testing.T) {
	c := container.New()
	require.NoError(t, c.Define(container.TypeDef{
		Name: "report",
		New:  func([]any) (any, error) { return &ReportService{}, nil },
		Methods: map[string]container.MethodDef{
			"SetLimit": {
				Params: []container.Param{container.Scalar("limit", "int")},
				Invoke: func(inst any, args []any) error {
					inst.(*ReportService).Limit = args[0].(int) * 2
					return nil
				},
			},
		},
	}))
	require.NoError(t, c.MethodInjection("report", "SetLimit", map[string]any{"limit": 21}))

	s, err := container.Resolve[*ReportService](c, "report")
	require.NoError(t, err)
	assert.Equal(t, 42, s.Limit)
}

func TestMethodInjection_DuplicateRejected(t *testing.T) {
	c := newReports(t)
	require.NoError(t, c.MethodInjection(reportKey, "SetLogger", nil))

	err := c.MethodInjection(reportKey, "SetLogger", nil)
	assert.ErrorIs(t, err, container.ErrInvalidConfiguration)
}

func TestMethodInjection_MissingMethod(t *testing.T) {
	c := newReports(t)
	require.NoError(t, c.MethodInjection(reportKey, "Teleport", nil))

	_, err := c.Make(reportKey)
	require.ErrorIs(t, err, container.ErrContainer)
	assert.Contains(t, err.Error(), "method [Teleport] does not exist")
}

func TestMethodInjection_MethodErrorPropagates(t *testing.T) {
	c := newReports(t)
	require.NoError(t, c.MethodInjection(reportKey, "Validate", nil))

	_, err := c.Make(reportKey)
	require.ErrorIs(t, err, container.ErrContainer)
	assert.Contains(t, err.Error(), "limit too low")
}

func TestMethodInjection_UnresolvablePrimitive(t *testing.T) {
	c := newReports(t)
	require.NoError(t, c.MethodInjection(reportKey, "SetLimit", nil))

	_, err := c.Make(reportKey)
	assert.ErrorIs(t, err, container.ErrContainer)
}

// ── Callbacks ─────────────────────────────────────────────────────────────────

func TestAfterResolving_OrderAndFrequency(t *testing.T) {
	c := container.New()
	c.Bind("x", container.Value{V: "x"})
	c.Singleton("shared", container.Value{V: "s"})

	var events []string
	c.AfterResolving("x", func(inst any, _ *container.Container) { events = append(events, "first:"+inst.(string)) })
	c.AfterResolving("x", func(inst any, _ *container.Container) { events = append(events, "second:"+inst.(string)) })
	c.OnResolved(func(id string, _ any) { events = append(events, "global:"+id) })
	c.AfterResolving("shared", func(any, *container.Container) { events = append(events, "shared") })

	for range 2 {
		_, err := c.Make("x")
		require.NoError(t, err)
		_, err = c.Make("shared")
		require.NoError(t, err)
	}

	assert.Equal(t, []string{
		"first:x", "second:x", "global:x",
		"shared", "global:shared",
		"first:x", "second:x", "global:x",
	}, events)
}

func TestAfterResolving_SeesDecoratedValue(t *testing.T) {
	c := container.New()
	c.Bind("x", container.Value{V: "x"})
	require.NoError(t, c.Decorate("x", wrap("d")))

	var seen any
	c.AfterResolving("x", func(inst any, _ *container.Container) { seen = inst })

	_, err := c.Make("x")
	require.NoError(t, err)
	assert.Equal(t, "d(x)", seen)
}

func TestAfterResolving_PanicIsRecovered(t *testing.T) {
	c := container.New()
	c.Bind("x", container.Value{V: "x"})
	c.AfterResolving("x", func(any, *container.Container) { panic("callback exploded") })

	_, err := c.Make("x")
	require.ErrorIs(t, err, container.ErrContainer)
	assert.Contains(t, err.Error(), "callback exploded")
}
