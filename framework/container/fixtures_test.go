package container_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-ioc/framework/container"
)

// ── fixtures ──────────────────────────────────────────────────────────────────

type Logger interface {
	Log(msg string)
}

type fileLogger struct {
	lines []string
}

func (l *fileLogger) Log(msg string) { l.lines = append(l.lines, msg) }

func newFileLogger() *fileLogger { return &fileLogger{} }

type nullLogger struct{}

func (nullLogger) Log(string) {}

type Mailer struct {
	Log  Logger
	From string
}

func NewMailer(l Logger, from string) *Mailer { return &Mailer{Log: l, From: from} }

type Newsletter struct {
	Mailer *Mailer
	Audit  Logger
}

func NewNewsletter(m *Mailer, audit Logger) *Newsletter { return &Newsletter{Mailer: m, Audit: audit} }

var (
	loggerKey     = container.KeyOf[Logger]()
	fileLoggerKey = container.KeyOf[*fileLogger]()
	mailerKey     = container.KeyOf[*Mailer]()
	newsletterKey = container.KeyOf[*Newsletter]()
)

// newWired returns a container where Logger resolves to a shared fileLogger
// and Mailer and Newsletter are constructible.
func newWired(t *testing.T, opts ...container.Option) *container.Container {
	t.Helper()
	c := container.New(opts...)
	require.NoError(t, c.DefineConstructor(fileLoggerKey, newFileLogger))
	require.NoError(t, c.DefineConstructor(mailerKey, NewMailer, "", "from"))
	require.NoError(t, c.DefineConstructor(newsletterKey, NewNewsletter))
	c.Singleton(loggerKey, container.TypeRef(fileLoggerKey))
	c.AddGlobalParameter("from", "noreply@example.com")
	return c
}

// counter returns a factory producing fresh *int values and the call count.
func counter() (container.Factory, *int) {
	n := 0
	return func(*container.Container) (any, error) {
		n++
		v := n
		return &v, nil
	}, &n
}

// simpleType defines name with the given params; New records its arguments.
func simpleType(name string, params ...container.Param) container.TypeDef {
	return container.TypeDef{
		Name:   name,
		Params: params,
		New: func(args []any) (any, error) {
			return &built{Name: name, Args: args}, nil
		},
	}
}

type built struct {
	Name string
	Args []any
}
