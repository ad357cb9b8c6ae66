// Package config loads application configuration from defaults, an optional
// YAML file, .env files and the environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/km-arc/go-ioc/framework/container"
	"github.com/km-arc/go-ioc/framework/logger"
)

// Config is the central typed configuration struct.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Log       logger.Config   `mapstructure:"log"`
	Container ContainerConfig `mapstructure:"container"`
}

type AppConfig struct {
	Name  string `mapstructure:"name" validate:"required"`
	Env   string `mapstructure:"env" validate:"oneof=local testing staging production"`
	Debug bool   `mapstructure:"debug"`
	URL   string `mapstructure:"url" validate:"omitempty,url"`
	Port  string `mapstructure:"port" validate:"required,numeric"`
}

type ContainerConfig struct {
	MaxDepth int `mapstructure:"max_depth" validate:"min=1,max=4096"`
}

// defaults doubles as the list of keys read from the environment: key
// "app.port" is read from APP_PORT.
var defaults = map[string]any{
	"app.name":            "go-ioc",
	"app.env":             "local",
	"app.debug":           false,
	"app.url":             "http://localhost",
	"app.port":            "8000",
	"log.level":           "info",
	"log.format":          "console",
	"log.output":          "stdout",
	"log.no_color":        false,
	"log.timestamp":       true,
	"log.caller":          false,
	"container.max_depth": container.DefaultMaxDepth,
}

type loadOptions struct {
	envFiles   []string
	configFile string
}

// Option configures Load.
type Option func(*loadOptions)

// WithEnvFiles reads the given .env files instead of ./.env. Unlike the
// default file, they must exist.
func WithEnvFiles(files ...string) Option {
	return func(o *loadOptions) { o.envFiles = files }
}

// WithConfigFile reads a YAML (or any viper-supported) config file.
func WithConfigFile(path string) Option {
	return func(o *loadOptions) { o.configFile = path }
}

// Load builds a validated Config.
//
//	cfg, err := config.Load(config.WithConfigFile("config.yml"))
func Load(opts ...Option) (*Config, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if o.configFile != "" {
		v.SetConfigFile(o.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", o.configFile, err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	dotenv, err := readEnvFiles(o.envFiles)
	if err != nil {
		return nil, err
	}
	for key := range defaults {
		name := envName(key)
		if _, set := os.LookupEnv(name); set {
			continue
		}
		if value, ok := dotenv[name]; ok {
			v.Set(key, value)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// readEnvFiles parses .env files without touching the process environment.
// The default ./.env is optional.
func readEnvFiles(files []string) (map[string]string, error) {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil, nil
		}
		files = []string{".env"}
	}
	values, err := godotenv.Read(files...)
	if err != nil {
		return nil, fmt.Errorf("read env files %v: %w", files, err)
	}
	return values, nil
}

func envName(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// ── Validation ────────────────────────────────────────────────────────────────

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "" || name == "-" {
			return strings.ToLower(fld.Name)
		}
		return name
	})
	return v
}

// Validate checks struct tags and the logging section.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validate config: %w", err)
		}
		msgs := make([]string, 0, len(verrs))
		for _, e := range verrs {
			msgs = append(msgs, fieldPath(e)+": "+describe(e))
		}
		return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "numeric":
		return "must be numeric"
	case "url":
		return "must be a valid URL"
	case "oneof":
		return "must be one of: " + e.Param()
	case "min":
		return "must be at least " + e.Param()
	case "max":
		return "must be at most " + e.Param()
	default:
		return "is invalid"
	}
}

// ── Accessors ─────────────────────────────────────────────────────────────────

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string { return ":" + c.App.Port }

// ContainerOptions maps the container section onto container options.
func (c *Config) ContainerOptions(log *logger.Logger) []container.Option {
	return []container.Option{
		container.WithMaxDepth(c.Container.MaxDepth),
		container.WithLogger(log),
	}
}
