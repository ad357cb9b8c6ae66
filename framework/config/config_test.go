package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-ioc/framework/config"
	"github.com/km-arc/go-ioc/framework/container"
	"github.com/km-arc/go-ioc/framework/logger"
)

// inTempDir runs the test from an empty directory so a stray ./.env is
// never picked up.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	inTempDir(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "go-ioc", cfg.App.Name)
	assert.Equal(t, "local", cfg.App.Env)
	assert.Equal(t, "8000", cfg.App.Port)
	assert.Equal(t, ":8000", cfg.Addr())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Log.Timestamp)
	assert.Equal(t, container.DefaultMaxDepth, cfg.Container.MaxDepth)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	inTempDir(t)
	t.Setenv("APP_NAME", "billing")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_NO_COLOR", "true")
	t.Setenv("CONTAINER_MAX_DEPTH", "32")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "billing", cfg.App.Name)
	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.NoColor)
	assert.Equal(t, 32, cfg.Container.MaxDepth)
}

func TestLoad_DefaultDotEnvIsRead(t *testing.T) {
	dir := inTempDir(t)
	writeFile(t, dir, ".env", "APP_NAME=from-dotenv\nAPP_ENV=testing\n")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "from-dotenv", cfg.App.Name)
	assert.Equal(t, "testing", cfg.App.Env)
	_, leaked := os.LookupEnv("APP_ENV")
	assert.False(t, leaked, ".env must not modify the process environment")
}

func TestLoad_EnvironmentBeatsDotEnvBeatsFile(t *testing.T) {
	dir := inTempDir(t)
	yml := writeFile(t, dir, "config.yml", "app:\n  name: from-file\n  port: \"7000\"\n  env: staging\n")
	env := writeFile(t, dir, "custom.env", "APP_NAME=from-dotenv\nAPP_PORT=7100\n")
	t.Setenv("APP_NAME", "from-env")

	cfg, err := config.Load(config.WithConfigFile(yml), config.WithEnvFiles(env))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.App.Name)
	assert.Equal(t, "7100", cfg.App.Port)
	assert.Equal(t, "staging", cfg.App.Env)
}

func TestLoad_MissingExplicitFiles(t *testing.T) {
	dir := inTempDir(t)

	_, err := config.Load(config.WithConfigFile(filepath.Join(dir, "missing.yml")))
	assert.Error(t, err)

	_, err = config.Load(config.WithEnvFiles(filepath.Join(dir, "missing.env")))
	assert.Error(t, err)
}

func TestLoad_ValidationErrors(t *testing.T) {
	inTempDir(t)
	t.Setenv("APP_PORT", "http")
	t.Setenv("APP_ENV", "moon")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app.port: must be numeric")
	assert.Contains(t, err.Error(), "app.env: must be one of")
}

func TestLoad_InvalidLogSection(t *testing.T) {
	inTempDir(t)
	t.Setenv("LOG_FORMAT", "xml")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.format")
}

func TestContainerOptions_ApplyMaxDepth(t *testing.T) {
	inTempDir(t)
	t.Setenv("CONTAINER_MAX_DEPTH", "3")
	cfg, err := config.Load()
	require.NoError(t, err)

	c := container.New(cfg.ContainerOptions(logger.Nop())...)
	c.Bind("loop", container.Factory(func(c *container.Container) (any, error) {
		return c.Make("loop")
	}))

	_, err = c.Make("loop")
	require.ErrorIs(t, err, container.ErrContainer)
	assert.Contains(t, err.Error(), "maximum resolution depth (3)")
}
