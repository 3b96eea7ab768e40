package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name string `mapstructure:"name"`
	HTTP struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"http"`
	Schedule struct {
		News string `mapstructure:"news"`
	} `mapstructure:"schedule"`
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadAndWatch_DefaultsWithoutFile(t *testing.T) {
	chdir(t, t.TempDir())

	var out sample
	_, err := LoadAndWatch("market-hub-test", &out, map[string]interface{}{
		"name":      "market-hub",
		"http.addr": ":8080",
	})
	require.NoError(t, err)
	assert.Equal(t, "market-hub", out.Name)
	assert.Equal(t, ":8080", out.HTTP.Addr)
}

func TestLoadAndWatch_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	yaml := "http:\n  addr: \":9090\"\nschedule:\n  news: 1m\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "market-hub-test.yaml"), []byte(yaml), 0o644))
	chdir(t, dir)

	var out sample
	_, err := LoadAndWatch("market-hub-test", &out, map[string]interface{}{
		"name":          "market-hub",
		"http.addr":     ":8080",
		"schedule.news": "5m",
	})
	require.NoError(t, err)
	assert.Equal(t, "market-hub", out.Name)
	assert.Equal(t, ":9090", out.HTTP.Addr)
	assert.Equal(t, "1m", out.Schedule.News)
}

func TestLoadAndWatch_EnvOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("MARKET_HUB_TEST_HTTP_ADDR", ":7070")

	var out sample
	_, err := LoadAndWatch("market-hub-test", &out, map[string]interface{}{
		"http.addr": ":8080",
	})
	require.NoError(t, err)
	assert.Equal(t, ":7070", out.HTTP.Addr)
}
