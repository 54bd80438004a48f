package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "site:\n  base_url: https://example.com\n"))
	require.NoError(t, err)

	assert.Equal(t, "content", cfg.Content.Root)
	assert.Equal(t, "output", cfg.Output.Dir)
	assert.Equal(t, ".contentbuild", cfg.Cache.Dir)
	assert.Equal(t, []string{"webp", "jpeg"}, cfg.Images.Formats)
	assert.Equal(t, []int{480, 768, 1024, 1600}, cfg.Images.Breakpoints)
	assert.Equal(t, 80, cfg.Images.Quality["webp"])
	assert.Equal(t, 85, cfg.Images.Quality["jpeg"])
	assert.False(t, cfg.Build.IncludeDrafts)
}

func TestLoadFullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
site:
  base_url: https://blog.example.com
  title: Example
  author: Jamie
content:
  root: docs
topics:
  engineering:
    title: Engineering
  golang:
    title: Go
    parent: engineering
images:
  formats: [jpeg]
  breakpoints: [320, 640]
  quality:
    jpeg: 70
build:
  workers: 4
  include_drafts: true
`))
	require.NoError(t, err)

	assert.Equal(t, "docs", cfg.Content.Root)
	assert.Equal(t, 4, cfg.Build.Workers)
	assert.True(t, cfg.Build.IncludeDrafts)
	assert.Equal(t, 70, cfg.Images.Quality["jpeg"])
	assert.Equal(t, []string{"engineering", "golang"}, cfg.TopicIDs())
	assert.Equal(t, "https://blog.example.com/golang/generics", cfg.ItemURL("golang", "generics"))
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"relative base url", "site:\n  base_url: example.com\n"},
		{"zero breakpoint", "images:\n  breakpoints: [0]\n"},
		{"quality out of range", "images:\n  quality:\n    jpeg: 101\n"},
		{"negative workers", "build:\n  workers: -1\n"},
		{"unknown parent topic", "topics:\n  a:\n    title: A\n    parent: missing\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CONTENTBUILD_OUTPUT_DIR", "/tmp/out")
	t.Setenv("CONTENTBUILD_WORKERS", "2")

	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/out", cfg.Output.Dir)
	assert.Equal(t, 2, cfg.Build.Workers)
}

func TestWriteStarter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteStarter(path, false))

	// Starter config must load cleanly.
	_, err := Load(path)
	require.NoError(t, err)

	// Refuses to clobber without force.
	assert.Error(t, WriteStarter(path, false))
	assert.NoError(t, WriteStarter(path, true))
}
