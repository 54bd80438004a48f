package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evansims/contentbuild/internal/build"
	"github.com/evansims/contentbuild/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := &config.Config{
		Site:    config.SiteConfig{BaseURL: "https://example.com", Title: "Example"},
		Content: config.ContentConfig{Root: filepath.Join(base, "content")},
		Output:  config.OutputConfig{Dir: filepath.Join(base, "output")},
		Cache:   config.CacheConfig{Dir: filepath.Join(base, ".contentbuild")},
		Images: config.ImageConfig{
			Formats:     []string{"jpeg"},
			Breakpoints: []int{400},
			Quality:     map[string]int{"jpeg": 85},
		},
	}
	require.NoError(t, os.MkdirAll(cfg.Content.Root, 0o755))
	return cfg
}

func writeItem(t *testing.T, cfg *config.Config, topic, slug, doc string) {
	t.Helper()
	dir := filepath.Join(cfg.Content.Root, topic, slug)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.md"), []byte(doc), 0o644))
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(25 * time.Millisecond)
	}
	return cond()
}

func TestWatcherInitialBuild(t *testing.T) {
	cfg := testConfig(t)
	writeItem(t, cfg, "blog", "first", "---\ntitle: First\ncreated: 2024-01-01\n---\nBody.\n")

	w, err := New(cfg, build.New(cfg), Options{})
	require.NoError(t, err)
	w.debounce = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	feedPath := filepath.Join(cfg.Output.Dir, "feed.xml")
	assert.True(t, waitFor(t, 5*time.Second, func() bool {
		_, err := os.Stat(feedPath)
		return err == nil
	}), "initial build writes the feed")

	cancel()
	require.NoError(t, <-done)
}

func TestWatcherRebuildsOnChange(t *testing.T) {
	cfg := testConfig(t)
	writeItem(t, cfg, "blog", "first", "---\ntitle: First\ncreated: 2024-01-01\n---\nBody.\n")

	w, err := New(cfg, build.New(cfg), Options{})
	require.NoError(t, err)
	w.debounce = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	recordPath := filepath.Join(cfg.Output.Dir, "content", "blog", "first", "index.json")
	require.True(t, waitFor(t, 5*time.Second, func() bool {
		_, err := os.Stat(recordPath)
		return err == nil
	}))

	// Edit the document; the watcher should rebuild the record.
	before, err := os.ReadFile(recordPath)
	require.NoError(t, err)
	writeItem(t, cfg, "blog", "first", "---\ntitle: First (edited)\ncreated: 2024-01-01\n---\nBody.\n")

	assert.True(t, waitFor(t, 5*time.Second, func() bool {
		after, err := os.ReadFile(recordPath)
		return err == nil && string(after) != string(before)
	}), "record reflects the edit")

	cancel()
	require.NoError(t, <-done)
}

func TestWatcherPicksUpNewDirectories(t *testing.T) {
	cfg := testConfig(t)
	writeItem(t, cfg, "blog", "first", "---\ntitle: First\ncreated: 2024-01-01\n---\nBody.\n")

	w, err := New(cfg, build.New(cfg), Options{})
	require.NoError(t, err)
	w.debounce = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.True(t, waitFor(t, 5*time.Second, func() bool {
		_, err := os.Stat(filepath.Join(cfg.Output.Dir, "feed.xml"))
		return err == nil
	}))

	writeItem(t, cfg, "blog", "second", "---\ntitle: Second\ncreated: 2024-01-02\n---\nMore.\n")

	assert.True(t, waitFor(t, 5*time.Second, func() bool {
		_, err := os.Stat(filepath.Join(cfg.Output.Dir, "content", "blog", "second", "index.json"))
		return err == nil
	}), "items added after start are built")

	cancel()
	require.NoError(t, <-done)
}

func TestIgnoredPath(t *testing.T) {
	assert.True(t, ignoredPath("/content/blog/.index.md.swp"))
	assert.True(t, ignoredPath("/content/blog/index.md~"))
	assert.True(t, ignoredPath("/content/.git"))
	assert.False(t, ignoredPath("/content/blog/post/index.md"))
}
