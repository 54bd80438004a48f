package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evansims/contentbuild/internal/errors"
)

func tempManifest(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "state", "manifest.json")
}

func writeOutput(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestOpenMissingManifest(t *testing.T) {
	store, warn := Open(tempManifest(t))
	assert.Nil(t, warn)
	assert.Equal(t, 0, store.Len())
}

func TestRecordFlushReload(t *testing.T) {
	path := tempManifest(t)
	out := writeOutput(t, t.TempDir(), "index.json", "{}")

	store, warn := Open(path)
	require.Nil(t, warn)
	store.Record("hash-a", Entry{
		Kind:       KindDocument,
		SourcePath: "/content/blog/post/index.md",
		Outputs:    map[string]string{out: HashBytes([]byte("{}"))},
		ParamHash:  "params-1",
	})
	require.NoError(t, store.Flush())

	reloaded, warn := Open(path)
	require.Nil(t, warn)
	entry, ok := reloaded.Lookup("hash-a")
	require.True(t, ok)
	assert.Equal(t, KindDocument, entry.Kind)
	assert.Equal(t, "params-1", entry.ParamHash)
	assert.False(t, entry.RecordedAt.IsZero())
}

func TestFlushIsAtomic(t *testing.T) {
	path := tempManifest(t)
	store, _ := Open(path)
	store.Record("k", Entry{Kind: KindDocument})
	require.NoError(t, store.Flush())

	// No temp file left behind, manifest parses.
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
	_, warn := Open(path)
	assert.Nil(t, warn)
}

func TestFlushSkipsWhenClean(t *testing.T) {
	path := tempManifest(t)
	store, _ := Open(path)
	require.NoError(t, store.Flush())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "clean store should not create a manifest")
}

func TestOpenCorruptManifest(t *testing.T) {
	path := tempManifest(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	store, warn := Open(path)
	require.NotNil(t, warn)
	assert.Equal(t, errors.CategoryCache, warn.Category)
	assert.Equal(t, errors.SeverityWarning, warn.Severity)
	assert.Equal(t, 0, store.Len(), "corruption degrades to an empty store")
}

func TestOpenUnsupportedVersion(t *testing.T) {
	path := tempManifest(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 99, "entries": {}}`), 0o644))

	store, warn := Open(path)
	require.NotNil(t, warn)
	assert.Equal(t, 0, store.Len())
}

func TestInvalidateMissingSources(t *testing.T) {
	dir := t.TempDir()
	src := writeOutput(t, dir, "index.md", "doc")

	store, _ := Open(tempManifest(t))
	store.Record("kept", Entry{SourcePath: src})
	store.Record("dropped", Entry{SourcePath: filepath.Join(dir, "gone.md")})

	assert.Equal(t, 1, store.InvalidateMissingSources())
	_, ok := store.Lookup("kept")
	assert.True(t, ok)
	_, ok = store.Lookup("dropped")
	assert.False(t, ok)
}

func TestCheckFreshEntrySkips(t *testing.T) {
	dir := t.TempDir()
	out := writeOutput(t, dir, "index.json", "content")

	store, _ := Open(tempManifest(t))
	store.Record("key", Entry{
		Outputs:   map[string]string{out: HashBytes([]byte("content"))},
		ParamHash: "p1",
	})

	d := store.Check("key", "p1", false)
	assert.True(t, d.Skip)
	assert.Empty(t, d.Reason)
}

func TestCheckRebuildReasons(t *testing.T) {
	dir := t.TempDir()
	out := writeOutput(t, dir, "index.json", "content")
	good := Entry{Outputs: map[string]string{out: HashBytes([]byte("content"))}, ParamHash: "p1"}

	store, _ := Open(tempManifest(t))
	store.Record("key", good)

	t.Run("unknown key", func(t *testing.T) {
		d := store.Check("other", "p1", false)
		assert.False(t, d.Skip)
		assert.Contains(t, d.Reason, "no cache entry")
	})

	t.Run("parameter mismatch", func(t *testing.T) {
		d := store.Check("key", "p2", false)
		assert.False(t, d.Skip)
		assert.Contains(t, d.Reason, "parameters changed")
	})

	t.Run("force bypasses lookup", func(t *testing.T) {
		d := store.Check("key", "p1", true)
		assert.False(t, d.Skip)
		assert.Contains(t, d.Reason, "forced")
	})

	t.Run("modified output", func(t *testing.T) {
		require.NoError(t, os.WriteFile(out, []byte("tampered"), 0o644))
		d := store.Check("key", "p1", false)
		assert.False(t, d.Skip)
		assert.Contains(t, d.Reason, "modified output")
		require.NoError(t, os.WriteFile(out, []byte("content"), 0o644))
	})

	t.Run("missing output", func(t *testing.T) {
		require.NoError(t, os.Remove(out))
		d := store.Check("key", "p1", false)
		assert.False(t, d.Skip)
		assert.Contains(t, d.Reason, "missing output")
	})
}

func TestRecordedAtDefault(t *testing.T) {
	store, _ := Open(tempManifest(t))
	before := time.Now().Add(-time.Second)
	store.Record("k", Entry{Kind: KindImage})
	e, _ := store.Lookup("k")
	assert.True(t, e.RecordedAt.After(before))
}
