package content

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evansims/contentbuild/internal/errors"
)

func writeDoc(t *testing.T, root, topic, slug, doc string) string {
	t.Helper()
	dir := filepath.Join(root, topic, slug)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "index.md")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return dir
}

const sampleDoc = `---
title: Introducing Generics
description: Type parameters in practice
tags: [go, generics]
created: 2024-03-01
---
Some **body** text.
`

func TestScanFindsItems(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "golang", "generics", sampleDoc)
	writeDoc(t, root, "golang", "errors", "---\ntitle: Error Handling\ncreated: 2024-01-15\n---\nWrap early.\n")
	writeDoc(t, root, "infra", "caching", "---\ntitle: Caching\ncreated: 2024-02-10\n---\nBody.\n")

	res, err := NewIndexer(root).Scan(ScanOptions{})
	require.NoError(t, err)
	require.Len(t, res.Items, 3)
	assert.Empty(t, res.Warnings)

	// Deterministic (topic, slug) ordering.
	assert.Equal(t, "golang/errors", res.Items[0].Key())
	assert.Equal(t, "golang/generics", res.Items[1].Key())
	assert.Equal(t, "infra/caching", res.Items[2].Key())

	item := res.Items[1]
	assert.Equal(t, "Introducing Generics", item.Meta.Title)
	assert.Equal(t, []string{"go", "generics"}, item.Meta.Tags)
	assert.Equal(t, "2024-03-01", item.Meta.Created.Format("2006-01-02"))
	assert.Equal(t, item.Meta.Created, item.Meta.Updated) // default
	assert.NotEmpty(t, item.Hash)
	assert.Contains(t, item.Body, "**body**")
}

func TestScanTopicFilter(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "golang", "generics", sampleDoc)
	writeDoc(t, root, "infra", "caching", "---\ntitle: Caching\n---\nBody.\n")

	res, err := NewIndexer(root).Scan(ScanOptions{TopicFilter: "infra"})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "infra/caching", res.Items[0].Key())

	_, err = NewIndexer(root).Scan(ScanOptions{TopicFilter: "missing"})
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}

func TestScanUnreadableRootIsFatal(t *testing.T) {
	_, err := NewIndexer(filepath.Join(t.TempDir(), "nope")).Scan(ScanOptions{})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategorySetup))
}

func TestScanMalformedItemsBecomeWarnings(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "blog", "good", sampleDoc)
	writeDoc(t, root, "blog", "no-title", "---\ndescription: no title here\n---\nBody.\n")
	writeDoc(t, root, "blog", "bad-yaml", "---\ntitle: [unclosed\n---\nBody.\n")
	writeDoc(t, root, "blog", "unterminated", "---\ntitle: X\nnever closed")

	res, err := NewIndexer(root).Scan(ScanOptions{})
	require.NoError(t, err)

	// One malformed document never hides the others.
	require.Len(t, res.Items, 1)
	assert.Equal(t, "blog/good", res.Items[0].Key())
	require.Len(t, res.Warnings, 3)
	for _, w := range res.Warnings {
		assert.Equal(t, errors.CategoryParse, w.Category)
		assert.NotEmpty(t, w.Path())
	}
}

func TestScanDrafts(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "blog", "live", sampleDoc)
	writeDoc(t, root, "blog", "wip", "---\ntitle: WIP\ndraft: true\n---\nBody.\n")

	res, err := NewIndexer(root).Scan(ScanOptions{})
	require.NoError(t, err)
	assert.Len(t, res.Items, 1)
	assert.Equal(t, 1, res.DraftsSkipped)

	res, err = NewIndexer(root).Scan(ScanOptions{IncludeDrafts: true})
	require.NoError(t, err)
	assert.Len(t, res.Items, 2)
	assert.Equal(t, 0, res.DraftsSkipped)
}

func TestScanSlugOverrideAndDuplicates(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "blog", "dir-name", "---\ntitle: A\nslug: custom\n---\nBody.\n")
	writeDoc(t, root, "blog", "other", "---\ntitle: B\nslug: custom\n---\nBody.\n")

	res, err := NewIndexer(root).Scan(ScanOptions{})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "custom", res.Items[0].Slug)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0].Message, "duplicate slug")
}

func TestScanRejectsInvalidSlug(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "blog", "ok", "---\ntitle: A\nslug: Not_Valid\n---\nBody.\n")

	res, err := NewIndexer(root).Scan(ScanOptions{})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0].Message, "invalid slug")
}

func TestDiscoverImages(t *testing.T) {
	root := t.TempDir()
	dir := writeDoc(t, root, "blog", "post", `---
title: Post
---
![diagram](diagram.png)
![remote](https://cdn.example.com/x.png)
![missing](not-here.png)
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.jpg"), []byte("jpg"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "diagram.png"), []byte("png"), 0o644))

	res, err := NewIndexer(root).Scan(ScanOptions{})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)

	refs := res.Items[0].Images
	require.Len(t, refs, 2)
	assert.True(t, refs[0].Cover)
	assert.Equal(t, "index.jpg", refs[0].Name)
	assert.Equal(t, "diagram.png", refs[1].Name)
	assert.False(t, refs[1].Cover)
}

func TestMetadataExtraSideMap(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "blog", "post", "---\ntitle: Post\nseries: deep-dives\nweight: 3\n---\nBody.\n")

	res, err := NewIndexer(root).Scan(ScanOptions{})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)

	extra := res.Items[0].Meta.Extra
	assert.Equal(t, "deep-dives", extra["series"])
	assert.Equal(t, 3, extra["weight"])
}
