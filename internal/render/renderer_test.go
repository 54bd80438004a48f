package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evansims/contentbuild/internal/content"
	"github.com/evansims/contentbuild/internal/errors"
)

func testItem(body string) *content.Item {
	return &content.Item{
		Topic: "blog",
		Slug:  "post",
		Meta: content.Metadata{
			Title:       "A Post",
			Description: "Short summary",
			Created:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		Body:       body,
		SourcePath: "content/blog/post/index.md",
	}
}

func TestRenderBasics(t *testing.T) {
	doc, err := New().Render(testItem("# Intro\n\nHello **world**, this has five words... and more.\n"), nil)
	require.NoError(t, err)

	assert.Equal(t, "A Post", doc.Title)
	assert.Equal(t, "Short summary", doc.Description)
	assert.Contains(t, doc.HTML, "<strong>world</strong>")
	assert.Contains(t, doc.HTML, `<h1 id="intro">`)
	assert.Equal(t, 11, doc.WordCount)
	assert.Equal(t, 1, doc.ReadingTime)
}

func TestRenderDeterminism(t *testing.T) {
	item := testItem("# One\n\n## Two\n\nBody with [a link](https://example.com) and `code`.\n\n| a | b |\n|---|---|\n| 1 | 2 |\n")
	r := New()

	first, err := r.Render(item, nil)
	require.NoError(t, err)
	for range 5 {
		again, err := r.Render(item, nil)
		require.NoError(t, err)
		assert.Equal(t, first.HTML, again.HTML)
		assert.Equal(t, first.Outline, again.Outline)
	}
}

func TestRenderOutline(t *testing.T) {
	doc, err := New().Render(testItem("# Café Notes\n\n## Setup\n\ntext\n\n## Setup\n\n### The `exec` Step\n"), nil)
	require.NoError(t, err)

	require.Len(t, doc.Outline, 4)
	assert.Equal(t, Heading{Level: 1, Text: "Café Notes", Anchor: "cafe-notes"}, doc.Outline[0])
	assert.Equal(t, Heading{Level: 2, Text: "Setup", Anchor: "setup"}, doc.Outline[1])
	assert.Equal(t, Heading{Level: 2, Text: "Setup", Anchor: "setup-1"}, doc.Outline[2])
	assert.Equal(t, Heading{Level: 3, Text: "The exec Step", Anchor: "the-exec-step"}, doc.Outline[3])
}

func TestRenderReadingTime(t *testing.T) {
	long := ""
	for range 450 {
		long += "word "
	}
	doc, err := New().Render(testItem(long), nil)
	require.NoError(t, err)
	assert.Equal(t, 450, doc.WordCount)
	assert.Equal(t, 3, doc.ReadingTime)

	empty, err := New().Render(testItem(""), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.ReadingTime)
}

func TestRenderInternalLinks(t *testing.T) {
	known := func(topic, slug string) bool {
		return topic == "blog" && slug == "exists"
	}

	t.Run("resolved", func(t *testing.T) {
		_, err := New().Render(testItem("[ok](/blog/exists) and [ext](https://example.com/x/y)\n"), known)
		assert.NoError(t, err)
	})

	t.Run("unresolved", func(t *testing.T) {
		_, err := New().Render(testItem("[broken](/blog/missing)\n"), known)
		require.Error(t, err)
		assert.True(t, errors.IsCategory(err, errors.CategoryRender))
		assert.Contains(t, err.Error(), "/blog/missing")
	})

	t.Run("fragments and queries stripped", func(t *testing.T) {
		_, err := New().Render(testItem("[ok](/blog/exists#section)\n"), known)
		assert.NoError(t, err)
	})

	t.Run("non item-shaped paths ignored", func(t *testing.T) {
		_, err := New().Render(testItem("[root](/) [deep](/a/b/c)\n"), known)
		assert.NoError(t, err)
	})
}

func TestAnchorize(t *testing.T) {
	cases := map[string]string{
		"Hello World":          "hello-world",
		"Café au lait":         "cafe-au-lait",
		"  spaces   galore  ":  "spaces-galore",
		"Version 2.0 (beta)":   "version-2-0-beta",
		"ALL CAPS":             "all-caps",
		"":                     "",
		"--- punctuation! ---": "punctuation",
	}
	for in, want := range cases {
		assert.Equal(t, want, Anchorize(in), "input %q", in)
	}
}
