package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildErrorFormatting(t *testing.T) {
	err := New(CategoryParse, SeverityWarning, "missing title")
	assert.Equal(t, "parse (warning): missing title", err.Error())

	wrapped := Wrap(fmt.Errorf("yaml: line 3"), CategoryParse, SeverityWarning, "bad frontmatter")
	assert.Equal(t, "parse (warning): bad frontmatter: yaml: line 3", wrapped.Error())
	assert.Equal(t, "yaml: line 3", wrapped.Unwrap().Error())
}

func TestCategoryClassification(t *testing.T) {
	err := New(CategoryRender, SeverityError, "unresolved link")

	assert.True(t, IsCategory(err, CategoryRender))
	assert.False(t, IsCategory(err, CategoryParse))
	assert.Equal(t, CategoryRender, GetCategory(err))

	// Wrapping with fmt.Errorf keeps the category reachable via errors.As.
	outer := fmt.Errorf("item failed: %w", err)
	assert.True(t, IsCategory(outer, CategoryRender))

	assert.Equal(t, CategoryInternal, GetCategory(fmt.Errorf("plain")))
}

func TestFatalSeverity(t *testing.T) {
	require.True(t, IsFatal(Setup("content root unreadable", nil)))
	require.False(t, IsFatal(New(CategoryCache, SeverityWarning, "corrupt manifest")))
	require.False(t, IsFatal(fmt.Errorf("plain")))
}

func TestWithContext(t *testing.T) {
	err := New(CategoryImageVariant, SeverityWarning, "unsupported format").
		WithContext("path", "content/blog/post/cover.jpg").
		WithContext("format", "avif")

	assert.Equal(t, "content/blog/post/cover.jpg", err.Path())
	assert.Equal(t, "avif", err.Context["format"])
}
